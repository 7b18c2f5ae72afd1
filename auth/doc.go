// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides caller identity, JWT verification, and ID generation.

# Roles

	RoleSuperAdmin = "SUPER_ADMIN" // elections, stations, audit log
	RoleAdmin      = "ADMIN"       // validate / reject results and compilations
	RoleSupervisor = "SUPERVISEUR" // enters results for stations in one ward
	RoleAgent      = "AGENT"       // files the compilation for one center

# Identity

Identity carries the user ID, role, and assignment (ward for supervisors,
center for agents). It is passed explicitly to every ledger and stats call
so queries can be scoped without session globals:

	who, ok := auth.FromContext(r.Context())

# Tokens

Tokens are HS256 JWTs with role, ward_id, and center_id claims:

	who, err := auth.ParseToken(raw, secret, issuer)
	token, err := auth.IssueToken(who, secret, issuer, time.Hour)

Login and OTP delivery happen elsewhere; IssueToken exists for tests and
operator tooling.

# ID Generation

Random UUIDs for database records:

	id := auth.NewID()
*/
package auth
