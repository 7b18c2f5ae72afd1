// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package ledger owns every write to election data: result entries, center
compilations, elections, parties, and polling geography.

# Result Entries

One entry per (election, station). Status moves

	COMPLETEE → VALIDEE   (admin, terminal)
	COMPLETEE → REJETEE   (admin)
	REJETEE   → COMPLETEE (submitting supervisor edits the tallies)

# Compilations

One compilation per (election, center), filed by an agent once at least one
entry exists. Its status follows the entries of the center:

	EN_COURS ⇄ REJETEE    (admin rejects / a station is corrected)
	EN_COURS → VALIDEE    (every entry of the center is VALIDEE)
	REJETEE  → VALIDEE

A VALIDEE center takes no new entries (ErrValidatedImmutable).

Reconciliation runs inside the transaction of the entry mutation that
triggered it. Each lifecycle operation first locks the polling_center row,
so two validations in one center cannot both miss the roll-up.

# Scoping

Every call takes the caller's auth.Identity. Supervisors act within their
ward, agents within their center, admins everywhere. Out-of-scope access
fails with ErrForbidden.

# Errors

Domain failures are *Error values carrying a Code; compare with errors.Is:

	if errors.Is(err, ledger.ErrValidatedImmutable) { ... }

Anything else is an infrastructure error.
*/
package ledger
