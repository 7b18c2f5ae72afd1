// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the municipal results API.

# Handler Types

Each handler is a struct over one service:

  - ElectionHandler: elections, status changes and parties
  - GeographyHandler: polling centers and stations
  - ResultHandler: station result entries (create, correct, validate, reject)
  - CompilationHandler: per-center proof photos and their validation
  - StatsHandler: rollups by level and a server-sent event stream
  - UploadHandler: tally sheet scans stored in the blob store
  - AuditHandler: the audit trail, when the sink can be read back

Handlers are created via constructor functions:

	resultHandler := handlers.NewResultHandler(ledgerService)
	statsHandler := handlers.NewStatsHandler(stats.New(db), cfg)

# Identity

Handlers read the caller from the request context (auth.FromContext). The
router puts it there after checking the bearer token. Handlers do not check
roles or scope themselves: the ledger refuses out-of-scope callers with a
FORBIDDEN error.

# Errors

Domain failures are written as

	{"error": "Conflict", "message": "validated record cannot be modified", "code": "VALIDATED_IMMUTABLE"}

with the HTTP status taken from the code (400, 403, 404 or 409). Anything
else is logged and answered with 500 and code INTERNAL.

# Auditing

Mutating handlers call audit.Annotate with the affected record before and
after the change. The snapshots land in the event the router's audit
wrapper records.
*/
package handlers
