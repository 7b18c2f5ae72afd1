// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package audit records who changed what.

Every mutating route is wrapped with Wrap, which emits one Event per request
carrying the action, the caller, the status code and the duration. Handlers
add the affected resource and before/after snapshots:

	audit.Annotate(r.Context(), entry.ID, before, entry)

# Sinks

  - LogSink writes events to slog.
  - SQLSink stores them in the audit_log table.
  - MongoSink stores them in the audit_logs collection.

SQLSink and MongoSink also implement Lister, which backs GET /audit-logs.

# Recorder

Recorder writes asynchronously so a slow or failing sink never fails the
request. Failures are logged at warn level and counted in
municipal_results_audit_sink_failures_total. Close drains pending writes
and is called on shutdown.
*/
package audit
