// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the municipal results API server.

Field supervisors enter the tally of each polling station, administrators
validate or reject the entries, and agents file a photo of each center's
tally sheet. A center's compilation follows its stations: it is validated
once every station is, and goes back to review when a rejected station is
corrected. Live rollups by commune, district, ward and center are served
to administrators.

# Starting the Server

The server reads a .env file, then environment variables or CLI flags:

	DATABASE_URL=postgres://... JWT_SECRET=... go run .

Or with flags:

	go run . -p 3318 -d "file:results.db" -t sqlite --jwt-secret ...

# Configuration

Required settings:

  - DATABASE_URL (-d): PostgreSQL or SQLite connection string
  - JWT_SECRET (--jwt-secret): HMAC key for bearer tokens

Optional settings:

  - PORT (-p): server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite (default) or postgres
  - BLOB_DRIVER (--blob): fs (default), memory or s3, with BLOB_S3_BUCKET,
    BLOB_S3_REGION, BLOB_S3_ENDPOINT
  - MAX_UPLOAD_SIZE (--max-upload): e.g. 10MB
  - AUDIT_SINK (--audit): sql (default), log or mongo, with AUDIT_MONGO_URI
  - STATS_STREAM_INTERVAL (--stats-interval): refresh period of the stats stream
  - CORS_ORIGINS: comma-separated allowed origins
  - LOG_LEVEL, LOG_FORMAT: slog level and text or json output

# Architecture

  - ledger: result entries, compilations, elections and geography rules
  - stats: read-only rollups
  - handlers: HTTP request handlers
  - router: route table and access levels
  - middleware: logging, metrics, CORS, bearer auth, JSON helpers
  - audit: audit events and their sinks (log, SQL, MongoDB)
  - blob: tally sheet storage (memory, filesystem, S3)
  - metrics: Prometheus collectors
  - models: request/response types
  - auth: identities and JWTs
  - db: connection, schema and query helpers
  - cliparse: configuration parsing

See package documentation for each component.
*/
package main
