// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

main loads an optional .env file first, so every variable below may live there.

# CLI Flags

	-p               Server port
	-d               Database URL
	-t               Database type (sqlite, postgres, pgx)
	--jwt-secret     JWT HMAC secret
	--blob           Blob driver (memory, fs, s3)
	--max-upload     Maximum upload size (e.g. 10MB)
	--stats-interval Live stats polling interval (e.g. 10s)
	--audit          Audit sink (log, sql, mongo)

# Environment Variables

	PORT, DATABASE_URL, DATABASE_TYPE
	JWT_SECRET, JWT_ISSUER
	BLOB_DRIVER, BLOB_FS_ROOT, BLOB_PUBLIC_URL
	BLOB_S3_BUCKET, BLOB_S3_REGION, BLOB_S3_ENDPOINT, BLOB_S3_PATH_STYLE
	MAX_UPLOAD_SIZE
	AUDIT_SINK, AUDIT_MONGO_URI, AUDIT_MONGO_DB
	STATS_STREAM_INTERVAL
	LOG_LEVEL, LOG_FORMAT, CORS_ORIGINS

CLI flags take precedence over environment variables.

# Validation

ParseFlags returns an error if:

  - DATABASE_URL or JWT_SECRET is missing
  - DATABASE_TYPE, BLOB_DRIVER or AUDIT_SINK is not a known value
  - the s3 driver has no bucket, or the mongo sink has no URI
  - MAX_UPLOAD_SIZE or STATS_STREAM_INTERVAL does not parse
*/
package cliparse
