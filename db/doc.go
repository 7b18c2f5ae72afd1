// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles driver selection and schema creation.

# Connecting

Open picks a database/sql driver from the configured type:

	conn, dialect, err := db.Open(ctx, "postgres", url) // lib/pq
	conn, dialect, err := db.Open(ctx, "pgx", url)      // jackc/pgx stdlib
	conn, dialect, err := db.Open(ctx, "sqlite", "file:results.db")

Queries use $N placeholders, which both drivers and SQLite accept.
Dialect.ForUpdate supplies row locks on Postgres.

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.

# Relationships

	department 1──* commune 1──* district 1──* ward 1──* neighborhood
	neighborhood 1──* polling_center 1──* polling_station
	election 1──* party
	election 1──* result_entry *──1 polling_station
	result_entry 1──* party_vote *──1 party
	election 1──* compilation *──1 polling_center

result_entry is unique per (election_id, station_id) and compilation per
(election_id, center_id).
*/
package db
