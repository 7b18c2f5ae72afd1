// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
// The DDL sticks to types both SQLite and Postgres accept.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

const schema = `
-- Geography
CREATE TABLE IF NOT EXISTS department (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS commune (
    id TEXT PRIMARY KEY,
    department_id TEXT NOT NULL REFERENCES department(id),
    name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS district (
    id TEXT PRIMARY KEY,
    commune_id TEXT NOT NULL REFERENCES commune(id),
    name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS ward (
    id TEXT PRIMARY KEY,
    district_id TEXT NOT NULL REFERENCES district(id),
    name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS neighborhood (
    id TEXT PRIMARY KEY,
    ward_id TEXT NOT NULL REFERENCES ward(id),
    name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS polling_center (
    id TEXT PRIMARY KEY,
    neighborhood_id TEXT NOT NULL REFERENCES neighborhood(id),
    name TEXT NOT NULL,
    declared_stations INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_polling_center_neighborhood ON polling_center(neighborhood_id);

CREATE TABLE IF NOT EXISTS polling_station (
    id TEXT PRIMARY KEY,
    center_id TEXT NOT NULL REFERENCES polling_center(id),
    number INTEGER NOT NULL,
    label TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    UNIQUE (center_id, number)
);

CREATE INDEX IF NOT EXISTS idx_polling_station_center ON polling_station(center_id);

-- Operators
CREATE TABLE IF NOT EXISTS app_user (
    id TEXT PRIMARY KEY,
    full_name TEXT NOT NULL,
    email TEXT NOT NULL UNIQUE,
    role TEXT NOT NULL CHECK (role IN ('SUPER_ADMIN', 'ADMIN', 'SUPERVISEUR', 'AGENT')),
    ward_id TEXT REFERENCES ward(id),
    center_id TEXT REFERENCES polling_center(id),
    created_at TIMESTAMP NOT NULL
);

-- Elections
CREATE TABLE IF NOT EXISTS election (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    vote_date DATE NOT NULL,
    status TEXT NOT NULL CHECK (status IN ('PLANIFIEE', 'EN_COURS', 'CLOTUREE', 'ARCHIVEE')),
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS party (
    id TEXT PRIMARY KEY,
    election_id TEXT NOT NULL REFERENCES election(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    code TEXT NOT NULL,
    logo_url TEXT,
    created_at TIMESTAMP NOT NULL,
    UNIQUE (election_id, code)
);

CREATE INDEX IF NOT EXISTS idx_party_election ON party(election_id);

-- Result ledger
CREATE TABLE IF NOT EXISTS result_entry (
    id TEXT PRIMARY KEY,
    election_id TEXT NOT NULL REFERENCES election(id) ON DELETE CASCADE,
    station_id TEXT NOT NULL REFERENCES polling_station(id),
    supervisor_id TEXT NOT NULL,
    opened_at TIMESTAMP,
    closed_at TIMESTAMP,
    registered_count INTEGER NOT NULL DEFAULT 0,
    voted_count INTEGER NOT NULL DEFAULT 0,
    valid_ballots INTEGER NOT NULL DEFAULT 0,
    abstentions INTEGER NOT NULL DEFAULT 0,
    null_ballots INTEGER NOT NULL DEFAULT 0,
    proxy_votes INTEGER NOT NULL DEFAULT 0,
    derogations INTEGER NOT NULL DEFAULT 0,
    turnout_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
    status TEXT NOT NULL CHECK (status IN ('COMPLETEE', 'VALIDEE', 'REJETEE')),
    validated_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    UNIQUE (election_id, station_id)
);

CREATE INDEX IF NOT EXISTS idx_result_entry_election_status ON result_entry(election_id, status);
CREATE INDEX IF NOT EXISTS idx_result_entry_station ON result_entry(station_id);

CREATE TABLE IF NOT EXISTS party_vote (
    result_id TEXT NOT NULL REFERENCES result_entry(id) ON DELETE CASCADE,
    party_id TEXT NOT NULL REFERENCES party(id),
    votes INTEGER NOT NULL CHECK (votes >= 0),
    PRIMARY KEY (result_id, party_id)
);

CREATE INDEX IF NOT EXISTS idx_party_vote_party ON party_vote(party_id);

-- Compilations
CREATE TABLE IF NOT EXISTS compilation (
    id TEXT PRIMARY KEY,
    election_id TEXT NOT NULL REFERENCES election(id) ON DELETE CASCADE,
    center_id TEXT NOT NULL REFERENCES polling_center(id),
    agent_id TEXT NOT NULL,
    photo_url TEXT,
    status TEXT NOT NULL CHECK (status IN ('EN_COURS', 'VALIDEE', 'REJETEE')),
    observation TEXT,
    validated_at TIMESTAMP,
    rejected_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    UNIQUE (election_id, center_id)
);

-- Audit trail
CREATE TABLE IF NOT EXISTS audit_log (
    id TEXT PRIMARY KEY,
    at TIMESTAMP NOT NULL,
    actor_id TEXT,
    actor_role TEXT,
    action TEXT NOT NULL,
    resource_type TEXT NOT NULL,
    resource_id TEXT,
    before_json TEXT,
    after_json TEXT,
    client_ip TEXT,
    user_agent TEXT,
    status INTEGER NOT NULL,
    duration_ms INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_log_at ON audit_log(at);
CREATE INDEX IF NOT EXISTS idx_audit_log_resource ON audit_log(resource_type, resource_id);
`
