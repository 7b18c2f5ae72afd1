// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/danielhkuo/municipal-results/db"
)

// SQLSink appends events to the audit_log table.
type SQLSink struct {
	db *sql.DB
}

func NewSQLSink(conn *sql.DB) *SQLSink {
	return &SQLSink{db: conn}
}

func (s *SQLSink) Write(ctx context.Context, ev Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (
			id, at, actor_id, actor_role, action, resource_type, resource_id,
			before_json, after_json, client_ip, user_agent, status, duration_ms
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, ev.ID, ev.At, ev.ActorID, ev.ActorRole, ev.Action, ev.ResourceType, ev.ResourceID,
		rawOrNil(ev.Before), rawOrNil(ev.After), ev.ClientIP, ev.UserAgent, ev.Status, ev.DurationMS)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

func (s *SQLSink) List(ctx context.Context, f Filter) ([]Event, error) {
	var w db.Where
	w.AddIf("resource_type = ?", f.ResourceType)
	w.AddIf("resource_id = ?", f.ResourceID)
	w.AddIf("actor_id = ?", f.ActorID)
	limit := w.Next(f.limit())

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, at, actor_id, actor_role, action, resource_type, resource_id,
		       before_json, after_json, client_ip, user_agent, status, duration_ms
		FROM audit_log`+w.String()+`
		ORDER BY at DESC, id
		LIMIT `+limit, w.Args()...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var ev Event
		var actorID, actorRole, resourceID, before, after, ip, ua sql.NullString
		if err := rows.Scan(&ev.ID, &ev.At, &actorID, &actorRole, &ev.Action, &ev.ResourceType, &resourceID,
			&before, &after, &ip, &ua, &ev.Status, &ev.DurationMS); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		ev.ActorID, ev.ActorRole, ev.ResourceID = actorID.String, actorRole.String, resourceID.String
		ev.ClientIP, ev.UserAgent = ip.String, ua.String
		if before.Valid {
			ev.Before = []byte(before.String)
		}
		if after.Valid {
			ev.After = []byte(after.String)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func rawOrNil(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
