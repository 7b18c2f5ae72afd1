// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/danielhkuo/municipal-results/auth"
	"github.com/danielhkuo/municipal-results/db"
	"github.com/danielhkuo/municipal-results/metrics"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PhotoValidator decides whether a proof photo URL is acceptable.
type PhotoValidator func(url string) bool

type Service struct {
	db         *sql.DB
	dialect    db.Dialect
	validPhoto PhotoValidator
	now        func() time.Time
}

// New creates a ledger service over conn. validPhoto may be nil to accept any non-empty URL.
func New(conn *sql.DB, dialect db.Dialect, validPhoto PhotoValidator) *Service {
	if validPhoto == nil {
		validPhoto = func(url string) bool { return url != "" }
	}
	return &Service{
		db:         conn,
		dialect:    dialect,
		validPhoto: validPhoto,
		now:        func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// inTx runs fn inside one transaction; the mutation, child rows and any
// reconciliation it triggers commit or roll back together.
func (s *Service) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// observe records the outcome of a ledger operation. Use with a named error return:
//
//	defer s.observe("result", "validate", &err)
func (s *Service) observe(entity, operation string, errp *error) {
	outcome := "ok"
	if *errp != nil {
		outcome = string(CodeOf(*errp))
		if outcome == "" {
			outcome = "error"
		}
	}
	metrics.ObserveOperation(entity, operation, outcome)
}

// Percent returns part/whole×100 rounded to two decimals, 0 when whole is 0.
func Percent(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*10000) / 100
}

// Turnout is voted/registered as a percentage, capped at 100 for tallies
// reporting more voters than registered.
func Turnout(voted, registered int) float64 {
	return min(Percent(voted, registered), 100)
}

func requireRole(who auth.Identity, roles ...string) error {
	if !who.HasRole(roles...) {
		return newError(CodeForbidden, "role %s may not perform this operation", who.Role)
	}
	return nil
}

// centerRef locates a polling center in the ward used for supervisor scoping.
type centerRef struct {
	CenterID string
	WardID   string
}

// canAccess reports whether who may act on records of the given center.
func canAccess(who auth.Identity, ref centerRef) bool {
	switch who.Role {
	case auth.RoleSuperAdmin, auth.RoleAdmin:
		return true
	case auth.RoleSupervisor:
		return who.WardID != "" && who.WardID == ref.WardID
	case auth.RoleAgent:
		return who.CenterID != "" && who.CenterID == ref.CenterID
	}
	return false
}

func checkAccess(who auth.Identity, ref centerRef) error {
	if !canAccess(who, ref) {
		return newError(CodeForbidden, "center %s is outside of your assignment", ref.CenterID)
	}
	return nil
}

// scopeWhere restricts a query over aliased polling_station ps / neighborhood n
// rows to what who may see.
func scopeWhere(w *db.Where, who auth.Identity) {
	switch who.Role {
	case auth.RoleSupervisor:
		w.Add("n.ward_id = ?", who.WardID)
	case auth.RoleAgent:
		w.Add("ps.center_id = ?", who.CenterID)
	}
}

func (s *Service) lookupCenter(ctx context.Context, q querier, centerID string) (centerRef, error) {
	var ref centerRef
	err := q.QueryRowContext(ctx, `
		SELECT pc.id, n.ward_id
		FROM polling_center pc
		JOIN neighborhood n ON n.id = pc.neighborhood_id
		WHERE pc.id = $1
	`, centerID).Scan(&ref.CenterID, &ref.WardID)
	if errors.Is(err, sql.ErrNoRows) {
		return centerRef{}, newError(CodeNotFound, "polling center %s not found", centerID)
	}
	if err != nil {
		return centerRef{}, fmt.Errorf("failed to query polling center: %w", err)
	}
	return ref, nil
}

func (s *Service) lookupStation(ctx context.Context, q querier, stationID string) (centerRef, error) {
	var ref centerRef
	err := q.QueryRowContext(ctx, `
		SELECT pc.id, n.ward_id
		FROM polling_station ps
		JOIN polling_center pc ON pc.id = ps.center_id
		JOIN neighborhood n ON n.id = pc.neighborhood_id
		WHERE ps.id = $1
	`, stationID).Scan(&ref.CenterID, &ref.WardID)
	if errors.Is(err, sql.ErrNoRows) {
		return centerRef{}, newError(CodeNotFound, "polling station %s not found", stationID)
	}
	if err != nil {
		return centerRef{}, fmt.Errorf("failed to query polling station: %w", err)
	}
	return ref, nil
}

// lockCenter serializes lifecycle operations touching one center. Every
// result and compilation mutation takes this lock first, so the counts read
// by reconciliation include all committed validations.
func (s *Service) lockCenter(ctx context.Context, tx *sql.Tx, centerID string) error {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM polling_center WHERE id = $1`+s.dialect.ForUpdate(), centerID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return newError(CodeNotFound, "polling center %s not found", centerID)
	}
	if err != nil {
		return fmt.Errorf("failed to lock polling center: %w", err)
	}
	return nil
}

func (s *Service) electionExists(ctx context.Context, q querier, electionID string) error {
	var id string
	err := q.QueryRowContext(ctx, `SELECT id FROM election WHERE id = $1`, electionID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return newError(CodeNotFound, "election %s not found", electionID)
	}
	if err != nil {
		return fmt.Errorf("failed to query election: %w", err)
	}
	return nil
}
