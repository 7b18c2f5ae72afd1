// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/danielhkuo/municipal-results/auth"
	"github.com/danielhkuo/municipal-results/db"
	"github.com/danielhkuo/municipal-results/models"
)

// ResultInput is what a supervisor submits for one station.
type ResultInput struct {
	ElectionID string
	StationID  string
	Tally      models.Tally
	Votes      []models.PartyVote
}

// ResultFilter narrows ListResults. Empty fields do not filter.
type ResultFilter struct {
	ElectionID string
	CenterID   string
	StationID  string
	Status     string
}

const resultColumns = `
	r.id, r.election_id, r.station_id, ps.center_id, r.supervisor_id,
	r.opened_at, r.closed_at, r.registered_count, r.voted_count, r.valid_ballots,
	r.abstentions, r.null_ballots, r.proxy_votes, r.derogations,
	r.turnout_rate, r.status, r.validated_at, r.created_at, r.updated_at`

const resultFrom = `
	FROM result_entry r
	JOIN polling_station ps ON ps.id = r.station_id
	JOIN polling_center pc ON pc.id = ps.center_id
	JOIN neighborhood n ON n.id = pc.neighborhood_id`

func scanResult(row interface{ Scan(...any) error }) (models.ResultEntry, error) {
	var e models.ResultEntry
	err := row.Scan(
		&e.ID, &e.ElectionID, &e.StationID, &e.CenterID, &e.SupervisorID,
		&e.OpenedAt, &e.ClosedAt, &e.Registered, &e.Voted, &e.ValidBallots,
		&e.Abstentions, &e.NullBallots, &e.ProxyVotes, &e.Derogations,
		&e.TurnoutRate, &e.Status, &e.ValidatedAt, &e.CreatedAt, &e.UpdatedAt,
	)
	return e, err
}

func validateTally(t models.Tally) error {
	counts := map[string]int{
		"registered_count": t.Registered,
		"voted_count":      t.Voted,
		"valid_ballots":    t.ValidBallots,
		"abstentions":      t.Abstentions,
		"null_ballots":     t.NullBallots,
		"proxy_votes":      t.ProxyVotes,
		"derogations":      t.Derogations,
	}
	for name, v := range counts {
		if v < 0 {
			return newError(CodeInvalidInput, "%s must not be negative", name)
		}
	}
	if t.OpenedAt != nil && t.ClosedAt != nil && t.ClosedAt.Before(*t.OpenedAt) {
		return newError(CodeInvalidInput, "closed_at is before opened_at")
	}
	return nil
}

// checkVotes verifies every party belongs to the election and appears once.
func (s *Service) checkVotes(ctx context.Context, q querier, electionID string, votes []models.PartyVote) error {
	rows, err := q.QueryContext(ctx, `SELECT id FROM party WHERE election_id = $1`, electionID)
	if err != nil {
		return fmt.Errorf("failed to query parties: %w", err)
	}
	defer rows.Close()

	parties := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("failed to scan party: %w", err)
		}
		parties[id] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate parties: %w", err)
	}

	seen := map[string]bool{}
	for _, v := range votes {
		if v.PartyID == "" {
			return newError(CodeInvalidInput, "party_id is required for every vote")
		}
		if v.Votes < 0 {
			return newError(CodeInvalidInput, "votes for party %s must not be negative", v.PartyID)
		}
		if seen[v.PartyID] {
			return newError(CodeInvalidInput, "party %s listed twice", v.PartyID)
		}
		seen[v.PartyID] = true
		if !parties[v.PartyID] {
			return newError(CodeInvalidInput, "party %s does not belong to election %s", v.PartyID, electionID)
		}
	}
	return nil
}

func insertVotes(ctx context.Context, tx *sql.Tx, resultID string, votes []models.PartyVote) error {
	for _, v := range votes {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO party_vote (result_id, party_id, votes)
			VALUES ($1, $2, $3)
		`, resultID, v.PartyID, v.Votes)
		if err != nil {
			return fmt.Errorf("failed to insert party vote: %w", err)
		}
	}
	return nil
}

func loadVotes(ctx context.Context, q querier, resultID string) ([]models.PartyVote, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT pv.party_id, pv.votes
		FROM party_vote pv
		JOIN party p ON p.id = pv.party_id
		WHERE pv.result_id = $1
		ORDER BY pv.votes DESC, p.code
	`, resultID)
	if err != nil {
		return nil, fmt.Errorf("failed to query party votes: %w", err)
	}
	defer rows.Close()

	votes := []models.PartyVote{}
	for rows.Next() {
		var v models.PartyVote
		if err := rows.Scan(&v.PartyID, &v.Votes); err != nil {
			return nil, fmt.Errorf("failed to scan party vote: %w", err)
		}
		votes = append(votes, v)
	}
	return votes, rows.Err()
}

func (s *Service) loadResult(ctx context.Context, q querier, id string) (models.ResultEntry, error) {
	e, err := scanResult(q.QueryRowContext(ctx, `SELECT `+resultColumns+resultFrom+` WHERE r.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.ResultEntry{}, newError(CodeNotFound, "result %s not found", id)
	}
	if err != nil {
		return models.ResultEntry{}, fmt.Errorf("failed to query result: %w", err)
	}
	if e.Votes, err = loadVotes(ctx, q, id); err != nil {
		return models.ResultEntry{}, err
	}
	return e, nil
}

// resultCenter finds the center of a result entry without locking anything.
func (s *Service) resultCenter(ctx context.Context, q querier, id string) (centerRef, error) {
	var stationID string
	err := q.QueryRowContext(ctx, `SELECT station_id FROM result_entry WHERE id = $1`, id).Scan(&stationID)
	if errors.Is(err, sql.ErrNoRows) {
		return centerRef{}, newError(CodeNotFound, "result %s not found", id)
	}
	if err != nil {
		return centerRef{}, fmt.Errorf("failed to query result: %w", err)
	}
	return s.lookupStation(ctx, q, stationID)
}

// CreateResult records a station's tallies with status COMPLETEE.
func (s *Service) CreateResult(ctx context.Context, who auth.Identity, in ResultInput) (entry models.ResultEntry, err error) {
	defer s.observe("result", "create", &err)

	if err := requireRole(who, auth.RoleSupervisor); err != nil {
		return models.ResultEntry{}, err
	}
	if in.ElectionID == "" || in.StationID == "" {
		return models.ResultEntry{}, newError(CodeInvalidInput, "election_id and station_id are required")
	}
	if err := validateTally(in.Tally); err != nil {
		return models.ResultEntry{}, err
	}

	id := auth.NewID()
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.electionExists(ctx, tx, in.ElectionID); err != nil {
			return err
		}
		ref, err := s.lookupStation(ctx, tx, in.StationID)
		if err != nil {
			return err
		}
		if err := checkAccess(who, ref); err != nil {
			return err
		}
		if err := s.lockCenter(ctx, tx, ref.CenterID); err != nil {
			return err
		}
		_, compiled, err := compilationStatus(ctx, tx, in.ElectionID, ref.CenterID)
		if err != nil {
			return err
		}
		if compiled == models.CompilationValidated {
			return newError(CodeValidatedImmutable, "center %s is already validated for this election", ref.CenterID)
		}

		var existing string
		err = tx.QueryRowContext(ctx, `
			SELECT id FROM result_entry WHERE election_id = $1 AND station_id = $2
		`, in.ElectionID, in.StationID).Scan(&existing)
		if err == nil {
			return newError(CodeAlreadyExists, "a result already exists for station %s in this election", in.StationID)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to check existing result: %w", err)
		}

		if err := s.checkVotes(ctx, tx, in.ElectionID, in.Votes); err != nil {
			return err
		}

		now := s.now()
		t := in.Tally
		_, err = tx.ExecContext(ctx, `
			INSERT INTO result_entry (
				id, election_id, station_id, supervisor_id, opened_at, closed_at,
				registered_count, voted_count, valid_ballots, abstentions, null_ballots,
				proxy_votes, derogations, turnout_rate, status, created_at, updated_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $16)
		`, id, in.ElectionID, in.StationID, who.UserID, t.OpenedAt, t.ClosedAt,
			t.Registered, t.Voted, t.ValidBallots, t.Abstentions, t.NullBallots,
			t.ProxyVotes, t.Derogations, Turnout(t.Voted, t.Registered), models.ResultSubmitted, now)
		if db.IsUniqueViolation(err) {
			return newError(CodeAlreadyExists, "a result already exists for station %s in this election", in.StationID)
		}
		if err != nil {
			return fmt.Errorf("failed to insert result: %w", err)
		}

		if err := insertVotes(ctx, tx, id, in.Votes); err != nil {
			return err
		}

		entry, err = s.loadResult(ctx, tx, id)
		return err
	})
	if err != nil {
		return models.ResultEntry{}, err
	}

	slog.Info("result created", "result_id", id, "election_id", in.ElectionID, "station_id", in.StationID, "supervisor_id", who.UserID)
	return entry, nil
}

// UpdateResult replaces the tallies and party votes of a rejected entry and sends it
// back for review. A rejected compilation of the center reverts to EN_COURS.
func (s *Service) UpdateResult(ctx context.Context, who auth.Identity, id string, tally models.Tally, votes []models.PartyVote) (entry models.ResultEntry, err error) {
	defer s.observe("result", "update", &err)

	if err := requireRole(who, auth.RoleSupervisor); err != nil {
		return models.ResultEntry{}, err
	}
	if err := validateTally(tally); err != nil {
		return models.ResultEntry{}, err
	}

	var reverted bool
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		ref, err := s.resultCenter(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := checkAccess(who, ref); err != nil {
			return err
		}
		if err := s.lockCenter(ctx, tx, ref.CenterID); err != nil {
			return err
		}

		current, err := s.loadResult(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.SupervisorID != who.UserID {
			return newError(CodeForbidden, "only the submitting supervisor may edit this result")
		}
		switch current.Status {
		case models.ResultValidated:
			return ErrValidatedImmutable
		case models.ResultSubmitted:
			return ErrNotRejectedCannotEdit
		}

		if err := s.checkVotes(ctx, tx, current.ElectionID, votes); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE result_entry
			SET opened_at = $1, closed_at = $2, registered_count = $3, voted_count = $4,
			    valid_ballots = $5, abstentions = $6, null_ballots = $7, proxy_votes = $8,
			    derogations = $9, turnout_rate = $10, status = $11, validated_at = NULL,
			    updated_at = $12
			WHERE id = $13
		`, tally.OpenedAt, tally.ClosedAt, tally.Registered, tally.Voted,
			tally.ValidBallots, tally.Abstentions, tally.NullBallots, tally.ProxyVotes,
			tally.Derogations, Turnout(tally.Voted, tally.Registered), models.ResultSubmitted,
			s.now(), id)
		if err != nil {
			return fmt.Errorf("failed to update result: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM party_vote WHERE result_id = $1`, id); err != nil {
			return fmt.Errorf("failed to clear party votes: %w", err)
		}
		if err := insertVotes(ctx, tx, id, votes); err != nil {
			return err
		}

		if reverted, err = s.reconcileOnCorrection(ctx, tx, current.ElectionID, ref.CenterID); err != nil {
			return err
		}

		entry, err = s.loadResult(ctx, tx, id)
		return err
	})
	if err != nil {
		return models.ResultEntry{}, err
	}

	slog.Info("result corrected", "result_id", id, "compilation_reverted", reverted)
	return entry, nil
}

// ValidateResult certifies an entry. When it completes the center, the
// center's compilation flips to VALIDEE in the same transaction.
func (s *Service) ValidateResult(ctx context.Context, who auth.Identity, id string) (entry models.ResultEntry, err error) {
	defer s.observe("result", "validate", &err)

	if err := requireRole(who, auth.RoleAdmin, auth.RoleSuperAdmin); err != nil {
		return models.ResultEntry{}, err
	}

	var completed bool
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		ref, err := s.resultCenter(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.lockCenter(ctx, tx, ref.CenterID); err != nil {
			return err
		}

		current, err := s.loadResult(ctx, tx, id)
		if err != nil {
			return err
		}
		switch current.Status {
		case models.ResultValidated:
			return ErrAlreadyValidated
		case models.ResultRejected:
			// The supervisor must correct it first, which puts it back to COMPLETEE.
			return &TransitionError{From: current.Status, To: models.ResultValidated}
		}
		if len(current.Votes) == 0 {
			return ErrNoPartyResults
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE result_entry SET status = $1, validated_at = $2, updated_at = $2 WHERE id = $3
		`, models.ResultValidated, s.now(), id)
		if err != nil {
			return fmt.Errorf("failed to validate result: %w", err)
		}

		if completed, err = s.reconcileOnValidate(ctx, tx, current.ElectionID, ref.CenterID); err != nil {
			return err
		}

		entry, err = s.loadResult(ctx, tx, id)
		return err
	})
	if err != nil {
		return models.ResultEntry{}, err
	}

	slog.Info("result validated", "result_id", id, "validated_by", who.UserID, "compilation_validated", completed)
	return entry, nil
}

// RejectResult sends an entry back to its supervisor. The reason, if any,
// belongs on the center's compilation note.
func (s *Service) RejectResult(ctx context.Context, who auth.Identity, id string) (entry models.ResultEntry, err error) {
	defer s.observe("result", "reject", &err)

	if err := requireRole(who, auth.RoleAdmin, auth.RoleSuperAdmin); err != nil {
		return models.ResultEntry{}, err
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		ref, err := s.resultCenter(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.lockCenter(ctx, tx, ref.CenterID); err != nil {
			return err
		}

		current, err := s.loadResult(ctx, tx, id)
		if err != nil {
			return err
		}
		switch current.Status {
		case models.ResultValidated:
			return ErrAlreadyValidated
		case models.ResultRejected:
			return ErrAlreadyRejected
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE result_entry SET status = $1, validated_at = NULL, updated_at = $2 WHERE id = $3
		`, models.ResultRejected, s.now(), id)
		if err != nil {
			return fmt.Errorf("failed to reject result: %w", err)
		}

		entry, err = s.loadResult(ctx, tx, id)
		return err
	})
	if err != nil {
		return models.ResultEntry{}, err
	}

	slog.Info("result rejected", "result_id", id, "rejected_by", who.UserID)
	return entry, nil
}

// DeleteResult removes a non-validated entry and its party votes. If the
// remaining entries of the center are all validated, its compilation follows.
func (s *Service) DeleteResult(ctx context.Context, who auth.Identity, id string) (deleted models.ResultEntry, err error) {
	defer s.observe("result", "delete", &err)

	if err := requireRole(who, auth.RoleSupervisor, auth.RoleAdmin, auth.RoleSuperAdmin); err != nil {
		return models.ResultEntry{}, err
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		ref, err := s.resultCenter(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := checkAccess(who, ref); err != nil {
			return err
		}
		if err := s.lockCenter(ctx, tx, ref.CenterID); err != nil {
			return err
		}

		deleted, err = s.loadResult(ctx, tx, id)
		if err != nil {
			return err
		}
		if deleted.Status == models.ResultValidated {
			return ErrCannotDeleteValidated
		}
		if who.Role == auth.RoleSupervisor && deleted.SupervisorID != who.UserID {
			return newError(CodeForbidden, "only the submitting supervisor may delete this result")
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM party_vote WHERE result_id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete party votes: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM result_entry WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete result: %w", err)
		}

		_, err = s.reconcileOnValidate(ctx, tx, deleted.ElectionID, ref.CenterID)
		return err
	})
	if err != nil {
		return models.ResultEntry{}, err
	}

	slog.Info("result deleted", "result_id", id, "deleted_by", who.UserID)
	return deleted, nil
}

// GetResult returns one entry with its party votes, if who may see it.
func (s *Service) GetResult(ctx context.Context, who auth.Identity, id string) (models.ResultEntry, error) {
	ref, err := s.resultCenter(ctx, s.db, id)
	if err != nil {
		return models.ResultEntry{}, err
	}
	if err := checkAccess(who, ref); err != nil {
		return models.ResultEntry{}, err
	}
	return s.loadResult(ctx, s.db, id)
}

// ListResults returns the entries visible to who, newest first.
func (s *Service) ListResults(ctx context.Context, who auth.Identity, f ResultFilter) ([]models.ResultEntry, error) {
	var w db.Where
	w.AddIf("r.election_id = ?", f.ElectionID)
	w.AddIf("ps.center_id = ?", f.CenterID)
	w.AddIf("r.station_id = ?", f.StationID)
	w.AddIf("r.status = ?", strings.ToUpper(f.Status))
	scopeWhere(&w, who)

	rows, err := s.db.QueryContext(ctx, `SELECT `+resultColumns+resultFrom+w.String()+` ORDER BY r.created_at DESC, r.id`, w.Args()...)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	entries := []models.ResultEntry{}
	for rows.Next() {
		e, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate results: %w", err)
	}
	rows.Close()

	for i := range entries {
		if entries[i].Votes, err = loadVotes(ctx, s.db, entries[i].ID); err != nil {
			return nil, err
		}
	}
	return entries, nil
}
