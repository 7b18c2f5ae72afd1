// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/danielhkuo/municipal-results/auth"
	"github.com/danielhkuo/municipal-results/db"
	"github.com/danielhkuo/municipal-results/models"
)

// electionTransitions lists the allowed status changes. ARCHIVEE is terminal.
var electionTransitions = map[string][]string{
	models.ElectionPlanned:    {models.ElectionInProgress, models.ElectionArchived},
	models.ElectionInProgress: {models.ElectionClosed},
	models.ElectionClosed:     {models.ElectionArchived, models.ElectionInProgress},
	models.ElectionArchived:   {},
}

// CanTransition reports whether an election may move from one status to another.
func CanTransition(from, to string) bool {
	return slices.Contains(electionTransitions[from], to)
}

func validElectionType(t string) bool {
	return t == models.ElectionMunicipal || t == models.ElectionLegislative
}

func parseVoteDate(s string) (time.Time, error) {
	d, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, newError(CodeInvalidInput, "vote_date must be YYYY-MM-DD")
	}
	return d, nil
}

func scanElection(row interface{ Scan(...any) error }) (models.Election, error) {
	var e models.Election
	err := row.Scan(&e.ID, &e.Type, &e.VoteDate, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

const electionColumns = `id, type, vote_date, status, created_at, updated_at`

func (s *Service) loadElection(ctx context.Context, q querier, id string) (models.Election, error) {
	e, err := scanElection(q.QueryRowContext(ctx, `SELECT `+electionColumns+` FROM election WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Election{}, newError(CodeNotFound, "election %s not found", id)
	}
	if err != nil {
		return models.Election{}, fmt.Errorf("failed to query election: %w", err)
	}
	return e, nil
}

// CreateElection registers a planned election.
func (s *Service) CreateElection(ctx context.Context, who auth.Identity, electionType, voteDate string) (e models.Election, err error) {
	defer s.observe("election", "create", &err)

	if err := requireRole(who, auth.RoleSuperAdmin); err != nil {
		return models.Election{}, err
	}
	electionType = strings.ToUpper(strings.TrimSpace(electionType))
	if !validElectionType(electionType) {
		return models.Election{}, newError(CodeInvalidInput, "type must be %s or %s", models.ElectionMunicipal, models.ElectionLegislative)
	}
	date, err := parseVoteDate(voteDate)
	if err != nil {
		return models.Election{}, err
	}

	id := auth.NewID()
	now := s.now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO election (id, type, vote_date, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
	`, id, electionType, date, models.ElectionPlanned, now)
	if err != nil {
		return models.Election{}, fmt.Errorf("failed to insert election: %w", err)
	}

	slog.Info("election created", "election_id", id, "type", electionType, "vote_date", voteDate)
	return s.loadElection(ctx, s.db, id)
}

// UpdateElection changes type and vote date. Both are frozen while the election is in progress.
func (s *Service) UpdateElection(ctx context.Context, who auth.Identity, id, electionType, voteDate string) (e models.Election, err error) {
	defer s.observe("election", "update", &err)

	if err := requireRole(who, auth.RoleSuperAdmin); err != nil {
		return models.Election{}, err
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		current, err := s.loadElection(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.Status == models.ElectionInProgress {
			return ErrActiveNoModification
		}

		newType := current.Type
		if t := strings.ToUpper(strings.TrimSpace(electionType)); t != "" {
			if !validElectionType(t) {
				return newError(CodeInvalidInput, "type must be %s or %s", models.ElectionMunicipal, models.ElectionLegislative)
			}
			newType = t
		}
		newDate := current.VoteDate
		if voteDate != "" {
			if newDate, err = parseVoteDate(voteDate); err != nil {
				return err
			}
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE election SET type = $1, vote_date = $2, updated_at = $3 WHERE id = $4
		`, newType, newDate, s.now(), id)
		if err != nil {
			return fmt.Errorf("failed to update election: %w", err)
		}

		e, err = s.loadElection(ctx, tx, id)
		return err
	})
	if err != nil {
		return models.Election{}, err
	}

	slog.Info("election updated", "election_id", id)
	return e, nil
}

// TransitionElection moves an election to status to, or fails with a *TransitionError.
func (s *Service) TransitionElection(ctx context.Context, who auth.Identity, id, to string) (e models.Election, err error) {
	defer s.observe("election", "transition", &err)

	if err := requireRole(who, auth.RoleSuperAdmin); err != nil {
		return models.Election{}, err
	}
	to = strings.ToUpper(strings.TrimSpace(to))

	var from string
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		current, err := s.loadElection(ctx, tx, id)
		if err != nil {
			return err
		}
		from = current.Status
		if !CanTransition(from, to) {
			return &TransitionError{From: from, To: to}
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE election SET status = $1, updated_at = $2 WHERE id = $3
		`, to, s.now(), id)
		if err != nil {
			return fmt.Errorf("failed to update election status: %w", err)
		}

		e, err = s.loadElection(ctx, tx, id)
		return err
	})
	if err != nil {
		return models.Election{}, err
	}

	slog.Info("election status changed", "election_id", id, "from", from, "to", to)
	return e, nil
}

// DeleteElection removes an election with its parties, results and compilations.
func (s *Service) DeleteElection(ctx context.Context, who auth.Identity, id string) (e models.Election, err error) {
	defer s.observe("election", "delete", &err)

	if err := requireRole(who, auth.RoleSuperAdmin); err != nil {
		return models.Election{}, err
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		e, err = s.loadElection(ctx, tx, id)
		if err != nil {
			return err
		}
		if e.Status == models.ElectionInProgress {
			return ErrActiveNoDeletion
		}

		// SQLite does not enforce ON DELETE CASCADE without a pragma, so children go first.
		stmts := []struct{ what, query string }{
			{"party votes", `DELETE FROM party_vote WHERE result_id IN (SELECT id FROM result_entry WHERE election_id = $1)`},
			{"results", `DELETE FROM result_entry WHERE election_id = $1`},
			{"compilations", `DELETE FROM compilation WHERE election_id = $1`},
			{"parties", `DELETE FROM party WHERE election_id = $1`},
			{"election", `DELETE FROM election WHERE id = $1`},
		}
		for _, st := range stmts {
			if _, err := tx.ExecContext(ctx, st.query, id); err != nil {
				return fmt.Errorf("failed to delete %s: %w", st.what, err)
			}
		}
		return nil
	})
	if err != nil {
		return models.Election{}, err
	}

	slog.Info("election deleted", "election_id", id, "deleted_by", who.UserID)
	return e, nil
}

func (s *Service) GetElection(ctx context.Context, id string) (models.Election, error) {
	return s.loadElection(ctx, s.db, id)
}

// ListElections returns elections, most recent vote date first. status may be empty.
func (s *Service) ListElections(ctx context.Context, status string) ([]models.Election, error) {
	var w db.Where
	w.AddIf("status = ?", strings.ToUpper(status))

	rows, err := s.db.QueryContext(ctx, `SELECT `+electionColumns+` FROM election`+w.String()+` ORDER BY vote_date DESC, created_at DESC`, w.Args()...)
	if err != nil {
		return nil, fmt.Errorf("failed to query elections: %w", err)
	}
	defer rows.Close()

	list := []models.Election{}
	for rows.Next() {
		e, err := scanElection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan election: %w", err)
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// CreateParty registers a party for one election. Codes are unique per election.
func (s *Service) CreateParty(ctx context.Context, who auth.Identity, electionID, name, code string, logoURL *string) (p models.Party, err error) {
	defer s.observe("party", "create", &err)

	if err := requireRole(who, auth.RoleAdmin, auth.RoleSuperAdmin); err != nil {
		return models.Party{}, err
	}
	name = strings.TrimSpace(name)
	code = strings.ToUpper(strings.TrimSpace(code))
	if name == "" || code == "" {
		return models.Party{}, newError(CodeInvalidInput, "name and code are required")
	}
	if err := s.electionExists(ctx, s.db, electionID); err != nil {
		return models.Party{}, err
	}

	p = models.Party{
		ID:         auth.NewID(),
		ElectionID: electionID,
		Name:       name,
		Code:       code,
		LogoURL:    logoURL,
		CreatedAt:  s.now(),
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO party (id, election_id, name, code, logo_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, p.ID, p.ElectionID, p.Name, p.Code, p.LogoURL, p.CreatedAt)
	if db.IsUniqueViolation(err) {
		return models.Party{}, newError(CodeAlreadyExists, "party code %s already used in this election", code)
	}
	if err != nil {
		return models.Party{}, fmt.Errorf("failed to insert party: %w", err)
	}

	slog.Info("party created", "party_id", p.ID, "election_id", electionID, "code", code)
	return p, nil
}

// ListParties returns the parties of an election ordered by code.
func (s *Service) ListParties(ctx context.Context, electionID string) ([]models.Party, error) {
	if err := s.electionExists(ctx, s.db, electionID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, election_id, name, code, logo_url, created_at
		FROM party WHERE election_id = $1 ORDER BY code
	`, electionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query parties: %w", err)
	}
	defer rows.Close()

	parties := []models.Party{}
	for rows.Next() {
		var p models.Party
		if err := rows.Scan(&p.ID, &p.ElectionID, &p.Name, &p.Code, &p.LogoURL, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan party: %w", err)
		}
		parties = append(parties, p)
	}
	return parties, rows.Err()
}

// DeleteParty removes a party that no vote record references.
func (s *Service) DeleteParty(ctx context.Context, who auth.Identity, id string) (err error) {
	defer s.observe("party", "delete", &err)

	if err := requireRole(who, auth.RoleAdmin, auth.RoleSuperAdmin); err != nil {
		return err
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		var uses int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM party_vote WHERE party_id = $1`, id).Scan(&uses)
		if err != nil {
			return fmt.Errorf("failed to count party votes: %w", err)
		}
		if uses > 0 {
			return ErrPartyInUse
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM party WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete party: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return newError(CodeNotFound, "party %s not found", id)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("party deleted", "party_id", id, "deleted_by", who.UserID)
	return nil
}
