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

// CompilationFilter narrows ListCompilations. Empty fields do not filter.
type CompilationFilter struct {
	ElectionID string
	CenterID   string
	Status     string
}

const compilationColumns = `
	c.id, c.election_id, c.center_id, c.agent_id, c.photo_url, c.status,
	c.observation, c.validated_at, c.rejected_at, c.created_at, c.updated_at`

func scanCompilation(row interface{ Scan(...any) error }) (models.Compilation, error) {
	var c models.Compilation
	err := row.Scan(
		&c.ID, &c.ElectionID, &c.CenterID, &c.AgentID, &c.PhotoURL, &c.Status,
		&c.Observation, &c.ValidatedAt, &c.RejectedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

func (s *Service) loadCompilation(ctx context.Context, q querier, id string) (models.Compilation, error) {
	c, err := scanCompilation(q.QueryRowContext(ctx, `SELECT `+compilationColumns+` FROM compilation c WHERE c.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Compilation{}, newError(CodeNotFound, "compilation %s not found", id)
	}
	if err != nil {
		return models.Compilation{}, fmt.Errorf("failed to query compilation: %w", err)
	}
	return c, nil
}

// lockCompilation loads a compilation after taking its center's lock.
func (s *Service) lockCompilation(ctx context.Context, tx *sql.Tx, id string) (models.Compilation, error) {
	c, err := s.loadCompilation(ctx, tx, id)
	if err != nil {
		return models.Compilation{}, err
	}
	if err := s.lockCenter(ctx, tx, c.CenterID); err != nil {
		return models.Compilation{}, err
	}
	// Re-read under the lock; a concurrent reconciliation may have committed meanwhile.
	return s.loadCompilation(ctx, tx, id)
}

// CreateCompilation files the proof of a center's tally. Its initial status
// mirrors the center's entries: VALIDEE if all are validated, EN_COURS otherwise.
func (s *Service) CreateCompilation(ctx context.Context, who auth.Identity, electionID, centerID, photoURL string) (c models.Compilation, err error) {
	defer s.observe("compilation", "create", &err)

	if err := requireRole(who, auth.RoleAgent, auth.RoleSupervisor); err != nil {
		return models.Compilation{}, err
	}
	if electionID == "" || centerID == "" {
		return models.Compilation{}, newError(CodeInvalidInput, "election_id and center_id are required")
	}
	photoURL = strings.TrimSpace(photoURL)
	if photoURL != "" && !s.validPhoto(photoURL) {
		return models.Compilation{}, ErrInvalidPhotoURL
	}

	id := auth.NewID()
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.electionExists(ctx, tx, electionID); err != nil {
			return err
		}
		ref, err := s.lookupCenter(ctx, tx, centerID)
		if err != nil {
			return err
		}
		agent, err := s.getUser(ctx, tx, who.UserID)
		if err != nil {
			return err
		}
		if agent.Role != auth.RoleAgent && agent.Role != auth.RoleSupervisor {
			return newError(CodeForbidden, "user %s is neither an agent nor a supervisor", agent.ID)
		}
		if err := checkAccess(who, ref); err != nil {
			return err
		}
		if err := s.lockCenter(ctx, tx, centerID); err != nil {
			return err
		}

		existing, _, err := compilationStatus(ctx, tx, electionID, centerID)
		if err != nil {
			return err
		}
		if existing != "" {
			return newError(CodeAlreadyExists, "a compilation already exists for center %s in this election", centerID)
		}

		total, validated, err := countEntries(ctx, tx, electionID, centerID)
		if err != nil {
			return err
		}
		if total == 0 {
			return ErrNoResultsForCenter
		}

		now := s.now()
		status := models.CompilationInProgress
		var validatedAt any
		if validated == total {
			status = models.CompilationValidated
			validatedAt = now
		}
		var photo any
		if photoURL != "" {
			photo = photoURL
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO compilation (id, election_id, center_id, agent_id, photo_url, status, validated_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		`, id, electionID, centerID, agent.ID, photo, status, validatedAt, now)
		if db.IsUniqueViolation(err) {
			return newError(CodeAlreadyExists, "a compilation already exists for center %s in this election", centerID)
		}
		if err != nil {
			return fmt.Errorf("failed to insert compilation: %w", err)
		}

		c, err = s.loadCompilation(ctx, tx, id)
		return err
	})
	if err != nil {
		return models.Compilation{}, err
	}

	slog.Info("compilation created", "compilation_id", id, "center_id", centerID, "status", c.Status, "agent_id", who.UserID)
	return c, nil
}

// ValidateCompilation lets an administrator certify a center whose stations are all validated.
func (s *Service) ValidateCompilation(ctx context.Context, who auth.Identity, id string) (c models.Compilation, err error) {
	defer s.observe("compilation", "validate", &err)

	if err := requireRole(who, auth.RoleAdmin, auth.RoleSuperAdmin); err != nil {
		return models.Compilation{}, err
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		current, err := s.lockCompilation(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.Status == models.CompilationValidated {
			return ErrAlreadyValidated
		}
		if current.PhotoURL == nil || *current.PhotoURL == "" {
			return ErrPhotoRequired
		}

		total, validated, err := countEntries(ctx, tx, current.ElectionID, current.CenterID)
		if err != nil {
			return err
		}
		if total == 0 {
			return ErrNoPostesForCenter
		}
		if validated != total {
			return newError(CodeNotAllPostesValidated, "%d of %d stations validated", validated, total)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE compilation
			SET status = $1, validated_at = $2, rejected_at = NULL, observation = NULL, updated_at = $2
			WHERE id = $3
		`, models.CompilationValidated, s.now(), id)
		if err != nil {
			return fmt.Errorf("failed to validate compilation: %w", err)
		}

		c, err = s.loadCompilation(ctx, tx, id)
		return err
	})
	if err != nil {
		return models.Compilation{}, err
	}

	slog.Info("compilation validated", "compilation_id", id, "validated_by", who.UserID)
	return c, nil
}

// RejectCompilation marks a center for correction and stores reason as its note.
func (s *Service) RejectCompilation(ctx context.Context, who auth.Identity, id, reason string) (c models.Compilation, err error) {
	defer s.observe("compilation", "reject", &err)

	if err := requireRole(who, auth.RoleAdmin, auth.RoleSuperAdmin); err != nil {
		return models.Compilation{}, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return models.Compilation{}, ErrReasonRequired
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		current, err := s.lockCompilation(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.Status == models.CompilationValidated {
			return ErrAlreadyValidated
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE compilation
			SET status = $1, rejected_at = $2, observation = $3, updated_at = $2
			WHERE id = $4
		`, models.CompilationRejected, s.now(), reason, id)
		if err != nil {
			return fmt.Errorf("failed to reject compilation: %w", err)
		}

		c, err = s.loadCompilation(ctx, tx, id)
		return err
	})
	if err != nil {
		return models.Compilation{}, err
	}

	slog.Info("compilation rejected", "compilation_id", id, "rejected_by", who.UserID)
	return c, nil
}

// SetObservation replaces the center's note without changing its status.
// An empty text clears the note.
func (s *Service) SetObservation(ctx context.Context, who auth.Identity, id, text string) (c models.Compilation, err error) {
	defer s.observe("compilation", "observation", &err)

	if err := requireRole(who, auth.RoleAdmin, auth.RoleSuperAdmin); err != nil {
		return models.Compilation{}, err
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		current, err := s.lockCompilation(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.Status == models.CompilationValidated {
			return ErrValidatedImmutable
		}

		var note any
		if t := strings.TrimSpace(text); t != "" {
			note = t
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE compilation SET observation = $1, updated_at = $2 WHERE id = $3
		`, note, s.now(), id)
		if err != nil {
			return fmt.Errorf("failed to update observation: %w", err)
		}

		c, err = s.loadCompilation(ctx, tx, id)
		return err
	})
	return c, err
}

// UpdatePhoto replaces the proof photo of a compilation that is not yet validated.
func (s *Service) UpdatePhoto(ctx context.Context, who auth.Identity, id, photoURL string) (c models.Compilation, err error) {
	defer s.observe("compilation", "photo", &err)

	if err := requireRole(who, auth.RoleAgent, auth.RoleSupervisor); err != nil {
		return models.Compilation{}, err
	}
	photoURL = strings.TrimSpace(photoURL)
	if photoURL == "" {
		return models.Compilation{}, ErrPhotoRequired
	}
	if !s.validPhoto(photoURL) {
		return models.Compilation{}, ErrInvalidPhotoURL
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		current, err := s.lockCompilation(ctx, tx, id)
		if err != nil {
			return err
		}
		ref, err := s.lookupCenter(ctx, tx, current.CenterID)
		if err != nil {
			return err
		}
		if err := checkAccess(who, ref); err != nil {
			return err
		}
		if current.Status == models.CompilationValidated {
			return ErrValidatedImmutable
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE compilation SET photo_url = $1, updated_at = $2 WHERE id = $3
		`, photoURL, s.now(), id)
		if err != nil {
			return fmt.Errorf("failed to update photo: %w", err)
		}

		c, err = s.loadCompilation(ctx, tx, id)
		return err
	})
	return c, err
}

// DeleteCompilation removes a compilation that is not validated.
func (s *Service) DeleteCompilation(ctx context.Context, who auth.Identity, id string) (c models.Compilation, err error) {
	defer s.observe("compilation", "delete", &err)

	if err := requireRole(who, auth.RoleAdmin, auth.RoleSuperAdmin); err != nil {
		return models.Compilation{}, err
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		c, err = s.lockCompilation(ctx, tx, id)
		if err != nil {
			return err
		}
		if c.Status == models.CompilationValidated {
			return ErrCannotDeleteValidated
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM compilation WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete compilation: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Compilation{}, err
	}

	slog.Info("compilation deleted", "compilation_id", id, "deleted_by", who.UserID)
	return c, nil
}

// GetCompilation returns a compilation with the entry status of each station of its center.
func (s *Service) GetCompilation(ctx context.Context, who auth.Identity, id string) (models.CompilationDetail, error) {
	c, err := s.loadCompilation(ctx, s.db, id)
	if err != nil {
		return models.CompilationDetail{}, err
	}
	ref, err := s.lookupCenter(ctx, s.db, c.CenterID)
	if err != nil {
		return models.CompilationDetail{}, err
	}
	if err := checkAccess(who, ref); err != nil {
		return models.CompilationDetail{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT ps.id, ps.number, ps.label, r.id, r.status
		FROM polling_station ps
		LEFT JOIN result_entry r ON r.station_id = ps.id AND r.election_id = $1
		WHERE ps.center_id = $2
		ORDER BY ps.number
	`, c.ElectionID, c.CenterID)
	if err != nil {
		return models.CompilationDetail{}, fmt.Errorf("failed to query center stations: %w", err)
	}
	defer rows.Close()

	detail := models.CompilationDetail{Compilation: c, Stations: []models.StationStatus{}}
	for rows.Next() {
		var st models.StationStatus
		if err := rows.Scan(&st.StationID, &st.Number, &st.Label, &st.ResultID, &st.ResultStatus); err != nil {
			return models.CompilationDetail{}, fmt.Errorf("failed to scan station status: %w", err)
		}
		detail.Stations = append(detail.Stations, st)
	}
	return detail, rows.Err()
}

// ListCompilations returns the compilations visible to who.
func (s *Service) ListCompilations(ctx context.Context, who auth.Identity, f CompilationFilter) ([]models.Compilation, error) {
	var w db.Where
	w.AddIf("c.election_id = ?", f.ElectionID)
	w.AddIf("c.center_id = ?", f.CenterID)
	w.AddIf("c.status = ?", strings.ToUpper(f.Status))
	switch who.Role {
	case auth.RoleSupervisor:
		w.Add("n.ward_id = ?", who.WardID)
	case auth.RoleAgent:
		w.Add("c.center_id = ?", who.CenterID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+compilationColumns+`
		FROM compilation c
		JOIN polling_center pc ON pc.id = c.center_id
		JOIN neighborhood n ON n.id = pc.neighborhood_id`+w.String()+`
		ORDER BY c.created_at DESC, c.id
	`, w.Args()...)
	if err != nil {
		return nil, fmt.Errorf("failed to query compilations: %w", err)
	}
	defer rows.Close()

	list := []models.Compilation{}
	for rows.Next() {
		c, err := scanCompilation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan compilation: %w", err)
		}
		list = append(list, c)
	}
	return list, rows.Err()
}
