// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/danielhkuo/municipal-results/metrics"
	"github.com/danielhkuo/municipal-results/models"
)

// countEntries returns how many entries the center has in the election and how many are validated.
func countEntries(ctx context.Context, q querier, electionID, centerID string) (total, validated int, err error) {
	err = q.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN r.status = $1 THEN 1 ELSE 0 END), 0)
		FROM result_entry r
		JOIN polling_station ps ON ps.id = r.station_id
		WHERE r.election_id = $2 AND ps.center_id = $3
	`, models.ResultValidated, electionID, centerID).Scan(&total, &validated)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count center results: %w", err)
	}
	return total, validated, nil
}

// compilationStatus returns the id and status of the center's compilation, or "" when none exists.
func compilationStatus(ctx context.Context, tx *sql.Tx, electionID, centerID string) (id, status string, err error) {
	err = tx.QueryRowContext(ctx, `
		SELECT id, status FROM compilation WHERE election_id = $1 AND center_id = $2
	`, electionID, centerID).Scan(&id, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", nil
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to query compilation: %w", err)
	}
	return id, status, nil
}

// reconcileOnValidate flips the center's compilation to VALIDEE once every entry
// is validated, clearing any earlier rejection. It must run inside the
// transaction of the mutation that triggered it, with the center locked.
func (s *Service) reconcileOnValidate(ctx context.Context, tx *sql.Tx, electionID, centerID string) (bool, error) {
	id, status, err := compilationStatus(ctx, tx, electionID, centerID)
	if err != nil || id == "" || status == models.CompilationValidated {
		return false, err
	}

	total, validated, err := countEntries(ctx, tx, electionID, centerID)
	if err != nil {
		return false, err
	}
	if total == 0 || validated != total {
		return false, nil
	}

	now := s.now()
	_, err = tx.ExecContext(ctx, `
		UPDATE compilation
		SET status = $1, validated_at = $2, rejected_at = NULL, observation = NULL, updated_at = $2
		WHERE id = $3
	`, models.CompilationValidated, now, id)
	if err != nil {
		return false, fmt.Errorf("failed to validate compilation: %w", err)
	}
	metrics.CompilationTransitions.WithLabelValues(models.CompilationValidated).Inc()
	return true, nil
}

// reconcileOnCorrection reverts a rejected compilation to EN_COURS after one of
// its stations was corrected, clearing the note.
func (s *Service) reconcileOnCorrection(ctx context.Context, tx *sql.Tx, electionID, centerID string) (bool, error) {
	id, status, err := compilationStatus(ctx, tx, electionID, centerID)
	if err != nil || status != models.CompilationRejected {
		return false, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE compilation
		SET status = $1, rejected_at = NULL, observation = NULL, updated_at = $2
		WHERE id = $3
	`, models.CompilationInProgress, s.now(), id)
	if err != nil {
		return false, fmt.Errorf("failed to revert compilation: %w", err)
	}
	metrics.CompilationTransitions.WithLabelValues(models.CompilationInProgress).Inc()
	return true, nil
}
