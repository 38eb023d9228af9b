package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/stackup/internal/model"
)

// AddSteps adds the steps of a run in order, all of them pending.
func (r *Repository) AddSteps(ctx context.Context, runID string, descriptions []string) error {
	if len(descriptions) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO steps (id, run_id, idx, description, status, error, updated_at)
		VALUES (?, ?, ?, ?, ?, '', ?)
	`)
	if err != nil {
		return fmt.Errorf("could not prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Unix()
	for i, desc := range descriptions {
		_, err := stmt.ExecContext(ctx, ulid.Make().String(), runID, i, desc, model.StepStatusPending, now)
		if err != nil {
			return fmt.Errorf("could not insert step %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	r.logger.Debugf("Added %d steps for run %s", len(descriptions), runID)
	return nil
}

// UpdateStep sets the status of a run step.
func (r *Repository) UpdateStep(ctx context.Context, runID string, index int, status model.StepStatus, errMsg string) error {
	query := `
		UPDATE steps
		SET status = ?, error = ?, updated_at = ?
		WHERE run_id = ? AND idx = ?
	`

	result, err := r.db.ExecContext(ctx, query, status, errMsg, time.Now().UTC().Unix(), runID, index)
	if err != nil {
		return fmt.Errorf("could not update step: %w", err)
	}

	return checkAffected(result, fmt.Sprintf("step %d of run %s", index, runID))
}

// ListSteps returns the steps of a run in order.
func (r *Repository) ListSteps(ctx context.Context, runID string) ([]model.StepRecord, error) {
	query := `
		SELECT id, run_id, idx, description, status, error, updated_at
		FROM steps
		WHERE run_id = ?
		ORDER BY idx ASC
	`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("could not query steps: %w", err)
	}
	defer rows.Close()

	var steps []model.StepRecord
	for rows.Next() {
		var s model.StepRecord
		var updatedAt int64
		if err := rows.Scan(&s.ID, &s.RunID, &s.Index, &s.Description, &s.Status, &s.Error, &updatedAt); err != nil {
			return nil, fmt.Errorf("could not scan step: %w", err)
		}
		s.UpdatedAt = timeFromUnix(updatedAt)
		steps = append(steps, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating steps: %w", err)
	}

	return steps, nil
}
