package sqlite

import (
	"context"
	"fmt"

	"github.com/slok/stackup/internal/model"
)

// SaveProcesses replaces the background processes of a run.
func (r *Repository) SaveProcesses(ctx context.Context, runID string, ps []model.ManagedProcess) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM processes WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("could not delete processes: %w", err)
	}

	for _, p := range ps {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO processes (pid, pgid, run_id, command, log_path, started_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, p.PID, p.PGID, runID, p.Command, p.LogPath, p.StartedAt.Unix())
		if err != nil {
			return fmt.Errorf("could not insert process %d: %w", p.PID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	r.logger.Debugf("Saved %d processes for run %s", len(ps), runID)
	return nil
}

// ListProcesses returns the background processes of a run.
func (r *Repository) ListProcesses(ctx context.Context, runID string) ([]model.ManagedProcess, error) {
	query := `
		SELECT pid, pgid, run_id, command, log_path, started_at
		FROM processes
		WHERE run_id = ?
		ORDER BY started_at ASC, pid ASC
	`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("could not query processes: %w", err)
	}
	defer rows.Close()

	var ps []model.ManagedProcess
	for rows.Next() {
		var p model.ManagedProcess
		var startedAt int64
		if err := rows.Scan(&p.PID, &p.PGID, &p.RunID, &p.Command, &p.LogPath, &startedAt); err != nil {
			return nil, fmt.Errorf("could not scan process: %w", err)
		}
		p.StartedAt = timeFromUnix(startedAt)
		ps = append(ps, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating processes: %w", err)
	}

	return ps, nil
}

// DeleteProcesses removes the background processes of a run.
func (r *Repository) DeleteProcesses(ctx context.Context, runID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM processes WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("could not delete processes: %w", err)
	}

	r.logger.Debugf("Deleted processes of run %s", runID)
	return nil
}
