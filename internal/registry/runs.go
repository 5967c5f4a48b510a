package registry

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Run statuses recorded in the registry.
const (
	StatusStarted  = "started"
	StatusComplete = "complete"
	StatusFailed   = "failed"
	StatusMapOnly  = "map-only"
)

// Run is one recorded experiment run.
type Run struct {
	Reference  string
	Experiment string
	RunNumber  int
	Timestamp  time.Time
	RunID      string
	Overwrite  bool
	Hostname   string
	Status     string
}

// WriteRun inserts the run, updating the status on conflict so a run
// recorded as started can later be marked complete or failed under the
// same reference.
func (r *Registry) WriteRun(ctx context.Context, run Run) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO runs
		(reference, experiment, run_number, timestamp, run_id, overwrite, hostname, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(reference) DO UPDATE SET status = excluded.status
	`,
		run.Reference,
		run.Experiment,
		run.RunNumber,
		run.Timestamp.Format(time.RFC3339),
		run.RunID,
		run.Overwrite,
		run.Hostname,
		run.Status,
	)
	if err != nil {
		return fmt.Errorf("write run %q: %w", run.Reference, err)
	}
	return nil
}

// NextRunNumber returns the 1-based sequence number for the next run of an
// experiment name.
func (r *Registry) NextRunNumber(ctx context.Context, experiment string) (int, error) {
	var max sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		`SELECT MAX(run_number) FROM runs WHERE experiment = ?`, experiment,
	).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("next run number for %q: %w", experiment, err)
	}
	return int(max.Int64) + 1, nil
}

// ListRuns returns runs for one experiment name in run-number order, or all
// runs when experiment is empty.
func (r *Registry) ListRuns(ctx context.Context, experiment string) ([]Run, error) {
	query := `SELECT reference, experiment, run_number, timestamp, run_id, overwrite, hostname, status
		FROM runs`
	args := []any{}
	if experiment != "" {
		query += ` WHERE experiment = ?`
		args = append(args, experiment)
	}
	query += ` ORDER BY experiment, run_number`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var timestamp string
		if err := rows.Scan(&run.Reference, &run.Experiment, &run.RunNumber,
			&timestamp, &run.RunID, &run.Overwrite, &run.Hostname, &run.Status); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Timestamp, err = time.Parse(time.RFC3339, timestamp)
		if err != nil {
			return nil, fmt.Errorf("parse run timestamp %q: %w", timestamp, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}
