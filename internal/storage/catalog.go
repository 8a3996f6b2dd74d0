package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/hatim381/dilemme-du-prisonnier/internal/model"
	"github.com/hatim381/dilemme-du-prisonnier/migrations"
)

// Catalog is the SQLite ledger of batch runs and their task outcomes.
// It is written only by the scheduler's collector, never by workers.
type Catalog struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenCatalog opens (or creates) the catalog at path and applies migrations.
func OpenCatalog(ctx context.Context, path string, logger *slog.Logger) (*Catalog, error) {
	if path == "" {
		return nil, errors.New("storage: catalog path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("storage: create catalog dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open catalog: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: ping catalog: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("storage: %s: %w", pragma, err)
		}
	}

	c := &Catalog{db: db, logger: logger}
	if err := c.RunMigrations(ctx, migrations.FS); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

// Close releases the database handle.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// BeginBatch inserts a batch run in the running state.
func (c *Catalog) BeginBatch(ctx context.Context, run model.BatchRun) error {
	if run.Status == "" {
		run.Status = model.BatchStatusRunning
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO batch_runs (id, status, rounds, total_tasks, total_calls, workers, seed, output_dir, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(), string(run.Status), run.Rounds, run.TotalTasks, run.TotalCalls,
		run.Workers, int64(run.Seed), run.OutputDir, formatTime(run.StartedAt), //nolint:gosec // seed is stored bit-for-bit
	)
	if err != nil {
		return fmt.Errorf("storage: begin batch: %w", err)
	}
	return nil
}

// RecordTask stores one task outcome. Recording the same task twice
// replaces the earlier outcome.
func (c *Catalog) RecordTask(ctx context.Context, batchID uuid.UUID, r model.TaskResult) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO task_outcomes (batch_id, task_id, agent1, agent2, success, row_count, filename, log_hash, error, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(batch_id, task_id) DO UPDATE SET
			agent1 = excluded.agent1,
			agent2 = excluded.agent2,
			success = excluded.success,
			row_count = excluded.row_count,
			filename = excluded.filename,
			log_hash = excluded.log_hash,
			error = excluded.error,
			duration_ms = excluded.duration_ms`,
		batchID.String(), r.TaskID, r.Agent1, r.Agent2, r.Success, r.Rows,
		r.Filename, r.LogHash, r.Error, r.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("storage: record task %d: %w", r.TaskID, err)
	}
	return nil
}

// FinishBatch stores the final counts of a batch run.
func (c *Catalog) FinishBatch(ctx context.Context, run model.BatchRun) error {
	completed := time.Now().UTC()
	if run.CompletedAt != nil {
		completed = *run.CompletedAt
	}
	status := run.Status
	if status == "" || status == model.BatchStatusRunning {
		status = model.BatchStatusCompleted
	}
	res, err := c.db.ExecContext(ctx,
		`UPDATE batch_runs
		 SET status = ?, completed_at = ?, succeeded = ?, failed = ?, elapsed_ms = ?, fingerprint = ?, workers = ?
		 WHERE id = ?`,
		string(status), formatTime(completed), run.Succeeded, run.Failed,
		run.Elapsed.Milliseconds(), run.Fingerprint, run.Workers, run.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("storage: finish batch: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("storage: finish batch: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("storage: finish batch %s: %w", run.ID, ErrNotFound)
	}
	return nil
}

// GetBatch returns a batch run by id.
func (c *Catalog) GetBatch(ctx context.Context, id uuid.UUID) (model.BatchRun, error) {
	var (
		run       model.BatchRun
		rawID     string
		seed      int64
		started   string
		completed sql.NullString
		elapsedMS int64
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT id, status, rounds, total_tasks, total_calls, workers, seed, output_dir,
		        started_at, completed_at, succeeded, failed, elapsed_ms, fingerprint
		 FROM batch_runs WHERE id = ?`, id.String(),
	).Scan(
		&rawID, &run.Status, &run.Rounds, &run.TotalTasks, &run.TotalCalls, &run.Workers, &seed,
		&run.OutputDir, &started, &completed, &run.Succeeded, &run.Failed, &elapsedMS, &run.Fingerprint,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.BatchRun{}, fmt.Errorf("storage: batch %s: %w", id, ErrNotFound)
		}
		return model.BatchRun{}, fmt.Errorf("storage: get batch: %w", err)
	}

	run.ID, err = uuid.Parse(rawID)
	if err != nil {
		return model.BatchRun{}, fmt.Errorf("storage: get batch: bad id %q: %w", rawID, err)
	}
	run.Seed = uint64(seed) //nolint:gosec // stored bit-for-bit
	run.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	if run.StartedAt, err = parseTime(started); err != nil {
		return model.BatchRun{}, fmt.Errorf("storage: get batch: %w", err)
	}
	if completed.Valid {
		t, err := parseTime(completed.String)
		if err != nil {
			return model.BatchRun{}, fmt.Errorf("storage: get batch: %w", err)
		}
		run.CompletedAt = &t
	}
	return run, nil
}

// TaskOutcomes returns every recorded outcome of a batch, ordered by task id.
func (c *Catalog) TaskOutcomes(ctx context.Context, batchID uuid.UUID) ([]model.TaskResult, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT task_id, agent1, agent2, success, row_count, filename, log_hash, error, duration_ms
		 FROM task_outcomes WHERE batch_id = ? ORDER BY task_id`, batchID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: task outcomes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.TaskResult
	for rows.Next() {
		var (
			r          model.TaskResult
			durationMS int64
		)
		if err := rows.Scan(&r.TaskID, &r.Agent1, &r.Agent2, &r.Success, &r.Rows,
			&r.Filename, &r.LogHash, &r.Error, &durationMS); err != nil {
			return nil, fmt.Errorf("storage: scan task outcome: %w", err)
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: task outcomes: %w", err)
	}
	return out, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}
