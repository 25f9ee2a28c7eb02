package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/dockscreen/internal/docking"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	// Every connection to ":memory:" is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// --- Runs ---

func (s *SQLiteStore) CreateRun(ctx context.Context, run *Run) error {
	s.logger.Debug("sql", "op", "insert", "table", "runs", "id", run.ID)

	state := run.State
	if state == "" {
		state = RunRunning
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, state, workers, ligands, succeeded, failed, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(state), run.Workers, run.Ligands, run.Succeeded, run.Failed,
		run.StartedAt.UTC().Format(time.RFC3339Nano), formatTimePtr(run.CompletedAt),
	)
	return err
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, id string, completedAt time.Time, succeeded, failed int) error {
	s.logger.Debug("sql", "op", "update", "table", "runs", "id", id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET state = ?, succeeded = ?, failed = ?, completed_at = ? WHERE id = ?`,
		string(RunCompleted), succeeded, failed, completedAt.UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.logger.Debug("sql", "op", "select", "table", "runs", "id", id)

	row := s.db.QueryRowContext(ctx,
		`SELECT id, state, workers, ligands, succeeded, failed, started_at, completed_at
		 FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

// ListRuns returns runs newest first, plus the total count.
func (s *SQLiteStore) ListRuns(ctx context.Context, opts ListOptions) ([]*Run, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "runs", "limit", opts.Limit, "offset", opts.Offset)
	opts.Clamp()

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, state, workers, ligands, succeeded, failed, started_at, completed_at
		 FROM runs ORDER BY started_at DESC LIMIT ? OFFSET ?`,
		opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, run)
	}
	return runs, total, rows.Err()
}

// --- Results ---

// AddResults stores results in the given order within one transaction.
func (s *SQLiteStore) AddResults(ctx context.Context, runID string, results []docking.Result) error {
	s.logger.Debug("sql", "op", "insert", "table", "dock_results", "run_id", runID, "count", len(results))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var base int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM dock_results WHERE run_id = ?`, runID).Scan(&base); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO dock_results (run_id, position, task_index, ligand, status, score, reason, worker, elapsed_ns, out_path)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range results {
		var score *float64
		if r.OK() {
			v := r.Score
			score = &v
		}
		if _, err := stmt.ExecContext(ctx,
			runID, base+i, r.Index, r.Ligand, string(r.Status), score, r.Reason, r.Worker, int64(r.Elapsed), r.OutPath,
		); err != nil {
			return fmt.Errorf("insert result %s: %w", r.Ligand, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListResults returns a run's results in stored (ranked) order.
func (s *SQLiteStore) ListResults(ctx context.Context, runID string) ([]docking.Result, error) {
	s.logger.Debug("sql", "op", "list", "table", "dock_results", "run_id", runID)

	rows, err := s.db.QueryContext(ctx,
		`SELECT task_index, ligand, status, score, reason, worker, elapsed_ns, out_path
		 FROM dock_results WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []docking.Result{}
	for rows.Next() {
		var r docking.Result
		var status string
		var score *float64
		var elapsed int64
		if err := rows.Scan(&r.Index, &r.Ligand, &status, &score, &r.Reason, &r.Worker, &elapsed, &r.OutPath); err != nil {
			return nil, err
		}
		r.Status = docking.Status(status)
		r.Elapsed = time.Duration(elapsed)
		r.Score = docking.FailedScore
		if score != nil {
			r.Score = *score
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// RecordRun stores a finished docking report.
func (s *SQLiteStore) RecordRun(ctx context.Context, rep *docking.Report) error {
	run := &Run{
		ID:        rep.RunID,
		Workers:   rep.Workers,
		Ligands:   len(rep.Results),
		StartedAt: rep.StartedAt,
	}
	if err := s.CreateRun(ctx, run); err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	if err := s.AddResults(ctx, rep.RunID, rep.Results); err != nil {
		return err
	}
	return s.CompleteRun(ctx, rep.RunID, rep.CompletedAt, rep.Succeeded(), rep.Failed())
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var run Run
	var state, startedAt string
	var completedAt *string
	if err := sc.Scan(&run.ID, &state, &run.Workers, &run.Ligands, &run.Succeeded, &run.Failed,
		&startedAt, &completedAt); err != nil {
		return nil, err
	}
	run.State = RunState(state)
	run.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
	if completedAt != nil {
		t, _ := time.Parse(time.RFC3339Nano, *completedAt)
		run.CompletedAt = &t
	}
	return &run, nil
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339Nano)
	return &s
}
