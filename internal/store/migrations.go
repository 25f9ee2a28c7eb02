package store

import (
	"context"
	"database/sql"
	"strings"
)

// schema contains the DDL for the history tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id           TEXT PRIMARY KEY,
		state        TEXT NOT NULL DEFAULT 'RUNNING',
		workers      INTEGER NOT NULL,
		ligands      INTEGER NOT NULL DEFAULT 0,
		succeeded    INTEGER NOT NULL DEFAULT 0,
		failed       INTEGER NOT NULL DEFAULT 0,
		started_at   TEXT NOT NULL,
		completed_at TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS dock_results (
		run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		position   INTEGER NOT NULL,
		task_index INTEGER NOT NULL,
		ligand     TEXT NOT NULL,
		status     TEXT NOT NULL,
		score      REAL,
		reason     TEXT NOT NULL DEFAULT '',
		worker     INTEGER NOT NULL,
		elapsed_ns INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (run_id, position)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
	`CREATE INDEX IF NOT EXISTS idx_dock_results_ligand ON dock_results(ligand)`,
}

// alterStatements are column additions for databases created by older
// releases. SQLite has no IF NOT EXISTS for ALTER TABLE ADD COLUMN.
var alterStatements = []struct {
	table    string
	column   string
	alterSQL string
}{
	{
		table:    "dock_results",
		column:   "out_path",
		alterSQL: "ALTER TABLE dock_results ADD COLUMN out_path TEXT NOT NULL DEFAULT ''",
	},
}

func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	for _, alter := range alterStatements {
		if err := addColumnIfNotExists(ctx, db, alter.table, alter.column, alter.alterSQL); err != nil {
			return err
		}
	}
	return nil
}

func addColumnIfNotExists(ctx context.Context, db *sql.DB, table, column, alterSQL string) error {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue *string
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return err
		}
		if strings.EqualFold(name, column) {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	_, err = db.ExecContext(ctx, alterSQL)
	return err
}
