package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS modules (
	name TEXT PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	module      TEXT NOT NULL,
	test_case   TEXT NOT NULL,
	method      TEXT,
	email       TEXT,
	notify      TEXT,
	serial      TEXT,
	outcome     TEXT NOT NULL,
	error       TEXT,
	started_at  TEXT NOT NULL,
	duration_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_started ON runs (started_at);
`

// sqliteTime sorts lexically in chronological order.
const sqliteTime = "2006-01-02T15:04:05.000000000Z"

// SQLite is a Store backed by a sqlite3 database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path.
// ":memory:" gives a private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create catalog dir: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create catalog schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) ReplaceModules(ctx context.Context, names []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM modules`); err != nil {
		return fmt.Errorf("clear modules: %w", err)
	}
	for _, n := range names {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO modules (name) VALUES (?)`, n); err != nil {
			return fmt.Errorf("insert module %s: %w", n, err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) Modules(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM modules ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query modules: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (s *SQLite) RecordRun(ctx context.Context, r Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, module, test_case, method, email, notify, serial, outcome, error, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Module, r.Case, r.Method, r.Email, strings.Join(r.Notify, ","), r.Serial,
		r.Outcome, r.Error, r.Started.UTC().Format(sqliteTime), r.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *SQLite) Runs(ctx context.Context, limit int) ([]Run, error) {
	q := `SELECT id, module, test_case, method, email, notify, serial, outcome, error, started_at, duration_ms
		FROM runs ORDER BY started_at DESC, rowid DESC`
	var args []interface{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r              Run
			notify, start  string
			durationMillis int64
		)
		if err := rows.Scan(&r.ID, &r.Module, &r.Case, &r.Method, &r.Email, &notify, &r.Serial,
			&r.Outcome, &r.Error, &start, &durationMillis); err != nil {
			return nil, err
		}
		if notify != "" {
			r.Notify = strings.Split(notify, ",")
		}
		r.Started, err = time.Parse(sqliteTime, start)
		if err != nil {
			return nil, fmt.Errorf("parse started_at %q: %w", start, err)
		}
		r.Duration = time.Duration(durationMillis) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
