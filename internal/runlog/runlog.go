// Package runlog persists a history of normalization runs in SQLite, so
// shops can audit which programs went through which dialect and when.
//
// Build modes:
//   - Default (CGO_ENABLED=0): uses pure Go modernc.org/sqlite
//   - CGO mode (CGO_ENABLED=1 -tags cgo_sqlite): uses mattn/go-sqlite3
//
// Use Open instead of sql.Open so the right driver is selected for the
// build.
package runlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a run ID does not exist.
var ErrNotFound = errors.New("run not found")

// Run is one recorded normalization run.
type Run struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Input     string    `json:"input"`
	Dialect   string    `json:"dialect"`
	Blocks    int       `json:"blocks"`
	Commands  int       `json:"commands"`
	Errors    int       `json:"errors"`
	Digest    string    `json:"digest,omitempty"`
}

// Store is a SQLite-backed run log. Safe for concurrent use.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	input      TEXT NOT NULL,
	dialect    TEXT NOT NULL,
	blocks     INTEGER NOT NULL,
	commands   INTEGER NOT NULL,
	errors     INTEGER NOT NULL,
	digest     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_created_at ON runs(created_at);
`

// Open opens (and if needed creates) a run log database. ":memory:" opens
// a throwaway in-memory log.
func Open(path string) (*Store, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open run log %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create run log schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DriverType identifies the SQLite implementation compiled in: "purego" for
// modernc.org/sqlite, "cgo" for mattn/go-sqlite3.
func DriverType() string {
	return driverType
}

// Record stores a run. A missing ID is assigned a fresh UUID and a zero
// CreatedAt is stamped with the current time; the stored run is returned.
func (s *Store) Record(ctx context.Context, run Run) (Run, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, input, dialect, blocks, commands, errors, digest)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.CreatedAt.UTC().Format(time.RFC3339Nano),
		run.Input,
		run.Dialect,
		run.Blocks,
		run.Commands,
		run.Errors,
		run.Digest,
	)
	if err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}
	return run, nil
}

// Get returns the run with the given ID.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, input, dialect, blocks, commands, errors, digest
		 FROM runs WHERE id = ?`, id)
	run, err := scanRun(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("load run %s: %w", id, err)
	}
	return run, nil
}

// List returns the most recent runs, newest first. A limit of zero or less
// returns every run.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, created_at, input, dialect, blocks, commands, errors, digest
	          FROM runs ORDER BY created_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

func scanRun(scan func(...any) error) (Run, error) {
	var (
		run     Run
		created string
	)
	err := scan(&run.ID, &created, &run.Input, &run.Dialect,
		&run.Blocks, &run.Commands, &run.Errors, &run.Digest)
	if err != nil {
		return Run{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return Run{}, fmt.Errorf("bad created_at %q: %w", created, err)
	}
	run.CreatedAt = ts
	return run, nil
}
