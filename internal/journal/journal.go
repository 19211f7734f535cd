package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"slices"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// migrations run after schema.sql. Entry i moves user_version from i to i+1.
var migrations = []string{
	`CREATE INDEX IF NOT EXISTS idx_settlements_outcome ON settlements(outcome)`,
}

// currentSchemaVersion is the user_version of an up-to-date journal.
var currentSchemaVersion = len(migrations)

var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA foreign_keys = ON",
}

// Journal is the SQLite execution log. It is safe for concurrent use;
// SQLite allows one writer, so the pool holds a single connection.
type Journal struct {
	db     *sql.DB
	logger *slog.Logger
}

// Option configures a Journal.
type Option func(*Journal)

// WithLogger sets the logger used to report write failures from the
// observer and listener hooks, which cannot return errors.
func WithLogger(l *slog.Logger) Option {
	return func(j *Journal) {
		j.logger = l
	}
}

// Open creates or opens the journal at path. ":memory:" gives a private
// in-memory journal.
func Open(path string, opts ...Option) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := prepare(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}

	j := &Journal{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// prepare applies pragmas, creates missing tables and migrates older
// journals up to currentSchemaVersion.
func prepare(db *sql.DB) error {
	for _, stmt := range append(slices.Clone(pragmas), schemaSQL) {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %.40q: %w", stmt, err)
		}
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	for v := version; v < len(migrations); v++ {
		if _, err := db.Exec(migrations[v]); err != nil {
			return fmt.Errorf("migrate to v%d: %w", v+1, err)
		}
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// schemaVersion reports user_version.
func (j *Journal) schemaVersion(ctx context.Context) (int, error) {
	var v int
	err := j.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v)
	return v, err
}
