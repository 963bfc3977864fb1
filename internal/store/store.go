// Package store is the SQLite layer of a project index: the file inventory
// and the call graph (symbols, calls, imports, exports) keyed by file.
package store

import (
	"database/sql"
	"fmt"
	"strconv"

	_ "github.com/mattn/go-sqlite3"
)

// SchemaVersion is bumped whenever the schema changes. A database written
// with another version is wiped on Migrate; indexes are cheap to rebuild.
const SchemaVersion = 3

// Meta keys.
const (
	MetaSchemaVersion    = "schema_version"
	MetaLastIndexed      = "last_indexed"
	MetaCallGraphIndexed = "call_graph_indexed"
)

// Store is the SQLite data access layer for one project.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Migrate creates the schema. A database carrying a different schema
// version is reset first. Idempotent.
func (s *Store) Migrate() error {
	if _, err := s.db.Exec(metaDDL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	v, ok, err := s.Meta(MetaSchemaVersion)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if ok && v != strconv.Itoa(SchemaVersion) {
		if err := s.reset(); err != nil {
			return fmt.Errorf("migrate: reset schema %s: %w", v, err)
		}
	}
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return s.SetMeta(MetaSchemaVersion, strconv.Itoa(SchemaVersion))
}

// reset drops every data table and clears meta.
func (s *Store) reset() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, q := range []string{
		"DROP TABLE IF EXISTS exports",
		"DROP TABLE IF EXISTS imports",
		"DROP TABLE IF EXISTS calls",
		"DROP TABLE IF EXISTS symbols",
		"DROP TABLE IF EXISTS graph_files",
		"DROP TABLE IF EXISTS files",
		"DELETE FROM meta",
	} {
		if _, err := tx.Exec(q); err != nil {
			return err
		}
	}
	return tx.Commit()
}

const metaDDL = `
CREATE TABLE IF NOT EXISTS meta (
  key             TEXT PRIMARY KEY,
  value           TEXT NOT NULL
);
`

const schemaDDL = `
-- File inventory

CREATE TABLE IF NOT EXISTS files (
  path            TEXT PRIMARY KEY,
  is_dir          BOOLEAN NOT NULL DEFAULT FALSE,
  mtime           INTEGER NOT NULL
);

-- Call graph

CREATE TABLE IF NOT EXISTS graph_files (
  path            TEXT PRIMARY KEY,
  language        TEXT NOT NULL,
  mtime           INTEGER NOT NULL,
  hash            TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS symbols (
  id              INTEGER PRIMARY KEY,
  file            TEXT NOT NULL REFERENCES graph_files(path) ON DELETE CASCADE,
  name            TEXT NOT NULL,
  kind            TEXT NOT NULL,
  signature       TEXT NOT NULL DEFAULT '',
  docstring       TEXT NOT NULL DEFAULT '',
  start_line      INTEGER NOT NULL,
  end_line        INTEGER NOT NULL,
  visibility      TEXT NOT NULL DEFAULT '',
  parent          TEXT NOT NULL DEFAULT '',
  parent_id       INTEGER REFERENCES symbols(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS calls (
  id              INTEGER PRIMARY KEY,
  caller_file     TEXT NOT NULL REFERENCES graph_files(path) ON DELETE CASCADE,
  caller_symbol   TEXT NOT NULL DEFAULT '',
  callee          TEXT NOT NULL,
  line            INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS imports (
  id              INTEGER PRIMARY KEY,
  file            TEXT NOT NULL REFERENCES graph_files(path) ON DELETE CASCADE,
  module          TEXT NOT NULL,
  names           TEXT NOT NULL DEFAULT '[]',
  alias           TEXT NOT NULL DEFAULT '',
  is_wildcard     BOOLEAN NOT NULL DEFAULT FALSE,
  is_relative     BOOLEAN NOT NULL DEFAULT FALSE,
  line            INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS exports (
  id              INTEGER PRIMARY KEY,
  file            TEXT NOT NULL REFERENCES graph_files(path) ON DELETE CASCADE,
  name            TEXT NOT NULL,
  kind            TEXT NOT NULL,
  line            INTEGER NOT NULL
);

-- Indexes

CREATE INDEX IF NOT EXISTS idx_symbols_file ON symbols(file);
CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name);
CREATE INDEX IF NOT EXISTS idx_symbols_kind ON symbols(kind);
CREATE INDEX IF NOT EXISTS idx_symbols_parent ON symbols(parent_id);
CREATE INDEX IF NOT EXISTS idx_calls_callee ON calls(callee);
CREATE INDEX IF NOT EXISTS idx_calls_caller ON calls(caller_file, caller_symbol);
CREATE INDEX IF NOT EXISTS idx_imports_file ON imports(file);
CREATE INDEX IF NOT EXISTS idx_imports_module ON imports(module);
CREATE INDEX IF NOT EXISTS idx_exports_file ON exports(file);
CREATE INDEX IF NOT EXISTS idx_exports_name ON exports(name);
`

// --- Meta ---

// Meta returns the value stored under key.
func (s *Store) Meta(key string) (string, bool, error) {
	var v string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("meta %s: %w", key, err)
	}
	return v, true, nil
}

// SetMeta stores value under key.
func (s *Store) SetMeta(key, value string) error {
	return setMetaTx(s.db, key, value)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func setMetaTx(e execer, key, value string) error {
	_, err := e.Exec(
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set meta %s: %w", key, err)
	}
	return nil
}

// MetaInt returns an integer meta value.
func (s *Store) MetaInt(key string) (int64, bool, error) {
	v, ok, err := s.Meta(key)
	if err != nil || !ok {
		return 0, false, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("meta %s: %w", key, err)
	}
	return n, true, nil
}
