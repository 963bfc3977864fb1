// Package pkgindex is the user-wide cache of external packages and their
// exported symbols, shared by every project. Records carry a version range
// so one cache serves several installed runtimes.
//
// The database runs in WAL mode with immediate write transactions: readers
// never block on a writer and concurrent writers from other processes are
// serialised by SQLite's lock, waiting up to the busy timeout.
package pkgindex

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// FileName is the database file inside the cache directory.
const FileName = "packages.db"

// Package is one indexed external package.
type Package struct {
	ID        int64    `json:"id"`
	Language  string   `json:"language"`
	Name      string   `json:"name"`
	Path      string   `json:"path"`
	Min       Version  `json:"min_version"`
	Max       *Version `json:"max_version,omitempty"`
	IndexedAt int64    `json:"indexed_at"`
}

// Symbol is an exported symbol of a package.
type Symbol struct {
	ID        int64  `json:"id"`
	PackageID int64  `json:"package_id"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Signature string `json:"signature"`
	Line      int    `json:"line"`
}

// Match is a symbol found by name together with its package.
type Match struct {
	Package Package `json:"package"`
	Symbol  Symbol  `json:"symbol"`
}

// Stats counts the rows of the index.
type Stats struct {
	Packages int `json:"packages"`
	Symbols  int `json:"symbols"`
}

// Index is an open package database.
type Index struct {
	db   *sql.DB
	path string
}

// Open opens or creates packages.db under cacheDir.
func Open(cacheDir string) (*Index, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	path := filepath.Join(cacheDir, FileName)
	db, err := sql.Open("sqlite3",
		path+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open package index: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping package index: %w", err)
	}
	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate package index: %w", err)
	}
	return &Index{db: db, path: path}, nil
}

// Close closes the database.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// Path returns the database file path.
func (ix *Index) Path() string {
	return ix.path
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS packages (
  id              INTEGER PRIMARY KEY,
  language        TEXT NOT NULL,
  name            TEXT NOT NULL,
  path            TEXT NOT NULL,
  min_major       INTEGER NOT NULL,
  min_minor       INTEGER NOT NULL,
  max_major       INTEGER,
  max_minor       INTEGER,
  indexed_at      INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS symbols (
  id              INTEGER PRIMARY KEY,
  package_id      INTEGER NOT NULL REFERENCES packages(id) ON DELETE CASCADE,
  name            TEXT NOT NULL,
  kind            TEXT NOT NULL,
  signature       TEXT NOT NULL DEFAULT '',
  line            INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_packages_lang_name ON packages(language, name);
CREATE INDEX IF NOT EXISTS idx_symbols_package ON symbols(package_id);
CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name);
`

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertPackage(e execer, lang, name, path string, lo Version, hi *Version) (int64, error) {
	var maxMajor, maxMinor sql.NullInt64
	if hi != nil {
		maxMajor = sql.NullInt64{Int64: int64(hi.Major), Valid: true}
		maxMinor = sql.NullInt64{Int64: int64(hi.Minor), Valid: true}
	}
	res, err := e.Exec(
		`INSERT INTO packages (language, name, path, min_major, min_minor, max_major, max_minor, indexed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		lang, name, path, lo.Major, lo.Minor, maxMajor, maxMinor, time.Now().Unix(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertSymbol(e execer, pkgID int64, name, kind, signature string, line int) (int64, error) {
	res, err := e.Exec(
		"INSERT INTO symbols (package_id, name, kind, signature, line) VALUES (?, ?, ?, ?, ?)",
		pkgID, name, kind, signature, line,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// InsertPackage records a package for versions lo through hi and returns
// its id. A nil hi is unbounded above.
func (ix *Index) InsertPackage(lang, name, path string, lo Version, hi *Version) (int64, error) {
	id, err := insertPackage(ix.db, lang, name, path, lo, hi)
	if err != nil {
		return 0, fmt.Errorf("insert package %s/%s: %w", lang, name, err)
	}
	return id, nil
}

// InsertSymbol attaches a symbol to a package.
func (ix *Index) InsertSymbol(pkgID int64, name, kind, signature string, line int) (int64, error) {
	id, err := insertSymbol(ix.db, pkgID, name, kind, signature, line)
	if err != nil {
		return 0, fmt.Errorf("insert symbol %s: %w", name, err)
	}
	return id, nil
}

// AddPackage inserts a package and all of its symbols in one transaction
// and returns the package id.
func (ix *Index) AddPackage(p Package, syms []Symbol) (int64, error) {
	tx, err := ix.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("add package: begin: %w", err)
	}
	defer tx.Rollback()

	id, err := insertPackage(tx, p.Language, p.Name, p.Path, p.Min, p.Max)
	if err != nil {
		return 0, fmt.Errorf("add package %s/%s: %w", p.Language, p.Name, err)
	}
	for _, s := range syms {
		if _, err := insertSymbol(tx, id, s.Name, s.Kind, s.Signature, s.Line); err != nil {
			return 0, fmt.Errorf("add package %s/%s: symbol %s: %w", p.Language, p.Name, s.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("add package: commit: %w", err)
	}
	return id, nil
}

const packageCols = "id, language, name, path, min_major, min_minor, max_major, max_minor, indexed_at"

func scanPackage(scanner interface{ Scan(...any) error }) (*Package, error) {
	p := &Package{}
	var maxMajor, maxMinor sql.NullInt64
	err := scanner.Scan(&p.ID, &p.Language, &p.Name, &p.Path, &p.Min.Major, &p.Min.Minor,
		&maxMajor, &maxMinor, &p.IndexedAt)
	if err != nil {
		return nil, err
	}
	if maxMajor.Valid && maxMinor.Valid {
		p.Max = &Version{Major: int(maxMajor.Int64), Minor: int(maxMinor.Int64)}
	}
	return p, nil
}

// FindPackage returns the first package (by insertion order) for lang and
// name whose range contains v. With v nil the first package is returned.
// It returns nil when nothing matches.
func (ix *Index) FindPackage(lang, name string, v *Version) (*Package, error) {
	rows, err := ix.db.Query(
		"SELECT "+packageCols+" FROM packages WHERE language = ? AND name = ? ORDER BY id",
		lang, name,
	)
	if err != nil {
		return nil, fmt.Errorf("find package: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan package: %w", err)
		}
		if v == nil || v.InRange(p.Min, p.Max) {
			return p, nil
		}
	}
	return nil, rows.Err()
}

// IsIndexed reports whether any package is recorded for lang and name.
func (ix *Index) IsIndexed(lang, name string) (bool, error) {
	var one int
	err := ix.db.QueryRow(
		"SELECT 1 FROM packages WHERE language = ? AND name = ? LIMIT 1", lang, name,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("is indexed: %w", err)
	}
	return true, nil
}

// Symbols returns a package's symbols in insertion order.
func (ix *Index) Symbols(pkgID int64) ([]Symbol, error) {
	rows, err := ix.db.Query(
		"SELECT id, package_id, name, kind, signature, line FROM symbols WHERE package_id = ? ORDER BY id",
		pkgID,
	)
	if err != nil {
		return nil, fmt.Errorf("symbols: %w", err)
	}
	defer rows.Close()
	var out []Symbol
	for rows.Next() {
		var s Symbol
		if err := rows.Scan(&s.ID, &s.PackageID, &s.Name, &s.Kind, &s.Signature, &s.Line); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// FindSymbol returns symbols called name across all packages, optionally
// restricted to one language key, ordered by package then line.
func (ix *Index) FindSymbol(name, lang string, limit int) ([]Match, error) {
	query := `SELECT p.id, p.language, p.name, p.path, p.min_major, p.min_minor, p.max_major, p.max_minor,
			p.indexed_at, s.id, s.package_id, s.name, s.kind, s.signature, s.line
		 FROM symbols s JOIN packages p ON p.id = s.package_id
		 WHERE s.name = ?`
	args := []any{name}
	if lang != "" {
		query += " AND p.language = ?"
		args = append(args, lang)
	}
	query += " ORDER BY p.language, p.name, p.id, s.line"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := ix.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("find symbol: %w", err)
	}
	defer rows.Close()
	var out []Match
	for rows.Next() {
		var m Match
		var maxMajor, maxMinor sql.NullInt64
		err := rows.Scan(&m.Package.ID, &m.Package.Language, &m.Package.Name, &m.Package.Path,
			&m.Package.Min.Major, &m.Package.Min.Minor, &maxMajor, &maxMinor, &m.Package.IndexedAt,
			&m.Symbol.ID, &m.Symbol.PackageID, &m.Symbol.Name, &m.Symbol.Kind, &m.Symbol.Signature, &m.Symbol.Line)
		if err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		if maxMajor.Valid && maxMinor.Valid {
			m.Package.Max = &Version{Major: int(maxMajor.Int64), Minor: int(maxMinor.Int64)}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeletePackage removes a package and its symbols. Symbols are deleted
// explicitly first so the result does not depend on foreign keys being on.
func (ix *Index) DeletePackage(id int64) error {
	tx, err := ix.db.Begin()
	if err != nil {
		return fmt.Errorf("delete package: begin: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.Exec("DELETE FROM symbols WHERE package_id = ?", id); err != nil {
		return fmt.Errorf("delete package symbols: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM packages WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete package: %w", err)
	}
	return tx.Commit()
}

// Clear removes every package and symbol.
func (ix *Index) Clear() error {
	tx, err := ix.db.Begin()
	if err != nil {
		return fmt.Errorf("clear: begin: %w", err)
	}
	defer tx.Rollback()
	for _, q := range []string{"DELETE FROM symbols", "DELETE FROM packages"} {
		if _, err := tx.Exec(q); err != nil {
			return fmt.Errorf("clear: %w", err)
		}
	}
	return tx.Commit()
}

// Stats counts packages and symbols.
func (ix *Index) Stats() (Stats, error) {
	var st Stats
	err := ix.db.QueryRow("SELECT (SELECT COUNT(*) FROM packages), (SELECT COUNT(*) FROM symbols)").
		Scan(&st.Packages, &st.Symbols)
	if err != nil {
		return st, fmt.Errorf("stats: %w", err)
	}
	return st, nil
}
