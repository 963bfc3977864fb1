package store

import (
	"database/sql"
	"fmt"
	"path"
	"strconv"
	"strings"
)

// --- File inventory ---

// ReplaceFiles swaps the whole inventory for files and records indexedAt
// as the last index time, in one transaction.
func (s *Store) ReplaceFiles(files []File, indexedAt int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("replace files: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM files"); err != nil {
		return fmt.Errorf("replace files: clear: %w", err)
	}
	if err := insertFilesTx(tx, files); err != nil {
		return fmt.Errorf("replace files: %w", err)
	}
	if err := setMetaTx(tx, MetaLastIndexed, strconv.FormatInt(indexedAt, 10)); err != nil {
		return fmt.Errorf("replace files: %w", err)
	}
	return tx.Commit()
}

// ApplyFileChanges upserts changed rows and deletes removed paths in one
// transaction, then records indexedAt.
func (s *Store) ApplyFileChanges(upserts []File, removed []string, indexedAt int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("apply file changes: begin: %w", err)
	}
	defer tx.Rollback()

	if err := insertFilesTx(tx, upserts); err != nil {
		return fmt.Errorf("apply file changes: %w", err)
	}
	if len(removed) > 0 {
		stmt, err := tx.Prepare("DELETE FROM files WHERE path = ?")
		if err != nil {
			return fmt.Errorf("apply file changes: %w", err)
		}
		defer stmt.Close()
		for _, p := range removed {
			if _, err := stmt.Exec(p); err != nil {
				return fmt.Errorf("apply file changes: delete %s: %w", p, err)
			}
		}
	}
	if err := setMetaTx(tx, MetaLastIndexed, strconv.FormatInt(indexedAt, 10)); err != nil {
		return fmt.Errorf("apply file changes: %w", err)
	}
	return tx.Commit()
}

func insertFilesTx(tx *sql.Tx, files []File) error {
	if len(files) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(
		`INSERT INTO files (path, is_dir, mtime) VALUES (?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET is_dir = excluded.is_dir, mtime = excluded.mtime`,
	)
	if err != nil {
		return fmt.Errorf("prepare file insert: %w", err)
	}
	defer stmt.Close()
	for _, f := range files {
		if _, err := stmt.Exec(f.Path, f.IsDir, f.Mtime); err != nil {
			return fmt.Errorf("insert file %s: %w", f.Path, err)
		}
	}
	return nil
}

func (s *Store) queryFiles(query string, args ...any) ([]File, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var files []File
	for rows.Next() {
		var f File
		if err := rows.Scan(&f.Path, &f.IsDir, &f.Mtime); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// AllFiles returns the inventory ordered by path.
func (s *Store) AllFiles() ([]File, error) {
	files, err := s.queryFiles("SELECT path, is_dir, mtime FROM files ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("all files: %w", err)
	}
	return files, nil
}

// FileByPath returns the inventory row for path, or nil if absent.
func (s *Store) FileByPath(p string) (*File, error) {
	f := &File{}
	err := s.db.QueryRow("SELECT path, is_dir, mtime FROM files WHERE path = ?", p).
		Scan(&f.Path, &f.IsDir, &f.Mtime)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	return f, nil
}

// FileCount returns the number of inventory rows.
func (s *Store) FileCount() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM files").Scan(&n); err != nil {
		return 0, fmt.Errorf("file count: %w", err)
	}
	return n, nil
}

// FindByName returns rows whose path equals name or ends in "/"+name.
func (s *Store) FindByName(name string) ([]File, error) {
	files, err := s.queryFiles(
		`SELECT path, is_dir, mtime FROM files
		 WHERE path = ? OR path LIKE ? ESCAPE '\'
		 ORDER BY path`,
		name, "%/"+escapeLike(name),
	)
	if err != nil {
		return nil, fmt.Errorf("find by name: %w", err)
	}
	return files, nil
}

// FindByStem returns files whose name, with its extension removed,
// contains stem. Matching ignores case.
func (s *Store) FindByStem(stem string) ([]File, error) {
	candidates, err := s.queryFiles(
		`SELECT path, is_dir, mtime FROM files
		 WHERE is_dir = FALSE AND path LIKE ? ESCAPE '\'
		 ORDER BY path`,
		"%"+escapeLike(stem)+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("find by stem: %w", err)
	}
	want := strings.ToLower(stem)
	var out []File
	for _, f := range candidates {
		base := path.Base(f.Path)
		base = strings.TrimSuffix(base, path.Ext(base))
		if strings.Contains(strings.ToLower(base), want) {
			out = append(out, f)
		}
	}
	return out, nil
}
