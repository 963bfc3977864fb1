package store

import (
	"database/sql"
	"fmt"
	"strconv"

	"github.com/jward/thicket/internal/lang"
)

// CommitBatch applies a BatchedStore within a single transaction and stamps
// call_graph_indexed with indexedAt. A file's previous rows are deleted
// (cascading from graph_files) before its new rows are inserted, so readers
// never see old and new data for the same file.
//
// Order:
//  1. Reset (drop every graph file)
//  2. Removed paths
//  3. Touched mtimes
//  4. Each file: graph_files row, symbols (parents first), calls, imports, exports
func (s *Store) CommitBatch(batch *BatchedStore, indexedAt int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	// 1. Reset
	if batch.Reset {
		if _, err := tx.Exec("DELETE FROM graph_files"); err != nil {
			return fmt.Errorf("commit batch: reset: %w", err)
		}
	}

	// 2. Removed
	for _, p := range batch.Removed {
		if _, err := tx.Exec("DELETE FROM graph_files WHERE path = ?", p); err != nil {
			return fmt.Errorf("commit batch: remove %s: %w", p, err)
		}
	}

	// 3. Touched
	for _, gf := range batch.Touched {
		if _, err := tx.Exec("UPDATE graph_files SET mtime = ? WHERE path = ?", gf.Mtime, gf.Path); err != nil {
			return fmt.Errorf("commit batch: touch %s: %w", gf.Path, err)
		}
	}

	// 4. Files
	w, err := newGraphWriter(tx)
	if err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	defer w.close()
	for _, fg := range batch.sorted() {
		if err := w.write(fg); err != nil {
			return fmt.Errorf("commit batch: %s: %w", fg.Path, err)
		}
	}

	if err := setMetaTx(tx, MetaCallGraphIndexed, strconv.FormatInt(indexedAt, 10)); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return tx.Commit()
}

// graphWriter holds the prepared statements of one commit.
type graphWriter struct {
	tx                                  *sql.Tx
	delFile, insFile                    *sql.Stmt
	insSymbol, insCall, insImp, insExpo *sql.Stmt
}

func newGraphWriter(tx *sql.Tx) (*graphWriter, error) {
	w := &graphWriter{tx: tx}
	for _, p := range []struct {
		dst   **sql.Stmt
		query string
	}{
		{&w.delFile, "DELETE FROM graph_files WHERE path = ?"},
		{&w.insFile, "INSERT INTO graph_files (path, language, mtime, hash) VALUES (?, ?, ?, ?)"},
		{&w.insSymbol, `INSERT INTO symbols (file, name, kind, signature, docstring,
			start_line, end_line, visibility, parent, parent_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`},
		{&w.insCall, "INSERT INTO calls (caller_file, caller_symbol, callee, line) VALUES (?, ?, ?, ?)"},
		{&w.insImp, `INSERT INTO imports (file, module, names, alias, is_wildcard, is_relative, line)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`},
		{&w.insExpo, "INSERT INTO exports (file, name, kind, line) VALUES (?, ?, ?, ?)"},
	} {
		stmt, err := tx.Prepare(p.query)
		if err != nil {
			w.close()
			return nil, fmt.Errorf("prepare: %w", err)
		}
		*p.dst = stmt
	}
	return w, nil
}

func (w *graphWriter) close() {
	for _, st := range []*sql.Stmt{w.delFile, w.insFile, w.insSymbol, w.insCall, w.insImp, w.insExpo} {
		if st != nil {
			st.Close()
		}
	}
}

func (w *graphWriter) write(fg *FileGraph) error {
	if _, err := w.delFile.Exec(fg.Path); err != nil {
		return fmt.Errorf("delete old rows: %w", err)
	}
	if _, err := w.insFile.Exec(fg.Path, fg.Language, fg.Mtime, fg.Hash); err != nil {
		return fmt.Errorf("insert graph file: %w", err)
	}
	for i := range fg.Symbols {
		if err := w.writeSymbol(fg.Path, &fg.Symbols[i], "", nil); err != nil {
			return err
		}
	}
	for _, c := range fg.Calls {
		if _, err := w.insCall.Exec(fg.Path, c.Caller, c.Callee, c.Line); err != nil {
			return fmt.Errorf("insert call %q: %w", c.Callee, err)
		}
	}
	for _, imp := range fg.Imports {
		if _, err := w.insImp.Exec(fg.Path, imp.Module, marshalNames(imp.Names), imp.Alias,
			imp.IsWildcard, imp.IsRelative, imp.Line); err != nil {
			return fmt.Errorf("insert import %q: %w", imp.Module, err)
		}
	}
	for _, e := range fg.Exports {
		if _, err := w.insExpo.Exec(fg.Path, e.Name, string(e.Kind), e.Line); err != nil {
			return fmt.Errorf("insert export %q: %w", e.Name, err)
		}
	}
	return nil
}

// writeSymbol inserts sym and then its children with sym as their parent.
func (w *graphWriter) writeSymbol(file string, sym *lang.Symbol, parent string, parentID *int64) error {
	res, err := w.insSymbol.Exec(file, sym.Name, string(sym.Kind), sym.Signature, sym.Docstring,
		sym.StartLine, sym.EndLine, string(sym.Visibility), parent, parentID)
	if err != nil {
		return fmt.Errorf("insert symbol %q: %w", sym.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	for i := range sym.Children {
		if err := w.writeSymbol(file, &sym.Children[i], sym.Name, &id); err != nil {
			return err
		}
	}
	return nil
}
