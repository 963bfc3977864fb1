package store

import (
	"fmt"
	"strings"
)

// --- Call graph queries ---

// GraphFiles returns the bookkeeping row of every extracted file, by path.
func (s *Store) GraphFiles() (map[string]GraphFile, error) {
	rows, err := s.db.Query("SELECT path, language, mtime, hash FROM graph_files")
	if err != nil {
		return nil, fmt.Errorf("graph files: %w", err)
	}
	defer rows.Close()
	out := make(map[string]GraphFile)
	for rows.Next() {
		var gf GraphFile
		if err := rows.Scan(&gf.Path, &gf.Language, &gf.Mtime, &gf.Hash); err != nil {
			return nil, fmt.Errorf("scan graph file: %w", err)
		}
		out[gf.Path] = gf
	}
	return out, rows.Err()
}

// CallGraphBuilt reports whether a call graph has ever been committed.
func (s *Store) CallGraphBuilt() (bool, error) {
	_, ok, err := s.Meta(MetaCallGraphIndexed)
	return ok, err
}

// FindCallers returns every call site whose callee is name, ordered by
// file then line.
func (s *Store) FindCallers(name string) ([]CallSite, error) {
	rows, err := s.db.Query(
		`SELECT caller_file, caller_symbol, line FROM calls
		 WHERE callee = ?
		 ORDER BY caller_file, line, id`,
		name,
	)
	if err != nil {
		return nil, fmt.Errorf("find callers: %w", err)
	}
	defer rows.Close()
	var out []CallSite
	for rows.Next() {
		var c CallSite
		if err := rows.Scan(&c.File, &c.Symbol, &c.Line); err != nil {
			return nil, fmt.Errorf("scan caller: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// FindCallees returns the calls made from symbol in file, in line order.
func (s *Store) FindCallees(symbol, file string) ([]Call, error) {
	rows, err := s.db.Query(
		`SELECT caller_symbol, callee, line FROM calls
		 WHERE caller_file = ? AND caller_symbol = ?
		 ORDER BY line, id`,
		file, symbol,
	)
	if err != nil {
		return nil, fmt.Errorf("find callees: %w", err)
	}
	defer rows.Close()
	var out []Call
	for rows.Next() {
		var c Call
		if err := rows.Scan(&c.Caller, &c.Callee, &c.Line); err != nil {
			return nil, fmt.Errorf("scan callee: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SymbolCols is the column list for symbol queries.
const SymbolCols = `id, file, name, kind, signature, docstring, start_line, end_line,
	visibility, parent, parent_id`

func scanSymbol(scanner interface{ Scan(...any) error }) (*Symbol, error) {
	sym := &Symbol{}
	err := scanner.Scan(
		&sym.ID, &sym.File, &sym.Name, &sym.Kind, &sym.Signature, &sym.Docstring,
		&sym.StartLine, &sym.EndLine, &sym.Visibility, &sym.Parent, &sym.ParentID,
	)
	if err != nil {
		return nil, err
	}
	return sym, nil
}

func (s *Store) querySymbols(query string, args ...any) ([]*Symbol, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var symbols []*Symbol
	for rows.Next() {
		sym, err := scanSymbol(rows)
		if err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

// SymbolsByName returns symbols named exactly name, optionally restricted
// to kind, ordered by file then start line. limit <= 0 means no limit.
func (s *Store) SymbolsByName(name, kind string, limit int) ([]*Symbol, error) {
	return s.SymbolsByNames([]string{name}, kind, limit)
}

// SymbolsByNames is SymbolsByName over several names at once.
func (s *Store) SymbolsByNames(names []string, kind string, limit int) ([]*Symbol, error) {
	if len(names) == 0 {
		return nil, nil
	}
	var b strings.Builder
	b.WriteString("SELECT " + SymbolCols + " FROM symbols WHERE name IN (" + placeholderList(len(names)) + ")")
	args := stringsToArgs(names)
	if kind != "" {
		b.WriteString(" AND kind = ?")
		args = append(args, kind)
	}
	b.WriteString(" ORDER BY file, start_line, id")
	if limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, limit)
	}
	syms, err := s.querySymbols(b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("symbols by name: %w", err)
	}
	return syms, nil
}

// SymbolNames returns the distinct symbol names, optionally restricted to
// kind, sorted.
func (s *Store) SymbolNames(kind string) ([]string, error) {
	query := "SELECT DISTINCT name FROM symbols"
	var args []any
	if kind != "" {
		query += " WHERE kind = ?"
		args = append(args, kind)
	}
	query += " ORDER BY name"
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("symbol names: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan symbol name: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// SymbolsByFile returns a file's symbols in insertion order, which is
// document order with parents before their children.
func (s *Store) SymbolsByFile(file string) ([]*Symbol, error) {
	syms, err := s.querySymbols("SELECT "+SymbolCols+" FROM symbols WHERE file = ? ORDER BY id", file)
	if err != nil {
		return nil, fmt.Errorf("symbols by file: %w", err)
	}
	return syms, nil
}

// ImportsByFile returns a file's imports in line order.
func (s *Store) ImportsByFile(file string) ([]ImportRow, error) {
	rows, err := s.db.Query(
		`SELECT file, module, names, alias, is_wildcard, is_relative, line
		 FROM imports WHERE file = ? ORDER BY line, id`,
		file,
	)
	if err != nil {
		return nil, fmt.Errorf("imports by file: %w", err)
	}
	defer rows.Close()
	var out []ImportRow
	for rows.Next() {
		var r ImportRow
		var names string
		if err := rows.Scan(&r.File, &r.Module, &names, &r.Alias, &r.IsWildcard, &r.IsRelative, &r.Line); err != nil {
			return nil, fmt.Errorf("scan import: %w", err)
		}
		r.Names = unmarshalNames(names)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ExportsByName returns every export called name, ordered by file.
func (s *Store) ExportsByName(name string) ([]ExportRow, error) {
	rows, err := s.db.Query(
		"SELECT file, name, kind, line FROM exports WHERE name = ? ORDER BY file, line",
		name,
	)
	if err != nil {
		return nil, fmt.Errorf("exports by name: %w", err)
	}
	defer rows.Close()
	var out []ExportRow
	for rows.Next() {
		var r ExportRow
		if err := rows.Scan(&r.File, &r.Name, &r.Kind, &r.Line); err != nil {
			return nil, fmt.Errorf("scan export: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GraphStats counts the rows of the call graph.
func (s *Store) GraphStats() (GraphStats, error) {
	var st GraphStats
	err := s.db.QueryRow(`SELECT
		(SELECT COUNT(*) FROM graph_files),
		(SELECT COUNT(*) FROM symbols),
		(SELECT COUNT(*) FROM calls),
		(SELECT COUNT(*) FROM imports),
		(SELECT COUNT(*) FROM exports)`,
	).Scan(&st.Files, &st.Symbols, &st.Calls, &st.Imports, &st.Exports)
	if err != nil {
		return st, fmt.Errorf("graph stats: %w", err)
	}
	return st, nil
}
