package thicket

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"path"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/sahilm/fuzzy"

	"github.com/jward/thicket/internal/lang"
	"github.com/jward/thicket/internal/store"
)

// ErrEmptyIndex is returned by queries against an index that was never
// built, so callers can tell "not indexed" from "no matches".
var ErrEmptyIndex = errors.New("thicket: index has not been built")

// fuzzyNameChunk bounds the names bound into one IN (...) query.
const fuzzyNameChunk = 500

// QueryBuilder reads the index. It never touches the filesystem except to
// size the database file.
type QueryBuilder struct {
	store *store.Store
}

// Location is where a symbol is defined.
type Location struct {
	File      string `json:"file"`
	Kind      string `json:"kind"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

// Callee is a call made from a symbol, with the definitions its name
// resolves to in the project. Definitions is empty for external calls.
type Callee struct {
	Name        string     `json:"name"`
	Line        int        `json:"line"`
	Definitions []Location `json:"definitions,omitempty"`
}

// SymbolMatch is one result of FindSymbols. Score is zero for exact
// lookups.
type SymbolMatch struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Parent    string `json:"parent,omitempty"`
	Signature string `json:"signature,omitempty"`
	Score     int    `json:"score"`
}

func (q *QueryBuilder) requireInventory() error {
	_, ok, err := q.store.Meta(store.MetaLastIndexed)
	if err != nil {
		return err
	}
	if !ok {
		return ErrEmptyIndex
	}
	return nil
}

func (q *QueryBuilder) requireCallGraph() error {
	ok, err := q.store.CallGraphBuilt()
	if err != nil {
		return err
	}
	if !ok {
		return ErrEmptyIndex
	}
	return nil
}

// --- Call graph ---

// FindCallers returns every call site whose callee is name, ordered by file
// then line.
func (q *QueryBuilder) FindCallers(name string) ([]CallSite, error) {
	if err := q.requireCallGraph(); err != nil {
		return nil, fmt.Errorf("find callers: %w", err)
	}
	sites, err := q.store.FindCallers(name)
	if err != nil {
		return nil, fmt.Errorf("find callers: %w", err)
	}
	return sites, nil
}

// FindCallees returns the calls made from symbol in file, in line order,
// each with the project definitions of the callee's name.
func (q *QueryBuilder) FindCallees(symbol, file string) ([]Callee, error) {
	if err := q.requireCallGraph(); err != nil {
		return nil, fmt.Errorf("find callees: %w", err)
	}
	calls, err := q.store.FindCallees(symbol, file)
	if err != nil {
		return nil, fmt.Errorf("find callees: %w", err)
	}
	if len(calls) == 0 {
		return nil, nil
	}

	var names []string
	seen := make(map[string]bool)
	for _, c := range calls {
		if !seen[c.Callee] {
			seen[c.Callee] = true
			names = append(names, c.Callee)
		}
	}
	defs := make(map[string][]Location)
	for chunk := range slices.Chunk(names, fuzzyNameChunk) {
		syms, err := q.store.SymbolsByNames(chunk, "", 0)
		if err != nil {
			return nil, fmt.Errorf("find callees: %w", err)
		}
		for _, s := range syms {
			defs[s.Name] = append(defs[s.Name], Location{
				File: s.File, Kind: s.Kind, StartLine: s.StartLine, EndLine: s.EndLine,
			})
		}
	}

	out := make([]Callee, len(calls))
	for i, c := range calls {
		out[i] = Callee{Name: c.Callee, Line: c.Line, Definitions: defs[c.Callee]}
	}
	return out, nil
}

// FindSymbols looks symbols up by name. Exact mode matches the name
// verbatim; fuzzy mode scores every distinct name as a subsequence match.
// kind, when set, restricts results to that kind. Results are ordered by
// score descending, then file, then line, and capped at limit when limit
// is positive.
func (q *QueryBuilder) FindSymbols(name, kind string, fuzzyMatch bool, limit int) ([]SymbolMatch, error) {
	if err := q.requireCallGraph(); err != nil {
		return nil, fmt.Errorf("find symbols: %w", err)
	}
	if !fuzzyMatch {
		syms, err := q.store.SymbolsByName(name, kind, limit)
		if err != nil {
			return nil, fmt.Errorf("find symbols: %w", err)
		}
		out := make([]SymbolMatch, len(syms))
		for i, s := range syms {
			out[i] = symbolMatch(s, 0)
		}
		return out, nil
	}

	names, err := q.store.SymbolNames(kind)
	if err != nil {
		return nil, fmt.Errorf("find symbols: %w", err)
	}
	matches := fuzzy.Find(name, names)
	if len(matches) == 0 {
		return nil, nil
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })

	// Every name has at least one symbol, so the first limit names (plus
	// any tied with the last) are enough to fill the result.
	if limit > 0 && len(matches) > limit {
		cut := limit
		for cut < len(matches) && matches[cut].Score == matches[limit-1].Score {
			cut++
		}
		matches = matches[:cut]
	}
	scores := make(map[string]int, len(matches))
	picked := make([]string, len(matches))
	for i, m := range matches {
		scores[m.Str] = m.Score
		picked[i] = m.Str
	}

	var out []SymbolMatch
	for chunk := range slices.Chunk(picked, fuzzyNameChunk) {
		syms, err := q.store.SymbolsByNames(chunk, kind, 0)
		if err != nil {
			return nil, fmt.Errorf("find symbols: %w", err)
		}
		for _, s := range syms {
			out = append(out, symbolMatch(s, scores[s.Name]))
		}
	}
	slices.SortStableFunc(out, func(a, b SymbolMatch) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := strings.Compare(a.File, b.File); c != 0 {
			return c
		}
		return cmp.Compare(a.StartLine, b.StartLine)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func symbolMatch(s *store.Symbol, score int) SymbolMatch {
	return SymbolMatch{
		Name:      s.Name,
		Kind:      s.Kind,
		File:      s.File,
		StartLine: s.StartLine,
		EndLine:   s.EndLine,
		Parent:    s.Parent,
		Signature: s.Signature,
		Score:     score,
	}
}

// Symbols returns the stored symbol tree of one file.
func (q *QueryBuilder) Symbols(file string) ([]Symbol, error) {
	if err := q.requireCallGraph(); err != nil {
		return nil, fmt.Errorf("symbols: %w", err)
	}
	rows, err := q.store.SymbolsByFile(file)
	if err != nil {
		return nil, fmt.Errorf("symbols: %w", err)
	}

	// Rows come in document order with parents first.
	children := make(map[int64][]int64)
	byID := make(map[int64]*store.Symbol, len(rows))
	var roots []int64
	for _, r := range rows {
		byID[r.ID] = r
		if r.ParentID == nil {
			roots = append(roots, r.ID)
			continue
		}
		children[*r.ParentID] = append(children[*r.ParentID], r.ID)
	}
	var build func(id int64) Symbol
	build = func(id int64) Symbol {
		r := byID[id]
		sym := Symbol{
			Name:       r.Name,
			Kind:       lang.Kind(r.Kind),
			Signature:  r.Signature,
			Docstring:  r.Docstring,
			StartLine:  r.StartLine,
			EndLine:    r.EndLine,
			Visibility: lang.Visibility(r.Visibility),
		}
		for _, c := range children[id] {
			sym.Children = append(sym.Children, build(c))
		}
		return sym
	}
	out := make([]Symbol, len(roots))
	for i, id := range roots {
		out[i] = build(id)
	}
	return out, nil
}

// Imports returns the imports of one file in line order.
func (q *QueryBuilder) Imports(file string) ([]ImportRow, error) {
	if err := q.requireCallGraph(); err != nil {
		return nil, fmt.Errorf("imports: %w", err)
	}
	rows, err := q.store.ImportsByFile(file)
	if err != nil {
		return nil, fmt.Errorf("imports: %w", err)
	}
	return rows, nil
}

// Exporters returns the files exporting a symbol called name.
func (q *QueryBuilder) Exporters(name string) ([]ExportRow, error) {
	if err := q.requireCallGraph(); err != nil {
		return nil, fmt.Errorf("exporters: %w", err)
	}
	rows, err := q.store.ExportsByName(name)
	if err != nil {
		return nil, fmt.Errorf("exporters: %w", err)
	}
	return rows, nil
}

// CallGraphStats counts the rows of the call graph.
func (q *QueryBuilder) CallGraphStats() (GraphStats, error) {
	if err := q.requireCallGraph(); err != nil {
		return GraphStats{}, fmt.Errorf("call graph stats: %w", err)
	}
	st, err := q.store.GraphStats()
	if err != nil {
		return GraphStats{}, fmt.Errorf("call graph stats: %w", err)
	}
	return st, nil
}

// --- File inventory ---

// AllFiles returns the whole inventory ordered by path.
func (q *QueryBuilder) AllFiles() ([]File, error) {
	if err := q.requireInventory(); err != nil {
		return nil, fmt.Errorf("all files: %w", err)
	}
	files, err := q.store.AllFiles()
	if err != nil {
		return nil, fmt.Errorf("all files: %w", err)
	}
	return files, nil
}

// Files returns inventory files (not directories) under prefix, capped at
// limit when limit is positive.
func (q *QueryBuilder) Files(prefix string, limit int) ([]File, error) {
	all, err := q.AllFiles()
	if err != nil {
		return nil, err
	}
	prefix = strings.TrimPrefix(prefix, "./")
	var out []File
	for _, f := range all {
		if f.IsDir || !strings.HasPrefix(f.Path, prefix) {
			continue
		}
		out = append(out, f)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// FindByName returns inventory rows whose path is name or ends in /name.
func (q *QueryBuilder) FindByName(name string) ([]File, error) {
	if err := q.requireInventory(); err != nil {
		return nil, fmt.Errorf("find by name: %w", err)
	}
	files, err := q.store.FindByName(name)
	if err != nil {
		return nil, fmt.Errorf("find by name: %w", err)
	}
	return files, nil
}

// FindByStem returns files whose extensionless name contains stem.
func (q *QueryBuilder) FindByStem(stem string) ([]File, error) {
	if err := q.requireInventory(); err != nil {
		return nil, fmt.Errorf("find by stem: %w", err)
	}
	files, err := q.store.FindByStem(stem)
	if err != nil {
		return nil, fmt.Errorf("find by stem: %w", err)
	}
	return files, nil
}

// ExtensionCount is the number of files sharing an extension.
type ExtensionCount struct {
	Extension string `json:"extension"`
	Files     int    `json:"files"`
}

// IndexStats describes the state of the index.
type IndexStats struct {
	Files      int              `json:"files"`
	Dirs       int              `json:"dirs"`
	Extensions []ExtensionCount `json:"extensions"`
	// DBBytes includes the write-ahead log.
	DBBytes     int64     `json:"db_bytes"`
	LastIndexed time.Time `json:"last_indexed"`
	// CallGraph is nil until the call graph has been built.
	CallGraph *GraphStats `json:"call_graph,omitempty"`
}

// topExtensions is how many extensions IndexStats reports.
const topExtensions = 10

// IndexStats summarises the inventory and, once built, the call graph.
func (q *QueryBuilder) IndexStats() (IndexStats, error) {
	var st IndexStats
	files, err := q.AllFiles()
	if err != nil {
		return st, fmt.Errorf("index stats: %w", err)
	}
	counts := make(map[string]int)
	for _, f := range files {
		if f.IsDir {
			st.Dirs++
			continue
		}
		st.Files++
		ext := strings.ToLower(path.Ext(f.Path))
		if ext == "" {
			ext = "(none)"
		}
		counts[ext]++
	}
	for ext, n := range counts {
		st.Extensions = append(st.Extensions, ExtensionCount{Extension: ext, Files: n})
	}
	slices.SortFunc(st.Extensions, func(a, b ExtensionCount) int {
		if c := cmp.Compare(b.Files, a.Files); c != 0 {
			return c
		}
		return strings.Compare(a.Extension, b.Extension)
	})
	if len(st.Extensions) > topExtensions {
		st.Extensions = st.Extensions[:topExtensions]
	}

	for _, p := range []string{q.store.Path(), q.store.Path() + "-wal"} {
		if info, err := os.Stat(p); err == nil {
			st.DBBytes += info.Size()
		}
	}
	if ts, ok, err := q.store.MetaInt(store.MetaLastIndexed); err != nil {
		return st, fmt.Errorf("index stats: %w", err)
	} else if ok {
		st.LastIndexed = time.Unix(ts, 0)
	}

	built, err := q.store.CallGraphBuilt()
	if err != nil {
		return st, fmt.Errorf("index stats: %w", err)
	}
	if built {
		gs, err := q.store.GraphStats()
		if err != nil {
			return st, fmt.Errorf("index stats: %w", err)
		}
		st.CallGraph = &gs
	}
	return st, nil
}
