package thicket

import (
	"cmp"
	"fmt"
	"math"
	"path"
	"slices"
	"strings"

	"github.com/sahilm/fuzzy"
)

const (
	// ExactScore is the score of an exact path match.
	ExactScore = math.MaxInt32
	// NameScore is the score of a case-insensitive file name or stem match.
	NameScore = math.MaxInt32 - 1

	maxPathResults = 10
)

// PathMatch is one result of ResolvePath. Symbol and Line are set for
// "file:symbol" queries; Line stays zero when the symbol is not defined in
// that file.
type PathMatch struct {
	Path   string `json:"path"`
	IsDir  bool   `json:"is_dir"`
	Score  int    `json:"score"`
	Symbol string `json:"symbol,omitempty"`
	Line   int    `json:"line,omitempty"`
}

// ResolvePath turns a loose path query into inventory paths. Tiers, first
// hit wins:
//
//  1. the query is an inventory path: that one entry, scored ExactScore;
//  2. file names or stems equal to the query ignoring case: all of them,
//     scored NameScore, by path;
//  3. subsequence fuzzy matches over all paths, best first, at most 10.
//
// A query of the form "file:symbol" resolves the file part and then
// locates the symbol in each matching file.
func (q *QueryBuilder) ResolvePath(query string) ([]PathMatch, error) {
	if err := q.requireInventory(); err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}
	query = normalizeQuery(query)
	if query == "" {
		return nil, nil
	}

	filePart, symbol := splitSymbolQuery(query)
	if symbol != "" {
		// A path that itself contains a colon.
		if f, err := q.store.FileByPath(query); err != nil {
			return nil, fmt.Errorf("resolve path: %w", err)
		} else if f != nil {
			return []PathMatch{{Path: f.Path, IsDir: f.IsDir, Score: ExactScore}}, nil
		}
	}
	matches, err := q.resolveFile(filePart)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}
	if symbol == "" || len(matches) == 0 {
		return matches, nil
	}
	return q.locateSymbol(matches, symbol)
}

func (q *QueryBuilder) resolveFile(query string) ([]PathMatch, error) {
	if f, err := q.store.FileByPath(query); err != nil {
		return nil, err
	} else if f != nil {
		return []PathMatch{{Path: f.Path, IsDir: f.IsDir, Score: ExactScore}}, nil
	}

	files, err := q.store.AllFiles()
	if err != nil {
		return nil, err
	}
	var named []PathMatch
	for _, f := range files {
		base := path.Base(f.Path)
		stem := strings.TrimSuffix(base, path.Ext(base))
		if strings.EqualFold(base, query) || strings.EqualFold(stem, query) {
			named = append(named, PathMatch{Path: f.Path, IsDir: f.IsDir, Score: NameScore})
		}
	}
	if len(named) > 0 {
		return named, nil
	}

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	found := fuzzy.Find(query, paths)
	out := make([]PathMatch, len(found))
	for i, m := range found {
		out[i] = PathMatch{Path: m.Str, IsDir: files[m.Index].IsDir, Score: m.Score}
	}
	slices.SortStableFunc(out, func(a, b PathMatch) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return strings.Compare(a.Path, b.Path)
	})
	if len(out) > maxPathResults {
		out = out[:maxPathResults]
	}
	return out, nil
}

// locateSymbol keeps the matches that define symbol, or all matches when
// none do or the call graph is not built.
func (q *QueryBuilder) locateSymbol(matches []PathMatch, symbol string) ([]PathMatch, error) {
	for i := range matches {
		matches[i].Symbol = symbol
	}
	built, err := q.store.CallGraphBuilt()
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}
	if !built {
		return matches, nil
	}

	var located []PathMatch
	for _, m := range matches {
		if m.IsDir {
			continue
		}
		syms, err := q.store.SymbolsByFile(m.Path)
		if err != nil {
			return nil, fmt.Errorf("resolve path: %w", err)
		}
		for _, s := range syms {
			if s.Name == symbol {
				m.Line = s.StartLine
				located = append(located, m)
				break
			}
		}
	}
	if len(located) == 0 {
		return matches, nil
	}
	return located, nil
}

func normalizeQuery(query string) string {
	query = strings.TrimSpace(query)
	query = strings.ReplaceAll(query, `\`, "/")
	for strings.HasPrefix(query, "./") {
		query = query[2:]
	}
	if len(query) > 1 {
		query = strings.TrimSuffix(query, "/")
	}
	return query
}

// splitSymbolQuery splits "file:symbol". A colon followed by a path
// separator is part of the path.
func splitSymbolQuery(query string) (file, symbol string) {
	i := strings.LastIndexByte(query, ':')
	if i <= 0 || i == len(query)-1 || strings.ContainsRune(query[i+1:], '/') {
		return query, ""
	}
	return query[:i], query[i+1:]
}
