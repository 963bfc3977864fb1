package thicket

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/thicket/internal/lang"
	"github.com/jward/thicket/internal/store"
)

func newTestQueryBuilder(t *testing.T) (*QueryBuilder, *store.Store) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return &QueryBuilder{store: s}, s
}

var (
	modelSymbols = []lang.Symbol{
		{
			Name: "User", Kind: lang.KindClass, Signature: "class User", Docstring: "A user.",
			StartLine: 1, EndLine: 10, Visibility: lang.Public,
			Children: []lang.Symbol{
				{Name: "save", Kind: lang.KindMethod, Signature: "def save(self)", StartLine: 2, EndLine: 4, Visibility: lang.Public},
				{Name: "_validate", Kind: lang.KindMethod, Signature: "def _validate(self)", StartLine: 6, EndLine: 9, Visibility: lang.Private},
			},
		},
		{Name: "load", Kind: lang.KindFunction, Signature: "def load(path)", StartLine: 12, EndLine: 13, Visibility: lang.Public},
	}
	serverSymbols = []lang.Symbol{
		{Name: "Server", Kind: lang.KindStruct, Signature: "type Server struct", StartLine: 3, EndLine: 5, Visibility: lang.Public},
		{Name: "Start", Kind: lang.KindMethod, Signature: "func (s *Server) Start() error", StartLine: 7, EndLine: 12, Visibility: lang.Public},
		{Name: "handleRequest", Kind: lang.KindFunction, Signature: "func handleRequest()", StartLine: 14, EndLine: 20, Visibility: lang.Private},
	}
)

// seedIndex stores a small two-language project.
func seedIndex(t *testing.T, s *store.Store) {
	t.Helper()
	require.NoError(t, s.ReplaceFiles([]store.File{
		{Path: "README.md", Mtime: 1},
		{Path: "app", IsDir: true, Mtime: 1},
		{Path: "app/jobs.py", Mtime: 1},
		{Path: "app/models.py", Mtime: 1},
		{Path: "pkg", IsDir: true, Mtime: 1},
		{Path: "pkg/server.go", Mtime: 1},
		{Path: "pkg/server_test.go", Mtime: 1},
	}, 100))

	b := store.NewBatchedStore(true)
	b.AddFile(&store.FileGraph{
		GraphFile: store.GraphFile{Path: "app/models.py", Language: "Python", Mtime: 1, Hash: "m"},
		Symbols:   modelSymbols,
		Imports:   []lang.Import{{Module: "json", Line: 1}},
		Exports:   []lang.Export{{Name: "User", Kind: lang.KindClass, Line: 1}, {Name: "load", Kind: lang.KindFunction, Line: 12}},
		Calls:     []store.Call{{Caller: "save", Callee: "_validate", Line: 3}},
	})
	b.AddFile(&store.FileGraph{
		GraphFile: store.GraphFile{Path: "app/jobs.py", Language: "Python", Mtime: 1, Hash: "j"},
		Symbols: []lang.Symbol{
			{Name: "Start", Kind: lang.KindFunction, Signature: "def Start()", StartLine: 5, EndLine: 6, Visibility: lang.Public},
		},
		Imports: []lang.Import{{Module: ".models", Names: []string{"User", "load"}, IsRelative: true, Line: 1}},
		Calls:   []store.Call{{Caller: "Start", Callee: "load", Line: 6}},
	})
	b.AddFile(&store.FileGraph{
		GraphFile: store.GraphFile{Path: "pkg/server.go", Language: "Go", Mtime: 1, Hash: "s"},
		Symbols:   serverSymbols,
		Imports:   []lang.Import{{Module: "net/http", Line: 1}},
		Exports:   []lang.Export{{Name: "Server", Kind: lang.KindStruct, Line: 3}, {Name: "Start", Kind: lang.KindMethod, Line: 7}},
		Calls: []store.Call{
			{Caller: "Start", Callee: "handleRequest", Line: 9},
			{Caller: "Start", Callee: "ListenAndServe", Line: 10},
			{Caller: "", Callee: "load", Line: 22},
		},
	})
	require.NoError(t, s.CommitBatch(b, 100))
}

// =============================================================================
// Empty index
// =============================================================================

func TestQueries_EmptyIndex(t *testing.T) {
	q, _ := newTestQueryBuilder(t)

	_, err := q.FindCallers("x")
	assert.ErrorIs(t, err, ErrEmptyIndex)
	_, err = q.FindCallees("x", "a.go")
	assert.ErrorIs(t, err, ErrEmptyIndex)
	_, err = q.FindSymbols("x", "", true, 10)
	assert.ErrorIs(t, err, ErrEmptyIndex)
	_, err = q.Symbols("a.go")
	assert.ErrorIs(t, err, ErrEmptyIndex)
	_, err = q.CallGraphStats()
	assert.ErrorIs(t, err, ErrEmptyIndex)
	_, err = q.AllFiles()
	assert.ErrorIs(t, err, ErrEmptyIndex)
	_, err = q.FindByName("a.go")
	assert.ErrorIs(t, err, ErrEmptyIndex)
	_, err = q.ResolvePath("a.go")
	assert.ErrorIs(t, err, ErrEmptyIndex)
	_, err = q.IndexStats()
	assert.ErrorIs(t, err, ErrEmptyIndex)
}

func TestQueries_BuiltButNoMatches(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	seedIndex(t, s)

	callers, err := q.FindCallers("nothing")
	require.NoError(t, err)
	assert.Empty(t, callers)

	syms, err := q.FindSymbols("nothing", "", false, 0)
	require.NoError(t, err)
	assert.Empty(t, syms)
}

// =============================================================================
// Call graph
// =============================================================================

func TestFindCallers_OrderedByFileThenLine(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	seedIndex(t, s)

	callers, err := q.FindCallers("load")
	require.NoError(t, err)
	assert.Equal(t, []CallSite{
		{File: "app/jobs.py", Symbol: "Start", Line: 6},
		{File: "pkg/server.go", Symbol: "", Line: 22},
	}, callers)
}

func TestFindCallees_WithDefinitions(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	seedIndex(t, s)

	callees, err := q.FindCallees("Start", "pkg/server.go")
	require.NoError(t, err)
	assert.Equal(t, []Callee{
		{Name: "handleRequest", Line: 9, Definitions: []Location{
			{File: "pkg/server.go", Kind: "function", StartLine: 14, EndLine: 20},
		}},
		{Name: "ListenAndServe", Line: 10},
	}, callees)

	callees, err = q.FindCallees("Start", "app/models.py")
	require.NoError(t, err)
	assert.Empty(t, callees)
}

func TestFindSymbols_Exact(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	seedIndex(t, s)

	syms, err := q.FindSymbols("Start", "", false, 0)
	require.NoError(t, err)
	require.Len(t, syms, 2)
	assert.Equal(t, "app/jobs.py", syms[0].File)
	assert.Equal(t, "pkg/server.go", syms[1].File)
	assert.Equal(t, SymbolMatch{
		Name: "Start", Kind: "method", File: "pkg/server.go", StartLine: 7, EndLine: 12,
		Signature: "func (s *Server) Start() error",
	}, syms[1])

	syms, err = q.FindSymbols("Start", "method", false, 0)
	require.NoError(t, err)
	require.Len(t, syms, 1)
	assert.Equal(t, "pkg/server.go", syms[0].File)

	syms, err = q.FindSymbols("Start", "", false, 1)
	require.NoError(t, err)
	assert.Len(t, syms, 1)

	syms, err = q.FindSymbols("save", "", false, 0)
	require.NoError(t, err)
	require.Len(t, syms, 1)
	assert.Equal(t, "User", syms[0].Parent)
}

func TestFindSymbols_Fuzzy(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	seedIndex(t, s)

	syms, err := q.FindSymbols("hreq", "", true, 0)
	require.NoError(t, err)
	require.Len(t, syms, 1)
	assert.Equal(t, "handleRequest", syms[0].Name)

	syms, err = q.FindSymbols("st", "", true, 0)
	require.NoError(t, err)
	var names []string
	for _, sm := range syms {
		names = append(names, sm.Name)
	}
	assert.Contains(t, names, "Start")
	assert.Contains(t, names, "handleRequest")
	for i := 1; i < len(syms); i++ {
		assert.GreaterOrEqual(t, syms[i-1].Score, syms[i].Score, "sorted by score")
	}

	limited, err := q.FindSymbols("st", "", true, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, syms[0], limited[0])

	syms, err = q.FindSymbols("st", "function", true, 0)
	require.NoError(t, err)
	for _, sm := range syms {
		assert.Equal(t, "function", sm.Kind)
	}
}

func TestSymbols_RebuildsTree(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	seedIndex(t, s)

	syms, err := q.Symbols("app/models.py")
	require.NoError(t, err)
	assert.Equal(t, modelSymbols, syms)

	syms, err = q.Symbols("pkg/server.go")
	require.NoError(t, err)
	assert.Equal(t, serverSymbols, syms)

	syms, err = q.Symbols("missing.py")
	require.NoError(t, err)
	assert.Empty(t, syms)
}

func TestImportsAndExporters(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	seedIndex(t, s)

	imps, err := q.Imports("app/jobs.py")
	require.NoError(t, err)
	require.Len(t, imps, 1)
	assert.Equal(t, ".models", imps[0].Module)
	assert.Equal(t, []string{"User", "load"}, imps[0].Names)
	assert.True(t, imps[0].IsRelative)

	exps, err := q.Exporters("Start")
	require.NoError(t, err)
	require.Len(t, exps, 1)
	assert.Equal(t, "pkg/server.go", exps[0].File)
}

func TestCallGraphStats(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	seedIndex(t, s)

	st, err := q.CallGraphStats()
	require.NoError(t, err)
	assert.Equal(t, GraphStats{Files: 3, Symbols: 8, Calls: 5, Imports: 3, Exports: 4}, st)
}

// =============================================================================
// Inventory
// =============================================================================

func TestFiles_PrefixAndLimit(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	seedIndex(t, s)

	files, err := q.Files("app/", 0)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "app/jobs.py", files[0].Path)

	files, err = q.Files("./pkg", 1)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "pkg/server.go", files[0].Path)

	files, err = q.Files("", 0)
	require.NoError(t, err)
	assert.Len(t, files, 5, "directories are excluded")
}

func TestFindByNameAndStem(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	seedIndex(t, s)

	files, err := q.FindByName("server.go")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "pkg/server.go", files[0].Path)

	files, err = q.FindByStem("server")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "pkg/server.go", files[0].Path)
	assert.Equal(t, "pkg/server_test.go", files[1].Path)
}

func TestIndexStats(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	seedIndex(t, s)

	st, err := q.IndexStats()
	require.NoError(t, err)
	assert.Equal(t, 5, st.Files)
	assert.Equal(t, 2, st.Dirs)
	assert.Equal(t, []ExtensionCount{
		{Extension: ".go", Files: 2},
		{Extension: ".py", Files: 2},
		{Extension: ".md", Files: 1},
	}, st.Extensions)
	assert.Positive(t, st.DBBytes)
	assert.Equal(t, int64(100), st.LastIndexed.Unix())
	require.NotNil(t, st.CallGraph)
	assert.Equal(t, 3, st.CallGraph.Files)
}

func TestIndexStats_BeforeCallGraph(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	require.NoError(t, s.ReplaceFiles([]store.File{{Path: "main.go", Mtime: 1}}, 100))

	st, err := q.IndexStats()
	require.NoError(t, err)
	assert.Equal(t, 1, st.Files)
	assert.Nil(t, st.CallGraph)
}
