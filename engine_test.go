package thicket

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/thicket/internal/config"
	"github.com/jward/thicket/internal/extract"
	"github.com/jward/thicket/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, root string, opts ...Option) *Engine {
	t.Helper()
	base := []Option{WithLogger(discardLogger()), WithoutGlobalExcludes()}
	e, err := New(root, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

// setMtime moves a path's mtime by offset from now, so refreshes see a
// change regardless of filesystem timestamp resolution.
func setMtime(t *testing.T, root, rel string, offset time.Duration) {
	t.Helper()
	ts := time.Now().Add(offset)
	require.NoError(t, os.Chtimes(filepath.Join(root, filepath.FromSlash(rel)), ts, ts))
}

// scenarioProject is the two-file Python project used across tests.
func scenarioProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "src/a.py", "def foo(): bar()\n")
	writeFile(t, root, "src/b.py", "def bar(): pass\n")
	return root
}

func symbolIDs(t *testing.T, s *store.Store, file string) []int64 {
	t.Helper()
	syms, err := s.SymbolsByFile(file)
	require.NoError(t, err)
	ids := make([]int64, len(syms))
	for i, sym := range syms {
		ids[i] = sym.ID
	}
	return ids
}

// =============================================================================
// New
// =============================================================================

func TestNew_CreatesIndexInProject(t *testing.T) {
	root := t.TempDir()
	e := newTestEngine(t, root)

	assert.FileExists(t, filepath.Join(root, config.Dir, IndexFileName))
	assert.NotNil(t, e.Store())
	assert.NotNil(t, e.Query())
	assert.Equal(t, config.Default(), e.Config())
}

func TestNew_CustomDBPath(t *testing.T) {
	root := t.TempDir()
	dbPath := filepath.Join(t.TempDir(), "custom.db")
	e := newTestEngine(t, root, WithDBPath(dbPath))

	assert.Equal(t, dbPath, e.Store().Path())
	assert.NoDirExists(t, filepath.Join(root, config.Dir))
}

func TestNew_NotADirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "file.txt", "x")
	_, err := New(filepath.Join(root, "file.txt"))
	require.Error(t, err)
}

func TestNew_LoadsProjectConfig(t *testing.T) {
	root := t.TempDir()
	cfg := config.Default()
	cfg.Index.Parallel = false
	cfg.Index.StaleDirs = []string{"app"}
	require.NoError(t, config.Write(root, cfg))

	e := newTestEngine(t, root)
	assert.False(t, e.parallelEnabled())
	assert.Equal(t, 1, e.workerCount())
	assert.Equal(t, []string{"app"}, e.Config().Index.StaleDirs)

	e2 := newTestEngine(t, root, WithDBPath(filepath.Join(t.TempDir(), "x.db")), WithParallel(true), WithWorkers(3))
	assert.Equal(t, 3, e2.workerCount())
}

// =============================================================================
// Inventory
// =============================================================================

func TestRefresh_Idempotent(t *testing.T) {
	root := scenarioProject(t)
	e := newTestEngine(t, root)
	ctx := context.Background()

	n, err := e.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n, "src, src/a.py, src/b.py")
	first, err := e.Query().AllFiles()
	require.NoError(t, err)

	n, err = e.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	second, err := e.Query().AllFiles()
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "src", second[0].Path)
	assert.True(t, second[0].IsDir)
}

func TestRefresh_RespectsGitignore(t *testing.T) {
	root := scenarioProject(t)
	writeFile(t, root, ".gitignore", "build/\n*.log\n")
	writeFile(t, root, "build/out.py", "x = 1\n")
	writeFile(t, root, "debug.log", "noise")
	e := newTestEngine(t, root)

	_, err := e.Refresh(context.Background())
	require.NoError(t, err)

	files, err := e.Query().AllFiles()
	require.NoError(t, err)
	var paths []string
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	assert.Equal(t, []string{".gitignore", "src", "src/a.py", "src/b.py"}, paths)
}

func TestIncrementalRefresh(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py", "a = 1\n")
	writeFile(t, root, "b.py", "b = 1\n")
	e := newTestEngine(t, root)
	ctx := context.Background()

	_, err := e.Refresh(ctx)
	require.NoError(t, err)

	writeFile(t, root, "c.py", "c = 1\n")
	require.NoError(t, os.Remove(filepath.Join(root, "b.py")))
	setMtime(t, root, "a.py", -time.Hour)

	changes, err := e.IncrementalRefresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, FileChanges{Added: 1, Updated: 1, Removed: 1}, changes)

	files, err := e.Query().AllFiles()
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a.py", files[0].Path)
	assert.Equal(t, "c.py", files[1].Path)

	changes, err = e.IncrementalRefresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, FileChanges{}, changes)
}

func TestNeedsRefresh(t *testing.T) {
	root := scenarioProject(t)
	e := newTestEngine(t, root)

	stale, err := e.NeedsRefresh()
	require.NoError(t, err)
	assert.True(t, stale, "never indexed")

	setMtime(t, root, "src", -time.Hour)
	_, err = e.Refresh(context.Background())
	require.NoError(t, err)

	stale, err = e.NeedsRefresh()
	require.NoError(t, err)
	assert.False(t, stale)

	setMtime(t, root, "src", time.Hour)
	stale, err = e.NeedsRefresh()
	require.NoError(t, err)
	assert.True(t, stale, "src is newer than the last index")
}

func TestNeedsRefresh_IgnoresRootMtime(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.py", "x = 1\n")
	e := newTestEngine(t, root)

	_, err := e.Refresh(context.Background())
	require.NoError(t, err)
	require.NoError(t, os.Chtimes(root, time.Now().Add(time.Hour), time.Now().Add(time.Hour)))

	stale, err := e.NeedsRefresh()
	require.NoError(t, err)
	assert.False(t, stale)
}

// =============================================================================
// Call graph
// =============================================================================

func TestRefreshCallGraph_CallerScenario(t *testing.T) {
	root := scenarioProject(t)
	e := newTestEngine(t, root)
	ctx := context.Background()

	_, err := e.Refresh(ctx)
	require.NoError(t, err)
	st, err := e.RefreshCallGraph(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Extracted)
	assert.Equal(t, 0, st.Failed)
	assert.Equal(t, 2, st.Symbols)
	assert.Equal(t, 1, st.Calls)

	gs, err := e.Query().CallGraphStats()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, gs.Symbols, 2)
	assert.GreaterOrEqual(t, gs.Calls, 1)

	callers, err := e.Query().FindCallers("bar")
	require.NoError(t, err)
	assert.Equal(t, []CallSite{{File: "src/a.py", Symbol: "foo", Line: 1}}, callers)
}

func TestRefreshCallGraph_BuildsInventoryFirst(t *testing.T) {
	root := scenarioProject(t)
	e := newTestEngine(t, root)

	st, err := e.RefreshCallGraph(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, st.Extracted)

	n, err := e.Store().FileCount()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRefreshCallGraph_SerialMatchesParallel(t *testing.T) {
	root := scenarioProject(t)
	writeFile(t, root, "lib/util.go", "package lib\n\nfunc Helper() { bar() }\n")
	writeFile(t, root, "web/app.js", "export function render() { bar(); }\n")
	ctx := context.Background()

	serial := newTestEngine(t, root, WithParallel(false), WithDBPath(filepath.Join(t.TempDir(), "s.db")))
	parallel := newTestEngine(t, root, WithWorkers(4), WithDBPath(filepath.Join(t.TempDir(), "p.db")))

	s1, err := serial.RefreshCallGraph(ctx)
	require.NoError(t, err)
	s2, err := parallel.RefreshCallGraph(ctx)
	require.NoError(t, err)
	s1.Duration, s2.Duration = 0, 0
	assert.Equal(t, s1, s2)

	c1, err := serial.Query().FindCallers("bar")
	require.NoError(t, err)
	c2, err := parallel.Query().FindCallers("bar")
	require.NoError(t, err)
	assert.Equal(t, c1, c2)
	assert.Len(t, c1, 3)
}

func TestIncrementalCallGraphRefresh_OnlyChangedFiles(t *testing.T) {
	root := scenarioProject(t)
	e := newTestEngine(t, root)
	ctx := context.Background()

	_, err := e.RefreshCallGraph(ctx)
	require.NoError(t, err)
	before := symbolIDs(t, e.Store(), "src/b.py")
	require.NotEmpty(t, before)

	writeFile(t, root, "src/a.py", "def foo(): baz()\n")
	setMtime(t, root, "src/a.py", time.Hour)

	st, err := e.IncrementalCallGraphRefresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Extracted)
	assert.Equal(t, 1, st.Unchanged)
	assert.Equal(t, 0, st.Removed)

	assert.Equal(t, before, symbolIDs(t, e.Store(), "src/b.py"), "unchanged file keeps its rows")

	callers, err := e.Query().FindCallers("bar")
	require.NoError(t, err)
	assert.Empty(t, callers)
	callers, err = e.Query().FindCallers("baz")
	require.NoError(t, err)
	assert.Equal(t, []CallSite{{File: "src/a.py", Symbol: "foo", Line: 1}}, callers)
}

func TestIncrementalCallGraphRefresh_SameHashOnlyTouches(t *testing.T) {
	root := scenarioProject(t)
	e := newTestEngine(t, root)
	ctx := context.Background()

	_, err := e.RefreshCallGraph(ctx)
	require.NoError(t, err)
	before := symbolIDs(t, e.Store(), "src/b.py")

	setMtime(t, root, "src/b.py", 2*time.Hour)
	st, err := e.IncrementalCallGraphRefresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Extracted)
	assert.Equal(t, 2, st.Unchanged)

	assert.Equal(t, before, symbolIDs(t, e.Store(), "src/b.py"))
	graph, err := e.Store().GraphFiles()
	require.NoError(t, err)
	info, err := os.Stat(filepath.Join(root, "src", "b.py"))
	require.NoError(t, err)
	assert.Equal(t, info.ModTime().Unix(), graph["src/b.py"].Mtime)

	// The bumped mtime is stored, so the next run skips on mtime alone.
	st, err = e.IncrementalCallGraphRefresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Unchanged)
}

func TestIncrementalCallGraphRefresh_DropsRemovedFiles(t *testing.T) {
	root := scenarioProject(t)
	e := newTestEngine(t, root)
	ctx := context.Background()

	_, err := e.RefreshCallGraph(ctx)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "src", "b.py")))
	_, err = e.IncrementalRefresh(ctx)
	require.NoError(t, err)

	st, err := e.IncrementalCallGraphRefresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Removed)

	syms, err := e.Query().FindSymbols("bar", "", false, 0)
	require.NoError(t, err)
	assert.Empty(t, syms)
	graph, err := e.Store().GraphFiles()
	require.NoError(t, err)
	assert.NotContains(t, graph, "src/b.py")
}

func TestRefreshCallGraph_FailuresAreStoredEmpty(t *testing.T) {
	root := scenarioProject(t)
	writeFile(t, root, "src/blob.py", "x = 1\x00\x01\x02")
	e := newTestEngine(t, root)
	ctx := context.Background()

	st, err := e.RefreshCallGraph(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Extracted)
	assert.Equal(t, 1, st.Failed)

	graph, err := e.Store().GraphFiles()
	require.NoError(t, err)
	require.Contains(t, graph, "src/blob.py")
	assert.Empty(t, symbolIDs(t, e.Store(), "src/blob.py"))

	st, err = e.IncrementalCallGraphRefresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Failed, "failed files are not retried until they change")
	assert.Equal(t, 3, st.Unchanged)
}

func TestRefreshCallGraph_MaxFileBytes(t *testing.T) {
	root := scenarioProject(t)
	cfg := config.Default()
	cfg.Index.MaxFileBytes = 16
	e := newTestEngine(t, root, WithConfig(cfg))

	st, err := e.RefreshCallGraph(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, st.Extracted, "a.py is 17 bytes, b.py 16")
	assert.Equal(t, 1, st.Failed)
}

func TestRefreshCallGraph_CapabilityPolicy(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "Main.scala", "object Main {\n  def run(): Unit = println(1)\n}\n")
	ctx := context.Background()

	strict := newTestEngine(t, root, WithPolicy(extract.Strict), WithDBPath(filepath.Join(t.TempDir(), "s.db")))
	st, err := strict.RefreshCallGraph(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Failed)

	cfg := config.Default()
	cfg.Index.StrictCapabilities = true
	lenient := newTestEngine(t, root, WithConfig(cfg), WithPolicy(extract.Lenient), WithDBPath(filepath.Join(t.TempDir(), "l.db")))
	st, err = lenient.RefreshCallGraph(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Failed)
	assert.Equal(t, 1, st.Extracted)
}

func TestRefreshCallGraph_Cancelled(t *testing.T) {
	root := scenarioProject(t)
	e := newTestEngine(t, root)
	_, err := e.Refresh(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.RefreshCallGraph(ctx)
	require.ErrorIs(t, err, context.Canceled)

	built, err := e.Store().CallGraphBuilt()
	require.NoError(t, err)
	assert.False(t, built, "nothing is committed")
}

// =============================================================================
// EnsureFresh
// =============================================================================

func TestEnsureFresh(t *testing.T) {
	root := scenarioProject(t)
	e := newTestEngine(t, root)
	ctx := context.Background()

	st, err := e.EnsureFresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Extracted)

	callers, err := e.Query().FindCallers("bar")
	require.NoError(t, err)
	assert.Len(t, callers, 1)

	st, err = e.EnsureFresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Extracted)
	assert.Equal(t, 2, st.Unchanged)
}

func TestEnsureFresh_Concurrent(t *testing.T) {
	root := scenarioProject(t)
	e := newTestEngine(t, root)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.EnsureFresh(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	gs, err := e.Query().CallGraphStats()
	require.NoError(t, err)
	assert.Equal(t, 2, gs.Files)
}
