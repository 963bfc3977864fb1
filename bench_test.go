package thicket

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// benchFiles is the size of the generated benchmark project.
const benchFiles = 64

// benchGoSource is one generated Go file with a struct, methods, and calls
// into its neighbour so the call graph has cross-file edges.
const benchGoSource = `package bench

import (
	"fmt"
	"strings"
)

// Worker%[1]d processes jobs.
type Worker%[1]d struct {
	Name  string
	Tags  []string
	Retry int
}

// Validate checks the worker's settings.
func (w *Worker%[1]d) Validate() error {
	if w.Name == "" {
		return fmt.Errorf("name is required")
	}
	if w.Retry < 0 {
		return fmt.Errorf("retry must be non-negative")
	}
	return nil
}

// Run validates and processes.
func (w *Worker%[1]d) Run() error {
	if err := w.Validate(); err != nil {
		return err
	}
	w.process()
	return Helper%[2]d(w.Name)
}

func (w *Worker%[1]d) process() {
	_ = strings.Join(w.Tags, ", ")
}

// Helper%[1]d is called from the previous file.
func Helper%[1]d(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("empty")
	}
	return nil
}
`

func writeBenchProject(b *testing.B) string {
	b.Helper()
	root := b.TempDir()
	for i := range benchFiles {
		dir := filepath.Join(root, "pkg", fmt.Sprintf("p%02d", i%8))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			b.Fatal(err)
		}
		src := fmt.Sprintf(benchGoSource, i, (i+1)%benchFiles)
		if err := os.WriteFile(filepath.Join(dir, fmt.Sprintf("worker%02d.go", i)), []byte(src), 0o644); err != nil {
			b.Fatal(err)
		}
	}
	return root
}

func newBenchEngine(b *testing.B, root string, opts ...Option) *Engine {
	b.Helper()
	base := []Option{
		WithLogger(discardLogger()),
		WithoutGlobalExcludes(),
		WithDBPath(filepath.Join(b.TempDir(), "bench.db")),
	}
	e, err := New(root, append(base, opts...)...)
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { e.Close() })
	return e
}

func benchmarkRefreshCallGraph(b *testing.B, parallel bool) {
	root := writeBenchProject(b)
	ctx := context.Background()

	b.ResetTimer()
	for range b.N {
		b.StopTimer()
		e := newBenchEngine(b, root, WithParallel(parallel))
		if _, err := e.Refresh(ctx); err != nil {
			b.Fatal(err)
		}
		b.StartTimer()

		if _, err := e.RefreshCallGraph(ctx); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkRefreshCallGraph_Serial measures a full extraction on one worker.
func BenchmarkRefreshCallGraph_Serial(b *testing.B) { benchmarkRefreshCallGraph(b, false) }

// BenchmarkRefreshCallGraph_Parallel measures a full extraction on the pool.
func BenchmarkRefreshCallGraph_Parallel(b *testing.B) { benchmarkRefreshCallGraph(b, true) }

// BenchmarkIncrementalCallGraphRefresh_NoChanges measures the mtime scan
// when nothing changed.
func BenchmarkIncrementalCallGraphRefresh_NoChanges(b *testing.B) {
	root := writeBenchProject(b)
	e := newBenchEngine(b, root)
	ctx := context.Background()
	if _, err := e.RefreshCallGraph(ctx); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for range b.N {
		if _, err := e.IncrementalCallGraphRefresh(ctx); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkFindCallers measures the indexed caller lookup.
func BenchmarkFindCallers(b *testing.B) {
	root := writeBenchProject(b)
	e := newBenchEngine(b, root)
	if _, err := e.RefreshCallGraph(context.Background()); err != nil {
		b.Fatal(err)
	}
	q := e.Query()

	b.ResetTimer()
	for range b.N {
		if _, err := q.FindCallers("Validate"); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkResolvePath_Fuzzy measures the fuzzy tier of path resolution.
func BenchmarkResolvePath_Fuzzy(b *testing.B) {
	root := writeBenchProject(b)
	e := newBenchEngine(b, root)
	if _, err := e.Refresh(context.Background()); err != nil {
		b.Fatal(err)
	}
	q := e.Query()

	b.ResetTimer()
	for range b.N {
		if _, err := q.ResolvePath("p3wrk1"); err != nil {
			b.Fatal(err)
		}
	}
}
