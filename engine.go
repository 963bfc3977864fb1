package thicket

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jward/thicket/internal/config"
	"github.com/jward/thicket/internal/discover"
	"github.com/jward/thicket/internal/extract"
	"github.com/jward/thicket/internal/store"
)

// IndexFileName is the project database inside the .thicket directory.
const IndexFileName = "index.db"

// Engine owns the index of one project root: the file inventory, the call
// graph and the extraction pipeline that fills them.
type Engine struct {
	root      string
	dbPath    string
	store     *store.Store
	cfg       *config.Config
	logger    *slog.Logger
	extractor *extract.Extractor

	parallel *bool
	workers  int
	policy   *extract.Policy

	// globalExcludes is off in tests so the user's git config cannot leak
	// into walks.
	globalExcludes bool

	refreshes singleflight.Group
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. A nil logger means slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithParallel controls parallel extraction during call-graph refreshes.
// When unset the config's index.parallel applies (default true).
func WithParallel(parallel bool) Option {
	return func(e *Engine) { e.parallel = &parallel }
}

// WithWorkers caps the extraction worker pool.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// WithConfig uses cfg instead of loading .thicket/config.toml.
func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.cfg = &cfg }
}

// WithDBPath stores the index at path instead of <root>/.thicket/index.db.
func WithDBPath(path string) Option {
	return func(e *Engine) { e.dbPath = path }
}

// WithPolicy overrides the config's strict_capabilities setting.
func WithPolicy(p extract.Policy) Option {
	return func(e *Engine) { e.policy = &p }
}

// WithoutGlobalExcludes ignores the user's global git excludes file when
// walking the project.
func WithoutGlobalExcludes() Option {
	return func(e *Engine) { e.globalExcludes = false }
}

// New opens (or creates) the index for the project at root.
func New(root string, opts ...Option) (*Engine, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("thicket: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("thicket: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("thicket: %s is not a directory", abs)
	}

	e := &Engine{root: abs, globalExcludes: true}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.cfg == nil {
		cfg, err := config.Load(abs)
		if err != nil {
			return nil, fmt.Errorf("thicket: %w", err)
		}
		e.cfg = &cfg
	}

	policy := extract.Lenient
	if e.cfg.Index.StrictCapabilities {
		policy = extract.Strict
	}
	if e.policy != nil {
		policy = *e.policy
	}
	e.extractor = extract.New(
		extract.WithPolicy(policy),
		extract.WithMaxFileBytes(e.cfg.Index.MaxFileBytes),
	)

	if e.dbPath == "" {
		dir := filepath.Join(abs, config.Dir)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("thicket: create index dir: %w", err)
		}
		e.dbPath = filepath.Join(dir, IndexFileName)
	}
	s, err := store.NewStore(e.dbPath)
	if err != nil {
		return nil, fmt.Errorf("thicket: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("thicket: migrate: %w", err)
	}
	e.store = s
	return e, nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store returns the underlying Store for direct access.
func (e *Engine) Store() *Store {
	return e.store
}

// Root returns the absolute project root.
func (e *Engine) Root() string {
	return e.root
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return *e.cfg
}

// Query returns a QueryBuilder over the engine's index.
func (e *Engine) Query() *QueryBuilder {
	return &QueryBuilder{store: e.store}
}

func (e *Engine) parallelEnabled() bool {
	if e.parallel != nil {
		return *e.parallel
	}
	return e.cfg.Index.Parallel
}

func (e *Engine) workerCount() int {
	switch {
	case !e.parallelEnabled():
		return 1
	case e.workers > 0:
		return e.workers
	case e.cfg.Index.Workers > 0:
		return e.cfg.Index.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// abs maps a root-relative inventory path to the filesystem.
func (e *Engine) abs(rel string) string {
	return filepath.Join(e.root, filepath.FromSlash(rel))
}

func (e *Engine) walk(ctx context.Context) ([]store.File, error) {
	opts := []discover.Option{discover.WithSkipDirs(e.cfg.Index.SkipDirs...)}
	if !e.globalExcludes {
		opts = append(opts, discover.WithoutGlobalExcludes())
	}
	entries, err := discover.Walk(ctx, e.root, opts...)
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", e.root, err)
	}
	files := make([]store.File, len(entries))
	for i, en := range entries {
		files[i] = store.File{Path: en.Path, IsDir: en.IsDir, Mtime: en.Mtime}
	}
	return files, nil
}

// --- File inventory ---

// FileChanges counts what an incremental inventory refresh changed.
type FileChanges struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Removed int `json:"removed"`
}

// Refresh walks the project and replaces the whole inventory in one
// transaction. It returns the number of files and directories indexed.
func (e *Engine) Refresh(ctx context.Context) (n int, err error) {
	ctx, span := startRefreshSpan(ctx, "Refresh")
	start := time.Now()
	defer func() {
		recordRefresh(ctx, "inventory", time.Since(start), err == nil)
		endSpan(span, err)
	}()

	files, err := e.walk(ctx)
	if err != nil {
		return 0, fmt.Errorf("thicket: refresh: %w", err)
	}
	if err := e.store.ReplaceFiles(files, time.Now().Unix()); err != nil {
		return 0, fmt.Errorf("thicket: refresh: %w", err)
	}
	e.logger.Info("inventory refreshed",
		"root", e.root, "entries", len(files), "duration", time.Since(start))
	return len(files), nil
}

// IncrementalRefresh walks the project and applies only the differences to
// the stored inventory: new paths are added, paths whose mtime or type
// changed are updated and vanished paths are removed.
func (e *Engine) IncrementalRefresh(ctx context.Context) (changes FileChanges, err error) {
	ctx, span := startRefreshSpan(ctx, "IncrementalRefresh")
	start := time.Now()
	defer func() {
		recordRefresh(ctx, "inventory_incremental", time.Since(start), err == nil)
		endSpan(span, err)
	}()

	current, err := e.walk(ctx)
	if err != nil {
		return changes, fmt.Errorf("thicket: incremental refresh: %w", err)
	}
	stored, err := e.store.AllFiles()
	if err != nil {
		return changes, fmt.Errorf("thicket: incremental refresh: %w", err)
	}
	old := make(map[string]store.File, len(stored))
	for _, f := range stored {
		old[f.Path] = f
	}

	var upserts []store.File
	for _, f := range current {
		prev, ok := old[f.Path]
		delete(old, f.Path)
		switch {
		case !ok:
			changes.Added++
		case prev.Mtime != f.Mtime || prev.IsDir != f.IsDir:
			changes.Updated++
		default:
			continue
		}
		upserts = append(upserts, f)
	}
	removed := make([]string, 0, len(old))
	for _, f := range stored {
		if _, gone := old[f.Path]; gone {
			removed = append(removed, f.Path)
		}
	}
	changes.Removed = len(removed)

	if err := e.store.ApplyFileChanges(upserts, removed, time.Now().Unix()); err != nil {
		return changes, fmt.Errorf("thicket: incremental refresh: %w", err)
	}
	e.logger.Info("inventory updated",
		"root", e.root,
		"added", changes.Added, "updated", changes.Updated, "removed", changes.Removed,
		"duration", time.Since(start))
	return changes, nil
}

// NeedsRefresh reports whether the inventory is missing or likely stale.
// Staleness is judged only by the configured stale-check directories: one
// whose mtime is newer than the last index time means files were added or
// removed under it. The root's own mtime is not consulted.
func (e *Engine) NeedsRefresh() (bool, error) {
	count, err := e.store.FileCount()
	if err != nil {
		return false, fmt.Errorf("thicket: needs refresh: %w", err)
	}
	if count == 0 {
		return true, nil
	}
	last, ok, err := e.store.MetaInt(store.MetaLastIndexed)
	if err != nil {
		return false, fmt.Errorf("thicket: needs refresh: %w", err)
	}
	if !ok {
		return true, nil
	}
	for _, dir := range e.cfg.Index.StaleDirs {
		if mtime, ok := discover.Mtime(e.root, dir); ok && mtime > last {
			e.logger.Debug("stale directory", "dir", dir, "mtime", mtime, "last_indexed", last)
			return true, nil
		}
	}
	return false, nil
}

// EnsureFresh brings the inventory and the call graph up to date: a never
// indexed project gets full builds, otherwise only what changed is redone.
// Concurrent callers share a single refresh.
func (e *Engine) EnsureFresh(ctx context.Context) (Stats, error) {
	v, err, _ := e.refreshes.Do("ensure", func() (any, error) {
		return e.ensureFresh(ctx)
	})
	if err != nil {
		return Stats{}, err
	}
	return v.(Stats), nil
}

func (e *Engine) ensureFresh(ctx context.Context) (Stats, error) {
	_, indexed, err := e.store.Meta(store.MetaLastIndexed)
	if err != nil {
		return Stats{}, fmt.Errorf("thicket: ensure fresh: %w", err)
	}
	if !indexed {
		if _, err := e.Refresh(ctx); err != nil {
			return Stats{}, err
		}
	} else {
		stale, err := e.NeedsRefresh()
		if err != nil {
			return Stats{}, err
		}
		if stale {
			if _, err := e.IncrementalRefresh(ctx); err != nil {
				return Stats{}, err
			}
		}
	}

	built, err := e.store.CallGraphBuilt()
	if err != nil {
		return Stats{}, fmt.Errorf("thicket: ensure fresh: %w", err)
	}
	if !built {
		return e.RefreshCallGraph(ctx)
	}
	return e.IncrementalCallGraphRefresh(ctx)
}
