package thicket

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jward/thicket/internal/config"
)

// DefaultDebounce is how long the watcher waits for the filesystem to go
// quiet before refreshing.
const DefaultDebounce = 250 * time.Millisecond

// watchSkip are directory names whose events never trigger a refresh.
var watchSkip = map[string]bool{
	config.Dir: true,
	".git":     true,
	".hg":      true,
	".svn":     true,
}

// Watcher keeps an Engine's index current by refreshing incrementally
// after filesystem changes settle.
type Watcher struct {
	engine   *Engine
	logger   *slog.Logger
	debounce time.Duration
	onUpdate func(FileChanges, Stats)
}

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

// WithDebounce sets the quiet period before a refresh.
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) { w.debounce = d }
}

// WithWatchLogger sets the logger. A nil logger means the engine's.
func WithWatchLogger(l *slog.Logger) WatchOption {
	return func(w *Watcher) { w.logger = l }
}

// OnUpdate registers fn to run after every refresh the watcher performs.
func OnUpdate(fn func(FileChanges, Stats)) WatchOption {
	return func(w *Watcher) { w.onUpdate = fn }
}

// NewWatcher returns a watcher for e's project.
func NewWatcher(e *Engine, opts ...WatchOption) *Watcher {
	w := &Watcher{engine: e, debounce: DefaultDebounce}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = e.logger
	}
	return w
}

// Run brings the index up to date and then refreshes it after every burst
// of changes until ctx is cancelled. Refresh errors are logged and do not
// stop the loop.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if _, err := w.engine.EnsureFresh(ctx); err != nil {
		return err
	}
	if err := w.watchTree(ctx, fw); err != nil {
		return err
	}
	w.logger.Info("watching", "root", w.engine.root, "debounce", w.debounce)

	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.ignored(ev.Name) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					w.addDir(fw, ev.Name)
				}
			}
			w.logger.Debug("change", "path", ev.Name, "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		case <-timerC:
			timer, timerC = nil, nil
			w.refresh(ctx)
		}
	}
}

func (w *Watcher) refresh(ctx context.Context) {
	changes, err := w.engine.IncrementalRefresh(ctx)
	if err != nil {
		w.logger.Error("inventory refresh failed", "error", err)
		return
	}
	st, err := w.engine.IncrementalCallGraphRefresh(ctx)
	if err != nil {
		w.logger.Error("call graph refresh failed", "error", err)
		return
	}
	if w.onUpdate != nil {
		w.onUpdate(changes, st)
	}
}

// watchTree watches the root and every directory in the inventory, so
// ignored directories are never watched.
func (w *Watcher) watchTree(ctx context.Context, fw *fsnotify.Watcher) error {
	if err := fw.Add(w.engine.root); err != nil {
		return err
	}
	files, err := w.engine.walk(ctx)
	if err != nil {
		return err
	}
	for _, f := range files {
		if f.IsDir {
			if err := fw.Add(w.engine.abs(f.Path)); err != nil {
				w.logger.Warn("cannot watch directory", "path", f.Path, "error", err)
			}
		}
	}
	return nil
}

// addDir watches a newly created directory and anything already inside it.
func (w *Watcher) addDir(fw *fsnotify.Watcher, dir string) {
	filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if w.ignored(p) {
			return filepath.SkipDir
		}
		if err := fw.Add(p); err != nil {
			w.logger.Warn("cannot watch directory", "path", p, "error", err)
		}
		return nil
	})
}

func (w *Watcher) ignored(name string) bool {
	rel, err := filepath.Rel(w.engine.root, name)
	if err != nil || rel == "." {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if watchSkip[part] {
			return true
		}
		for _, skip := range w.engine.cfg.Index.SkipDirs {
			if part == skip {
				return true
			}
		}
	}
	return false
}
