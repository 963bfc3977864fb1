package thicket

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jward/thicket/internal/extract"
	"github.com/jward/thicket/internal/lang"
	"github.com/jward/thicket/internal/store"
)

// Stats summarises one call-graph refresh.
type Stats struct {
	// Extracted files were parsed and their rows replaced.
	Extracted int `json:"extracted"`
	// Unchanged files kept their rows: same mtime, or same content hash.
	Unchanged int `json:"unchanged"`
	// Removed files left the inventory and lost their rows.
	Removed int `json:"removed"`
	// Failed files could not be extracted and are stored empty.
	Failed int `json:"failed"`

	Symbols int `json:"symbols"`
	Calls   int `json:"calls"`
	Imports int `json:"imports"`
	Exports int `json:"exports"`

	Duration time.Duration `json:"duration_ns"`
}

// RefreshCallGraph drops the whole call graph and rebuilds it from every
// supported file in the inventory, committing in one transaction. The
// inventory is built first if the project was never indexed.
func (e *Engine) RefreshCallGraph(ctx context.Context) (Stats, error) {
	return e.buildCallGraph(ctx, false)
}

// IncrementalCallGraphRefresh re-extracts only files whose mtime differs
// from the stored one and drops files that left the inventory. A file whose
// mtime moved but whose content hash did not keeps its rows.
func (e *Engine) IncrementalCallGraphRefresh(ctx context.Context) (Stats, error) {
	return e.buildCallGraph(ctx, true)
}

// workItem is one file queued for extraction.
type workItem struct {
	path  string
	mtime int64
	size  int64
	// prev is the stored row in incremental mode, nil for new files.
	prev *store.GraphFile
}

type outcome int

const (
	outcomeExtracted outcome = iota
	outcomeTouched
	outcomeFailed
)

type workResult struct {
	outcome outcome
	graph   *store.FileGraph
	err     error
}

// buildCallGraph runs the three-phase pipeline:
//
//	Phase A (serial):   select candidate files, compare mtimes, queue removals.
//	Phase B (parallel): read, hash and extract on a bounded worker pool,
//	                    buffering rows in a BatchedStore.
//	Phase C (serial):   commit the batch in one transaction.
func (e *Engine) buildCallGraph(ctx context.Context, incremental bool) (st Stats, err error) {
	op := "RefreshCallGraph"
	if incremental {
		op = "IncrementalCallGraphRefresh"
	}
	ctx, span := startRefreshSpan(ctx, op)
	start := time.Now()
	defer func() {
		st.Duration = time.Since(start)
		recordRefresh(ctx, op, st.Duration, err == nil)
		endSpan(span, err)
	}()

	if _, indexed, err := e.store.Meta(store.MetaLastIndexed); err != nil {
		return st, fmt.Errorf("thicket: call graph: %w", err)
	} else if !indexed {
		if _, err := e.Refresh(ctx); err != nil {
			return st, err
		}
	}

	// ---- Phase A: select work ----
	inventory, err := e.store.AllFiles()
	if err != nil {
		return st, fmt.Errorf("thicket: call graph: %w", err)
	}
	var stored map[string]store.GraphFile
	if incremental {
		if stored, err = e.store.GraphFiles(); err != nil {
			return st, fmt.Errorf("thicket: call graph: %w", err)
		}
	}

	batch := store.NewBatchedStore(!incremental)
	seen := make(map[string]bool, len(inventory))
	var items []workItem
	for _, f := range inventory {
		if f.IsDir || !extract.Supported(f.Path) {
			continue
		}
		info, err := os.Stat(e.abs(f.Path))
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		seen[f.Path] = true
		item := workItem{path: f.Path, mtime: info.ModTime().Unix(), size: info.Size()}
		if prev, ok := stored[f.Path]; ok {
			if prev.Mtime == item.mtime {
				st.Unchanged++
				continue
			}
			item.prev = &prev
		}
		items = append(items, item)
	}

	var gone []string
	for p := range stored {
		if !seen[p] {
			gone = append(gone, p)
		}
	}
	sort.Strings(gone)
	for _, p := range gone {
		batch.Remove(p)
	}
	st.Removed = len(gone)

	// ---- Phase B: parallel extraction ----
	results := make([]workResult, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workerCount())
	for i, item := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := e.extractItem(gctx, item)
			switch res.outcome {
			case outcomeTouched:
				batch.Touch(res.graph.GraphFile)
			default:
				batch.AddFile(res.graph)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return st, fmt.Errorf("thicket: call graph: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return st, fmt.Errorf("thicket: call graph: %w", err)
	}

	// ---- Phase C: serial commit ----
	for i, res := range results {
		switch res.outcome {
		case outcomeTouched:
			st.Unchanged++
		case outcomeFailed:
			st.Failed++
			e.logger.Warn("extraction failed", "path", items[i].path, "error", res.err)
		default:
			st.Extracted++
			st.Symbols += countSymbols(res.graph.Symbols)
			st.Calls += len(res.graph.Calls)
			st.Imports += len(res.graph.Imports)
			st.Exports += len(res.graph.Exports)
		}
	}
	if err := e.store.CommitBatch(batch, time.Now().Unix()); err != nil {
		return st, fmt.Errorf("thicket: call graph: %w", err)
	}
	recordExtraction(ctx, st.Extracted, st.Failed)

	e.logger.Info("call graph refreshed",
		"incremental", incremental,
		"extracted", st.Extracted, "unchanged", st.Unchanged,
		"removed", st.Removed, "failed", st.Failed,
		"symbols", st.Symbols, "calls", st.Calls,
		"duration", time.Since(start))
	return st, nil
}

// extractItem does the Phase B work for one file. Failures come back as an
// empty graph so the file is not retried until it changes.
func (e *Engine) extractItem(ctx context.Context, item workItem) workResult {
	gf := store.GraphFile{Path: item.path, Mtime: item.mtime}
	if l, ok := lang.ForPath(item.path); ok {
		gf.Language = l.Name()
	}
	failed := func(err error) workResult {
		return workResult{outcome: outcomeFailed, graph: &store.FileGraph{GraphFile: gf}, err: err}
	}

	if limit := e.cfg.Index.MaxFileBytes; limit > 0 && item.size > limit {
		return failed(fmt.Errorf("%d bytes: %w", item.size, extract.ErrTooLarge))
	}
	src, err := os.ReadFile(e.abs(item.path))
	if err != nil {
		return failed(err)
	}
	gf.Hash = store.HashBytes(src)
	if item.prev != nil && item.prev.Hash == gf.Hash {
		return workResult{outcome: outcomeTouched, graph: &store.FileGraph{GraphFile: gf}}
	}

	res, err := e.extractor.Extract(ctx, item.path, src)
	if err != nil {
		return failed(err)
	}
	fg := &store.FileGraph{
		GraphFile: gf,
		Symbols:   res.Symbols,
		Imports:   res.Imports,
		Exports:   res.Exports,
		Calls:     make([]store.Call, len(res.Calls)),
	}
	for i, c := range res.Calls {
		fg.Calls[i] = store.Call{Caller: c.Caller, Callee: c.Callee, Line: c.Line}
	}
	return workResult{outcome: outcomeExtracted, graph: fg}
}

func countSymbols(syms []lang.Symbol) int {
	n := len(syms)
	for _, s := range syms {
		n += countSymbols(s.Children)
	}
	return n
}
