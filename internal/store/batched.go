package store

import (
	"sort"
	"sync"
)

// BatchedStore buffers call-graph writes in memory so extraction workers
// can run in parallel while the database sees a single writer. CommitBatch
// applies everything in one transaction.
//
// Thread safety: the mutex protects the slices; workers may call AddFile
// and Touch concurrently.
type BatchedStore struct {
	mu sync.Mutex

	// Reset drops every stored file before the batch is applied.
	Reset bool

	Files   []*FileGraph
	Touched []GraphFile
	Removed []string
}

// NewBatchedStore creates an empty batch. With reset set the commit replaces
// the whole call graph.
func NewBatchedStore(reset bool) *BatchedStore {
	return &BatchedStore{Reset: reset}
}

// AddFile queues a file's graph, replacing whatever is stored for its path.
func (b *BatchedStore) AddFile(fg *FileGraph) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Files = append(b.Files, fg)
}

// Touch queues an mtime-only update for an unchanged file.
func (b *BatchedStore) Touch(gf GraphFile) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Touched = append(b.Touched, gf)
}

// Remove queues deletion of a file's graph.
func (b *BatchedStore) Remove(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Removed = append(b.Removed, path)
}

// sorted orders the queued graphs by path so commits are deterministic
// regardless of worker scheduling.
func (b *BatchedStore) sorted() []*FileGraph {
	b.mu.Lock()
	defer b.mu.Unlock()
	files := make([]*FileGraph, len(b.Files))
	copy(files, b.Files)
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files
}
