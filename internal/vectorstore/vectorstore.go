// Package vectorstore defines the narrow contract the orchestrator holds
// with an external vector database, plus the production SQLite-backed and
// in-memory implementations.
package vectorstore

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
)

// Common errors
var (
	// ErrNotInitialized is returned when a store is used before Initialize.
	ErrNotInitialized = errors.New("vector store not initialized")
	// ErrStoreClosed is returned when a store is used after Close.
	ErrStoreClosed = errors.New("vector store closed")
)

// SearchResult is one similarity-search hit.
type SearchResult struct {
	Path  string
	Score float64
}

// Store is the vector database adapter consumed by the orchestrator.
// Implementations must be safe for concurrent use.
type Store interface {
	// Initialize prepares the underlying collection. It reports whether a
	// collection already existed. Initialize performs no destructive work,
	// so a failure here leaves any prior index untouched.
	Initialize(ctx context.Context) (existing bool, err error)

	// HasIndexedData reports whether the collection holds a complete,
	// previously finished index.
	HasIndexedData(ctx context.Context) (bool, error)

	// Upsert replaces all vectors stored for path.
	Upsert(ctx context.Context, path string, vectors [][]float32) error

	// DeleteByPath removes every vector stored for path.
	DeleteByPath(ctx context.Context, path string) error

	// ClearCollection removes all indexed data and resets the completion
	// marker.
	ClearCollection(ctx context.Context) error

	// MarkIndexingIncomplete flags the collection as mid-write. A
	// collection left incomplete is never treated as valid by
	// HasIndexedData.
	MarkIndexingIncomplete(ctx context.Context) error

	// MarkIndexingComplete flags the collection as fully written.
	MarkIndexingComplete(ctx context.Context) error

	// Search returns up to limit paths ranked by cosine similarity to the
	// query vector, best first.
	Search(ctx context.Context, vector []float32, limit int) ([]SearchResult, error)

	// Close releases underlying resources.
	Close() error
}

// Memory is an in-memory Store used for tests and local, non-persistent
// runs.
type Memory struct {
	mu          sync.Mutex
	initialized bool
	closed      bool
	complete    bool
	vectors     map[string][][]float32
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Initialize prepares the store. The collection "exists" once any prior
// Initialize has run.
func (m *Memory) Initialize(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, ErrStoreClosed
	}
	existing := m.initialized
	m.initialized = true
	if m.vectors == nil {
		m.vectors = make(map[string][][]float32)
	}
	return existing, nil
}

// HasIndexedData reports whether a completed index is present.
func (m *Memory) HasIndexedData(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.usable(); err != nil {
		return false, err
	}
	return m.complete && len(m.vectors) > 0, nil
}

// Upsert replaces the vectors stored for path.
func (m *Memory) Upsert(ctx context.Context, path string, vectors [][]float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.usable(); err != nil {
		return err
	}
	stored := make([][]float32, len(vectors))
	for i, v := range vectors {
		stored[i] = append([]float32(nil), v...)
	}
	m.vectors[path] = stored
	return nil
}

// DeleteByPath removes all vectors for path. Deleting an unknown path is a
// no-op.
func (m *Memory) DeleteByPath(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.usable(); err != nil {
		return err
	}
	delete(m.vectors, path)
	return nil
}

// ClearCollection discards all vectors and the completion marker.
func (m *Memory) ClearCollection(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.usable(); err != nil {
		return err
	}
	m.vectors = make(map[string][][]float32)
	m.complete = false
	return nil
}

// MarkIndexingIncomplete flags the collection as mid-write.
func (m *Memory) MarkIndexingIncomplete(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.usable(); err != nil {
		return err
	}
	m.complete = false
	return nil
}

// MarkIndexingComplete flags the collection as fully written.
func (m *Memory) MarkIndexingComplete(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.usable(); err != nil {
		return err
	}
	m.complete = true
	return nil
}

// Search ranks stored paths by the best cosine similarity among their
// vectors.
func (m *Memory) Search(ctx context.Context, vector []float32, limit int) ([]SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.usable(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []SearchResult{}, nil
	}

	results := make([]SearchResult, 0, len(m.vectors))
	for path, stored := range m.vectors {
		best := math.Inf(-1)
		for _, v := range stored {
			if score := CosineSimilarity(vector, v); score > best {
				best = score
			}
		}
		if !math.IsInf(best, -1) {
			results = append(results, SearchResult{Path: path, Score: best})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Path < results[j].Path
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Close marks the store unusable.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Paths returns the set of indexed paths, for tests.
func (m *Memory) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	paths := make([]string, 0, len(m.vectors))
	for p := range m.vectors {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func (m *Memory) usable() error {
	if m.closed {
		return ErrStoreClosed
	}
	if !m.initialized {
		return ErrNotInitialized
	}
	return nil
}

// CosineSimilarity computes the cosine similarity of two vectors. Vectors
// of mismatched length or zero magnitude score zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
