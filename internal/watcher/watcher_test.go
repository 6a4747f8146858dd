package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeindex/pkg/types"
)

// batchRecorder collects batches and lifecycle events delivered by a
// Watcher under test.
type batchRecorder struct {
	mu      sync.Mutex
	batches []Batch
	events  []types.BatchEvent
}

func (r *batchRecorder) handle(ctx context.Context, batch Batch, progress func(int)) {
	for i := range batch.Events {
		progress(i + 1)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, batch)
}

func (r *batchRecorder) notify(ev types.BatchEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *batchRecorder) batchCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func (r *batchRecorder) allBatches() []Batch {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Batch(nil), r.batches...)
}

func (r *batchRecorder) allEvents() []types.BatchEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.BatchEvent(nil), r.events...)
}

func startWatcher(t *testing.T, root string, debounce time.Duration) (*Watcher, *batchRecorder) {
	t.Helper()
	rec := &batchRecorder{}
	w := New(Config{
		Root:     root,
		Debounce: debounce,
		Notify:   rec.notify,
	}, rec.handle)
	require.NoError(t, w.Initialize(context.Background()))
	t.Cleanup(w.Dispose)
	return w, rec
}

func TestRapidSavesCollapseIntoOneBatch(t *testing.T) {
	root := t.TempDir()
	_, rec := startWatcher(t, root, 150*time.Millisecond)

	// A burst of saves well inside the debounce window.
	path := filepath.Join(root, "main.go")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("package main"), 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return rec.batchCount() >= 1 },
		3*time.Second, 20*time.Millisecond)

	// Allow a full extra window to prove no second batch arrives.
	time.Sleep(400 * time.Millisecond)

	batches := rec.allBatches()
	require.Len(t, batches, 1)
	require.Len(t, batches[0].Events, 1)
	assert.Equal(t, "main.go", batches[0].Events[0].Path)
}

func TestBatchLifecycleEvents(t *testing.T) {
	root := t.TempDir()
	_, rec := startWatcher(t, root, 100*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package a"), 0o644))

	require.Eventually(t, func() bool { return rec.batchCount() >= 1 },
		3*time.Second, 20*time.Millisecond)

	events := rec.allEvents()
	require.NotEmpty(t, events)
	assert.Equal(t, types.BatchStarted, events[0].Phase)
	assert.Equal(t, types.BatchFinished, events[len(events)-1].Phase)
	assert.Equal(t, events[0].BatchID, events[len(events)-1].BatchID)

	var sawProgress bool
	for _, ev := range events[1 : len(events)-1] {
		if ev.Phase == types.BatchProgress {
			sawProgress = true
		}
	}
	assert.True(t, sawProgress)
}

func TestRemoveEventReported(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "doomed.go")
	require.NoError(t, os.WriteFile(path, []byte("package doomed"), 0o644))

	_, rec := startWatcher(t, root, 100*time.Millisecond)

	require.NoError(t, os.Remove(path))

	require.Eventually(t, func() bool { return rec.batchCount() >= 1 },
		3*time.Second, 20*time.Millisecond)

	batches := rec.allBatches()
	require.Len(t, batches[0].Events, 1)
	assert.Equal(t, types.FileEvent{Path: "doomed.go", Op: types.OpRemove}, batches[0].Events[0])
}

func TestWriteThenRemoveCoalescesToRemove(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "short.go")

	_, rec := startWatcher(t, root, 200*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("package short"), 0o644))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, os.Remove(path))

	require.Eventually(t, func() bool { return rec.batchCount() >= 1 },
		3*time.Second, 20*time.Millisecond)

	batches := rec.allBatches()
	require.Len(t, batches[0].Events, 1)
	assert.Equal(t, types.OpRemove, batches[0].Events[0].Op)
}

func TestNewDirectoryIsWatched(t *testing.T) {
	root := t.TempDir()
	_, rec := startWatcher(t, root, 100*time.Millisecond)

	sub := filepath.Join(root, "pkg")
	require.NoError(t, os.Mkdir(sub, 0o755))

	// Give the watcher a moment to pick up the new directory.
	require.Eventually(t, func() bool {
		if err := os.WriteFile(filepath.Join(sub, "new.go"), []byte("package pkg"), 0o644); err != nil {
			return false
		}
		for _, b := range rec.allBatches() {
			for _, ev := range b.Events {
				if ev.Path == "pkg/new.go" {
					return true
				}
			}
		}
		return false
	}, 5*time.Second, 100*time.Millisecond)
}

func TestIgnoredPathsExcluded(t *testing.T) {
	root := t.TempDir()
	rec := &batchRecorder{}
	w := New(Config{
		Root:     root,
		Debounce: 100 * time.Millisecond,
		ShouldIgnore: func(rel string) bool {
			return rel == "skip.log"
		},
	}, rec.handle)
	require.NoError(t, w.Initialize(context.Background()))
	t.Cleanup(w.Dispose)

	require.NoError(t, os.WriteFile(filepath.Join(root, "skip.log"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "keep.go"), []byte("package keep"), 0o644))

	require.Eventually(t, func() bool { return rec.batchCount() >= 1 },
		3*time.Second, 20*time.Millisecond)

	for _, b := range rec.allBatches() {
		for _, ev := range b.Events {
			assert.NotEqual(t, "skip.log", ev.Path)
		}
	}
}

func TestDisposeIsIdempotent(t *testing.T) {
	root := t.TempDir()
	w, _ := startWatcher(t, root, 50*time.Millisecond)

	assert.NotPanics(t, func() {
		w.Dispose()
		w.Dispose()
	})
}
