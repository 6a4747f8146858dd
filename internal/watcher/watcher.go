// Package watcher subscribes to live file-system events for a workspace,
// debounces bursts into logical batches, and hands each batch to the
// indexing pipeline.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"codeindex/pkg/types"
)

// DefaultDebounce is the quiet period used when none is configured. An
// event arriving inside the window extends it rather than starting a new
// batch.
const DefaultDebounce = 250 * time.Millisecond

// Batch is an ordered set of coalesced file events collected between flush
// points. Events appear in arrival order, one per path.
type Batch struct {
	ID     string
	Events []types.FileEvent
}

// Handler processes one flushed batch. progress is invoked with the number
// of events handled so far and may be called once per event.
type Handler func(ctx context.Context, batch Batch, progress func(done int))

// Config configures a Watcher.
type Config struct {
	// Root is the workspace root to watch recursively.
	Root string

	// Debounce is the quiet period before a batch is flushed.
	// DefaultDebounce applies when zero.
	Debounce time.Duration

	// ShouldIgnore filters workspace-relative paths out of batches.
	// Optional.
	ShouldIgnore func(relPath string) bool

	// Notify receives batch lifecycle events. Optional.
	Notify func(types.BatchEvent)

	// OnError receives steady-state watch errors. These do not stop the
	// watcher. Optional.
	OnError func(error)
}

// Watcher owns the underlying fsnotify subscriptions and the debounce
// state. Batches are processed one at a time in arrival order; events that
// arrive while a batch is in flight queue up for the next one.
type Watcher struct {
	cfg     Config
	handler Handler

	fw      *fsnotify.Watcher
	batches chan Batch
	done    chan struct{}
	wg      sync.WaitGroup

	disposeOnce sync.Once
}

// New returns an unstarted Watcher. Initialize establishes the
// subscriptions.
func New(cfg Config, handler Handler) *Watcher {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	return &Watcher{
		cfg:     cfg,
		handler: handler,
		batches: make(chan Batch, 16),
		done:    make(chan struct{}),
	}
}

// Initialize creates the file-system subscriptions for the whole workspace
// tree and starts the collect and process loops. A failure here means the
// watcher never ran.
func (w *Watcher) Initialize(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}

	if err := addRecursive(fw, w.cfg.Root, w.cfg.Root, w.cfg.ShouldIgnore); err != nil {
		_ = fw.Close()
		return fmt.Errorf("watch workspace tree: %w", err)
	}
	w.fw = fw

	w.wg.Add(2)
	go w.collect()
	go w.process(ctx)
	return nil
}

// Dispose cancels the debounce timer, releases the underlying
// subscriptions, and waits for in-flight batch processing to drain. Safe
// to call multiple times.
func (w *Watcher) Dispose() {
	w.disposeOnce.Do(func() {
		close(w.done)
		if w.fw != nil {
			_ = w.fw.Close()
		}
		w.wg.Wait()
	})
}

// collect reads raw fsnotify events, coalesces them per path, and flushes
// a batch once the quiet period elapses with no new events.
func (w *Watcher) collect() {
	defer w.wg.Done()

	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false
	order := make([]string, 0, 16)
	ops := make(map[string]types.FileOp)

	extend := func() {
		if pending && !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(w.cfg.Debounce)
		pending = true
	}

	for {
		select {
		case <-w.done:
			timer.Stop()
			return

		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			rel, op, ok := w.classify(event)
			if !ok {
				continue
			}
			if _, seen := ops[rel]; !seen {
				order = append(order, rel)
			}
			ops[rel] = op
			extend()

		case <-timer.C:
			if !pending {
				continue
			}
			pending = false
			batch := Batch{ID: uuid.NewString(), Events: make([]types.FileEvent, 0, len(order))}
			for _, rel := range order {
				batch.Events = append(batch.Events, types.FileEvent{Path: rel, Op: ops[rel]})
			}
			order = order[:0]
			ops = make(map[string]types.FileOp)

			select {
			case w.batches <- batch:
			case <-w.done:
				return
			}

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			if w.cfg.OnError != nil {
				w.cfg.OnError(err)
			}
		}
	}
}

// process drains flushed batches one at a time, emitting lifecycle events
// around the handler.
func (w *Watcher) process(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case batch := <-w.batches:
			w.notify(types.BatchEvent{BatchID: batch.ID, Phase: types.BatchStarted, Count: len(batch.Events)})
			w.handler(ctx, batch, func(done int) {
				w.notify(types.BatchEvent{BatchID: batch.ID, Phase: types.BatchProgress, Count: done})
			})
			w.notify(types.BatchEvent{BatchID: batch.ID, Phase: types.BatchFinished, Count: len(batch.Events)})
		}
	}
}

// classify maps a raw fsnotify event onto a workspace-relative file event.
// Directory creations grow the watch set as a side effect.
func (w *Watcher) classify(event fsnotify.Event) (string, types.FileOp, bool) {
	path := filepath.Clean(event.Name)

	rel, err := filepath.Rel(w.cfg.Root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", 0, false
	}
	rel = filepath.ToSlash(rel)

	if isEditorJunk(filepath.Base(path)) {
		return "", 0, false
	}
	if w.cfg.ShouldIgnore != nil && w.cfg.ShouldIgnore(rel) {
		return "", 0, false
	}

	if event.Op&fsnotify.Create != 0 {
		if info, statErr := os.Stat(path); statErr == nil && info.IsDir() {
			_ = addRecursive(w.fw, path, w.cfg.Root, w.cfg.ShouldIgnore)
			return "", 0, false
		}
	}

	switch {
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		return rel, types.OpRemove, true
	case event.Op&fsnotify.Create != 0:
		return rel, types.OpCreate, true
	case event.Op&fsnotify.Write != 0:
		return rel, types.OpWrite, true
	default:
		// Chmod and other noise.
		return "", 0, false
	}
}

func (w *Watcher) notify(ev types.BatchEvent) {
	if w.cfg.Notify != nil {
		w.cfg.Notify(ev)
	}
}

// addRecursive adds root and every non-ignored subdirectory to the watch
// set.
func addRecursive(fw *fsnotify.Watcher, dir, root string, shouldIgnore func(string) bool) error {
	return filepath.WalkDir(dir, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !entry.IsDir() {
			return nil
		}
		if path != root {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			if shouldIgnore != nil && shouldIgnore(rel) {
				return filepath.SkipDir
			}
		}
		return fw.Add(path)
	})
}

// isEditorJunk filters transient files editors create around saves.
func isEditorJunk(base string) bool {
	return base == ".DS_Store" ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasSuffix(base, "~") ||
		strings.HasPrefix(base, ".#")
}
