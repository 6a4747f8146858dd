package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"codeindex/internal/cache"
	"codeindex/internal/embedder"
	"codeindex/internal/scanner"
	"codeindex/internal/state"
	"codeindex/internal/vectorstore"
	"codeindex/internal/watcher"
	"codeindex/pkg/types"
)

// Precondition errors, reported synchronously with no state mutation.
var (
	ErrNotConfigured      = errors.New("indexing is not configured")
	ErrNoWorkspace        = errors.New("workspace folder is not resolvable")
	ErrIndexingInProgress = errors.New("indexing already in progress")
)

// Config carries the options the orchestrator needs up front. It replaces
// ambient configuration lookups with one explicit struct.
type Config struct {
	// Configured gates the whole feature. StartIndexing fails fast when
	// false.
	Configured bool

	// WorkspaceRoot is the absolute path of the tree to index. Immutable
	// for the orchestrator's lifetime.
	WorkspaceRoot string

	// IgnoreRules are gitignore-style patterns excluded from indexing.
	IgnoreRules []string

	// DataDir holds the fingerprint cache. Defaults to
	// <WorkspaceRoot>/.codeindex.
	DataDir string

	// Debounce is the watcher quiet period. Zero selects the watcher
	// default.
	Debounce time.Duration

	// Workers bounds concurrent embedding calls during a full scan.
	// Defaults to runtime.NumCPU().
	Workers int
}

// Orchestrator drives one workspace through initialization, full or
// incremental indexing, and steady-state file watching. Failure handling
// is gated so a crash or remote outage never destroys a valid prior index.
type Orchestrator struct {
	cfg    Config
	store  vectorstore.Store
	embed  embedder.Embedder
	states *state.Manager
	cache  *cache.Manager
	scan   *scanner.Scanner

	lock runLock

	// snapshot is the live fingerprint view shared by the scan pipeline
	// and the watcher pipeline. snapMu serializes batch processing against
	// it.
	snapMu   sync.Mutex
	snapshot cache.Snapshot

	watchMu sync.Mutex
	watch   *watcher.Watcher
}

// runContext is per-attempt bookkeeping for one StartIndexing invocation.
type runContext struct {
	// mutated flips true the moment any operation that can alter
	// persisted index state begins. It gates cleanup on the error path:
	// failures before the first mutation must leave the prior index
	// untouched.
	mutated bool
}

// New wires an orchestrator from its collaborators. The vector store and
// embedder are injected so production and in-memory variants can both
// serve.
func New(cfg Config, store vectorstore.Store, embed embedder.Embedder, states *state.Manager) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Join(cfg.WorkspaceRoot, ".codeindex")
	}
	return &Orchestrator{
		cfg:    cfg,
		store:  store,
		embed:  embed,
		states: states,
		cache:  cache.NewManager(cfg.DataDir, cfg.WorkspaceRoot),
		scan:   scanner.New(cfg.WorkspaceRoot, cfg.IgnoreRules),
	}
}

// StartIndexing runs one indexing attempt: initialize the vector store,
// full scan or resume, then watcher startup. Precondition failures are
// returned directly; every other failure is absorbed into an Error state
// transition so no error escapes the orchestrator once indexing has begun.
func (o *Orchestrator) StartIndexing(ctx context.Context) error {
	if !o.cfg.Configured {
		return ErrNotConfigured
	}
	if info, err := os.Stat(o.cfg.WorkspaceRoot); o.cfg.WorkspaceRoot == "" || err != nil || !info.IsDir() {
		return ErrNoWorkspace
	}
	if !o.lock.TryAcquire() {
		return ErrIndexingInProgress
	}
	defer o.lock.Release()

	// Restarting replaces any watcher left over from a prior attempt.
	o.StopWatcher()

	run := &runContext{}
	o.states.SetSystemState(state.StatusIndexing, "initializing vector store")

	if err := o.buildIndex(ctx, run); err != nil {
		o.abort(ctx, run, err)
		return nil
	}

	o.states.SetSystemState(state.StatusIndexed, "workspace indexed")

	if err := o.startWatcher(ctx); err != nil {
		// Watcher bootstrap failures are initialization-class: the index
		// itself is complete and valid, so the gated cleanup is skipped.
		o.states.SetSystemState(state.StatusError, fmt.Sprintf("file watcher failed: %v", err))
	}
	return nil
}

// buildIndex performs steps up to and including the completion marker.
func (o *Orchestrator) buildIndex(ctx context.Context, run *runContext) error {
	if _, err := o.store.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize vector store: %w", err)
	}

	has, err := o.store.HasIndexedData(ctx)
	if err != nil {
		return fmt.Errorf("query indexed data: %w", err)
	}

	if has {
		// Resume: the prior index is complete, so skip the full scan and
		// pick up the persisted fingerprints for the watcher pipeline.
		snap, err := o.cache.Load()
		if err != nil {
			return fmt.Errorf("load fingerprint cache: %w", err)
		}
		o.setSnapshot(snap)
	} else {
		// First mutation point. From here on a failure triggers cleanup.
		run.mutated = true
		if err := o.store.MarkIndexingIncomplete(ctx); err != nil {
			return fmt.Errorf("mark indexing incomplete: %w", err)
		}
		if err := o.fullScan(ctx); err != nil {
			return err
		}
	}

	if err := o.store.MarkIndexingComplete(ctx); err != nil {
		return fmt.Errorf("mark indexing complete: %w", err)
	}
	return nil
}

// fullScan diffs the workspace against the fingerprint cache, embeds and
// upserts every changed file, removes deleted paths, and commits the new
// snapshot.
func (o *Orchestrator) fullScan(ctx context.Context) error {
	previous, err := o.cache.Load()
	if err != nil {
		return fmt.Errorf("load fingerprint cache: %w", err)
	}

	o.states.SetSystemState(state.StatusIndexing, "scanning workspace")
	res, err := o.scan.Scan(ctx, previous)
	if err != nil {
		return fmt.Errorf("scan workspace: %w", err)
	}

	progress := types.Progress{Queued: len(res.Changed)}
	o.states.ReportFileQueueProgress(progress)

	// Embed concurrently; upserts below run serially in discovery order.
	vectors := make([][]float32, len(res.Changed))
	embedErrs := make([]error, len(res.Changed))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Workers)
	for i, rec := range res.Changed {
		g.Go(func() error {
			vectors[i], embedErrs[i] = o.embedFile(gctx, rec.Path)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	next := make(cache.Snapshot, len(previous))
	for k, v := range previous {
		next[k] = v
	}

	for _, rel := range res.Deleted {
		if err := o.store.DeleteByPath(ctx, rel); err != nil {
			return fmt.Errorf("delete %s from vector store: %w", rel, err)
		}
		delete(next, rel)
	}

	for i, rec := range res.Changed {
		if embedErrs[i] != nil {
			progress.Failed++
			o.states.ReportFileQueueProgress(progress)
			continue
		}
		if err := o.store.Upsert(ctx, rec.Path, wrapVector(vectors[i])); err != nil {
			progress.Failed++
			o.states.ReportFileQueueProgress(progress)
			continue
		}
		// Failed files keep no cache entry, so the next scan retries them.
		next[rec.Path] = rec.Fingerprint
		progress.Processed++
		o.states.ReportFileQueueProgress(progress)
	}

	if err := o.cache.Persist(next); err != nil {
		return fmt.Errorf("persist fingerprint cache: %w", err)
	}
	o.setSnapshot(next)
	return nil
}

// embedFile reads and embeds one workspace-relative file. Empty files
// yield a nil vector and no error.
func (o *Orchestrator) embedFile(ctx context.Context, rel string) ([]float32, error) {
	content, err := os.ReadFile(filepath.Join(o.cfg.WorkspaceRoot, filepath.FromSlash(rel)))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rel, err)
	}
	if len(content) == 0 {
		return nil, nil
	}
	vector, err := o.embed.Embed(ctx, string(content))
	if err != nil {
		return nil, fmt.Errorf("embed %s: %w", rel, err)
	}
	return vector, nil
}

// abort transitions to Error and runs the gated cleanup: persisted state
// is rolled back only when this attempt actually mutated it.
func (o *Orchestrator) abort(ctx context.Context, run *runContext, cause error) {
	o.states.SetSystemState(state.StatusError, cause.Error())
	if !run.mutated {
		return
	}

	// Cleanup still runs when the attempt died of cancellation.
	cleanupCtx := context.WithoutCancel(ctx)
	_ = o.store.ClearCollection(cleanupCtx)
	_ = o.cache.Clear()
}

// startWatcher establishes steady-state incremental maintenance.
func (o *Orchestrator) startWatcher(ctx context.Context) error {
	o.watchMu.Lock()
	defer o.watchMu.Unlock()

	w := watcher.New(watcher.Config{
		Root:         o.cfg.WorkspaceRoot,
		Debounce:     o.cfg.Debounce,
		ShouldIgnore: o.scan.Ignored,
		Notify:       o.states.ReportBatchEvent,
		OnError: func(err error) {
			// Steady-state watch errors are surfaced without tearing the
			// orchestrator down.
			o.states.SetSystemState(state.StatusIndexed, fmt.Sprintf("watch error: %v", err))
		},
	}, o.handleBatch)

	if err := w.Initialize(ctx); err != nil {
		return err
	}
	o.watch = w
	return nil
}

// StopWatcher disposes the change watcher subscriptions. Idempotent and
// safe to call from any state.
func (o *Orchestrator) StopWatcher() {
	o.watchMu.Lock()
	defer o.watchMu.Unlock()
	if o.watch != nil {
		o.watch.Dispose()
		o.watch = nil
	}
}

// handleBatch funnels a debounced watcher batch through the same
// changed-file pipeline the full scan uses. Batches are serialized by
// snapMu, so a batch arriving mid-processing waits its turn.
func (o *Orchestrator) handleBatch(ctx context.Context, batch watcher.Batch, progress func(int)) {
	o.snapMu.Lock()
	defer o.snapMu.Unlock()

	if o.snapshot == nil {
		o.snapshot = cache.Snapshot{}
	}

	p := o.states.Progress()
	p.Queued += len(batch.Events)

	for i, ev := range batch.Events {
		if err := o.applyEvent(ctx, ev); err != nil {
			p.Failed++
		} else {
			p.Processed++
		}
		o.states.ReportFileQueueProgress(p)
		progress(i + 1)
	}

	// Best effort: a failed cache write means extra re-embedding on the
	// next scan, not a broken index.
	_ = o.cache.Persist(o.snapshot)
}

// applyEvent processes one file event against the store and the live
// snapshot. Callers hold snapMu.
func (o *Orchestrator) applyEvent(ctx context.Context, ev types.FileEvent) error {
	if ev.Op == types.OpRemove {
		return o.removePath(ctx, ev.Path)
	}

	abs := filepath.Join(o.cfg.WorkspaceRoot, filepath.FromSlash(ev.Path))
	fp, err := scanner.Fingerprint(abs)
	if err != nil {
		if os.IsNotExist(err) {
			// The file vanished between the event and processing.
			return o.removePath(ctx, ev.Path)
		}
		return err
	}
	if o.snapshot[ev.Path] == fp {
		return nil
	}

	vector, err := o.embedFile(ctx, ev.Path)
	if err != nil {
		return err
	}
	if err := o.store.Upsert(ctx, ev.Path, wrapVector(vector)); err != nil {
		return err
	}
	o.snapshot[ev.Path] = fp
	return nil
}

func (o *Orchestrator) removePath(ctx context.Context, rel string) error {
	if err := o.store.DeleteByPath(ctx, rel); err != nil {
		return err
	}
	delete(o.snapshot, rel)
	return nil
}

// Search embeds the query and runs a similarity search against the store.
func (o *Orchestrator) Search(ctx context.Context, query string, limit int) ([]vectorstore.SearchResult, error) {
	vector, err := o.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return o.store.Search(ctx, vector, limit)
}

// States exposes the read-only view of orchestrator status for consumers.
func (o *Orchestrator) States() *state.Manager {
	return o.states
}

func (o *Orchestrator) setSnapshot(snap cache.Snapshot) {
	o.snapMu.Lock()
	defer o.snapMu.Unlock()
	o.snapshot = snap
}

func wrapVector(v []float32) [][]float32 {
	if v == nil {
		return nil
	}
	return [][]float32{v}
}
