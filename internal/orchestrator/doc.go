// Package orchestrator coordinates workspace indexing end to end: vector
// store initialization, full or resumed scans, and steady-state file
// watching.
//
// # Lifecycle
//
// The orchestrator moves through four states, tracked by the state
// manager:
//
//	Standby -> Indexing -> Indexed
//	             |            |
//	             v            v
//	           Error        Error
//
// Error is reachable from any non-terminal state; Standby is reachable
// again only by constructing a fresh run via StartIndexing.
//
// # Basic Usage
//
//	states := state.NewManager()
//	orch := orchestrator.New(orchestrator.Config{
//	    Configured:    true,
//	    WorkspaceRoot: "/path/to/workspace",
//	    IgnoreRules:   []string{"dist/", "*.log"},
//	}, store, embedder, states)
//
//	if err := orch.StartIndexing(ctx); err != nil {
//	    // Precondition failure: not configured, no workspace, or an
//	    // attempt already in flight.
//	}
//	defer orch.StopWatcher()
//
// # Failure Handling
//
// Each StartIndexing invocation tracks whether it has performed any
// mutating operation against the vector store or the fingerprint cache.
// On a fatal error the orchestrator transitions to Error and rolls back
// persisted state only if mutation actually began:
//
//   - Vector store initialization fails: no cleanup. The previous index,
//     if any, stays valid.
//   - Anything fails after the incomplete marker is written: the
//     collection is cleared and the fingerprint cache removed, so a
//     half-written index is never observed as valid.
//
// Per-file embedding or upsert failures do not abort a run; they are
// counted in the progress report and the file is retried on the next
// scan.
//
// # Resume Semantics
//
// When the store reports a complete prior index, the full scan is skipped
// entirely and the orchestrator goes straight to watcher startup. Live
// changes then flow through the same pipeline the scan uses: fingerprint,
// diff against the cache snapshot, embed, upsert or delete.
package orchestrator
