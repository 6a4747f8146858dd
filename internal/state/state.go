// Package state holds the single source of truth for orchestrator status.
// The orchestrator is the only writer; every other component observes
// through read-only queries or subscriptions.
package state

import (
	"sync"

	"codeindex/pkg/types"
)

// Status is the orchestrator's lifecycle state.
type Status int

const (
	// StatusStandby means no indexing attempt has started.
	StatusStandby Status = iota
	// StatusIndexing means a scan or initialization is in flight.
	StatusIndexing
	// StatusIndexed means the index is complete and the watcher is active.
	StatusIndexed
	// StatusError means the last indexing attempt failed.
	StatusError
)

// String returns a human-readable name for the status.
func (s Status) String() string {
	switch s {
	case StatusStandby:
		return "standby"
	case StatusIndexing:
		return "indexing"
	case StatusIndexed:
		return "indexed"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Change is a state transition notification.
type Change struct {
	Status  Status
	Message string
}

// Manager tracks status, message, and progress counters behind a single
// mutex, and fans notifications out to subscribers. Subscriber callbacks
// run synchronously on the reporting goroutine, so they must not block.
type Manager struct {
	mu       sync.RWMutex
	status   Status
	message  string
	progress types.Progress

	nextID    int
	stateSubs map[int]func(Change)
	progSubs  map[int]func(types.Progress)
	batchSubs map[int]func(types.BatchEvent)
}

// NewManager returns a Manager in StatusStandby.
func NewManager() *Manager {
	return &Manager{
		stateSubs: make(map[int]func(Change)),
		progSubs:  make(map[int]func(types.Progress)),
		batchSubs: make(map[int]func(types.BatchEvent)),
	}
}

// State returns the current status and message.
func (m *Manager) State() (Status, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status, m.message
}

// Progress returns the most recently reported progress counters.
func (m *Manager) Progress() types.Progress {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.progress
}

// SetSystemState records a transition and notifies state subscribers.
// Only the orchestrator may call this.
func (m *Manager) SetSystemState(status Status, message string) {
	m.mu.Lock()
	m.status = status
	m.message = message
	subs := snapshotSubs(m.stateSubs)
	m.mu.Unlock()

	for _, fn := range subs {
		fn(Change{Status: status, Message: message})
	}
}

// ReportFileQueueProgress records absolute progress counters for the
// current indexing pass and notifies progress subscribers.
func (m *Manager) ReportFileQueueProgress(p types.Progress) {
	m.mu.Lock()
	m.progress = p
	subs := snapshotSubs(m.progSubs)
	m.mu.Unlock()

	for _, fn := range subs {
		fn(p)
	}
}

// ReportBatchEvent forwards a watcher batch lifecycle event to batch
// subscribers.
func (m *Manager) ReportBatchEvent(ev types.BatchEvent) {
	m.mu.RLock()
	subs := snapshotSubs(m.batchSubs)
	m.mu.RUnlock()

	for _, fn := range subs {
		fn(ev)
	}
}

// OnStateChange registers fn for state transitions. The returned
// unsubscribe handle is idempotent.
func (m *Manager) OnStateChange(fn func(Change)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.stateSubs[id] = fn
	return m.unsubscriber(func() { delete(m.stateSubs, id) })
}

// OnProgress registers fn for progress updates. The returned unsubscribe
// handle is idempotent.
func (m *Manager) OnProgress(fn func(types.Progress)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.progSubs[id] = fn
	return m.unsubscriber(func() { delete(m.progSubs, id) })
}

// OnBatchEvent registers fn for watcher batch lifecycle events. The
// returned unsubscribe handle is idempotent.
func (m *Manager) OnBatchEvent(fn func(types.BatchEvent)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.batchSubs[id] = fn
	return m.unsubscriber(func() { delete(m.batchSubs, id) })
}

func (m *Manager) unsubscriber(remove func()) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			remove()
		})
	}
}

func snapshotSubs[T any](subs map[int]T) []T {
	out := make([]T, 0, len(subs))
	for _, fn := range subs {
		out = append(out, fn)
	}
	return out
}
