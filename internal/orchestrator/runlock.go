package orchestrator

import "sync/atomic"

// runLock provides non-blocking lock semantics using atomic operations so
// an overlapping StartIndexing call is refused instead of queued.
type runLock struct {
	held atomic.Bool
}

// TryAcquire attempts to acquire the lock without blocking.
// Returns true if the lock was successfully acquired, false otherwise.
func (l *runLock) TryAcquire() bool {
	return l.held.CompareAndSwap(false, true)
}

// Release releases the lock.
// Must only be called by the goroutine that successfully acquired the lock.
func (l *runLock) Release() {
	l.held.Store(false)
}
