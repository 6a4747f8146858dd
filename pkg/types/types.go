// Package types holds the data structures shared across the indexing
// pipeline. It has no dependencies so any package can import it.
package types

// FileRecord pairs a workspace-relative path with its content fingerprint.
// Records are produced by the scanner and the change watcher and persisted
// by the fingerprint cache.
type FileRecord struct {
	Path        string
	Fingerprint string
}

// FileOp identifies the kind of change observed for a file.
type FileOp int

const (
	// OpCreate indicates a file was created.
	OpCreate FileOp = iota
	// OpWrite indicates a file's content was modified.
	OpWrite
	// OpRemove indicates a file was deleted or renamed away.
	OpRemove
)

// String returns a human-readable name for the operation.
func (op FileOp) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// FileEvent is a single observed file-system change, relative to the
// workspace root.
type FileEvent struct {
	Path string
	Op   FileOp
}

// Progress reports counts of files queued, processed, and failed during an
// indexing pass or a watcher batch.
type Progress struct {
	Queued    int
	Processed int
	Failed    int
}

// BatchPhase identifies a point in a watcher batch's lifecycle.
type BatchPhase int

const (
	// BatchStarted is emitted when a debounced batch begins processing.
	BatchStarted BatchPhase = iota
	// BatchProgress is emitted as files within a batch are processed.
	BatchProgress
	// BatchFinished is emitted once a batch has been fully processed.
	BatchFinished
)

// String returns a human-readable name for the phase.
func (p BatchPhase) String() string {
	switch p {
	case BatchStarted:
		return "started"
	case BatchProgress:
		return "progress"
	case BatchFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// BatchEvent is a batch lifecycle notification emitted by the change
// watcher. Count carries the batch size for BatchStarted and BatchFinished,
// and the number of events processed so far for BatchProgress.
type BatchEvent struct {
	BatchID string
	Phase   BatchPhase
	Count   int
}
