// Package cache persists file fingerprints between indexing runs so
// unchanged files can be skipped on re-scan.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Snapshot maps workspace-relative file paths to hex-encoded content
// fingerprints.
type Snapshot map[string]string

// Manager owns the on-disk fingerprint cache for one workspace. The cache
// file name is derived from the workspace root path so distinct workspaces
// never collide inside a shared data directory.
type Manager struct {
	file string
}

// NewManager returns a Manager storing its cache under dataDir, keyed by
// workspaceRoot.
func NewManager(dataDir, workspaceRoot string) *Manager {
	sum := sha256.Sum256([]byte(filepath.Clean(workspaceRoot)))
	name := fmt.Sprintf("fingerprints-%s.json", hex.EncodeToString(sum[:8]))
	return &Manager{file: filepath.Join(dataDir, name)}
}

// Path returns the location of the cache file.
func (m *Manager) Path() string {
	return m.file
}

// Load reads the persisted snapshot. A missing cache file is not an error;
// it yields an empty snapshot.
func (m *Manager) Load() (Snapshot, error) {
	data, err := os.ReadFile(m.file)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, nil
		}
		return nil, fmt.Errorf("read cache file: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode cache file: %w", err)
	}
	if snap == nil {
		snap = Snapshot{}
	}
	return snap, nil
}

// Persist replaces the cache file with the given snapshot. The write goes
// to a temporary file in the same directory followed by a rename, so a
// crash mid-write never leaves a corrupt cache.
func (m *Manager) Persist(snap Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(m.file), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(m.file), ".fingerprints-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp cache file: %w", err)
	}

	if err := os.Rename(tmpName, m.file); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace cache file: %w", err)
	}
	return nil
}

// Clear removes the cache file entirely. Clearing an absent cache is a
// no-op.
func (m *Manager) Clear() error {
	if err := os.Remove(m.file); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove cache file: %w", err)
	}
	return nil
}
