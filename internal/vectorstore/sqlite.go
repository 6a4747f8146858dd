package vectorstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// SQLite is the persistent Store implementation. One database file holds
// one collection: a metadata row with the completion marker plus the
// vectors stored per path. Similarity search is computed in Go over the
// stored blobs.
type SQLite struct {
	dbPath string
	db     *sql.DB
}

// NewSQLite returns a store backed by the database file at dbPath. The
// database is not opened until Initialize.
func NewSQLite(dbPath string) *SQLite {
	return &SQLite{dbPath: dbPath}
}

const schema = `
CREATE TABLE IF NOT EXISTS collection_meta (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	complete INTEGER NOT NULL DEFAULT 0,
	updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS document_vectors (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	path TEXT NOT NULL,
	position INTEGER NOT NULL,
	dimension INTEGER NOT NULL,
	vector BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_document_vectors_path ON document_vectors(path);
`

// Initialize opens the database, applies the schema, and reports whether a
// collection already existed. No destructive work happens here.
func (s *SQLite) Initialize(ctx context.Context) (bool, error) {
	if s.db != nil {
		return true, nil
	}

	db, err := sql.Open(DriverName, s.dbPath)
	if err != nil {
		return false, fmt.Errorf("open database: %w", err)
	}

	// SQLite benefits from a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return false, fmt.Errorf("enable WAL mode: %w", err)
	}

	var existing bool
	row := db.QueryRowContext(ctx,
		"SELECT COUNT(*) > 0 FROM sqlite_master WHERE type = 'table' AND name = 'collection_meta'")
	if err := row.Scan(&existing); err != nil {
		_ = db.Close()
		return false, fmt.Errorf("inspect schema: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return false, fmt.Errorf("apply schema: %w", err)
	}
	if _, err := db.ExecContext(ctx,
		"INSERT OR IGNORE INTO collection_meta (id, complete) VALUES (1, 0)"); err != nil {
		_ = db.Close()
		return false, fmt.Errorf("seed collection metadata: %w", err)
	}

	s.db = db
	return existing, nil
}

// HasIndexedData reports whether the collection was marked complete and
// holds at least one vector.
func (s *SQLite) HasIndexedData(ctx context.Context) (bool, error) {
	if s.db == nil {
		return false, ErrNotInitialized
	}

	var complete bool
	row := s.db.QueryRowContext(ctx, "SELECT complete FROM collection_meta WHERE id = 1")
	if err := row.Scan(&complete); err != nil {
		return false, fmt.Errorf("read completion marker: %w", err)
	}
	if !complete {
		return false, nil
	}

	var count int
	row = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM document_vectors")
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("count vectors: %w", err)
	}
	return count > 0, nil
}

// Upsert replaces all vectors stored for path within one transaction.
func (s *SQLite) Upsert(ctx context.Context, path string, vectors [][]float32) error {
	if s.db == nil {
		return ErrNotInitialized
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM document_vectors WHERE path = ?", path); err != nil {
		return fmt.Errorf("clear old vectors: %w", err)
	}
	for i, v := range vectors {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO document_vectors (path, position, dimension, vector) VALUES (?, ?, ?, ?)",
			path, i, len(v), serializeVector(v)); err != nil {
			return fmt.Errorf("insert vector %d for %s: %w", i, path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

// DeleteByPath removes all vectors for path.
func (s *SQLite) DeleteByPath(ctx context.Context, path string) error {
	if s.db == nil {
		return ErrNotInitialized
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM document_vectors WHERE path = ?", path); err != nil {
		return fmt.Errorf("delete vectors for %s: %w", path, err)
	}
	return nil
}

// ClearCollection removes every stored vector and resets the completion
// marker.
func (s *SQLite) ClearCollection(ctx context.Context) error {
	if s.db == nil {
		return ErrNotInitialized
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM document_vectors"); err != nil {
		return fmt.Errorf("clear vectors: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE collection_meta SET complete = 0, updated_at = datetime('now') WHERE id = 1"); err != nil {
		return fmt.Errorf("reset completion marker: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear: %w", err)
	}
	return nil
}

// MarkIndexingIncomplete flags the collection as mid-write.
func (s *SQLite) MarkIndexingIncomplete(ctx context.Context) error {
	return s.setComplete(ctx, false)
}

// MarkIndexingComplete flags the collection as fully written.
func (s *SQLite) MarkIndexingComplete(ctx context.Context) error {
	return s.setComplete(ctx, true)
}

func (s *SQLite) setComplete(ctx context.Context, complete bool) error {
	if s.db == nil {
		return ErrNotInitialized
	}
	if _, err := s.db.ExecContext(ctx,
		"UPDATE collection_meta SET complete = ?, updated_at = datetime('now') WHERE id = 1",
		complete); err != nil {
		return fmt.Errorf("update completion marker: %w", err)
	}
	return nil
}

// Search scans every stored vector and ranks paths by their best cosine
// similarity to the query. Vectors with a mismatched dimension are skipped.
func (s *SQLite) Search(ctx context.Context, vector []float32, limit int) ([]SearchResult, error) {
	if s.db == nil {
		return nil, ErrNotInitialized
	}
	if limit <= 0 {
		return []SearchResult{}, nil
	}

	rows, err := s.db.QueryContext(ctx, "SELECT path, vector FROM document_vectors")
	if err != nil {
		return nil, fmt.Errorf("query vectors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	best := make(map[string]float64)
	for rows.Next() {
		var path string
		var blob []byte
		if err := rows.Scan(&path, &blob); err != nil {
			return nil, fmt.Errorf("scan vector row: %w", err)
		}
		stored := deserializeVector(blob)
		if len(stored) != len(vector) {
			continue
		}
		score := CosineSimilarity(vector, stored)
		if prev, ok := best[path]; !ok || score > prev {
			best[path] = score
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(best))
	for path, score := range best {
		results = append(results, SearchResult{Path: path, Score: score})
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

// Close releases the database connection. Closing an unopened store is a
// no-op.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// serializeVector converts a float32 slice to a little-endian byte blob.
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a little-endian byte blob back to float32s.
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vector
}
