package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"codeindex/internal/embedder"
	"codeindex/internal/orchestrator"
	"codeindex/internal/state"
	"codeindex/internal/vectorstore"
)

// IndexingTestSuite exercises the full pipeline against the SQLite store
// and the local embedding provider.
type IndexingTestSuite struct {
	suite.Suite
	ctx     context.Context
	root    string
	dataDir string
}

// SetupTest runs before each test
func (s *IndexingTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.root = s.T().TempDir()
	s.dataDir = s.T().TempDir()

	s.writeFile("main.go", "package main\n\nfunc main() {}\n")
	s.writeFile("internal/auth/service.go", "package auth\n\n// AuthenticateUser checks credentials.\n")
}

func (s *IndexingTestSuite) writeFile(rel, content string) {
	path := filepath.Join(s.root, filepath.FromSlash(rel))
	s.Require().NoError(os.MkdirAll(filepath.Dir(path), 0o755))
	s.Require().NoError(os.WriteFile(path, []byte(content), 0o644))
}

// newOrchestrator wires a fresh orchestrator over the suite's workspace.
// The returned store must be closed by the caller.
func (s *IndexingTestSuite) newOrchestrator() (*orchestrator.Orchestrator, *vectorstore.SQLite) {
	emb, err := embedder.New(embedder.Config{Provider: embedder.ProviderLocal})
	s.Require().NoError(err)

	store := vectorstore.NewSQLite(filepath.Join(s.dataDir, "codeindex.db"))

	orch := orchestrator.New(orchestrator.Config{
		Configured:    true,
		WorkspaceRoot: s.root,
		DataDir:       s.dataDir,
		Debounce:      50 * time.Millisecond,
		Workers:       2,
	}, store, emb, state.NewManager())
	return orch, store
}

func (s *IndexingTestSuite) status(orch *orchestrator.Orchestrator) state.Status {
	status, _ := orch.States().State()
	return status
}

func (s *IndexingTestSuite) searchPaths(orch *orchestrator.Orchestrator, query string) []string {
	results, err := orch.Search(s.ctx, query, 10)
	s.Require().NoError(err)
	paths := make([]string, 0, len(results))
	for _, r := range results {
		paths = append(paths, r.Path)
	}
	return paths
}

// TestFullIndexThenSearch indexes a fresh workspace and searches it.
func (s *IndexingTestSuite) TestFullIndexThenSearch() {
	orch, store := s.newOrchestrator()
	defer func() { _ = store.Close() }()
	defer orch.StopWatcher()

	s.Require().NoError(orch.StartIndexing(s.ctx))
	s.Equal(state.StatusIndexed, s.status(orch))

	progress := orch.States().Progress()
	s.Equal(2, progress.Queued)
	s.Equal(2, progress.Processed)
	s.Zero(progress.Failed)

	paths := s.searchPaths(orch, "authentication")
	s.Contains(paths, "internal/auth/service.go")
	s.Contains(paths, "main.go")
}

// TestRestartResumesWithoutRescan restarts over a completed index and
// verifies the full scan is skipped.
func (s *IndexingTestSuite) TestRestartResumesWithoutRescan() {
	orch, store := s.newOrchestrator()
	s.Require().NoError(orch.StartIndexing(s.ctx))
	orch.StopWatcher()
	s.Require().NoError(store.Close())

	orch2, store2 := s.newOrchestrator()
	defer func() { _ = store2.Close() }()
	defer orch2.StopWatcher()

	s.Require().NoError(orch2.StartIndexing(s.ctx))
	s.Equal(state.StatusIndexed, s.status(orch2))

	// The resume path reports no file queue activity.
	progress := orch2.States().Progress()
	s.Zero(progress.Queued)
	s.Zero(progress.Processed)

	// The prior index still serves searches.
	s.Contains(s.searchPaths(orch2, "authentication"), "internal/auth/service.go")
}

// TestWatcherIndexesNewFile verifies a file created after indexing becomes
// searchable without a new StartIndexing call.
func (s *IndexingTestSuite) TestWatcherIndexesNewFile() {
	orch, store := s.newOrchestrator()
	defer func() { _ = store.Close() }()
	defer orch.StopWatcher()

	s.Require().NoError(orch.StartIndexing(s.ctx))
	s.writeFile("added.go", "package main\n\n// added later\n")

	s.Require().Eventually(func() bool {
		results, err := orch.Search(s.ctx, "added", 10)
		if err != nil {
			return false
		}
		for _, r := range results {
			if r.Path == "added.go" {
				return true
			}
		}
		return false
	}, 5*time.Second, 50*time.Millisecond)
}

// TestDeletedFileDropsFromIndex removes a file between runs and verifies
// the next scan drops its vectors.
func (s *IndexingTestSuite) TestDeletedFileDropsFromIndex() {
	orch, store := s.newOrchestrator()
	s.Require().NoError(orch.StartIndexing(s.ctx))
	orch.StopWatcher()

	// Force the rescan path by leaving the completion marker unset.
	s.Require().NoError(store.MarkIndexingIncomplete(s.ctx))
	s.Require().NoError(store.Close())

	s.Require().NoError(os.Remove(filepath.Join(s.root, "main.go")))

	orch2, store2 := s.newOrchestrator()
	defer func() { _ = store2.Close() }()
	defer orch2.StopWatcher()

	s.Require().NoError(orch2.StartIndexing(s.ctx))
	s.Equal(state.StatusIndexed, s.status(orch2))
	s.NotContains(s.searchPaths(orch2, "main"), "main.go")
}

func TestIndexingSuite(t *testing.T) {
	suite.Run(t, new(IndexingTestSuite))
}
