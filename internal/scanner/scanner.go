// Package scanner walks a workspace tree, fingerprints its files, and diffs
// the result against a previously persisted snapshot to determine which
// files need (re)indexing and which indexed files no longer exist.
package scanner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"

	"codeindex/internal/cache"
	"codeindex/pkg/types"
)

// Result is the outcome of a single scan pass.
type Result struct {
	// Changed lists files with no cache entry or a different fingerprint,
	// sorted by path.
	Changed []types.FileRecord
	// Deleted lists cached paths with no corresponding file on disk,
	// sorted by path.
	Deleted []string
	// Scanned is the total number of files visited.
	Scanned int
}

// Scanner walks one workspace root. A scan never mutates the fingerprint
// cache; committing an updated snapshot is the caller's responsibility.
type Scanner struct {
	root    string
	matcher *gitignore.GitIgnore
}

// Directories never descended into, independent of user ignore rules.
var skipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	"vendor":       true,
}

// New returns a Scanner for root applying the given gitignore-style rules.
func New(root string, rules []string) *Scanner {
	return &Scanner{
		root:    filepath.Clean(root),
		matcher: gitignore.CompileIgnoreLines(rules...),
	}
}

// Ignored reports whether the workspace-relative path is excluded by the
// scanner's ignore rules or built-in skip list.
func (s *Scanner) Ignored(relPath string) bool {
	rel := filepath.ToSlash(relPath)
	for _, part := range strings.Split(rel, "/") {
		if skipDirs[part] || strings.HasPrefix(part, ".") {
			return true
		}
	}
	return s.matcher.MatchesPath(rel)
}

// Scan walks the tree once, fingerprints every eligible file, and diffs
// against previous. Paths in the result are workspace-relative with forward
// slashes.
func (s *Scanner) Scan(ctx context.Context, previous cache.Snapshot) (*Result, error) {
	res := &Result{}
	seen := make(map[string]bool, len(previous))

	err := filepath.WalkDir(s.root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if entry.IsDir() {
			if path == s.root {
				return nil
			}
			name := entry.Name()
			if skipDirs[name] || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			if rel, err := filepath.Rel(s.root, path); err == nil {
				if s.matcher.MatchesPath(filepath.ToSlash(rel)) {
					return filepath.SkipDir
				}
			}
			return nil
		}

		if !entry.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if s.matcher.MatchesPath(rel) || hasHiddenComponent(rel) {
			return nil
		}

		res.Scanned++
		seen[rel] = true

		fp, err := Fingerprint(path)
		if err != nil {
			return fmt.Errorf("fingerprint %s: %w", rel, err)
		}
		if previous[rel] != fp {
			res.Changed = append(res.Changed, types.FileRecord{Path: rel, Fingerprint: fp})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for rel := range previous {
		if !seen[rel] {
			res.Deleted = append(res.Deleted, rel)
		}
	}

	sort.Slice(res.Changed, func(i, j int) bool { return res.Changed[i].Path < res.Changed[j].Path })
	sort.Strings(res.Deleted)
	return res, nil
}

// Fingerprint computes the SHA-256 content hash of the file at path,
// hex-encoded. The hash is used purely for change detection.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func hasHiddenComponent(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
