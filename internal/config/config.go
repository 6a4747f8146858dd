// Package config loads the indexer configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the config file looked up in the workspace root.
const DefaultFileName = ".codeindex.yaml"

// Config is the on-disk configuration for one workspace.
type Config struct {
	// Workspace is the absolute path of the tree to index. Flags override
	// it; empty means the current directory.
	Workspace string `yaml:"workspace"`

	// DataDir holds the fingerprint cache and the sqlite database.
	// Defaults to <workspace>/.codeindex.
	DataDir string `yaml:"data_dir"`

	// IgnoreRules are gitignore-style patterns excluded from indexing.
	IgnoreRules []string `yaml:"ignore"`

	// Provider selects the embedding backend ("openai" or "local").
	Provider string `yaml:"provider"`

	// DebounceMS is the watcher quiet period in milliseconds.
	DebounceMS int `yaml:"debounce_ms"`

	// Workers bounds concurrent embedding calls during a full scan.
	Workers int `yaml:"workers"`
}

// Debounce converts the configured quiet period.
func (c Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// Load reads and parses a config file.
func Load(path string) (Config, error) {
	var cfg Config
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadWorkspace resolves the config for a workspace root. A missing
// config file is not an error; the zero config applies.
func LoadWorkspace(root string) (Config, error) {
	path := filepath.Join(root, DefaultFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Config{Workspace: root}, nil
	}
	cfg, err := Load(path)
	if err != nil {
		return Config{}, err
	}
	if cfg.Workspace == "" {
		cfg.Workspace = root
	}
	return cfg, nil
}
