// Package config loads the per-project settings file .thicket/config.toml.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Dir is the per-project directory holding the index and the config file.
const Dir = ".thicket"

// FileName is the config file name inside Dir.
const FileName = "config.toml"

// Config is the project configuration. Zero values in a loaded file keep
// the defaults.
type Config struct {
	Index    Index    `toml:"index"`
	Packages Packages `toml:"packages"`
}

// Index controls the project index.
type Index struct {
	// StaleDirs are checked by NeedsRefresh; a newer mtime than the last
	// index means the inventory is stale.
	StaleDirs []string `toml:"stale_dirs"`
	// Parallel enables the worker pool during call-graph extraction.
	Parallel bool `toml:"parallel"`
	// Workers caps the pool; zero means GOMAXPROCS.
	Workers int `toml:"workers,omitempty"`
	// StrictCapabilities makes a language's unsupported node categories a
	// per-file failure instead of an empty result.
	StrictCapabilities bool `toml:"strict_capabilities"`
	// MaxFileBytes skips larger files during extraction; zero disables it.
	MaxFileBytes int64 `toml:"max_file_bytes,omitempty"`
	// SkipDirs are directory names never walked, in addition to VCS dirs.
	SkipDirs []string `toml:"skip_dirs,omitempty"`
}

// Packages controls the shared external package index.
type Packages struct {
	// CacheDir holds packages.db; empty means the user cache directory.
	CacheDir string `toml:"cache_dir,omitempty"`
	// Languages limits package indexing to these language keys.
	Languages []string `toml:"languages,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Index: Index{
			StaleDirs:    []string{"src", "lib", "crates", "pkg", "packages"},
			Parallel:     true,
			MaxFileBytes: 2 << 20,
		},
	}
}

// Path returns the config file location for a project root.
func Path(root string) string {
	return filepath.Join(root, Dir, FileName)
}

// Load reads the config for root over the defaults. A missing file is not
// an error.
func Load(root string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(Path(root))
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", Path(root), err)
	}
	return cfg, nil
}

// Write stores cfg as the config file for root, creating the directory.
func Write(root string, cfg Config) error {
	if err := os.MkdirAll(filepath.Join(root, Dir), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(Path(root), data, 0o644)
}

// PackageCacheDir returns the directory holding the shared package index.
func (c Config) PackageCacheDir() (string, error) {
	if c.Packages.CacheDir != "" {
		return c.Packages.CacheDir, nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("locate cache dir: %w", err)
	}
	return filepath.Join(base, "thicket"), nil
}
