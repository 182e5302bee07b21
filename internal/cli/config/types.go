// Package config provides configuration management for the promod CLI.
//
// Configuration is layered: defaults, then promod.yaml, then PROMOD_*
// environment variables, then command-line flags.
package config

import "path/filepath"

// Config holds all CLI configuration options.
type Config struct {
	// RootDir is the artifacts directory holding saved_models/ and
	// summaries/.
	RootDir string `koanf:"root_dir"`
	// DataDir is the dataset directory, one subdirectory per dataset
	// plus the shared common/ cache.
	DataDir string `koanf:"data_dir"`
	// StatePath is the SQLite run-registry database path.
	StatePath string `koanf:"state_path"`
	Verbose   bool   `koanf:"verbose"`
}

// Default configuration values.
const (
	DefaultRootDir   = "artifacts"
	DefaultDataDir   = "data"
	DefaultStateFile = ".promod/state.db"
)

// SavedModelsDir returns the per-run checkpoint directory root.
func (c *Config) SavedModelsDir() string {
	return filepath.Join(c.RootDir, "saved_models")
}

// SummariesDir returns the directory summary JSON files are written to.
func (c *Config) SummariesDir() string {
	return filepath.Join(c.RootDir, "summaries")
}
