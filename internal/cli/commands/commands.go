// Package commands implements the promod subcommands.
package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/eamonbyrne/promoter-models/internal/cli/config"
)

// getConfig returns the loaded CLI configuration, or defaults when no
// configuration has been loaded (e.g. in tests).
func getConfig() *config.Config {
	if c := config.GetCurrentConfig(); c != nil {
		return c
	}
	return &config.Config{
		RootDir:   config.DefaultRootDir,
		DataDir:   config.DefaultDataDir,
		StatePath: config.DefaultStateFile,
	}
}

// ensureStateDir creates the state database's parent directory.
func ensureStateDir(statePath string) error {
	dir := filepath.Dir(statePath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
	}
	return nil
}
