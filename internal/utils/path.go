package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetConfigDir returns the path to the agentloop configuration directory.
// The directory is located inside the user's configuration directory
// as <UserConfigDir>/.agentloop, unless overridden by AGENTLOOP_CONFIG_HOME.
func GetConfigDir() (string, error) {
	if configHome := os.Getenv("AGENTLOOP_CONFIG_HOME"); configHome != "" {
		return configHome, nil
	}
	cfg, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(cfg, ".agentloop"), nil
}
