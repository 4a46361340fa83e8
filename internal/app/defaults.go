package app

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	configPathEnv = "FOLIO_CONFIG_PATH"
	homeEnv       = "FOLIO_HOME"
)

// GetDefaults returns the default config_path, base_dir and log_dir.
// FOLIO_CONFIG_PATH (default ~/.config/folio.toml) and FOLIO_HOME
// (default ~/.local/share/folio) take precedence when set.
func GetDefaults() (map[string]string, error) {
	configPath, err := envOrHome(configPathEnv, ".config", "folio.toml")
	if err != nil {
		return nil, err
	}
	baseDir, err := envOrHome(homeEnv, ".local", "share", "folio")
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

func envOrHome(env string, elem ...string) (string, error) {
	if v := os.Getenv(env); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for %s: %w", env, err)
	}
	return filepath.Join(append([]string{home}, elem...)...), nil
}
