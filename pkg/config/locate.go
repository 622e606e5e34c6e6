package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// dirName is the name of the config directory sbp looks for, both as a
// local project directory and under a user's home.
const dirName = ".sbp"

// locateConfigDir resolves the directory sbp reads config.toml from and
// writes it to. Search order, first hit wins:
//
//  1. override, if non-empty (the --config flag)
//  2. ./.sbp/ in the current working directory
//  3. $SBP_CONFIG_DIR
//  4. $XDG_CONFIG_HOME/sbp
//  5. ~/.sbp/
//
// If nothing exists yet, the home directory location is created so callers
// always get a writable path back.
func locateConfigDir(override string) (string, error) {
	if override != "" {
		return ensureDir(override)
	}

	if cwd, err := os.Getwd(); err == nil {
		local := filepath.Join(cwd, dirName)
		if info, err := os.Stat(local); err == nil && info.IsDir() {
			return filepath.Abs(local)
		}
	}

	for _, candidate := range []string{
		os.Getenv("SBP_CONFIG_DIR"),
		xdgConfigDir(),
	} {
		if candidate == "" {
			continue
		}
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return filepath.Abs(candidate)
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return ensureDir(filepath.Join(home, dirName))
}

func xdgConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		return ""
	}
	return filepath.Join(base, "sbp")
}

func ensureDir(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating sbp config directory %s: %w", dir, err)
	}
	return filepath.Abs(dir)
}
