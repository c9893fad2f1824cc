package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tinyimage/tinyimage/internal/constants"
)

// ConfigDirectory returns the per-user application directory.
//
// Locations:
//   - Windows: %AppData%\TinyImage
//   - macOS: ~/Library/Application Support/TinyImage
//   - Linux: $XDG_CONFIG_HOME/TinyImage (or ~/.config/TinyImage)
func ConfigDirectory() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		home, herr := os.UserHomeDir()
		if herr != nil {
			return "", fmt.Errorf("failed to determine config directory: %w", err)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, constants.AppName), nil
}

// DefaultSettingsPath returns the settings file location.
func DefaultSettingsPath() (string, error) {
	dir, err := ConfigDirectory()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "settings.ini"), nil
}

// LogDirectory returns the directory for rotating log files.
// Falls back to the temp directory when no config directory is available.
func LogDirectory() string {
	dir, err := ConfigDirectory()
	if err != nil {
		return filepath.Join(os.TempDir(), "tinyimage-logs")
	}
	return filepath.Join(dir, "logs")
}

// SocketPath returns the Unix domain socket the primary instance listens on.
func SocketPath() (string, error) {
	dir, err := ConfigDirectory()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "tinyimage.sock"), nil
}

// ResolveDirectory turns a user-entered output directory into an absolute
// path. A leading ~ is expanded and symlinks (or Windows junctions, such as
// a redirected Pictures folder) are resolved in the part that exists; the
// rest is appended unchanged so the directory can be created later.
func ResolveDirectory(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = home + path[1:]
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(absPath); err == nil {
		return resolved, nil
	}

	// Walk up to the deepest existing ancestor
	current := absPath
	var missing []string
	for {
		if _, err := os.Stat(current); err == nil {
			resolved, err := filepath.EvalSymlinks(current)
			if err != nil {
				resolved = current
			}
			for i := len(missing) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, missing[i])
			}
			return resolved, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return absPath, nil
		}
		missing = append(missing, filepath.Base(current))
		current = parent
	}
}
