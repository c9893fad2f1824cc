//go:build windows

package platform

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/windows/registry"

	"github.com/tinyimage/tinyimage/internal/invocation"
	"github.com/tinyimage/tinyimage/internal/logging"
)

type windowsShell struct {
	logger *logging.Logger
}

func newShell(logger *logging.Logger) Shell {
	return &windowsShell{logger: logger.Component("platform")}
}

// HideDockIcon is a no-op; a hidden Wails window has no taskbar button.
func (s *windowsShell) HideDockIcon() error {
	return nil
}

// RegisterContextMenu writes a per-user shell verb for every image extension.
func (s *windowsShell) RegisterContextMenu() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate executable: %w", err)
	}

	for _, ext := range invocation.ImageExtensions {
		keyPath := contextMenuKeyPath(ext)

		key, _, err := registry.CreateKey(registry.CURRENT_USER, keyPath, registry.SET_VALUE)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", keyPath, err)
		}
		err = key.SetStringValue("", MenuLabel)
		if err == nil {
			err = key.SetStringValue("Icon", exe+",0")
		}
		key.Close()
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", keyPath, err)
		}

		cmdKey, _, err := registry.CreateKey(registry.CURRENT_USER, keyPath+`\command`, registry.SET_VALUE)
		if err != nil {
			return fmt.Errorf("failed to create %s\\command: %w", keyPath, err)
		}
		err = cmdKey.SetStringValue("", contextMenuCommand(exe))
		cmdKey.Close()
		if err != nil {
			return fmt.Errorf("failed to write %s\\command: %w", keyPath, err)
		}
	}

	s.logger.Info().Str("exe", exe).Msg("Context menu registered")
	return nil
}

// UnregisterContextMenu deletes the verb keys. Missing keys are ignored.
func (s *windowsShell) UnregisterContextMenu() error {
	for _, ext := range invocation.ImageExtensions {
		keyPath := contextMenuKeyPath(ext)
		// DeleteKey refuses keys with subkeys, so remove command first
		for _, p := range []string{keyPath + `\command`, keyPath} {
			if err := registry.DeleteKey(registry.CURRENT_USER, p); err != nil && !errors.Is(err, registry.ErrNotExist) {
				s.logger.Warn().Err(err).Str("key", p).Msg("Failed to delete registry key")
			}
		}
	}
	s.logger.Info().Msg("Context menu unregistered")
	return nil
}
