// Package wailsapp provides settings-related Wails bindings.
package wailsapp

import (
	"errors"
	"fmt"

	"github.com/tinyimage/tinyimage/internal/config"
	tihttp "github.com/tinyimage/tinyimage/internal/http"
	"github.com/tinyimage/tinyimage/internal/logging"
	"github.com/tinyimage/tinyimage/internal/platform"
	"github.com/tinyimage/tinyimage/internal/version"
)

// AppInfoDTO contains application version information.
type AppInfoDTO struct {
	Version     string `json:"version"`
	BuildTime   string `json:"buildTime"`
	LogFile     string `json:"logFile"`
	ContextMenu bool   `json:"contextMenu"` // whether this platform supports it

	// NeedsProxyPassword asks the UI to prompt for SetProxyPassword.
	NeedsProxyPassword bool `json:"needsProxyPassword"`
}

// GetAppInfo returns version, build time and log file location.
func (a *App) GetAppInfo() AppInfoDTO {
	return AppInfoDTO{
		Version:     version.Version,
		BuildTime:   version.BuildTime,
		LogFile:     logging.LogFilePath(),
		ContextMenu: platform.ContextMenuSupported(),

		NeedsProxyPassword: tihttp.NeedsProxyPassword(a.currentSettings().Proxy),
	}
}

// LoadSettings returns the settings in effect. The proxy password is never
// sent to the frontend.
func (a *App) LoadSettings() config.Settings {
	return *a.currentSettings()
}

// SaveSettings validates and persists s. Toggling ContextMenuEnabled
// registers or removes the Finder/Explorer entry.
func (a *App) SaveSettings(s config.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	dir, err := config.ResolveDirectory(s.OutputDirectory)
	if err != nil {
		return fmt.Errorf("invalid output directory: %w", err)
	}
	s.OutputDirectory = dir

	a.settingsMu.Lock()
	prev := a.settings
	// Password stays in memory only; the frontend never round-trips it.
	s.Proxy.Password = prev.Proxy.Password
	next := s.Clone()
	a.settingsMu.Unlock()

	if a.settingsPath != "" {
		if err := config.Save(next, a.settingsPath); err != nil {
			a.logger.Error().Err(err).Str("path", a.settingsPath).Msg("Failed to save settings")
			return fmt.Errorf("failed to save settings: %w", err)
		}
	}

	a.settingsMu.Lock()
	a.settings = next
	a.settingsMu.Unlock()

	a.logger.Info().
		Str("notify_mode", string(next.NotifyMode)).
		Str("output_mode", string(next.OutputMode)).
		Msg("Settings saved")

	if next.ContextMenuEnabled != prev.ContextMenuEnabled {
		if next.ContextMenuEnabled {
			return a.RegisterContextMenu()
		}
		return a.UnregisterContextMenu()
	}
	return nil
}

// SetProxyPassword sets the proxy password for this session.
func (a *App) SetProxyPassword(password string) {
	a.settingsMu.Lock()
	defer a.settingsMu.Unlock()
	a.settings.Proxy.Password = password
}

// RegisterContextMenu installs the "Compress with TinyImage" entry.
func (a *App) RegisterContextMenu() error {
	if err := a.shell.RegisterContextMenu(); err != nil {
		if errors.Is(err, platform.ErrUnsupported) {
			a.logger.Info().Msg("Context menu not supported on this platform")
		} else {
			a.logger.Error().Err(err).Msg("Failed to register context menu")
		}
		return err
	}
	a.logger.Info().Msg("Context menu registered")
	return nil
}

// UnregisterContextMenu removes the context menu entry.
func (a *App) UnregisterContextMenu() error {
	if err := a.shell.UnregisterContextMenu(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to unregister context menu")
		return err
	}
	a.logger.Info().Msg("Context menu unregistered")
	return nil
}
