// Package config provides settings management for TinyImage.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/tinyimage/tinyimage/internal/constants"
)

// NotifyMode selects how a finished batch is reported.
type NotifyMode string

const (
	NotifyDialog       NotifyMode = "dialog"
	NotifyNotification NotifyMode = "notification"
	NotifySilent       NotifyMode = "silent"
)

// OutputMode selects where compressed files are written.
type OutputMode string

const (
	OutputAlongside OutputMode = "alongside"
	OutputOverwrite OutputMode = "overwrite"
	OutputDirectory OutputMode = "directory"
)

// Theme is a UI-only preference persisted alongside the rest.
type Theme string

const (
	ThemeAuto  Theme = "auto"
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ProxyConfig holds outbound proxy settings for the Tinify client.
// The password is never written to disk; it comes from
// TINYIMAGE_PROXY_PASSWORD or is set at runtime.
type ProxyConfig struct {
	Mode     string `json:"mode"` // "no-proxy", "system", "basic", "ntlm"
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"-"`
	NoProxy  string `json:"noProxy"`
}

// Settings is the user-facing configuration. JSON tags match the web UI.
//
// INI format:
//
//	[tinify]
//	api_key = <key>
//	endpoint = https://api.tinify.com/shrink
//
//	[output]
//	mode = alongside
//	directory =
//
//	[notifications]
//	mode = notification
//
//	[integration]
//	context_menu_enabled = true
//
//	[appearance]
//	theme = auto
//
//	[batch]
//	grace_period_ms = 500
//	exit_delay_ms = 300
//
//	[proxy]
//	mode = no-proxy
type Settings struct {
	APIKey             string      `json:"apiKey"`
	Endpoint           string      `json:"endpoint"`
	NotifyMode         NotifyMode  `json:"notifyMode"`
	OutputMode         OutputMode  `json:"outputMode"`
	OutputDirectory    string      `json:"outputDirectory"`
	ContextMenuEnabled bool        `json:"contextMenuEnabled"`
	Theme              Theme       `json:"theme"`
	GracePeriodMs      int         `json:"gracePeriodMs"`
	ExitDelayMs        int         `json:"exitDelayMs"`
	Proxy              ProxyConfig `json:"proxy"`
}

// Validation errors
var (
	ErrInvalidNotifyMode = errors.New("notifications.mode must be dialog, notification or silent")
	ErrInvalidOutputMode = errors.New("output.mode must be alongside, overwrite or directory")
	ErrInvalidProxyMode  = errors.New("proxy.mode must be no-proxy, system, basic or ntlm")
	ErrInvalidTiming     = errors.New("batch timings must not be negative")
)

// Defaults returns the settings used when no file exists.
func Defaults() *Settings {
	return &Settings{
		Endpoint:   constants.TinifyShrinkURL,
		NotifyMode: NotifyNotification,
		OutputMode: OutputAlongside,
		// macOS registers its Services entry through Info.plist, so the
		// integration is always on there. Windows needs explicit registry writes.
		ContextMenuEnabled: runtime.GOOS == "darwin",
		Theme:              ThemeAuto,
		GracePeriodMs:      int(constants.BatchGracePeriod / time.Millisecond),
		ExitDelayMs:        int(constants.BackgroundExitDelay / time.Millisecond),
		Proxy:              ProxyConfig{Mode: "no-proxy"},
	}
}

// Clone returns a copy safe to hand to another goroutine.
func (s *Settings) Clone() *Settings {
	c := *s
	return &c
}

// GracePeriod returns the finalizer grace period.
func (s *Settings) GracePeriod() time.Duration {
	return time.Duration(s.GracePeriodMs) * time.Millisecond
}

// ExitDelay returns the delay before a background self-exit.
func (s *Settings) ExitDelay() time.Duration {
	return time.Duration(s.ExitDelayMs) * time.Millisecond
}

// Validate checks enumerated values. Missing API key and output directory
// are not validation errors here; the compressor reports them per file.
func (s *Settings) Validate() error {
	switch s.NotifyMode {
	case NotifyDialog, NotifyNotification, NotifySilent:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidNotifyMode, s.NotifyMode)
	}
	switch s.OutputMode {
	case OutputAlongside, OutputOverwrite, OutputDirectory:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOutputMode, s.OutputMode)
	}
	switch strings.ToLower(s.Proxy.Mode) {
	case "", "no-proxy", "system", "basic", "ntlm":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidProxyMode, s.Proxy.Mode)
	}
	if s.GracePeriodMs < 0 || s.ExitDelayMs < 0 {
		return ErrInvalidTiming
	}
	return nil
}

// Load reads settings from an INI file.
// A missing file yields defaults and no error. An unreadable or invalid
// file yields defaults together with the error so callers can log it.
func Load(path string) (*Settings, error) {
	cfg := Defaults()

	if path == "" {
		var err error
		path, err = DefaultSettingsPath()
		if err != nil {
			return cfg, nil
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return Defaults(), fmt.Errorf("failed to load settings: %w", err)
	}

	tinify := iniFile.Section("tinify")
	cfg.APIKey = strings.TrimSpace(tinify.Key("api_key").String())
	cfg.Endpoint = tinify.Key("endpoint").MustString(cfg.Endpoint)

	output := iniFile.Section("output")
	cfg.OutputMode = OutputMode(output.Key("mode").MustString(string(cfg.OutputMode)))
	cfg.OutputDirectory = output.Key("directory").String()

	cfg.NotifyMode = NotifyMode(iniFile.Section("notifications").Key("mode").MustString(string(cfg.NotifyMode)))
	cfg.ContextMenuEnabled = iniFile.Section("integration").Key("context_menu_enabled").MustBool(cfg.ContextMenuEnabled)
	cfg.Theme = Theme(iniFile.Section("appearance").Key("theme").MustString(string(cfg.Theme)))

	batch := iniFile.Section("batch")
	cfg.GracePeriodMs = batch.Key("grace_period_ms").MustInt(cfg.GracePeriodMs)
	cfg.ExitDelayMs = batch.Key("exit_delay_ms").MustInt(cfg.ExitDelayMs)

	proxy := iniFile.Section("proxy")
	cfg.Proxy.Mode = proxy.Key("mode").MustString(cfg.Proxy.Mode)
	cfg.Proxy.Host = proxy.Key("host").String()
	cfg.Proxy.Port = proxy.Key("port").MustInt(0)
	cfg.Proxy.User = proxy.Key("user").String()
	cfg.Proxy.NoProxy = proxy.Key("no_proxy").String()
	cfg.Proxy.Password = os.Getenv("TINYIMAGE_PROXY_PASSWORD")

	if err := cfg.Validate(); err != nil {
		return Defaults(), err
	}

	return cfg, nil
}

// Save writes settings to an INI file.
// Creates parent directories if they don't exist. The API key is stored in
// the file, so it is written with owner-only permissions.
func Save(cfg *Settings, path string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if path == "" {
		var err error
		path, err = DefaultSettingsPath()
		if err != nil {
			return fmt.Errorf("failed to determine settings path: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	iniFile := ini.Empty()

	sections := []struct {
		name   string
		values [][2]string
	}{
		{"tinify", [][2]string{
			{"api_key", cfg.APIKey},
			{"endpoint", cfg.Endpoint},
		}},
		{"output", [][2]string{
			{"mode", string(cfg.OutputMode)},
			{"directory", cfg.OutputDirectory},
		}},
		{"notifications", [][2]string{
			{"mode", string(cfg.NotifyMode)},
		}},
		{"integration", [][2]string{
			{"context_menu_enabled", fmt.Sprintf("%t", cfg.ContextMenuEnabled)},
		}},
		{"appearance", [][2]string{
			{"theme", string(cfg.Theme)},
		}},
		{"batch", [][2]string{
			{"grace_period_ms", fmt.Sprintf("%d", cfg.GracePeriodMs)},
			{"exit_delay_ms", fmt.Sprintf("%d", cfg.ExitDelayMs)},
		}},
		{"proxy", [][2]string{
			{"mode", cfg.Proxy.Mode},
			{"host", cfg.Proxy.Host},
			{"port", fmt.Sprintf("%d", cfg.Proxy.Port)},
			{"user", cfg.Proxy.User},
			{"no_proxy", cfg.Proxy.NoProxy},
		}},
	}

	for _, s := range sections {
		section, err := iniFile.NewSection(s.name)
		if err != nil {
			return fmt.Errorf("failed to create %s section: %w", s.name, err)
		}
		for _, kv := range s.values {
			section.Key(kv[0]).SetValue(kv[1])
		}
	}

	// Temporary file + rename for atomicity
	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set settings permissions: %w", err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save settings: %w", err)
	}

	return nil
}
