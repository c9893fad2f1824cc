package cli

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tinyimage/tinyimage/internal/config"
)

// settingKeys maps `config set` keys to setters.
var settingKeys = map[string]func(s *config.Settings, v string) error{
	"api-key":  func(s *config.Settings, v string) error { s.APIKey = strings.TrimSpace(v); return nil },
	"endpoint": func(s *config.Settings, v string) error { s.Endpoint = v; return nil },
	"output-mode": func(s *config.Settings, v string) error {
		s.OutputMode = config.OutputMode(v)
		return nil
	},
	"output-dir": func(s *config.Settings, v string) error {
		dir, err := config.ResolveDirectory(v)
		s.OutputDirectory = dir
		return err
	},
	"notify-mode": func(s *config.Settings, v string) error {
		s.NotifyMode = config.NotifyMode(v)
		return nil
	},
	"context-menu": func(s *config.Settings, v string) error {
		b, err := strconv.ParseBool(v)
		s.ContextMenuEnabled = b
		return err
	},
	"theme":           func(s *config.Settings, v string) error { s.Theme = config.Theme(v); return nil },
	"grace-period-ms": intSetter(func(s *config.Settings, n int) { s.GracePeriodMs = n }),
	"exit-delay-ms":   intSetter(func(s *config.Settings, n int) { s.ExitDelayMs = n }),
	"proxy-mode":      func(s *config.Settings, v string) error { s.Proxy.Mode = v; return nil },
	"proxy-host":      func(s *config.Settings, v string) error { s.Proxy.Host = v; return nil },
	"proxy-port":      intSetter(func(s *config.Settings, n int) { s.Proxy.Port = n }),
	"proxy-user":      func(s *config.Settings, v string) error { s.Proxy.User = v; return nil },
	"no-proxy":        func(s *config.Settings, v string) error { s.Proxy.NoProxy = v; return nil },
}

func intSetter(set func(s *config.Settings, n int)) func(*config.Settings, string) error {
	return func(s *config.Settings, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("not a number: %q", v)
		}
		set(s, n)
		return nil
	}
}

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage TinyImage settings",
		Long: `Settings management commands for tinyimage.

Commands:
  show  - Display current settings
  set   - Change one setting
  path  - Show settings file path`,
	}

	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigSetCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, path, err := loadSettings()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Settings file: %s\n\n", path)
			printSettings(cmd.OutOrStdout(), s)
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	keys := make([]string, 0, len(settingKeys))
	for k := range settingKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return &cobra.Command{
		Use:       "set <key> <value>",
		Short:     "Change one setting",
		Long:      "Change one setting and save it.\n\nKeys: " + strings.Join(keys, ", "),
		Args:      cobra.ExactArgs(2),
		ValidArgs: keys,
		RunE: func(cmd *cobra.Command, args []string) error {
			set, ok := settingKeys[args[0]]
			if !ok {
				return fmt.Errorf("unknown setting %q (valid: %s)", args[0], strings.Join(keys, ", "))
			}

			path, err := settingsPath()
			if err != nil {
				return err
			}
			// Load without --api-key so the override is never persisted
			s, err := config.Load(path)
			if err != nil {
				GetLogger().Warn().Err(err).Msg("Existing settings unreadable, starting from defaults")
			}
			if err := set(s, args[1]); err != nil {
				return fmt.Errorf("invalid value for %s: %w", args[0], err)
			}
			if err := config.Save(s, path); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s updated\n", args[0])
			return nil
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show settings file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := settingsPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func printSettings(w io.Writer, s *config.Settings) {
	rows := [][2]string{
		{"api-key", maskKey(s.APIKey)},
		{"endpoint", s.Endpoint},
		{"output-mode", string(s.OutputMode)},
		{"output-dir", s.OutputDirectory},
		{"notify-mode", string(s.NotifyMode)},
		{"context-menu", strconv.FormatBool(s.ContextMenuEnabled)},
		{"theme", string(s.Theme)},
		{"grace-period-ms", strconv.Itoa(s.GracePeriodMs)},
		{"exit-delay-ms", strconv.Itoa(s.ExitDelayMs)},
		{"proxy-mode", s.Proxy.Mode},
	}
	if s.Proxy.Mode != "no-proxy" && s.Proxy.Mode != "system" {
		rows = append(rows,
			[2]string{"proxy-host", s.Proxy.Host},
			[2]string{"proxy-port", strconv.Itoa(s.Proxy.Port)},
			[2]string{"proxy-user", s.Proxy.User},
		)
	}
	rows = append(rows, [2]string{"no-proxy", s.Proxy.NoProxy})

	for _, r := range rows {
		fmt.Fprintf(w, "  %-16s %s\n", r[0]+":", r[1])
	}
}

// maskKey shows only the last four characters of an API key.
func maskKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}
