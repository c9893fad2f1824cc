package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tinyimage/tinyimage/internal/config"
	"github.com/tinyimage/tinyimage/internal/platform"
)

// newShell is replaced in tests.
var newShell = platform.New

func newContextMenuCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context-menu",
		Short: "Manage the \"" + platform.MenuLabel + "\" file manager entry",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "register",
		Short: "Add the entry for png, jpg and webp files",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newShell(GetLogger()).RegisterContextMenu(); err != nil {
				return fmt.Errorf("failed to register context menu: %w", err)
			}
			if err := saveContextMenuEnabled(true); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Context menu registered")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "unregister",
		Short: "Remove the entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newShell(GetLogger()).UnregisterContextMenu(); err != nil {
				return fmt.Errorf("failed to unregister context menu: %w", err)
			}
			if err := saveContextMenuEnabled(false); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Context menu unregistered")
			return nil
		},
	})

	return cmd
}

func saveContextMenuEnabled(enabled bool) error {
	path, err := settingsPath()
	if err != nil {
		return err
	}
	s, err := config.Load(path)
	if err != nil {
		GetLogger().Warn().Err(err).Msg("Existing settings unreadable, starting from defaults")
	}
	if s.ContextMenuEnabled == enabled {
		return nil
	}
	s.ContextMenuEnabled = enabled
	return config.Save(s, path)
}
