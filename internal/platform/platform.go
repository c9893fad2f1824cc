// Package platform isolates OS shell integration: Dock visibility on macOS
// and the right-click "Compress with TinyImage" entry on macOS and Windows.
// The rest of the module never branches on GOOS.
package platform

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/tinyimage/tinyimage/internal/constants"
	"github.com/tinyimage/tinyimage/internal/invocation"
	"github.com/tinyimage/tinyimage/internal/logging"
)

// ErrUnsupported is returned when the current OS has no such integration.
var ErrUnsupported = errors.New("not supported on this platform")

// MenuLabel is the context-menu entry text.
const MenuLabel = "Compress with " + constants.AppName

// Shell is the OS integration surface used by the lifecycle controller and
// the settings UI.
type Shell interface {
	// HideDockIcon removes the app from the Dock / app switcher.
	HideDockIcon() error
	// RegisterContextMenu installs the right-click compress entry.
	RegisterContextMenu() error
	// UnregisterContextMenu removes it.
	UnregisterContextMenu() error
}

// New returns the Shell for the running OS.
func New(logger *logging.Logger) Shell {
	if logger == nil {
		logger = logging.Nop()
	}
	return newShell(logger)
}

// ContextMenuSupported reports whether the running OS has a context menu
// integration.
func ContextMenuSupported() bool {
	return runtime.GOOS == "darwin" || runtime.GOOS == "windows"
}

// contextMenuKeyPath is the per-extension verb key under HKEY_CURRENT_USER.
func contextMenuKeyPath(ext string) string {
	return fmt.Sprintf(`Software\Classes\SystemFileAssociations\.%s\shell\%s`, ext, constants.AppName)
}

// contextMenuCommand is the verb command line. Explorer substitutes %1 and
// starts one process per selected file.
func contextMenuCommand(exe string) string {
	return fmt.Sprintf(`"%s" %s "%%1"`, exe, invocation.CompressFlag)
}

// legacyWorkflowDirs lists Automator workflows installed by older releases.
func legacyWorkflowDirs(home string) []string {
	names := []string{"用TinyImage压缩", constants.AppName}
	dirs := make([]string, 0, len(names))
	for _, name := range names {
		dirs = append(dirs, filepath.Join(home, "Library", "Services", name+".workflow"))
	}
	return dirs
}

// NopShell does nothing. Used by the headless CLI and tests.
type NopShell struct{}

func (NopShell) HideDockIcon() error          { return nil }
func (NopShell) RegisterContextMenu() error   { return ErrUnsupported }
func (NopShell) UnregisterContextMenu() error { return nil }
