//go:build !darwin && !windows

package platform

import "github.com/tinyimage/tinyimage/internal/logging"

type otherShell struct{}

func newShell(*logging.Logger) Shell {
	return otherShell{}
}

func (otherShell) HideDockIcon() error          { return nil }
func (otherShell) RegisterContextMenu() error   { return ErrUnsupported }
func (otherShell) UnregisterContextMenu() error { return nil }
