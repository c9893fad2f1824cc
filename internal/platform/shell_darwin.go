//go:build darwin

package platform

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework Cocoa
#import <Cocoa/Cocoa.h>

static void setActivationPolicyAccessory(void) {
	dispatch_async(dispatch_get_main_queue(), ^{
		[NSApp setActivationPolicy:NSApplicationActivationPolicyAccessory];
	});
}
*/
import "C"

import (
	"os"
	"os/exec"

	"github.com/tinyimage/tinyimage/internal/logging"
)

const pbsPath = "/System/Library/CoreServices/pbs"

type darwinShell struct {
	logger *logging.Logger
}

func newShell(logger *logging.Logger) Shell {
	return &darwinShell{logger: logger.Component("platform")}
}

// HideDockIcon switches the app to the accessory activation policy.
func (s *darwinShell) HideDockIcon() error {
	C.setActivationPolicyAccessory()
	return nil
}

// RegisterContextMenu relies on the NSServices entry in Info.plist. It only
// removes legacy Automator workflows and flushes the services cache.
func (s *darwinShell) RegisterContextMenu() error {
	s.cleanupLegacyWorkflows()

	if out, err := exec.Command(pbsPath, "-flush").CombinedOutput(); err != nil {
		s.logger.Warn().Err(err).Str("output", string(out)).Msg("pbs -flush failed")
	}
	return nil
}

// UnregisterContextMenu removes legacy workflows. The Info.plist service
// entry cannot be removed at runtime.
func (s *darwinShell) UnregisterContextMenu() error {
	s.cleanupLegacyWorkflows()
	return nil
}

func (s *darwinShell) cleanupLegacyWorkflows() {
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	for _, dir := range legacyWorkflowDirs(home) {
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			s.logger.Warn().Err(err).Str("path", dir).Msg("Failed to remove legacy workflow")
			continue
		}
		s.logger.Info().Str("path", dir).Msg("Removed legacy workflow")
	}
}
