// Package notify provides cross-platform desktop notifications for TinyImage.
// It uses github.com/gen2brain/beeep for cross-platform notification support.
package notify

import (
	"sync"

	"github.com/gen2brain/beeep"

	"github.com/tinyimage/tinyimage/internal/constants"
	"github.com/tinyimage/tinyimage/internal/logging"
)

// maxMessageLen keeps notification bodies within what every platform shows.
const maxMessageLen = 200

// Notifier handles desktop notifications.
type Notifier struct {
	logger  *logging.Logger
	enabled bool
	send    func(title, message string) error
	mu      sync.RWMutex
}

// NewNotifier creates a notifier that posts through the OS notification center.
func NewNotifier(logger *logging.Logger) *Notifier {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Notifier{
		logger:  logger,
		enabled: true,
		// beeep.Notify is cross-platform:
		// - Windows: Uses toast notifications
		// - macOS: Uses NSUserNotificationCenter
		// - Linux: Uses D-Bus notifications
		send: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}
}

// NewNotifierWithSender creates a notifier that delivers through send.
// Used by tests and headless builds.
func NewNotifierWithSender(send func(title, message string) error, logger *logging.Logger) *Notifier {
	n := NewNotifier(logger)
	n.send = send
	return n
}

// SetEnabled enables or disables notifications.
func (n *Notifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// IsEnabled returns whether notifications are enabled.
func (n *Notifier) IsEnabled() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.enabled
}

// BatchComplete posts the batch result message.
func (n *Notifier) BatchComplete(message string) error {
	if !n.IsEnabled() || message == "" {
		return nil
	}

	if err := n.send(constants.AppName, truncate(message, maxMessageLen)); err != nil {
		n.logger.Warn().Err(err).Msg("Failed to send batch notification")
		return err
	}
	return nil
}

// truncate shortens a string to maxLen bytes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
