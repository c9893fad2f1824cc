// Package lifecycle owns background mode and the process's irreversible
// effects: hiding the Dock icon, posting the batch result and exiting.
package lifecycle

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tinyimage/tinyimage/internal/config"
	"github.com/tinyimage/tinyimage/internal/logging"
	"github.com/tinyimage/tinyimage/internal/platform"
	"github.com/tinyimage/tinyimage/internal/state"
)

// SystemNotifier posts to the OS notification center.
type SystemNotifier interface {
	BatchComplete(message string) error
}

// DialogPublisher asks the UI to show an in-app result dialog.
type DialogPublisher interface {
	PublishResultDialog(message string)
}

// Options configures a Controller.
type Options struct {
	State    *state.CoordinatorState
	Shell    platform.Shell
	Notifier SystemNotifier
	Dialogs  DialogPublisher
	// Exit terminates the process. Defaults to doing nothing so tests and
	// the CLI can decide for themselves.
	Exit   func(code int)
	Logger *logging.Logger
}

// Controller implements background mode, result notification and exit.
type Controller struct {
	state    *state.CoordinatorState
	shell    platform.Shell
	notifier SystemNotifier
	dialogs  DialogPublisher
	exit     func(code int)
	logger   *logging.Logger

	// Held shared by every dispatch and exclusively by RequestExit, so the
	// process never exits halfway through routing an invocation.
	dispatch sync.RWMutex
	exited   atomic.Bool
}

// New creates a Controller.
func New(opts Options) *Controller {
	if opts.State == nil {
		opts.State = state.New()
	}
	if opts.Shell == nil {
		opts.Shell = platform.NopShell{}
	}
	if opts.Exit == nil {
		opts.Exit = func(int) {}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &Controller{
		state:    opts.State,
		shell:    opts.Shell,
		notifier: opts.Notifier,
		dialogs:  opts.Dialogs,
		exit:     opts.Exit,
		logger:   opts.Logger.Component("lifecycle"),
	}
}

// ClassifySilentLaunch reports whether a compress request arrives at a
// process that has never shown anything: the UI has not reported ready and
// no window is visible.
func (c *Controller) ClassifySilentLaunch(windowVisible bool) bool {
	return !c.state.Startup.IsReady() && !windowVisible
}

// EnterBackgroundMode turns background mode on. The first call hides the
// Dock icon; later calls do nothing.
func (c *Controller) EnterBackgroundMode() {
	if !c.state.Background.Enter() {
		return
	}
	c.logger.Info().Msg("Entering background mode")
	if err := c.shell.HideDockIcon(); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to hide Dock icon")
	}
}

// IsBackground reports whether background mode is on.
func (c *Controller) IsBackground() bool {
	return c.state.Background.IsSet()
}

// NotifyBatchResult reports a finished batch on the surface selected by
// mode. forceSystem and background mode both select the OS notification.
// An empty batch reports nothing.
func (c *Controller) NotifyBatchResult(successes, failures int, mode config.NotifyMode, forceSystem bool) {
	message := ResultMessage(successes, failures)
	if message == "" {
		return
	}

	if forceSystem || c.IsBackground() {
		c.postSystem(message)
		return
	}

	switch mode {
	case config.NotifySilent:
		c.logger.Debug().Str("message", message).Msg("Batch result not shown (silent mode)")
	case config.NotifyDialog:
		if c.dialogs != nil {
			c.dialogs.PublishResultDialog(message)
		}
	default:
		c.postSystem(message)
	}
}

func (c *Controller) postSystem(message string) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.BatchComplete(message); err != nil {
		c.logger.Warn().Err(err).Str("message", message).Msg("System notification failed")
	}
}

// BeginDispatch marks an invocation as being routed. The returned func
// ends it.
func (c *Controller) BeginDispatch() (end func()) {
	c.dispatch.RLock()
	return c.dispatch.RUnlock
}

// RequestExit waits for in-flight dispatches to finish, then exits with
// code. The process exits at most once, and never while the batch holds
// files: a dispatch that finished just before may have enqueued more.
func (c *Controller) RequestExit(code int) {
	if !c.commitExit() {
		return
	}
	c.logger.Info().Int("code", code).Msg("Exiting")
	c.exit(code)
}

// commitExit marks the process as exiting if nothing is being routed and
// the batch is idle. Dispatches that start later see Exited and back off.
func (c *Controller) commitExit() bool {
	c.dispatch.Lock()
	defer c.dispatch.Unlock()

	if c.exited.Load() {
		return false
	}
	if !c.state.Batch.Idle() {
		c.logger.Info().Msg("Files arrived before exit, staying alive")
		return false
	}
	c.exited.Store(true)
	return true
}

// Exited reports whether the process has committed to exiting.
func (c *Controller) Exited() bool {
	return c.exited.Load()
}

// ResultMessage formats the batch result shown to the user.
func ResultMessage(successes, failures int) string {
	total := successes + failures
	switch {
	case total == 0:
		return ""
	case failures == 0:
		return fmt.Sprintf("compressed %d images", successes)
	default:
		return fmt.Sprintf("compressed: %d succeeded, %d failed", successes, failures)
	}
}
