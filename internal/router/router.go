// Package router dispatches parsed invocations.
//
// Every way the app can be invoked ends up in Router.Handle: the initial
// argv, argv forwarded by a second instance, and macOS URL/file-open
// callbacks. Depending on UI readiness and background mode, the files are
// queued for the UI, pushed to it live, or handed to the batch coordinator.
package router

import (
	"github.com/tinyimage/tinyimage/internal/config"
	"github.com/tinyimage/tinyimage/internal/events"
	"github.com/tinyimage/tinyimage/internal/invocation"
	"github.com/tinyimage/tinyimage/internal/lifecycle"
	"github.com/tinyimage/tinyimage/internal/logging"
	"github.com/tinyimage/tinyimage/internal/state"
)

// Window is the main window as seen by the router. Show must be idempotent.
type Window interface {
	// Created reports whether the host has created the window yet.
	Created() bool
	IsVisible() bool
	// Show unminimises, shows and focuses the window.
	Show()
}

// Enqueuer starts silent compression. Implemented by batch.Coordinator.
type Enqueuer interface {
	Enqueue(files []string, settings *config.Settings)
}

// Options configures a Router.
type Options struct {
	State     *state.CoordinatorState
	Lifecycle *lifecycle.Controller
	Batch     Enqueuer
	Bus       *events.EventBus
	Window    Window
	// Settings returns the current settings for a silent batch.
	Settings func() *config.Settings
	Logger   *logging.Logger
}

// Router implements Handle.
type Router struct {
	state     *state.CoordinatorState
	lifecycle *lifecycle.Controller
	batch     Enqueuer
	bus       *events.EventBus
	window    Window
	settings  func() *config.Settings
	logger    *logging.Logger
}

// New creates a Router.
func New(opts Options) *Router {
	if opts.State == nil {
		opts.State = state.New()
	}
	if opts.Lifecycle == nil {
		opts.Lifecycle = lifecycle.New(lifecycle.Options{State: opts.State})
	}
	if opts.Window == nil {
		opts.Window = noWindow{}
	}
	if opts.Settings == nil {
		opts.Settings = config.Defaults
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &Router{
		state:     opts.State,
		lifecycle: opts.Lifecycle,
		batch:     opts.Batch,
		bus:       opts.Bus,
		window:    opts.Window,
		settings:  opts.Settings,
		logger:    opts.Logger.Component("router"),
	}
}

// Handle routes one invocation. It is synchronous and never blocks on
// compression. It reports false when the invocation was dropped, so a
// forwarding instance can handle the files itself.
func (r *Router) Handle(inv invocation.Invocation) (accepted bool) {
	end := r.lifecycle.BeginDispatch()
	defer end()

	if r.lifecycle.Exited() {
		r.logger.Warn().Str("kind", inv.Kind.String()).Msg("Dropping invocation, process is exiting")
		return false
	}

	r.logger.Info().
		Str("kind", inv.Kind.String()).
		Int("files", len(inv.Paths)).
		Bool("ready", r.state.Startup.IsReady()).
		Bool("background", r.lifecycle.IsBackground()).
		Msg("Handling invocation")

	if inv.IsEmpty() {
		r.focusExisting()
		return true
	}

	switch inv.Kind {
	case invocation.FilesToCompressSilently:
		if r.lifecycle.ClassifySilentLaunch(r.window.IsVisible()) {
			r.lifecycle.EnterBackgroundMode()
		}
		if r.batch == nil {
			r.logger.Error().Msg("No batch coordinator, dropping silent compress")
			return false
		}
		r.batch.Enqueue(inv.Paths, r.settings())

	case invocation.FilesToCompressForeground:
		r.deliver(inv.Paths, true)
		r.showWindow()

	case invocation.FilesToOpen:
		if r.deliver(inv.Paths, false) {
			r.showWindow()
		}
	}
	return true
}

// Launch handles the invocation the process was started with. It reports
// true when the process should exit right away: a --compress launch with
// no usable image paths has nothing to do and never shows a window.
func (r *Router) Launch(tokens []string) (exit bool) {
	if ExitsImmediately(tokens) {
		r.logger.Info().Msg("--compress without image files, exiting")
		r.lifecycle.EnterBackgroundMode()
		return true
	}
	r.Handle(invocation.Parse(tokens))
	return false
}

// ExitsImmediately reports whether a launch with tokens has nothing to do.
// Callers use it to skip creating a window at all.
func ExitsImmediately(tokens []string) bool {
	return invocation.HasCompressFlag(tokens) && invocation.Parse(tokens).IsEmpty()
}

// deliver queues paths for a UI that is still loading, or pushes them live.
// It reports whether the UI received them live.
func (r *Router) deliver(paths []string, autoCompress bool) (live bool) {
	if r.state.Startup.Push(paths, autoCompress) {
		r.logger.Debug().Int("queued", r.state.Startup.Len()).Bool("auto_compress", autoCompress).
			Msg("UI not ready, files queued")
		return false
	}

	eventType := events.EventAddFiles
	if autoCompress {
		eventType = events.EventCompressFiles
	}
	if r.bus != nil {
		r.bus.PublishFiles(eventType, paths)
	}
	return true
}

func (r *Router) showWindow() {
	if r.lifecycle.IsBackground() && !r.window.Created() {
		r.logger.Debug().Msg("Background mode without a window, not showing")
		return
	}
	r.window.Show()
}

func (r *Router) focusExisting() {
	if !r.window.Created() {
		return
	}
	r.showWindow()
}

type noWindow struct{}

func (noWindow) Created() bool   { return false }
func (noWindow) IsVisible() bool { return false }
func (noWindow) Show()           {}
