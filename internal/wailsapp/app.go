// Package wailsapp hosts TinyImage in a Wails window.
//
// The window starts hidden. A normal launch shows it once the frontend
// calls InitWindow; a silent compress launch never shows it and quits once
// its batch has been reported.
package wailsapp

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	goruntime "runtime"
	"sync"
	"sync/atomic"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/linux"
	"github.com/wailsapp/wails/v2/pkg/options/mac"
	"github.com/wailsapp/wails/v2/pkg/options/windows"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/tinyimage/tinyimage/internal/batch"
	"github.com/tinyimage/tinyimage/internal/compress"
	"github.com/tinyimage/tinyimage/internal/config"
	"github.com/tinyimage/tinyimage/internal/constants"
	"github.com/tinyimage/tinyimage/internal/events"
	"github.com/tinyimage/tinyimage/internal/invocation"
	"github.com/tinyimage/tinyimage/internal/ipc"
	"github.com/tinyimage/tinyimage/internal/lifecycle"
	"github.com/tinyimage/tinyimage/internal/logging"
	"github.com/tinyimage/tinyimage/internal/notify"
	"github.com/tinyimage/tinyimage/internal/platform"
	"github.com/tinyimage/tinyimage/internal/progress"
	"github.com/tinyimage/tinyimage/internal/router"
	"github.com/tinyimage/tinyimage/internal/state"
	"github.com/tinyimage/tinyimage/internal/version"
)

// Assets holds the embedded frontend files, passed in from main package.
var Assets embed.FS

// Options configures an App. Zero values select the production
// implementations.
type Options struct {
	SettingsPath string
	Compressor   compress.Compressor
	Shell        platform.Shell
	Notifier     lifecycle.SystemNotifier
	Logger       *logging.Logger

	windowOps *windowOps
}

// App is the main Wails application struct.
// All public methods are exposed to the frontend as callable functions.
type App struct {
	ctx    context.Context
	logger *logging.Logger

	settingsPath string
	settingsMu   sync.RWMutex
	settings     *config.Settings

	state      *state.CoordinatorState
	bus        *events.EventBus
	window     *Window
	shell      platform.Shell
	lifecycle  *lifecycle.Controller
	compressor compress.Compressor
	batch      *batch.Coordinator
	router     *router.Router

	eventBridge *EventBridge
	ipcServer   *ipc.Server

	launchArgs []string
	quitting   atomic.Bool
	exitCode   atomic.Int32
}

// NewApp wires the coordinator core around a not yet started window.
func NewApp(opts Options) *App {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	ops := runtimeWindowOps()
	if opts.windowOps != nil {
		ops = *opts.windowOps
	}

	a := &App{
		logger:       logger.Component("app"),
		settingsPath: opts.SettingsPath,
		state:        state.New(),
		bus:          events.NewEventBus(constants.EventBusDefaultBuffer),
		window:       newWindow(ops),
		shell:        opts.Shell,
		compressor:   opts.Compressor,
	}

	if a.shell == nil {
		a.shell = platform.New(logger)
	}
	if a.compressor == nil {
		a.compressor = compress.NewTinifyClient(logger)
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.NewNotifier(logger)
	}

	a.settings = a.loadSettings()

	a.lifecycle = lifecycle.New(lifecycle.Options{
		State:    a.state,
		Shell:    a.shell,
		Notifier: notifier,
		Dialogs:  a.bus,
		Exit:     a.quit,
		Logger:   logger,
	})
	a.batch = batch.New(batch.Options{
		State:      a.state,
		Compressor: a.compressor,
		Lifecycle:  a.lifecycle,
		Reporter:   progress.NewBusReporter(a.bus),
		Bus:        a.bus,
		Logger:     logger,
	})
	a.router = router.New(router.Options{
		State:     a.state,
		Lifecycle: a.lifecycle,
		Batch:     a.batch,
		Bus:       a.bus,
		Window:    a.window,
		Settings:  a.currentSettings,
		Logger:    logger,
	})
	return a
}

func (a *App) loadSettings() *config.Settings {
	if a.settingsPath == "" {
		return config.Defaults()
	}
	s, err := config.Load(a.settingsPath)
	if err != nil {
		// Load already fell back to defaults
		a.logger.Warn().Err(err).Str("path", a.settingsPath).Msg("Failed to load settings, using defaults")
	}
	return s
}

// currentSettings returns a copy of the settings in effect.
func (a *App) currentSettings() *config.Settings {
	a.settingsMu.RLock()
	defer a.settingsMu.RUnlock()
	return a.settings.Clone()
}

// quit is the lifecycle exit function.
func (a *App) quit(code int) {
	a.exitCode.Store(int32(code))
	a.quitting.Store(true)
	if a.ctx == nil {
		os.Exit(code)
	}
	runtime.Quit(a.ctx)
}

// startup is called when the app starts. The context is saved
// so we can call the Wails runtime methods.
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
	a.window.attach(ctx)

	a.eventBridge = NewEventBridge(ctx, a.bus, a.logger)
	if err := a.eventBridge.Start(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to start event bridge")
	}

	a.logger.Info().Str("version", version.Version).Strs("args", a.launchArgs).Msg("TinyImage started")

	if a.router.Launch(a.launchArgs) {
		go a.lifecycle.RequestExit(constants.BackgroundExitCode)
	}
}

// domReady is called after the frontend DOM is ready.
func (a *App) domReady(ctx context.Context) {
	a.logger.Debug().Msg("Frontend DOM ready")
}

// beforeClose hides the window instead of closing it, so a running batch
// keeps going. Quit from the menu or a background exit still terminates.
func (a *App) beforeClose(ctx context.Context) bool {
	if a.quitting.Load() {
		return false
	}
	a.window.Hide()
	return true
}

// shutdown is called at application termination.
func (a *App) shutdown(ctx context.Context) {
	a.logger.Info().Msg("TinyImage shutting down")

	if a.eventBridge != nil {
		a.eventBridge.Stop()
	}
	if a.ipcServer != nil {
		a.ipcServer.Stop()
	}
	if dropped := a.bus.GetDroppedEventCount(); dropped > 0 {
		a.logger.Debug().Int64("dropped", dropped).Msg("Events dropped on full subscriber buffers")
	}
	a.bus.Close()
}

// onURLOpen handles tinyimage:// and file:// URLs delivered by macOS.
func (a *App) onURLOpen(url string) {
	a.router.Handle(invocation.ParseURL(url))
}

// onFileOpen handles a file opened with TinyImage from Finder.
func (a *App) onFileOpen(path string) {
	a.router.Handle(invocation.ParseArgv([]string{path}))
}

// Run launches the GUI. args is argv without the program path. The
// returned code is the process exit code.
func Run(args []string) (int, error) {
	if err := logging.InitFileLogger(config.LogDirectory()); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: file logging disabled: %v\n", err)
	}
	defer logging.CloseFileLogger()

	logger := logging.NewLogger("gui")

	// Hand the invocation to a running instance if there is one.
	cwd, _ := os.Getwd()
	if client, err := ipc.NewClient(); err == nil {
		err := client.Forward(context.Background(), args, cwd)
		if err == nil {
			logger.Info().Msg("Invocation forwarded to running instance")
			return 0, nil
		}
		if !errors.Is(err, ipc.ErrNoPrimary) {
			logger.Warn().Err(err).Msg("Running instance did not accept invocation, starting a new one")
		}
	}

	if router.ExitsImmediately(args) {
		logger.Info().Msg("--compress without image files, nothing to do")
		return constants.BackgroundExitCode, nil
	}

	if goruntime.GOOS == "linux" && os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == "" {
		return 1, ErrNoDisplay
	}

	settingsPath, err := config.DefaultSettingsPath()
	if err != nil {
		logger.Warn().Err(err).Msg("No settings location, using defaults")
	}

	app := NewApp(Options{SettingsPath: settingsPath, Logger: logger})
	app.launchArgs = args

	if server, err := ipc.NewServer(ipc.NewInvocationHandler(app.router, logger), logger); err != nil {
		logger.Warn().Err(err).Msg("Second-instance forwarding unavailable")
	} else if err := server.Start(); err != nil {
		logger.Warn().Err(err).Msg("Failed to start IPC server")
	} else {
		app.ipcServer = server
	}

	err = wails.Run(&options.App{
		Title:       constants.AppName,
		Width:       960,
		Height:      680,
		MinWidth:    640,
		MinHeight:   480,
		StartHidden: true,
		AssetServer: &assetserver.Options{
			Assets: Assets,
		},
		BackgroundColour: &options.RGBA{R: 248, G: 250, B: 252, A: 1},
		OnStartup:        app.startup,
		OnDomReady:       app.domReady,
		OnBeforeClose:    app.beforeClose,
		OnShutdown:       app.shutdown,
		Bind: []interface{}{
			app,
		},
		Mac: &mac.Options{
			About: &mac.AboutInfo{
				Title:   constants.AppName,
				Message: fmt.Sprintf("Version %s\n\nImage compression powered by TinyPNG.", version.Version),
			},
			OnUrlOpen:  app.onURLOpen,
			OnFileOpen: app.onFileOpen,
		},
		Windows: &windows.Options{
			WebviewBrowserPath: getWebView2BrowserPath(),
		},
		Linux: &linux.Options{
			ProgramName: constants.AppName,
		},
	})
	if err != nil {
		return 1, fmt.Errorf("wails application error: %w", err)
	}
	return int(app.exitCode.Load()), nil
}

// getWebView2BrowserPath returns the path to a bundled WebView2 Fixed Version
// Runtime, or "" to use the system-installed one.
func getWebView2BrowserPath() string {
	if goruntime.GOOS != "windows" {
		return ""
	}

	exePath, err := os.Executable()
	if err != nil {
		return ""
	}

	webview2Dir := filepath.Join(filepath.Dir(exePath), "webview2")
	if _, err := os.Stat(filepath.Join(webview2Dir, "msedgewebview2.exe")); err == nil {
		return webview2Dir
	}
	return ""
}
