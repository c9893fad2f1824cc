package wailsapp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tinyimage/tinyimage/internal/compress"
	"github.com/tinyimage/tinyimage/internal/config"
	"github.com/tinyimage/tinyimage/internal/events"
	"github.com/tinyimage/tinyimage/internal/invocation"
	"github.com/tinyimage/tinyimage/internal/progress"
)

type fakeCompressor struct {
	mu       sync.Mutex
	paths    []string
	password string
}

func (c *fakeCompressor) Compress(ctx context.Context, path string, s *config.Settings, reporter progress.Reporter) (*compress.Result, error) {
	c.mu.Lock()
	c.paths = append(c.paths, path)
	c.password = s.Proxy.Password
	c.mu.Unlock()
	reporter.Report(path, 100, events.PhaseDownloading)
	return &compress.Result{InputSize: 100, OutputSize: 40, OutputPath: path}, nil
}

type fakeShell struct {
	mu           sync.Mutex
	hidden       int
	registered   int
	unregistered int
}

func (s *fakeShell) HideDockIcon() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hidden++
	return nil
}

func (s *fakeShell) RegisterContextMenu() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registered++
	return nil
}

func (s *fakeShell) UnregisterContextMenu() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unregistered++
	return nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *fakeNotifier) BatchComplete(message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	return nil
}

type testApp struct {
	*App
	rec        *opsRecorder
	compressor *fakeCompressor
	shell      *fakeShell
	notifier   *fakeNotifier
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	rec := &opsRecorder{}
	ops := rec.ops()
	tc := &testApp{
		rec:        rec,
		compressor: &fakeCompressor{},
		shell:      &fakeShell{},
		notifier:   &fakeNotifier{},
	}
	tc.App = NewApp(Options{
		SettingsPath: filepath.Join(t.TempDir(), "settings.ini"),
		Compressor:   tc.compressor,
		Shell:        tc.shell,
		Notifier:     tc.notifier,
		windowOps:    &ops,
	})
	t.Cleanup(tc.bus.Close)
	return tc
}

func TestGetStartupFiles_DrainsQueueOnce(t *testing.T) {
	a := newTestApp(t)

	a.router.Handle(invocation.Parse([]string{"/tmp/a.png", "/tmp/b.jpg"}))

	files := a.GetStartupFiles()
	if len(files) != 2 || files[0].Path != "/tmp/a.png" || files[0].AutoCompress {
		t.Fatalf("unexpected startup files %+v", files)
	}

	again := a.GetStartupFiles()
	if again == nil || len(again) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", again)
	}
	if !a.state.Startup.IsReady() {
		t.Error("expected UI marked ready")
	}
}

func TestInitWindow(t *testing.T) {
	a := newTestApp(t)
	a.window.attach(context.Background())

	a.InitWindow()
	if !a.window.IsVisible() {
		t.Error("expected window shown on normal launch")
	}
}

func TestInitWindow_StaysHiddenInBackground(t *testing.T) {
	a := newTestApp(t)
	a.window.attach(context.Background())
	a.lifecycle.EnterBackgroundMode()

	a.InitWindow()
	if a.window.IsVisible() {
		t.Error("window must stay hidden in background mode")
	}
	if got := a.rec.joined(); got != "" {
		t.Errorf("expected no window calls, got %q", got)
	}
}

func TestSaveSettings_PersistsAndTogglesContextMenu(t *testing.T) {
	a := newTestApp(t)
	a.SetProxyPassword("secret")

	s := a.LoadSettings()
	if s.Proxy.Password != "secret" {
		t.Fatalf("expected in-memory password, got %q", s.Proxy.Password)
	}
	s.Proxy.Password = ""
	s.NotifyMode = config.NotifyDialog
	s.ContextMenuEnabled = !s.ContextMenuEnabled
	enabled := s.ContextMenuEnabled

	if err := a.SaveSettings(s); err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}

	if got := a.currentSettings(); got.Proxy.Password != "secret" || got.NotifyMode != config.NotifyDialog {
		t.Errorf("unexpected settings after save %+v", got)
	}

	loaded, err := config.Load(a.settingsPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.NotifyMode != config.NotifyDialog {
		t.Errorf("expected dialog mode on disk, got %q", loaded.NotifyMode)
	}

	if enabled && a.shell.registered != 1 {
		t.Errorf("expected one registration, got %d", a.shell.registered)
	}
	if !enabled && a.shell.unregistered != 1 {
		t.Errorf("expected one unregistration, got %d", a.shell.unregistered)
	}
}

func TestSaveSettings_RejectsInvalid(t *testing.T) {
	a := newTestApp(t)
	s := a.LoadSettings()
	s.NotifyMode = "loud"

	if err := a.SaveSettings(s); !errors.Is(err, config.ErrInvalidNotifyMode) {
		t.Errorf("expected ErrInvalidNotifyMode, got %v", err)
	}
	if _, err := os.Stat(a.settingsPath); !os.IsNotExist(err) {
		t.Error("invalid settings must not be written")
	}
}

func TestCompressImage(t *testing.T) {
	a := newTestApp(t)
	a.SetProxyPassword("secret")
	progressC := a.bus.Subscribe(events.EventCompressProgress)

	result, err := a.CompressImage("/tmp/a.png", a.LoadSettings())
	if err != nil {
		t.Fatalf("CompressImage() error = %v", err)
	}
	if result.OutputSize != 40 {
		t.Errorf("unexpected result %+v", result)
	}
	if a.compressor.password != "secret" {
		t.Error("expected proxy password merged into compress settings")
	}

	select {
	case e := <-progressC:
		if pe := e.(*events.ProgressEvent); pe.Percent != 100 {
			t.Errorf("unexpected progress %+v", pe)
		}
	case <-time.After(time.Second):
		t.Error("expected a progress event")
	}

	if _, err := a.CompressImage("/tmp/notes.txt", a.LoadSettings()); !errors.Is(err, ErrNotImage) {
		t.Errorf("expected ErrNotImage, got %v", err)
	}
}

func TestNotifyResult(t *testing.T) {
	a := newTestApp(t)
	dialogs := a.bus.Subscribe(events.EventShowResultDialog)

	s := a.LoadSettings()
	s.NotifyMode = config.NotifyDialog
	a.NotifyResult(s, 3, 1)

	select {
	case e := <-dialogs:
		if msg := e.(*events.ResultDialogEvent).Message; msg != "compressed: 3 succeeded, 1 failed" {
			t.Errorf("unexpected dialog message %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a result dialog")
	}

	s.NotifyMode = config.NotifyNotification
	a.NotifyResult(s, 1, 0)
	if len(a.notifier.messages) != 1 || a.notifier.messages[0] != "compressed: 1 succeeded, 0 failed" {
		t.Errorf("unexpected notifications %v", a.notifier.messages)
	}
}

func TestBeforeClose(t *testing.T) {
	a := newTestApp(t)
	a.window.attach(context.Background())
	a.window.Show()

	if !a.beforeClose(context.Background()) {
		t.Error("closing the window should hide it instead")
	}
	if a.window.IsVisible() {
		t.Error("expected window hidden")
	}

	a.quitting.Store(true)
	if a.beforeClose(context.Background()) {
		t.Error("quit must not be prevented")
	}
}

func TestImageDataURL(t *testing.T) {
	dir := t.TempDir()
	png := filepath.Join(dir, "a.PNG")
	if err := os.WriteFile(png, []byte("\x89PNG"), 0644); err != nil {
		t.Fatal(err)
	}

	url, err := imageDataURL(png)
	if err != nil {
		t.Fatalf("imageDataURL() error = %v", err)
	}
	if url != "data:image/png;base64,iVBORw==" {
		t.Errorf("unexpected data URL %q", url)
	}

	if _, err := imageDataURL(filepath.Join(dir, "a.gif")); !errors.Is(err, ErrNotImage) {
		t.Errorf("expected ErrNotImage, got %v", err)
	}
	if _, err := imageDataURL(filepath.Join(dir, "missing.jpg")); err == nil || !strings.Contains(err.Error(), "read") {
		t.Errorf("expected read error, got %v", err)
	}
}

func TestImageMIMEType(t *testing.T) {
	tests := map[string]string{
		"a.png":  "image/png",
		"a.jpg":  "image/jpeg",
		"a.JPEG": "image/jpeg",
		"a.webp": "image/webp",
		"a.gif":  "",
		"png":    "",
	}
	for path, want := range tests {
		if got := imageMIMEType(path); got != want {
			t.Errorf("imageMIMEType(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestListImages(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"a.png", "notes.txt", filepath.Join("sub", "b.webp")} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	files, err := listImages(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Errorf("expected 2 images, got %v", files)
	}
}
