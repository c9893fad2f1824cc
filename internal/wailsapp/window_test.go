package wailsapp

import (
	"context"
	"strings"
	"sync"
	"testing"
)

type opsRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *opsRecorder) record(name string) func(context.Context) {
	return func(context.Context) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.calls = append(r.calls, name)
	}
}

func (r *opsRecorder) joined() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.calls, ",")
}

func (r *opsRecorder) ops() windowOps {
	return windowOps{
		show:       r.record("show"),
		hide:       r.record("hide"),
		unminimise: r.record("unminimise"),
		appShow:    r.record("app"),
	}
}

func TestWindow_NoopBeforeAttach(t *testing.T) {
	rec := &opsRecorder{}
	w := newWindow(rec.ops())

	w.Show()
	w.Hide()

	if w.Created() {
		t.Error("window should not be created before attach")
	}
	if w.IsVisible() {
		t.Error("window should not be visible before attach")
	}
	if got := rec.joined(); got != "" {
		t.Errorf("expected no runtime calls, got %q", got)
	}
}

func TestWindow_ShowAndHide(t *testing.T) {
	rec := &opsRecorder{}
	w := newWindow(rec.ops())
	w.attach(context.Background())

	if !w.Created() {
		t.Fatal("expected window to be created after attach")
	}

	w.Show()
	if !w.IsVisible() {
		t.Error("expected window visible after Show")
	}
	if got := rec.joined(); got != "unminimise,show,app" {
		t.Errorf("unexpected calls %q", got)
	}

	// Showing again only re-focuses
	w.Show()
	if !w.IsVisible() {
		t.Error("expected window still visible")
	}

	w.Hide()
	if w.IsVisible() {
		t.Error("expected window hidden after Hide")
	}
	if got := rec.joined(); !strings.HasSuffix(got, ",hide") {
		t.Errorf("expected hide last, got %q", got)
	}
}
