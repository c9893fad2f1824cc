package wailsapp

import (
	"context"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// windowOps are the Wails runtime calls the window needs. Tests replace them.
type windowOps struct {
	show       func(ctx context.Context)
	hide       func(ctx context.Context)
	unminimise func(ctx context.Context)
	// appShow brings the application itself forward (macOS).
	appShow func(ctx context.Context)
}

func runtimeWindowOps() windowOps {
	return windowOps{
		show:       runtime.WindowShow,
		hide:       runtime.WindowHide,
		unminimise: runtime.WindowUnminimise,
		appShow:    runtime.Show,
	}
}

// Window tracks the main window. It implements router.Window.
type Window struct {
	mu      sync.Mutex
	ctx     context.Context
	visible bool
	ops     windowOps
}

func newWindow(ops windowOps) *Window {
	return &Window{ops: ops}
}

// attach records the runtime context once Wails has created the window.
func (w *Window) attach(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ctx = ctx
}

// Created reports whether Wails has created the window.
func (w *Window) Created() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ctx != nil
}

// IsVisible reports whether the window is currently shown.
func (w *Window) IsVisible() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.visible
}

// Show unminimises, shows and focuses the window. Safe to call repeatedly.
func (w *Window) Show() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ctx == nil {
		return
	}
	w.ops.unminimise(w.ctx)
	w.ops.show(w.ctx)
	w.ops.appShow(w.ctx)
	w.visible = true
}

// Hide hides the window without quitting.
func (w *Window) Hide() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ctx == nil {
		return
	}
	w.ops.hide(w.ctx)
	w.visible = false
}
