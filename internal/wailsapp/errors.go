package wailsapp

import "errors"

var (
	// ErrNotImage is returned when a path does not have a supported image extension.
	ErrNotImage = errors.New("not a png, jpg or webp image")

	// ErrNoDisplay is returned on Linux when neither X11 nor Wayland is available.
	ErrNoDisplay = errors.New("GUI mode requires a display; DISPLAY and WAYLAND_DISPLAY are not set")
)
