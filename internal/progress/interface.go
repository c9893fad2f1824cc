package progress

import "io"

// Reporter receives per-file progress from the compressor. Implementations
// must be safe for concurrent use; every file in a batch reports from its
// own goroutine. Delivery is best-effort.
type Reporter interface {
	Report(path string, percent int, phase string)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(path string, percent int, phase string)

// Report calls f.
func (f ReporterFunc) Report(path string, percent int, phase string) {
	f(path, percent, phase)
}

// ProgressUI is a terminal UI that renders one bar per file.
type ProgressUI interface {
	Reporter

	// AddFileBar creates a new progress bar for a file
	AddFileBar(path string, size int64) FileBarHandle

	// Wait blocks until all progress bars complete
	Wait()

	// Writer returns an io.Writer that safely outputs above the progress bars.
	// Returns mpb's writer if in terminal mode, otherwise os.Stderr.
	Writer() io.Writer

	// IsTerminal returns true if output is to a terminal (progress bars are active)
	IsTerminal() bool
}

// FileBarHandle represents a handle to a single file's progress bar
type FileBarHandle interface {
	// Update moves the bar to percent (0-100) and shows the phase
	Update(percent int, phase string)

	// Complete marks the file as finished and prints a one-line summary
	Complete(summary string, err error)
}
