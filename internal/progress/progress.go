// Package progress provides a unified interface for progress reporting
// across CLI (progress bars) and GUI (event bus) modes.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/tinyimage/tinyimage/internal/events"
)

// BusReporter publishes progress to the event bus, where the Wails bridge
// forwards it to the web UI as compress-progress.
type BusReporter struct {
	eventBus *events.EventBus
}

// NewBusReporter creates a reporter publishing to eventBus.
func NewBusReporter(eventBus *events.EventBus) *BusReporter {
	return &BusReporter{eventBus: eventBus}
}

// Report publishes one ProgressEvent.
func (r *BusReporter) Report(path string, percent int, phase string) {
	if r.eventBus == nil {
		return
	}
	r.eventBus.PublishProgress(path, clampPercent(percent), phase)
}

// NoOpReporter discards progress (silent background batches without a UI).
type NoOpReporter struct{}

// Report does nothing.
func (NoOpReporter) Report(string, int, string) {}

// CLIProgress renders a single file's progress with one progress bar.
type CLIProgress struct {
	mu  sync.Mutex
	bar *progressbar.ProgressBar
	out io.Writer
}

// NewCLIProgress creates a new CLI progress reporter writing to stderr.
func NewCLIProgress() *CLIProgress {
	return &CLIProgress{out: os.Stderr}
}

// Start initializes the progress bar for path.
func (p *CLIProgress) Start(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.bar = progressbar.NewOptions(100,
		progressbar.OptionSetDescription(truncatePath(path, 2)),
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(p.out, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// Report moves the bar and shows the current phase.
func (p *CLIProgress) Report(path string, percent int, phase string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar == nil {
		return
	}
	p.bar.Describe(fmt.Sprintf("%s (%s)", truncatePath(path, 2), phase))
	_ = p.bar.Set(clampPercent(percent))
}

// Finish completes the progress bar.
func (p *CLIProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

// Error displays an error message.
func (p *CLIProgress) Error(err error) {
	if err != nil {
		fmt.Fprintf(p.out, "\nError: %v\n", err)
	}
}

// ProgressReader wraps an io.Reader to report bytes read so far.
type ProgressReader struct {
	reader  io.Reader
	total   int64
	current int64
	onRead  func(current, total int64)
}

// NewProgressReader creates a new progress-reporting reader.
func NewProgressReader(reader io.Reader, total int64, onRead func(current, total int64)) *ProgressReader {
	return &ProgressReader{
		reader: reader,
		total:  total,
		onRead: onRead,
	}
}

// Read implements io.Reader interface with progress reporting.
func (pr *ProgressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.current += int64(n)
		if pr.onRead != nil {
			pr.onRead(pr.current, pr.total)
		}
	}
	return n, err
}

// Len returns the number of unread bytes. HTTP clients use it to set
// Content-Length on a streamed body.
func (pr *ProgressReader) Len() int {
	return int(pr.total - pr.current)
}

func clampPercent(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
