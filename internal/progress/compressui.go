package progress

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"
)

// CompressUI manages concurrent per-file compression bars using mpb.
// Bars are keyed by path so the UI itself can serve as the Reporter the
// compressor calls.
type CompressUI struct {
	progress   *mpb.Progress
	bars       sync.Map // path -> *FileBar
	isTerminal bool
	out        io.Writer
	totalFiles int
	started    int32 // Atomic counter for file index (1, 2, 3, ...)
	completed  int32
}

// FileBar represents a single file's compression bar
type FileBar struct {
	bar       *mpb.Bar
	ui        *CompressUI
	index     int
	path      string
	size      int64
	phase     atomic.Value // string
	startTime time.Time
	lastPct   int64
}

// NewCompressUI creates a new UI for totalFiles files.
func NewCompressUI(totalFiles int) *CompressUI {
	isTerminal := term.IsTerminal(int(os.Stderr.Fd()))

	var p *mpb.Progress
	if isTerminal {
		enableANSIOnWindows(os.Stderr)

		p = mpb.New(
			mpb.WithOutput(os.Stderr),
			mpb.WithRefreshRate(150*time.Millisecond),
			mpb.WithWidth(80),
		)
	} else {
		// Non-TTY: disable progress bars, just use text output
		p = mpb.New(mpb.WithOutput(io.Discard))
	}

	return &CompressUI{
		progress:   p,
		isTerminal: isTerminal,
		out:        os.Stdout,
		totalFiles: totalFiles,
	}
}

// AddFileBar creates a new progress bar for path.
func (u *CompressUI) AddFileBar(path string, size int64) FileBarHandle {
	index := int(atomic.AddInt32(&u.started, 1))
	label := truncatePath(path, 2)

	fb := &FileBar{
		ui:        u,
		index:     index,
		path:      path,
		size:      size,
		startTime: time.Now(),
	}
	fb.phase.Store("queued")

	if u.isTerminal {
		fb.bar = u.progress.New(100,
			mpb.BarStyle().
				Lbound("[").
				Filler("█").
				Tip("█").
				Padding("░").
				Rbound("]"),
			mpb.PrependDecorators(
				decor.Any(func(decor.Statistics) string {
					return fmt.Sprintf("[%d/%d] %s (%.1f KiB)",
						fb.index, u.totalFiles, label, float64(size)/1024)
				}, decor.WCSyncSpace),
			),
			mpb.AppendDecorators(
				decor.Percentage(decor.WCSyncSpace),
				decor.Name("  "),
				decor.Any(func(decor.Statistics) string {
					return fb.phase.Load().(string)
				}, decor.WCSyncSpace),
			),
			mpb.BarRemoveOnComplete(),
		)
	} else {
		fmt.Fprintf(u.out, "Compressing [%d/%d]: %s (%.1f KiB)\n",
			fb.index, u.totalFiles, label, float64(size)/1024)
	}

	u.bars.Store(path, fb)
	return fb
}

// Report implements Reporter by routing to the bar registered for path.
func (u *CompressUI) Report(path string, percent int, phase string) {
	if v, ok := u.bars.Load(path); ok {
		v.(*FileBar).Update(percent, phase)
	}
}

// Update moves the bar to percent and records the phase.
func (f *FileBar) Update(percent int, phase string) {
	f.phase.Store(phase)
	if f.bar == nil {
		return
	}
	pct := int64(clampPercent(percent))
	// Never report the bar as done before Complete
	if pct >= 100 {
		pct = 99
	}
	if pct > atomic.LoadInt64(&f.lastPct) {
		atomic.StoreInt64(&f.lastPct, pct)
		f.bar.SetCurrent(pct)
	}
}

// Complete marks the file as finished and prints a summary line.
func (f *FileBar) Complete(summary string, err error) {
	elapsed := time.Since(f.startTime)

	var msg string
	if err == nil {
		if f.bar != nil {
			f.bar.SetCurrent(100)
			f.bar.SetTotal(100, true)
		}
		msg = fmt.Sprintf("✓ %s %s (%s)\n", truncatePath(f.path, 2), summary, elapsed.Round(time.Millisecond))
	} else {
		if f.bar != nil {
			f.bar.Abort(false) // false = don't remove (show failure)
		}
		msg = fmt.Sprintf("✗ %s: %v\n", truncatePath(f.path, 2), err)
	}

	// Write through mpb's writer (not stdout) to avoid triggering redraws
	if f.ui.isTerminal && f.ui.progress != nil {
		f.ui.progress.Write([]byte(msg))
	} else {
		fmt.Fprint(f.ui.out, msg)
	}

	atomic.AddInt32(&f.ui.completed, 1)
}

// Completed returns how many bars have finished.
func (u *CompressUI) Completed() int {
	return int(atomic.LoadInt32(&u.completed))
}

// Wait blocks until all progress bars complete
func (u *CompressUI) Wait() {
	if u.progress != nil {
		u.progress.Wait()
	}
}

// Writer returns an io.Writer that safely prints above the progress bars
func (u *CompressUI) Writer() io.Writer {
	if u.progress != nil && u.isTerminal {
		return u.progress
	}
	return os.Stderr
}

// IsTerminal returns true if output is to a terminal (progress bars are active).
func (u *CompressUI) IsTerminal() bool {
	return u.isTerminal
}

// truncatePath truncates a file path to show only the last N components
// Example: truncatePath("/a/b/c/d/file.png", 3) → "…/c/d/file.png"
func truncatePath(path string, maxComponents int) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) <= maxComponents {
		return filepath.Base(path)
	}
	relevant := parts[len(parts)-maxComponents:]
	return "…/" + strings.Join(relevant, "/")
}

// enableANSIOnWindows enables Virtual Terminal processing on Windows for ANSI escape sequences
func enableANSIOnWindows(f *os.File) {
	if runtime.GOOS == "windows" {
		enableWindowsANSI(f)
	}
}
