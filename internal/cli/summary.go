package cli

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/tinyimage/tinyimage/internal/batch"
	"github.com/tinyimage/tinyimage/internal/lifecycle"
)

var (
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	failedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// batchSummary accumulates per-file outcomes for the closing line.
type batchSummary struct {
	BatchID     string
	Successes   int
	Failures    int
	InputBytes  int64
	OutputBytes int64
	Duration    time.Duration
}

func (s *batchSummary) add(r batch.FileResult) {
	if r.Err != nil || r.Result == nil {
		s.Failures++
		return
	}
	s.Successes++
	s.InputBytes += r.Result.InputSize
	s.OutputBytes += r.Result.OutputSize
}

// renderSummary formats the batch result the way the desktop app words it,
// followed by the bytes saved.
func renderSummary(s batchSummary) string {
	style := okStyle
	if s.Failures > 0 {
		style = failedStyle
	}
	line := style.Render(lifecycle.ResultMessage(s.Successes, s.Failures))

	if s.InputBytes > 0 {
		saved := s.InputBytes - s.OutputBytes
		pct := float64(saved) * 100 / float64(s.InputBytes)
		line += mutedStyle.Render(fmt.Sprintf("  saved %s (%.0f%%) in %s",
			formatBytes(saved), pct, s.Duration.Round(time.Millisecond)))
	}
	return line
}

// formatBytes renders n in B, KiB or MiB.
func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d B", n)
}
