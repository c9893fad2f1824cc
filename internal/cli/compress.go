package cli

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/tinyimage/tinyimage/internal/batch"
	"github.com/tinyimage/tinyimage/internal/compress"
	"github.com/tinyimage/tinyimage/internal/config"
	"github.com/tinyimage/tinyimage/internal/events"
	"github.com/tinyimage/tinyimage/internal/invocation"
	"github.com/tinyimage/tinyimage/internal/lifecycle"
	"github.com/tinyimage/tinyimage/internal/logging"
	"github.com/tinyimage/tinyimage/internal/notify"
	"github.com/tinyimage/tinyimage/internal/platform"
	"github.com/tinyimage/tinyimage/internal/progress"
)

// newCompressor is replaced in tests.
var newCompressor = func(logger *logging.Logger) compress.Compressor {
	return compress.NewTinifyClient(logger)
}

// cliGracePeriod replaces the settings grace period: every file is
// enqueued up front, so there is nothing to wait for.
const cliGracePeriod = time.Millisecond

func newCompressCmd() *cobra.Command {
	var (
		outputMode string
		outputDir  string
		notifyDone bool
	)

	cmd := &cobra.Command{
		Use:   "compress <file>...",
		Short: "Compress images",
		Long: `Compress PNG, JPEG and WebP images through the TinyPNG API.

Files are compressed concurrently and reported as one batch. By default the
result is written next to the input as <name>-tiny.<ext>.

Examples:
  tinyimage compress photo.png
  tinyimage compress --output overwrite *.jpg
  tinyimage compress --output directory --output-dir ./tiny a.png b.webp`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, _, err := loadSettings()
			if err != nil {
				return err
			}
			if outputMode != "" {
				settings.OutputMode = config.OutputMode(outputMode)
			}
			if outputDir != "" {
				dir, err := config.ResolveDirectory(outputDir)
				if err != nil {
					return fmt.Errorf("invalid --output-dir: %w", err)
				}
				settings.OutputDirectory = dir
			}
			if notifyDone {
				settings.NotifyMode = config.NotifyNotification
			}
			if err := settings.Validate(); err != nil {
				return err
			}
			if settings.OutputMode == config.OutputDirectory && settings.OutputDirectory == "" {
				return compress.ErrMissingOutputDirectory
			}

			files := invocation.FilterImagePaths(args)
			if skipped := len(args) - len(files); skipped > 0 {
				GetLogger().Warn().Int("skipped", skipped).Msg("Ignoring files that are not png, jpg or webp")
			}
			if len(files) == 0 {
				return fmt.Errorf("no png, jpg or webp files given")
			}

			var lc batch.Lifecycle
			if notifyDone {
				lc = lifecycle.New(lifecycle.Options{
					Shell:    platform.NopShell{},
					Notifier: notify.NewNotifier(GetLogger()),
					Logger:   GetLogger(),
				})
			}

			s := runBatch(files, settings, lc)
			fmt.Fprintln(cmd.OutOrStdout(), renderSummary(s))
			if s.Failures > 0 {
				return fmt.Errorf("%d of %d files failed", s.Failures, s.Successes+s.Failures)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputMode, "output", "o", "", "Output mode: alongside, overwrite or directory")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "Directory for --output directory")
	cmd.Flags().BoolVar(&notifyDone, "notify", false, "Post a desktop notification when done")

	return cmd
}

// runBatch compresses files as one batch and blocks until it is finalized.
func runBatch(files []string, settings *config.Settings, lc batch.Lifecycle) batchSummary {
	log := GetLogger()
	bus := events.NewEventBus(len(files) + 4)
	defer bus.Close()
	completeC := bus.Subscribe(events.EventBatchComplete)

	var (
		reporter progress.Reporter
		onDone   func(batch.FileResult)
		finish   func()
	)

	if len(files) == 1 {
		bar := progress.NewCLIProgress()
		bar.Start(files[0])
		reporter = bar
		onDone = func(r batch.FileResult) {
			if r.Err != nil {
				bar.Error(r.Err)
				return
			}
			bar.Finish()
		}
		finish = func() {}
	} else {
		var ui progress.ProgressUI = progress.NewCompressUI(len(files))
		if ui.IsTerminal() {
			// Keep log lines above the bars
			prev := log.Output()
			log.SetOutput(ui.Writer())
			defer log.SetOutput(prev)
		}
		handles := make(map[string]progress.FileBarHandle, len(files))
		for _, f := range files {
			var size int64
			if info, err := os.Stat(f); err == nil {
				size = info.Size()
			}
			handles[f] = ui.AddFileBar(f, size)
		}
		reporter = ui
		onDone = func(r batch.FileResult) {
			h := handles[r.Path]
			if r.Err != nil {
				h.Complete("", r.Err)
				return
			}
			h.Complete(savedText(r.Result), nil)
		}
		finish = ui.Wait
	}

	var (
		mu      sync.Mutex
		summary batchSummary
	)
	coordinator := batch.New(batch.Options{
		Compressor:  newCompressor(log),
		Lifecycle:   lc,
		Reporter:    reporter,
		Bus:         bus,
		GracePeriod: cliGracePeriod,
		Context:     GetContext(),
		Logger:      log,
		OnFileDone: func(r batch.FileResult) {
			mu.Lock()
			summary.add(r)
			mu.Unlock()
			onDone(r)
		},
	})

	start := time.Now()
	coordinator.Enqueue(files, settings)
	coordinator.Wait()
	finish()

	select {
	case e := <-completeC:
		be := e.(*events.BatchEvent)
		summary.BatchID = be.BatchID
		summary.Duration = be.Duration
	default:
		summary.Duration = time.Since(start)
	}

	log.Debug().Str("batch_id", summary.BatchID).Msg("CLI batch finished")
	return summary
}

func savedText(r *compress.Result) string {
	if r == nil || r.InputSize == 0 {
		return ""
	}
	return fmt.Sprintf("%s → %s", formatBytes(r.InputSize), formatBytes(r.OutputSize))
}
