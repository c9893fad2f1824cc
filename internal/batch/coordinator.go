// Package batch runs compress requests as logical batches.
//
// Files arrive one invocation at a time and each runs in its own goroutine.
// Overlapping files form a single batch that gets one result notification
// and, in background mode, one exit request.
package batch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tinyimage/tinyimage/internal/compress"
	"github.com/tinyimage/tinyimage/internal/config"
	"github.com/tinyimage/tinyimage/internal/constants"
	"github.com/tinyimage/tinyimage/internal/events"
	"github.com/tinyimage/tinyimage/internal/logging"
	"github.com/tinyimage/tinyimage/internal/progress"
	"github.com/tinyimage/tinyimage/internal/state"
)

var errNoCompressor = errors.New("no compressor configured")

// Lifecycle is the part of lifecycle.Controller the coordinator drives.
type Lifecycle interface {
	IsBackground() bool
	NotifyBatchResult(successes, failures int, mode config.NotifyMode, forceSystem bool)
	RequestExit(code int)
}

// FileResult is passed to Options.OnFileDone for every finished file.
type FileResult struct {
	BatchID string
	Path    string
	Result  *compress.Result
	Err     error
}

// Options configures a Coordinator.
type Options struct {
	State      *state.CoordinatorState
	Compressor compress.Compressor
	Lifecycle  Lifecycle
	Reporter   progress.Reporter
	Bus        *events.EventBus

	// GracePeriod and ExitDelay override the values in Settings when non-zero.
	GracePeriod time.Duration
	ExitDelay   time.Duration

	// OnFileDone is called from the file's goroutine after it is recorded.
	OnFileDone func(FileResult)

	// Context is used for every Compress call. Defaults to Background.
	Context context.Context
	Logger  *logging.Logger
}

// Coordinator fans files out to the Compressor and finalizes each batch once.
type Coordinator struct {
	state      *state.CoordinatorState
	compressor compress.Compressor
	lifecycle  Lifecycle
	reporter   progress.Reporter
	bus        *events.EventBus
	grace      time.Duration
	exitDelay  time.Duration
	onFileDone func(FileResult)
	ctx        context.Context
	logger     *logging.Logger

	// Settings of the most recent Enqueue; read by the finalizer.
	settingsMu sync.Mutex
	settings   *config.Settings

	wg sync.WaitGroup
}

// New creates a Coordinator.
func New(opts Options) *Coordinator {
	if opts.State == nil {
		opts.State = state.New()
	}
	if opts.Reporter == nil {
		opts.Reporter = progress.NoOpReporter{}
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &Coordinator{
		state:      opts.State,
		compressor: opts.Compressor,
		lifecycle:  opts.Lifecycle,
		reporter:   opts.Reporter,
		bus:        opts.Bus,
		grace:      opts.GracePeriod,
		exitDelay:  opts.ExitDelay,
		onFileDone: opts.OnFileDone,
		ctx:        opts.Context,
		logger:     opts.Logger.Component("batch"),
		settings:   config.Defaults(),
	}
}

// Enqueue starts one goroutine per file and returns immediately. settings
// is copied, so the caller may reuse it.
func (c *Coordinator) Enqueue(files []string, settings *config.Settings) {
	if len(files) == 0 {
		return
	}
	if settings == nil {
		settings = config.Defaults()
	}
	snapshot := settings.Clone()

	c.settingsMu.Lock()
	c.settings = snapshot
	c.settingsMu.Unlock()

	for _, path := range files {
		batchID, startedNew := c.state.Batch.Acquire()
		if startedNew {
			c.logger.Info().Str("batch_id", batchID).Msg("Batch started")
			c.publishBatch(events.EventBatchStarted, state.BatchResult{BatchID: batchID})
		}

		c.wg.Add(1)
		go c.run(batchID, path, snapshot)
	}
}

func (c *Coordinator) run(batchID, path string, settings *config.Settings) {
	defer c.wg.Done()

	fileID := uuid.New().String()[:8]
	log := c.logger.With().Str("batch_id", batchID).Str("file_id", fileID).Str("path", path).Logger()

	var (
		result *compress.Result
		err    error
	)
	if c.compressor == nil {
		err = errNoCompressor
	} else {
		result, err = c.compressor.Compress(c.ctx, path, settings, c.reporter)
	}

	if err != nil {
		log.Warn().Err(err).Msg("Compression failed")
		if c.bus != nil {
			c.bus.PublishLog(events.ErrorLevel, "compression failed", path, err)
		}
	} else {
		log.Info().Int64("input_size", result.InputSize).Int64("output_size", result.OutputSize).
			Str("output", result.OutputPath).Msg("Compressed")
	}

	if c.onFileDone != nil {
		c.onFileDone(FileResult{BatchID: batchID, Path: path, Result: result, Err: err})
	}

	c.fileDone(err == nil)
}

// fileDone records one outcome. Only the call that drains the batch gets a
// ticket, and only the ticket holder runs the finalizer.
func (c *Coordinator) fileDone(ok bool) {
	ticket, last := c.state.Batch.Release(ok)
	if !last {
		return
	}
	c.finalize(ticket)
}

func (c *Coordinator) finalize(ticket uint64) {
	settings := c.currentSettings()

	time.Sleep(c.gracePeriod(settings))

	result, closed := c.state.Batch.Close(ticket)
	if !closed {
		// More files arrived inside the grace window; a later drain owns it.
		c.logger.Debug().Uint64("ticket", ticket).Msg("Batch grew during grace period")
		return
	}

	c.logger.Info().
		Str("batch_id", result.BatchID).
		Int("successes", result.Successes).
		Int("failures", result.Failures).
		Dur("duration", result.Duration).
		Msg("Batch complete")

	c.publishBatch(events.EventBatchComplete, result)

	if c.lifecycle == nil {
		return
	}
	c.lifecycle.NotifyBatchResult(result.Successes, result.Failures, settings.NotifyMode, false)

	if !c.lifecycle.IsBackground() {
		return
	}
	time.Sleep(c.exitDelayFor(settings))
	if !c.state.Batch.Idle() {
		c.logger.Info().Msg("New batch started during exit delay, staying alive")
		return
	}
	c.lifecycle.RequestExit(constants.BackgroundExitCode)
}

// Wait blocks until every started file and its finalizer have returned.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Snapshot returns the current batch counters.
func (c *Coordinator) Snapshot() state.BatchSnapshot {
	return c.state.Batch.Snapshot()
}

func (c *Coordinator) currentSettings() *config.Settings {
	c.settingsMu.Lock()
	defer c.settingsMu.Unlock()
	return c.settings
}

func (c *Coordinator) gracePeriod(s *config.Settings) time.Duration {
	if c.grace > 0 {
		return c.grace
	}
	return s.GracePeriod()
}

func (c *Coordinator) exitDelayFor(s *config.Settings) time.Duration {
	if c.exitDelay > 0 {
		return c.exitDelay
	}
	return s.ExitDelay()
}

func (c *Coordinator) publishBatch(eventType events.EventType, r state.BatchResult) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(&events.BatchEvent{
		BaseEvent: events.BaseEvent{EventType: eventType, Time: time.Now()},
		BatchID:   r.BatchID,
		Successes: r.Successes,
		Failures:  r.Failures,
		Duration:  r.Duration,
	})
}
