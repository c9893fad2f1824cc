package wailsapp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/tinyimage/tinyimage/internal/constants"
	"github.com/tinyimage/tinyimage/internal/events"
	"github.com/tinyimage/tinyimage/internal/logging"
)

type emitFunc func(ctx context.Context, eventName string, optionalData ...interface{})

// EventBridge forwards events from internal EventBus to Wails runtime.
type EventBridge struct {
	ctx          context.Context
	eventBus     *events.EventBus
	subscription <-chan events.Event
	emit         emitFunc
	logger       *logging.Logger

	// Throttling for high-frequency events
	lastProgress     map[string]time.Time
	progressInterval time.Duration

	stopC   chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewEventBridge creates a new event bridge.
func NewEventBridge(ctx context.Context, eventBus *events.EventBus, logger *logging.Logger) *EventBridge {
	return newEventBridge(ctx, eventBus, runtime.EventsEmit, logger)
}

func newEventBridge(ctx context.Context, eventBus *events.EventBus, emit emitFunc, logger *logging.Logger) *EventBridge {
	if logger == nil {
		logger = logging.Nop()
	}
	return &EventBridge{
		ctx:              ctx,
		eventBus:         eventBus,
		emit:             emit,
		logger:           logger.Component("bridge"),
		lastProgress:     make(map[string]time.Time),
		progressInterval: constants.ProgressThrottleInterval,
		stopC:            make(chan struct{}),
	}
}

// Start begins forwarding events. A second call is ignored.
func (eb *EventBridge) Start() error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.started {
		eb.logger.Warn().Msg("Event bridge already started, ignoring duplicate Start()")
		return nil
	}

	eb.subscription = eb.eventBus.SubscribeAll()
	if eb.subscription == nil {
		return fmt.Errorf("event bridge: failed to subscribe to event bus")
	}

	eb.started = true
	eb.wg.Add(1)
	go eb.forwardLoop()

	eb.logger.Debug().Msg("Event bridge started")
	return nil
}

// Stop stops forwarding events.
func (eb *EventBridge) Stop() {
	eb.mu.Lock()
	if !eb.started {
		eb.mu.Unlock()
		return
	}
	eb.started = false
	eb.lastProgress = make(map[string]time.Time)
	sub := eb.subscription
	eb.mu.Unlock()

	close(eb.stopC)
	eb.wg.Wait()
	eb.eventBus.UnsubscribeAll(sub)

	eb.logger.Debug().Msg("Event bridge stopped")
}

func (eb *EventBridge) forwardLoop() {
	defer eb.wg.Done()

	for {
		select {
		case event, ok := <-eb.subscription:
			if !ok {
				return
			}
			eb.forwardEvent(event)

		case <-eb.stopC:
			return
		}
	}
}

func (eb *EventBridge) forwardEvent(event events.Event) {
	switch e := event.(type) {
	case *events.FilesEvent:
		// add-files / compress-files carry the bare path list
		eb.emit(eb.ctx, string(e.Type()), e.Paths)

	case *events.ProgressEvent:
		// First and last updates are never dropped
		terminal := e.Percent <= 0 || e.Percent >= 100
		if !terminal && eb.shouldThrottle(e.Path) {
			return
		}
		if e.Percent >= 100 {
			eb.forget(e.Path)
		}
		eb.emit(eb.ctx, string(events.EventCompressProgress), progressEventToDTO(e))

	case *events.ResultDialogEvent:
		eb.emit(eb.ctx, string(events.EventShowResultDialog), e.Message)

	case *events.LogEvent:
		eb.emit(eb.ctx, string(events.EventLog), logEventToDTO(e))
	}
}

func (eb *EventBridge) shouldThrottle(key string) bool {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	now := time.Now()
	if last, ok := eb.lastProgress[key]; ok {
		if now.Sub(last) < eb.progressInterval {
			return true
		}
	}
	eb.lastProgress[key] = now
	return false
}

func (eb *EventBridge) forget(key string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	delete(eb.lastProgress, key)
}

// DTO conversion functions for JSON-safe serialization

// ProgressEventDTO is the JSON-safe version of events.ProgressEvent.
type ProgressEventDTO struct {
	Path    string `json:"path"`
	Percent int    `json:"percent"`
	Phase   string `json:"phase"`
}

func progressEventToDTO(e *events.ProgressEvent) ProgressEventDTO {
	return ProgressEventDTO{
		Path:    e.Path,
		Percent: e.Percent,
		Phase:   e.Phase,
	}
}

// LogEventDTO is the JSON-safe version of events.LogEvent.
type LogEventDTO struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	Path      string `json:"path,omitempty"`
	Error     string `json:"error,omitempty"`
}

func logEventToDTO(e *events.LogEvent) LogEventDTO {
	dto := LogEventDTO{
		Timestamp: e.Timestamp().Format(time.RFC3339Nano),
		Level:     e.Level.String(),
		Message:   e.Message,
		Path:      e.Path,
	}
	if e.Error != nil {
		dto.Error = e.Error.Error()
	}
	return dto
}
