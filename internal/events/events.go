// Package events provides the in-process event bus that connects the
// coordinator core to its observers (the web UI bridge, the CLI, tests).
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinyimage/tinyimage/internal/constants"
)

// EventType defines the types of events that can be emitted.
// The values double as the event names the web UI listens for.
type EventType string

const (
	// Files to add to the UI list without compressing
	EventAddFiles EventType = "add-files"
	// Files to add to the UI list and compress immediately
	EventCompressFiles EventType = "compress-files"
	// Per-file phase/percent update
	EventCompressProgress EventType = "compress-progress"
	// In-UI result dialog request
	EventShowResultDialog EventType = "show-result-dialog"

	// Batch lifecycle, not forwarded to the UI
	EventBatchStarted  EventType = "batch-started"
	EventBatchComplete EventType = "batch-complete"

	EventLog EventType = "log"
)

// Progress phases reported by the compressor.
const (
	PhaseUploading   = "uploading"
	PhaseProcessing  = "processing"
	PhaseDownloading = "downloading"
)

// LogLevel defines log severity levels
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// FilesEvent carries paths for EventAddFiles and EventCompressFiles.
type FilesEvent struct {
	BaseEvent
	Paths []string
}

// ProgressEvent is one phase/percent update for a single file.
// Delivery is best-effort.
type ProgressEvent struct {
	BaseEvent
	Path    string
	Percent int // 0-100
	Phase   string
}

// ResultDialogEvent asks the UI to show the batch result message.
type ResultDialogEvent struct {
	BaseEvent
	Message string
}

// BatchEvent reports batch lifecycle transitions.
type BatchEvent struct {
	BaseEvent
	BatchID   string
	Successes int
	Failures  int
	Duration  time.Duration
}

// LogEvent represents log messages
type LogEvent struct {
	BaseEvent
	Level   LogLevel
	Message string
	Path    string
	Error   error
}

// EventBus manages event subscriptions and publishing
type EventBus struct {
	subscribers   map[EventType][]chan Event
	all           []chan Event // Subscribers to all events
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64 // Count of dropped events due to full buffers
}

// NewEventBus creates a new event bus with specified buffer size
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
		all:         make([]chan Event, 0),
		bufferSize:  bufferSize,
	}
}

// Subscribe creates a subscription to a specific event type
func (eb *EventBus) Subscribe(eventType EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	return ch
}

// SubscribeAll creates a subscription to all events
func (eb *EventBus) SubscribeAll() <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.all = append(eb.all, ch)
	return ch
}

// Publish sends an event to all subscribers without blocking.
// Events for a full subscriber are dropped and counted.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	for _, ch := range eb.subscribers[event.Type()] {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}

	for _, ch := range eb.all {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}
}

// Close shuts down the event bus and closes all channels
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	eb.closed = true

	for _, channels := range eb.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}

	for _, ch := range eb.all {
		close(ch)
	}
}

// PublishFiles publishes EventAddFiles or EventCompressFiles.
func (eb *EventBus) PublishFiles(eventType EventType, paths []string) {
	eb.Publish(&FilesEvent{
		BaseEvent: BaseEvent{EventType: eventType, Time: time.Now()},
		Paths:     append([]string(nil), paths...),
	})
}

// PublishProgress is a convenience method for publishing progress events
func (eb *EventBus) PublishProgress(path string, percent int, phase string) {
	eb.Publish(&ProgressEvent{
		BaseEvent: BaseEvent{EventType: EventCompressProgress, Time: time.Now()},
		Path:      path,
		Percent:   percent,
		Phase:     phase,
	})
}

// PublishResultDialog asks the UI to show message in a dialog.
func (eb *EventBus) PublishResultDialog(message string) {
	eb.Publish(&ResultDialogEvent{
		BaseEvent: BaseEvent{EventType: EventShowResultDialog, Time: time.Now()},
		Message:   message,
	})
}

// PublishLog is a convenience method for publishing log events
func (eb *EventBus) PublishLog(level LogLevel, message, path string, err error) {
	eb.Publish(&LogEvent{
		BaseEvent: BaseEvent{EventType: EventLog, Time: time.Now()},
		Level:     level,
		Message:   message,
		Path:      path,
		Error:     err,
	})
}

// Unsubscribe removes a subscription channel from a specific event type
func (eb *EventBus) Unsubscribe(eventType EventType, ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	subscribers := eb.subscribers[eventType]
	for i, subCh := range subscribers {
		if subCh == ch {
			subscribers[i] = subscribers[len(subscribers)-1]
			eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
			break
		}
	}
}

// UnsubscribeAll removes a subscription channel from all event types
func (eb *EventBus) UnsubscribeAll(ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	for eventType, subscribers := range eb.subscribers {
		for i, subCh := range subscribers {
			if subCh == ch {
				subscribers[i] = subscribers[len(subscribers)-1]
				eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
				break
			}
		}
	}

	for i, subCh := range eb.all {
		if subCh == ch {
			eb.all[i] = eb.all[len(eb.all)-1]
			eb.all = eb.all[:len(eb.all)-1]
			break
		}
	}
}

// GetDroppedEventCount returns the total number of events dropped due to full buffers
func (eb *EventBus) GetDroppedEventCount() int64 {
	return eb.droppedEvents.Load()
}
