package orchestrator

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	charmlog "github.com/charmbracelet/log"
)

// EventEmitter delivers coordinator events to a single subscriber.
// Emit never blocks for long: when the buffer stays full the event is dropped.
type EventEmitter struct {
	events       chan Event
	droppedCount atomic.Uint64
	logger       *charmlog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewEventEmitter creates a new EventEmitter with the given buffer size.
func NewEventEmitter(bufferSize int, logger *charmlog.Logger) *EventEmitter {
	if logger == nil {
		logger = charmlog.New(io.Discard)
	}
	return &EventEmitter{
		events: make(chan Event, bufferSize),
		logger: logger,
	}
}

// Emit sends an event to the events channel.
// If the channel is full, it tries with a timeout before dropping the event.
func (e *EventEmitter) Emit(event Event) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case e.events <- event:
		return
	default:
	}

	// Give the receiver a chance to drain
	select {
	case e.events <- event:
	case <-time.After(100 * time.Millisecond):
		count := e.droppedCount.Add(1)
		if count%10 == 1 {
			e.logger.Warn("event channel full, dropped event", "type", event.Type, "dropped", count)
		}
	}
}

// DroppedCount returns the total number of events that have been dropped.
func (e *EventEmitter) DroppedCount() uint64 {
	return e.droppedCount.Load()
}

// Events returns a read-only channel of events.
func (e *EventEmitter) Events() <-chan Event {
	return e.events
}

// Close closes the events channel. Later Emit calls are ignored.
func (e *EventEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	close(e.events)
}
