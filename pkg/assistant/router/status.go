// Package router classifies incoming messages into capability intents,
// runs each matched module through a bounded agent loop, and aggregates
// the results into one reply.
package router

import (
	"log/slog"
	"sync"
)

// Event types emitted on the live status stream.
const (
	EventStatus = "status"
	EventResult = "result"
	EventError  = "error"
)

// Event is one item on a request's live stream. A result or error event is
// always the last one before the stream closes.
type Event struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Intent  string `json:"intent,omitempty"`
}

// statusQueueSize bounds the per-request event buffer. A slow or absent
// consumer never blocks request processing: overflow events are dropped.
const statusQueueSize = 32

// StatusEmitter fans progress events to an optional per-request consumer.
// Emit never blocks; Close is idempotent and signals end of stream.
type StatusEmitter struct {
	ch     chan Event
	once   sync.Once
	logger *slog.Logger
}

// NewStatusEmitter creates an emitter with a bounded buffer.
func NewStatusEmitter(logger *slog.Logger) *StatusEmitter {
	return &StatusEmitter{
		ch:     make(chan Event, statusQueueSize),
		logger: logger.With("component", "status"),
	}
}

// Events returns the consumer side. The channel is closed when the request
// finishes; the final event before close is always a result or error.
func (e *StatusEmitter) Events() <-chan Event { return e.ch }

// Emit enqueues an event, dropping it if the buffer is full or the stream
// is already closed.
func (e *StatusEmitter) Emit(ev Event) {
	defer func() {
		// Send on closed channel: emit after Close is a no-op.
		if recover() != nil {
			e.logger.Debug("event after stream close dropped", "type", ev.Type)
		}
	}()
	select {
	case e.ch <- ev:
	default:
		e.logger.Debug("status queue full, event dropped", "type", ev.Type, "intent", ev.Intent)
	}
}

// Status emits a progress event.
func (e *StatusEmitter) Status(content string) {
	e.Emit(Event{Type: EventStatus, Content: content})
}

// StatusFor emits a progress event attributed to an intent.
func (e *StatusEmitter) StatusFor(intent, content string) {
	e.Emit(Event{Type: EventStatus, Content: content, Intent: intent})
}

// Close ends the stream. Safe to call multiple times.
func (e *StatusEmitter) Close() {
	e.once.Do(func() { close(e.ch) })
}
