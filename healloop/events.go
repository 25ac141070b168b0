package healloop

import (
	"sync"
	"time"
)

// EventKind identifies the type of loop event.
type EventKind string

const (
	EventRunStart          EventKind = "run_start"
	EventRunEnd            EventKind = "run_end"
	EventGenerating        EventKind = "generating"
	EventArtifactRecovered EventKind = "artifact_recovered"
	EventExecuting         EventKind = "executing"
	EventDiagnostics       EventKind = "diagnostics"
	EventCorrecting        EventKind = "correcting"
	EventStallDetected     EventKind = "stall_detected"
	EventSucceeded         EventKind = "succeeded"
	EventExhausted         EventKind = "exhausted"
	EventError             EventKind = "error"
)

// LoopEvent is a typed event emitted by the correction loop.
type LoopEvent struct {
	Kind      EventKind              `json:"kind"`
	Timestamp time.Time              `json:"timestamp"`
	RunID     string                 `json:"run_id"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// EventEmitter delivers typed events to the host application via a channel.
type EventEmitter struct {
	runID  string
	ch     chan LoopEvent
	closed bool
	mu     sync.Mutex
}

// NewEventEmitter creates a new EventEmitter with a buffered channel.
func NewEventEmitter(runID string, bufferSize int) *EventEmitter {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &EventEmitter{
		runID: runID,
		ch:    make(chan LoopEvent, bufferSize),
	}
}

// Emit sends an event to the channel. If the emitter is closed, the event
// is silently dropped.
func (e *EventEmitter) Emit(kind EventKind, data map[string]interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	event := LoopEvent{
		Kind:      kind,
		Timestamp: time.Now(),
		RunID:     e.runID,
		Data:      data,
	}
	select {
	case e.ch <- event:
	default:
		// Channel full; drop event to avoid blocking the loop.
	}
}

// Events returns the read-only event channel.
func (e *EventEmitter) Events() <-chan LoopEvent {
	return e.ch
}

// Close closes the event channel. Safe to call multiple times.
func (e *EventEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.ch)
	}
}
