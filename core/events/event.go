package events

import "charitychain/core/types"

// Event represents a structured state change emitted by an engine.
type Event interface {
	EventType() string
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events. It
// is the default wired into engines until the node installs a real sink.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// MemoryEmitter buffers emitted events in order. Used by tests and by the
// node's per-call event capture.
type MemoryEmitter struct {
	Events []*types.Event
}

// Emit implements the Emitter interface.
func (m *MemoryEmitter) Emit(evt Event) {
	if m == nil || evt == nil {
		return
	}
	if payload := evt.Event(); payload != nil {
		m.Events = append(m.Events, payload)
	}
}

// Reset drops any buffered events.
func (m *MemoryEmitter) Reset() {
	if m == nil {
		return
	}
	m.Events = m.Events[:0]
}
