package instancedriver

import "encoding/json"

// EventKind is the tagged-union discriminant for InstanceDriverEvent,
// grounded on original_source/rust/api/src/instance/driver/events.rs.
type EventKind string

const (
	EventStarted        EventKind = "started"
	EventIOError         EventKind = "io_error"
	EventConnectionLost EventKind = "connection_lost"
	EventConnected      EventKind = "connected"
	EventReports        EventKind = "reports"
	EventPlayState      EventKind = "play_state"
)

// Event is the closed tagged union consumed by FixedInstanceActor's
// driver stream handler (spec.md §4.2).
type Event struct {
	Kind EventKind `json:"kind"`

	// Set when Kind == EventIOError.
	Error string `json:"error,omitempty"`

	// Set when Kind == EventReports.
	Reports json.RawMessage `json:"reports,omitempty"`

	// Set when Kind == EventPlayState.
	PlayState *ActualInstancePlayState `json:"play_state,omitempty"`
}
