package types

// EngineState is the auto-timer state machine state.
type EngineState string

const (
	StateInactive EngineState = "inactive"
	StateEntering EngineState = "entering"
	StateActive   EngineState = "active"
	StateExiting  EngineState = "exiting"
)

// EventKind is the kind of a geofence transition event.
type EventKind string

const (
	EventEnter EventKind = "enter"
	EventExit  EventKind = "exit"
)

// ActionKind is the kind of a scheduled session action.
type ActionKind string

const (
	ActionStart ActionKind = "start"
	ActionStop  ActionKind = "stop"
)

// Provenance records who started a session. The engine never stops or
// reinterprets a session it did not start.
type Provenance string

const (
	ProvenanceAuto   Provenance = "auto"
	ProvenanceManual Provenance = "manual"
)

// Valid reports whether the event kind is one of the known values.
func (k EventKind) Valid() bool {
	return k == EventEnter || k == EventExit
}
