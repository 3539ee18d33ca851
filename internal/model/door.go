package model

import "time"

// Action is a movement command for a door.
type Action string

const (
	ActionOpen  Action = "open"
	ActionClose Action = "close"
	ActionVent  Action = "vent"
)

// String returns the string representation of the action.
func (a Action) String() string {
	return string(a)
}

// IsValid checks whether the action is a known value.
func (a Action) IsValid() bool {
	switch a {
	case ActionOpen, ActionClose, ActionVent:
		return true
	}
	return false
}

// Target returns the door state that confirms the action completed.
func (a Action) Target() State {
	switch a {
	case ActionOpen:
		return StateOpen
	case ActionClose:
		return StateClosed
	case ActionVent:
		return StateVenting
	}
	return StateUnknown
}

// State is the fused position label of a door.
type State string

const (
	StateOpen    State = "open"
	StateClosed  State = "closed"
	StateVenting State = "venting"
	StateUnknown State = "unknown"
)

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// IsValid checks whether the state is a known value.
func (s State) IsValid() bool {
	switch s {
	case StateOpen, StateClosed, StateVenting, StateUnknown:
		return true
	}
	return false
}

// Position maps the state to a normalized numeric position: closed 0,
// venting 0.5, open 1. Unknown returns -1; callers keep the previous
// position rather than guessing.
func (s State) Position() float64 {
	switch s {
	case StateClosed:
		return 0
	case StateVenting:
		return 0.5
	case StateOpen:
		return 1
	}
	return -1
}

// ReplyOutcome is the disposition of a command, reported to the caller.
// A command produces a stream of replies ending in a terminal outcome.
type ReplyOutcome string

const (
	OutcomeAccepted         ReplyOutcome = "accepted"
	OutcomeAlreadyPending   ReplyOutcome = "already_pending"
	OutcomeAlreadySatisfied ReplyOutcome = "already_satisfied"
	OutcomeProcessing       ReplyOutcome = "processing"
	OutcomeDone             ReplyOutcome = "done"
	OutcomeFailed           ReplyOutcome = "failed"
)

// String returns the string representation of the outcome.
func (o ReplyOutcome) String() string {
	return string(o)
}

// Terminal reports whether no further replies follow this outcome.
// Accepted and processing are progress reports; everything else ends
// the command's reply stream.
func (o ReplyOutcome) Terminal() bool {
	switch o {
	case OutcomeAccepted, OutcomeProcessing:
		return false
	}
	return true
}

// AckOutcome is the actuation layer's report for a dispatched pulse.
type AckOutcome string

const (
	AckProcessing AckOutcome = "processing"
	AckDone       AckOutcome = "done"
	AckFailed     AckOutcome = "failed"
)

// String returns the string representation of the ack outcome.
func (o AckOutcome) String() string {
	return string(o)
}

// IsValid checks whether the ack outcome is a known value.
func (o AckOutcome) IsValid() bool {
	switch o {
	case AckProcessing, AckDone, AckFailed:
		return true
	}
	return false
}

// Severity ranks alerts for downstream sinks.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	return string(s)
}

// Source identifies what produced a status update.
type Source string

const (
	// SourceReconciler marks updates computed from sensor readings.
	SourceReconciler Source = "reconciler"
	// SourceAdmission marks the idempotent confirmation pushed when a
	// command finds the door already in its target state.
	SourceAdmission Source = "admission"
	// SourceStartup marks the initial unknown status published when a
	// door is registered.
	SourceStartup Source = "startup"
)

// DoorSnapshot is the read model served by the admin API and the CLI.
type DoorSnapshot struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	State     State        `json:"state"`
	Position  float64      `json:"position"`
	BadClose  bool         `json:"bad_close,omitempty"`
	Pending   *PendingInfo `json:"pending,omitempty"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// PendingInfo describes a door's in-flight request, if any.
type PendingInfo struct {
	Action        Action    `json:"action"`
	Phase         string    `json:"phase"`
	CorrelationID string    `json:"correlation_id"`
	Since         time.Time `json:"since"`
}
