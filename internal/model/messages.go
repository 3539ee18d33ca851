package model

import "time"

// Command asks a door to move. It arrives on the door's command subject;
// the caller may set CallerToken to correlate the reply stream, otherwise
// the controller assigns one.
type Command struct {
	Action      Action `json:"action"`
	CallerToken string `json:"caller_token,omitempty"`
}

// Reply reports the disposition of a command. Non-terminal outcomes
// (accepted, processing) are followed by exactly one terminal outcome.
type Reply struct {
	DoorID      string       `json:"door_id"`
	CallerToken string       `json:"caller_token,omitempty"`
	Action      Action       `json:"action"`
	Outcome     ReplyOutcome `json:"outcome"`
	Message     string       `json:"message,omitempty"`
	At          time.Time    `json:"at"`
}

// SensorStatus is a raw reading from a binary input device. Reading is
// the device's raw string; the registry's bindings decide what it means.
type SensorStatus struct {
	SensorID string    `json:"sensor_id"`
	Reading  string    `json:"reading"`
	At       time.Time `json:"at"`
}

// ActuatorCommand instructs the actuation layer to drive a relay.
// CommandID is the registry-configured pulse command for the actuator.
// Pulse-start commands are fire-and-forget; pulse-stop commands carry
// the CorrelationID the controller tracks acks against.
type ActuatorCommand struct {
	ActuatorID    string    `json:"actuator_id"`
	CommandID     string    `json:"command_id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	At            time.Time `json:"at"`
}

// ActuatorAck is the actuation layer's report for a dispatched pulse,
// routed back to the issuing controller by CorrelationID.
type ActuatorAck struct {
	CorrelationID string     `json:"correlation_id"`
	Outcome       AckOutcome `json:"outcome"`
	Detail        string     `json:"detail,omitempty"`
}

// StatusUpdate announces a door's fused position label.
type StatusUpdate struct {
	DoorID   string    `json:"door_id"`
	Label    State     `json:"label"`
	Position float64   `json:"position"`
	Source   Source    `json:"source"`
	At       time.Time `json:"at"`
}

// Alert is an operator-facing notification (timeouts, misconfiguration).
type Alert struct {
	DoorID   string    `json:"door_id,omitempty"`
	Title    string    `json:"title"`
	Message  string    `json:"message"`
	Severity Severity  `json:"severity"`
	Expires  time.Time `json:"expires,omitempty"`
	At       time.Time `json:"at"`
}
