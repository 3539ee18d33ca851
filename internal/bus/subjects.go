package bus

import "strings"

// DefaultPrefix is the subject prefix used when none is configured.
const DefaultPrefix = "doors"

// Subjects builds the subject space under one prefix:
//
//	<p>.cmd.<door_id>      inbound commands
//	<p>.sensor.<sensor_id> inbound raw sensor readings
//	<p>.ack                inbound actuator acks (routed by correlation id)
//	<p>.actuate.<actuator> outbound pulse commands
//	<p>.reply.<door_id>    outbound command replies
//	<p>.status.<door_id>   outbound status updates
//	<p>.alert              outbound alerts
type Subjects struct {
	prefix string
}

// NewSubjects returns a subject builder for the given prefix; an empty
// prefix falls back to DefaultPrefix.
func NewSubjects(prefix string) Subjects {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Subjects{prefix: prefix}
}

// Prefix returns the configured prefix.
func (s Subjects) Prefix() string { return s.prefix }

// Command returns the command subject for one door.
func (s Subjects) Command(doorID string) string { return s.prefix + ".cmd." + doorID }

// Commands returns the wildcard matching every door's command subject.
func (s Subjects) Commands() string { return s.prefix + ".cmd.>" }

// Sensor returns the reading subject for one input sensor.
func (s Subjects) Sensor(sensorID string) string { return s.prefix + ".sensor." + sensorID }

// Sensors returns the wildcard matching every sensor subject.
func (s Subjects) Sensors() string { return s.prefix + ".sensor.>" }

// Ack returns the shared actuator-ack subject.
func (s Subjects) Ack() string { return s.prefix + ".ack" }

// Actuate returns the pulse-command subject for one actuator.
func (s Subjects) Actuate(actuatorID string) string { return s.prefix + ".actuate." + actuatorID }

// Actuations returns the wildcard matching every actuator's subject.
func (s Subjects) Actuations() string { return s.prefix + ".actuate.>" }

// Reply returns the reply subject for one door.
func (s Subjects) Reply(doorID string) string { return s.prefix + ".reply." + doorID }

// Replies returns the wildcard matching every door's reply subject.
func (s Subjects) Replies() string { return s.prefix + ".reply.>" }

// Status returns the status subject for one door.
func (s Subjects) Status(doorID string) string { return s.prefix + ".status." + doorID }

// Statuses returns the wildcard matching every door's status subject.
func (s Subjects) Statuses() string { return s.prefix + ".status.>" }

// Alert returns the shared alert subject.
func (s Subjects) Alert() string { return s.prefix + ".alert" }

// DoorFromCommand extracts the door id from a command subject.
func (s Subjects) DoorFromCommand(subject string) (string, bool) {
	return s.tail(subject, ".cmd.")
}

// SensorFromSubject extracts the sensor id from a reading subject.
func (s Subjects) SensorFromSubject(subject string) (string, bool) {
	return s.tail(subject, ".sensor.")
}

// DoorFromStatus extracts the door id from a status subject.
func (s Subjects) DoorFromStatus(subject string) (string, bool) {
	return s.tail(subject, ".status.")
}

func (s Subjects) tail(subject, mid string) (string, bool) {
	rest, ok := strings.CutPrefix(subject, s.prefix+mid)
	if !ok || rest == "" || strings.Contains(rest, ".") {
		return "", false
	}
	return rest, true
}
