// Package reconcile fuses raw sensor readings into a door position label.
//
// The actuator gives no feedback, so the label is derived entirely from
// the latest cached reading of each bound sensor. Priority order, first
// match wins: closed, vent, open. A door with no open sensor infers
// "open" from the closed sensor's complement.
package reconcile

import (
	"github.com/doorman-io/doorman/internal/model"
	"github.com/doorman-io/doorman/internal/registry"
)

// Readings caches the latest raw reading per input sensor. Each door owns
// one cache covering only its bound sensors; a missing key means the
// sensor has not reported yet.
type Readings map[string]string

// Label computes the fused position label for a door. It is a pure
// function of the readings: same cache contents, same label.
func Label(door *registry.Door, readings Readings) model.State {
	if v, ok := readings[door.Closed.Sensor]; ok && v == door.Closed.Active {
		return model.StateClosed
	}
	if door.Vent != nil {
		if v, ok := readings[door.Vent.Sensor]; ok && v == door.Vent.Active {
			return model.StateVenting
		}
	}
	if door.Open != nil {
		if v, ok := readings[door.Open.Sensor]; ok && v == door.Open.Active {
			return model.StateOpen
		}
		return model.StateUnknown
	}
	// No open sensor: any reading that is not the closed value means open.
	if v, ok := readings[door.Closed.Sensor]; ok && v != door.Closed.Active {
		return model.StateOpen
	}
	return model.StateUnknown
}
