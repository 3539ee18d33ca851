package registry

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/doorman-io/doorman/internal/model"
)

const fullDoc = `
[doors.front]
name = "Front garage door"
actuator = "relay-7"
pulse_start = "momentary_on"
pulse_stop = "momentary_off"

[doors.front.variables]
pulse_time = "500ms"
open_deadline = "45s"
close_deadline = "90s"
vent_deadline = "20s"

[doors.front.sensors.closed]
sensor = "input-3"
active = "1"

[doors.front.sensors.open]
sensor = "input-3"
active = "0"

[doors.front.sensors.vent]
sensor = "input-4"
active = "1"
`

const minimalDoor = `
[doors.%s]
actuator = "relay-1"
pulse_start = "on"
pulse_stop = "off"
[doors.%s.variables]
pulse_time = "250ms"
[doors.%s.sensors.closed]
sensor = "input-9"
active = "closed"
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doors.toml")
	if err := os.WriteFile(path, []byte(fullDoc), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	r, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}

	door, ok := r.Door("front")
	if !ok {
		t.Fatal("Door(front) not found")
	}
	if door.Name != "Front garage door" {
		t.Errorf("Name = %q", door.Name)
	}
	if door.Actuator != "relay-7" {
		t.Errorf("Actuator = %q", door.Actuator)
	}
	if door.PulseStartCmd != "momentary_on" || door.PulseStopCmd != "momentary_off" {
		t.Errorf("pulse commands = %q/%q", door.PulseStartCmd, door.PulseStopCmd)
	}
	if door.PulseTime != 500*time.Millisecond {
		t.Errorf("PulseTime = %v, want 500ms", door.PulseTime)
	}
	if got := door.Deadline(model.ActionOpen); got != 45*time.Second {
		t.Errorf("Deadline(open) = %v, want 45s", got)
	}
	if got := door.Deadline(model.ActionClose); got != 90*time.Second {
		t.Errorf("Deadline(close) = %v, want 90s", got)
	}
	if got := door.Deadline(model.ActionVent); got != 20*time.Second {
		t.Errorf("Deadline(vent) = %v, want 20s", got)
	}
	if !door.HasVent() {
		t.Error("HasVent() = false, want true")
	}
	if door.Closed != (Binding{Sensor: "input-3", Active: "1"}) {
		t.Errorf("Closed = %+v", door.Closed)
	}
	if door.Open == nil || *door.Open != (Binding{Sensor: "input-3", Active: "0"}) {
		t.Errorf("Open = %+v", door.Open)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doors.toml")
	if err := os.WriteFile(path, []byte("[doors.front\nname="), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed TOML")
	}
}

func TestLoadString_Defaults(t *testing.T) {
	r, err := LoadString(strings.ReplaceAll(minimalDoor, "%s", "side"))
	if err != nil {
		t.Fatalf("LoadString() error: %v", err)
	}
	door, ok := r.Door("side")
	if !ok {
		t.Fatal("Door(side) not found")
	}
	if door.Name != "side" {
		t.Errorf("Name = %q, want id fallback %q", door.Name, "side")
	}
	if got := door.Deadline(model.ActionOpen); got != DefaultOpenDeadline {
		t.Errorf("Deadline(open) = %v, want default %v", got, DefaultOpenDeadline)
	}
	if got := door.Deadline(model.ActionClose); got != DefaultCloseDeadline {
		t.Errorf("Deadline(close) = %v, want default %v", got, DefaultCloseDeadline)
	}
	if got := door.Deadline(model.ActionVent); got != DefaultVentDeadline {
		t.Errorf("Deadline(vent) = %v, want default %v", got, DefaultVentDeadline)
	}
	if door.HasVent() {
		t.Error("HasVent() = true, want false")
	}
	if door.Open != nil {
		t.Errorf("Open = %+v, want nil", door.Open)
	}
	if len(door.Bindings()) != 1 {
		t.Errorf("Bindings() = %d entries, want 1", len(door.Bindings()))
	}
}

// A valid file with one bad entry keeps the good door and records the skip.
func TestLoadString_PartialFleet(t *testing.T) {
	r, err := LoadString(`
[doors.good]
actuator = "relay-1"
pulse_start = "on"
pulse_stop = "off"
[doors.good.variables]
pulse_time = "500ms"
[doors.good.sensors.closed]
sensor = "input-1"
active = "1"

[doors.bad]
actuator = "relay-2"
pulse_start = "on"
pulse_stop = "off"
[doors.bad.variables]
pulse_time = "abc"
[doors.bad.sensors.closed]
sensor = "input-2"
active = "1"
`)
	if err != nil {
		t.Fatalf("LoadString() error: %v", err)
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}
	if _, ok := r.Door("good"); !ok {
		t.Error("Door(good) not found")
	}
	if _, ok := r.Door("bad"); ok {
		t.Error("Door(bad) should have been skipped")
	}

	skipped := r.Skipped()
	if len(skipped) != 1 {
		t.Fatalf("Skipped() = %d entries, want 1", len(skipped))
	}
	if skipped[0].ID != "bad" {
		t.Errorf("Skipped[0].ID = %q, want %q", skipped[0].ID, "bad")
	}
	var ve *model.ValidationError
	if !errors.As(skipped[0].Reason, &ve) {
		t.Fatalf("Skipped[0].Reason is %T, want *model.ValidationError", skipped[0].Reason)
	}
	if !strings.Contains(ve.Error(), "variables.pulse_time") {
		t.Errorf("skip reason %q does not name variables.pulse_time", ve.Error())
	}
}

func TestLoadString_Validation(t *testing.T) {
	for _, tc := range []struct {
		name  string
		doc   string
		field string
	}{
		{
			name: "MissingActuator",
			doc: `
[doors.a]
pulse_start = "on"
pulse_stop = "off"
[doors.a.variables]
pulse_time = "1s"
[doors.a.sensors.closed]
sensor = "i"
active = "1"
`,
			field: "actuator",
		},
		{
			name: "MissingPulseCommands",
			doc: `
[doors.a]
actuator = "r"
[doors.a.variables]
pulse_time = "1s"
[doors.a.sensors.closed]
sensor = "i"
active = "1"
`,
			field: "pulse_start",
		},
		{
			name: "MissingPulseTime",
			doc: `
[doors.a]
actuator = "r"
pulse_start = "on"
pulse_stop = "off"
[doors.a.sensors.closed]
sensor = "i"
active = "1"
`,
			field: "variables.pulse_time",
		},
		{
			name: "NegativePulseTime",
			doc: `
[doors.a]
actuator = "r"
pulse_start = "on"
pulse_stop = "off"
[doors.a.variables]
pulse_time = "-1s"
[doors.a.sensors.closed]
sensor = "i"
active = "1"
`,
			field: "variables.pulse_time",
		},
		{
			name: "UnknownVariable",
			doc: `
[doors.a]
actuator = "r"
pulse_start = "on"
pulse_stop = "off"
[doors.a.variables]
pulse_time = "1s"
close_deadine = "10s"
[doors.a.sensors.closed]
sensor = "i"
active = "1"
`,
			field: "variables.close_deadine",
		},
		{
			name: "MissingClosedSensor",
			doc: `
[doors.a]
actuator = "r"
pulse_start = "on"
pulse_stop = "off"
[doors.a.variables]
pulse_time = "1s"
[doors.a.sensors.open]
sensor = "i"
active = "1"
`,
			field: "sensors.closed",
		},
		{
			name: "UnknownPosition",
			doc: `
[doors.a]
actuator = "r"
pulse_start = "on"
pulse_stop = "off"
[doors.a.variables]
pulse_time = "1s"
[doors.a.sensors.closed]
sensor = "i"
active = "1"
[doors.a.sensors.halfway]
sensor = "i2"
active = "1"
`,
			field: "sensors.halfway",
		},
		{
			name: "DuplicateBinding",
			doc: `
[doors.a]
actuator = "r"
pulse_start = "on"
pulse_stop = "off"
[doors.a.variables]
pulse_time = "1s"
[doors.a.sensors.closed]
sensor = "i"
active = "1"
[doors.a.sensors.open]
sensor = "i"
active = "1"
`,
			field: "sensors.",
		},
		{
			name: "BadSensorToken",
			doc: `
[doors.a]
actuator = "r"
pulse_start = "on"
pulse_stop = "off"
[doors.a.variables]
pulse_time = "1s"
[doors.a.sensors.closed]
sensor = "input.3"
active = "1"
`,
			field: "sensors.closed.sensor",
		},
		{
			name: "EmptyActive",
			doc: `
[doors.a]
actuator = "r"
pulse_start = "on"
pulse_stop = "off"
[doors.a.variables]
pulse_time = "1s"
[doors.a.sensors.closed]
sensor = "i"
active = ""
`,
			field: "sensors.closed.active",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r, err := LoadString(tc.doc)
			if err != nil {
				t.Fatalf("LoadString() error: %v", err)
			}
			if r.Len() != 0 {
				t.Fatalf("Len() = %d, want 0 (entry should be skipped)", r.Len())
			}
			skipped := r.Skipped()
			if len(skipped) != 1 {
				t.Fatalf("Skipped() = %d entries, want 1", len(skipped))
			}
			if !strings.Contains(skipped[0].Reason.Error(), tc.field) {
				t.Errorf("skip reason %q does not name field %q", skipped[0].Reason.Error(), tc.field)
			}
		})
	}
}

func TestDoorsForSensor(t *testing.T) {
	r, err := LoadString(`
[doors.a]
actuator = "relay-1"
pulse_start = "on"
pulse_stop = "off"
[doors.a.variables]
pulse_time = "1s"
[doors.a.sensors.closed]
sensor = "shared"
active = "a-closed"

[doors.b]
actuator = "relay-2"
pulse_start = "on"
pulse_stop = "off"
[doors.b.variables]
pulse_time = "1s"
[doors.b.sensors.closed]
sensor = "shared"
active = "b-closed"
[doors.b.sensors.open]
sensor = "only-b"
active = "1"
`)
	if err != nil {
		t.Fatalf("LoadString() error: %v", err)
	}

	if got := r.DoorsForSensor("shared"); len(got) != 2 {
		t.Errorf("DoorsForSensor(shared) = %d doors, want 2", len(got))
	}
	got := r.DoorsForSensor("only-b")
	if len(got) != 1 || got[0].ID != "b" {
		t.Errorf("DoorsForSensor(only-b) = %+v, want just door b", got)
	}
	if got := r.DoorsForSensor("nope"); len(got) != 0 {
		t.Errorf("DoorsForSensor(nope) = %d doors, want 0", len(got))
	}
}

func TestDoors_Sorted(t *testing.T) {
	doc := strings.ReplaceAll(minimalDoor, "%s", "zulu") + strings.ReplaceAll(strings.ReplaceAll(minimalDoor, "input-9", "input-8"), "%s", "alpha")
	r, err := LoadString(doc)
	if err != nil {
		t.Fatalf("LoadString() error: %v", err)
	}
	doors := r.Doors()
	if len(doors) != 2 || doors[0].ID != "alpha" || doors[1].ID != "zulu" {
		ids := make([]string, len(doors))
		for i, d := range doors {
			ids[i] = d.ID
		}
		t.Errorf("Doors() order = %v, want [alpha zulu]", ids)
	}
}

func TestBindings_PriorityOrder(t *testing.T) {
	r, err := LoadString(fullDoc)
	if err != nil {
		t.Fatalf("LoadString() error: %v", err)
	}
	door, _ := r.Door("front")
	bs := door.Bindings()
	if len(bs) != 3 {
		t.Fatalf("Bindings() = %d entries, want 3", len(bs))
	}
	// closed first, then vent, then open.
	if bs[0] != door.Closed {
		t.Errorf("Bindings()[0] = %+v, want closed binding", bs[0])
	}
	if bs[1] != *door.Vent {
		t.Errorf("Bindings()[1] = %+v, want vent binding", bs[1])
	}
	if bs[2] != *door.Open {
		t.Errorf("Bindings()[2] = %+v, want open binding", bs[2])
	}
}
