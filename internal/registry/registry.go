// Package registry loads the static door fleet configuration from a TOML
// file. A malformed file fails the load; an invalid door entry in a valid
// file skips only that door so the rest of the fleet still runs.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/doorman-io/doorman/internal/model"
)

// Confirmation deadline defaults, applied when a door's variables do not
// override them.
const (
	DefaultOpenDeadline  = 60 * time.Second
	DefaultCloseDeadline = 60 * time.Second
	DefaultVentDeadline  = 30 * time.Second
)

// Variable names recognized in a door's [doors.<id>.variables] table.
// Values are strings and are parsed per door, so one bad value skips one
// door instead of failing the whole file.
const (
	VarPulseTime     = "pulse_time"
	VarOpenDeadline  = "open_deadline"
	VarCloseDeadline = "close_deadline"
	VarVentDeadline  = "vent_deadline"
)

// Binding ties a door position to an input sensor and the raw reading
// that asserts it.
type Binding struct {
	Sensor string
	Active string
}

// Door is one validated fleet entry.
type Door struct {
	ID            string
	Name          string
	Actuator      string
	PulseStartCmd string
	PulseStopCmd  string
	PulseTime     time.Duration

	// Closed is always present; Open and Vent are optional. When Open is
	// absent, the closed sensor's complement defines "open".
	Closed Binding
	Open   *Binding
	Vent   *Binding

	openDeadline  time.Duration
	closeDeadline time.Duration
	ventDeadline  time.Duration
}

// Deadline returns the confirmation deadline for an action.
func (d *Door) Deadline(a model.Action) time.Duration {
	switch a {
	case model.ActionOpen:
		return d.openDeadline
	case model.ActionClose:
		return d.closeDeadline
	case model.ActionVent:
		return d.ventDeadline
	}
	return DefaultOpenDeadline
}

// HasVent reports whether the door has a vent position.
func (d *Door) HasVent() bool {
	return d.Vent != nil
}

// Bindings returns the door's sensor bindings in reconcile priority order:
// closed, vent, open. Absent positions are omitted.
func (d *Door) Bindings() []Binding {
	bs := []Binding{d.Closed}
	if d.Vent != nil {
		bs = append(bs, *d.Vent)
	}
	if d.Open != nil {
		bs = append(bs, *d.Open)
	}
	return bs
}

// Skipped records a door entry rejected at load time.
type Skipped struct {
	ID     string
	Reason error
}

// Registry is the loaded fleet: validated doors plus the entries that were
// skipped and why. It is read-only after Load.
type Registry struct {
	doors    map[string]*Door
	bySensor map[string][]*Door
	skipped  []Skipped
}

type fileRoot struct {
	Doors map[string]doorFile `toml:"doors"`
}

type doorFile struct {
	Name       string                `toml:"name"`
	Actuator   string                `toml:"actuator"`
	PulseStart string                `toml:"pulse_start"`
	PulseStop  string                `toml:"pulse_stop"`
	Variables  map[string]string     `toml:"variables"`
	Sensors    map[string]sensorFile `toml:"sensors"`
}

type sensorFile struct {
	Sensor string `toml:"sensor"`
	Active string `toml:"active"`
}

// Load reads and validates the fleet file at path.
func Load(path string) (*Registry, error) {
	var root fileRoot
	if _, err := toml.DecodeFile(path, &root); err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	return build(root), nil
}

// LoadString parses fleet configuration from an in-memory TOML document.
func LoadString(doc string) (*Registry, error) {
	var root fileRoot
	if _, err := toml.Decode(doc, &root); err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	return build(root), nil
}

func build(root fileRoot) *Registry {
	r := &Registry{
		doors:    make(map[string]*Door),
		bySensor: make(map[string][]*Door),
	}
	for id, df := range root.Doors {
		door, err := parseDoor(id, df)
		if err != nil {
			r.skipped = append(r.skipped, Skipped{ID: id, Reason: err})
			continue
		}
		r.doors[id] = door
		for _, b := range door.Bindings() {
			r.addSensor(b.Sensor, door)
		}
	}
	sort.Slice(r.skipped, func(i, j int) bool { return r.skipped[i].ID < r.skipped[j].ID })
	return r
}

func (r *Registry) addSensor(sensor string, door *Door) {
	for _, d := range r.bySensor[sensor] {
		if d == door {
			return
		}
	}
	r.bySensor[sensor] = append(r.bySensor[sensor], door)
}

// Door returns the door with the given id.
func (r *Registry) Door(id string) (*Door, bool) {
	d, ok := r.doors[id]
	return d, ok
}

// Doors returns every validated door, sorted by id.
func (r *Registry) Doors() []*Door {
	out := make([]*Door, 0, len(r.doors))
	for _, d := range r.doors {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DoorsForSensor returns the doors with a binding on the given input sensor.
func (r *Registry) DoorsForSensor(sensor string) []*Door {
	return r.bySensor[sensor]
}

// Skipped returns the entries rejected at load time, sorted by id.
func (r *Registry) Skipped() []Skipped {
	return r.skipped
}

// Len returns the number of validated doors.
func (r *Registry) Len() int {
	return len(r.doors)
}

func parseDoor(id string, df doorFile) (*Door, error) {
	var ve model.ValidationError

	if !validToken(id) {
		ve.Add("id", fmt.Sprintf("%q is not a valid subject token", id))
	}

	name := strings.TrimSpace(df.Name)
	if name == "" {
		name = id
	}

	if df.Actuator == "" {
		ve.Add("actuator", "is required")
	} else if !validToken(df.Actuator) {
		ve.Add("actuator", fmt.Sprintf("%q is not a valid subject token", df.Actuator))
	}
	if df.PulseStart == "" {
		ve.Add("pulse_start", "is required")
	}
	if df.PulseStop == "" {
		ve.Add("pulse_stop", "is required")
	}

	door := &Door{
		ID:            id,
		Name:          name,
		Actuator:      df.Actuator,
		PulseStartCmd: df.PulseStart,
		PulseStopCmd:  df.PulseStop,
		openDeadline:  DefaultOpenDeadline,
		closeDeadline: DefaultCloseDeadline,
		ventDeadline:  DefaultVentDeadline,
	}

	for key, raw := range df.Variables {
		switch key {
		case VarPulseTime:
			door.PulseTime = parsePositive(&ve, "variables."+key, raw)
		case VarOpenDeadline:
			door.openDeadline = parsePositive(&ve, "variables."+key, raw)
		case VarCloseDeadline:
			door.closeDeadline = parsePositive(&ve, "variables."+key, raw)
		case VarVentDeadline:
			door.ventDeadline = parsePositive(&ve, "variables."+key, raw)
		default:
			ve.Add("variables."+key, "unknown variable")
		}
	}
	if _, ok := df.Variables[VarPulseTime]; !ok {
		ve.Add("variables."+VarPulseTime, "is required")
	}

	seen := make(map[Binding]string)
	for position, sf := range df.Sensors {
		switch position {
		case "closed", "open", "vent":
		default:
			ve.Add("sensors."+position, "unknown position")
			continue
		}
		b, ok := parseBinding(&ve, "sensors."+position, sf)
		if !ok {
			continue
		}
		if prev, dup := seen[b]; dup {
			ve.Add("sensors."+position, fmt.Sprintf("duplicates the %s binding (sensor %q, active %q)", prev, b.Sensor, b.Active))
			continue
		}
		seen[b] = position
		switch position {
		case "closed":
			door.Closed = b
		case "open":
			door.Open = &b
		case "vent":
			door.Vent = &b
		}
	}
	if _, ok := df.Sensors["closed"]; !ok {
		ve.Add("sensors.closed", "is required")
	}

	if ve.HasErrors() {
		return nil, &ve
	}
	return door, nil
}

func parsePositive(ve *model.ValidationError, field, raw string) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil {
		ve.Add(field, fmt.Sprintf("%q is not a duration", raw))
		return 0
	}
	if d <= 0 {
		ve.Add(field, "must be positive")
		return 0
	}
	return d
}

func parseBinding(ve *model.ValidationError, field string, sf sensorFile) (Binding, bool) {
	ok := true
	if sf.Sensor == "" {
		ve.Add(field+".sensor", "is required")
		ok = false
	} else if !validToken(sf.Sensor) {
		ve.Add(field+".sensor", fmt.Sprintf("%q is not a valid subject token", sf.Sensor))
		ok = false
	}
	if sf.Active == "" {
		ve.Add(field+".active", "is required")
		ok = false
	}
	return Binding{Sensor: sf.Sensor, Active: sf.Active}, ok
}

// validToken reports whether s can be embedded in a bus subject.
func validToken(s string) bool {
	return s != "" && !strings.ContainsAny(s, " .*>\t\n")
}
