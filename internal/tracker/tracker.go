// Package tracker owns the per-door runtime state machine: command
// admission, the two-phase actuator pulse, correlation of acks, sensor
// confirmation, and the timeout escalation ladder.
//
// Each door's state (label, sensor readings, the single pending request)
// is guarded by that door's mutex; doors share nothing but the
// correlation index. Every resolution path re-checks the pending slot
// under the lock before acting, so whichever signal is processed first
// wins and the rest become no-ops.
package tracker

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/doorman-io/doorman/internal/idgen"
	"github.com/doorman-io/doorman/internal/metrics"
	"github.com/doorman-io/doorman/internal/model"
	"github.com/doorman-io/doorman/internal/reconcile"
	"github.com/doorman-io/doorman/internal/registry"
)

// Escalation timing. The slow notifier tells the caller the command is
// still in flight; the ceiling is a last-resort leak guard that fires
// only if every resolution path was missed.
const (
	slowNotifyAfter = 1050 * time.Millisecond
	ceilingAfter    = 20 * time.Minute
	alertTTL        = time.Hour
)

// Emitter delivers the tracker's outbound traffic. Calls are made
// outside door locks and may come from timer goroutines, so
// implementations must be safe for concurrent use and must not block
// for long.
type Emitter interface {
	Actuate(cmd model.ActuatorCommand)
	Reply(inbox string, r model.Reply)
	Status(u model.StatusUpdate)
	Alert(a model.Alert)
}

type doorState struct {
	mu        sync.Mutex
	door      *registry.Door
	label     model.State
	position  float64
	readings  reconcile.Readings
	badClose  bool
	updatedAt time.Time
	pending   *pendingRequest
}

// Tracker fuses commands, sensor readings, and actuator acks for a
// registry of doors.
type Tracker struct {
	reg *registry.Registry
	out Emitter

	slowAfter    time.Duration
	ceilingAfter time.Duration

	doors map[string]*doorState

	cmu  sync.Mutex
	corr map[string]corrEntry
}

// New builds a tracker for every validated door in the registry. Doors
// start unknown until sensor traffic arrives.
func New(reg *registry.Registry, out Emitter) *Tracker {
	return newWithTimings(reg, out, slowNotifyAfter, ceilingAfter)
}

// newWithTimings exists so tests can shrink the escalation delays.
func newWithTimings(reg *registry.Registry, out Emitter, slow, ceiling time.Duration) *Tracker {
	t := &Tracker{
		reg:          reg,
		out:          out,
		slowAfter:    slow,
		ceilingAfter: ceiling,
		doors:        make(map[string]*doorState),
		corr:         make(map[string]corrEntry),
	}
	now := time.Now().UTC()
	for _, d := range reg.Doors() {
		t.doors[d.ID] = &doorState{
			door:      d,
			label:     model.StateUnknown,
			position:  model.StateUnknown.Position(),
			readings:  make(reconcile.Readings),
			updatedAt: now,
		}
	}
	return t
}

// HandleCommand admits a command for a door and, when accepted, begins
// the pulse/track/escalate sequence. Every outcome is reported through
// the Emitter; inbox optionally names a bus inbox to copy replies to.
func (t *Tracker) HandleCommand(doorID string, cmd model.Command, inbox string) {
	token := cmd.CallerToken
	if token == "" {
		if id, err := idgen.NewRequestID(); err == nil {
			token = id
		}
	}
	now := time.Now().UTC()
	reply := func(outcome model.ReplyOutcome, message string) model.Reply {
		return model.Reply{
			DoorID:      doorID,
			CallerToken: token,
			Action:      cmd.Action,
			Outcome:     outcome,
			Message:     message,
			At:          now,
		}
	}

	ds, ok := t.doors[doorID]
	if !ok {
		t.admitReply(inbox, reply(model.OutcomeFailed, "no such door"))
		return
	}
	if !cmd.Action.IsValid() {
		t.admitReply(inbox, reply(model.OutcomeFailed, fmt.Sprintf("unknown command %q", cmd.Action)))
		return
	}
	if cmd.Action == model.ActionVent && !ds.door.HasVent() {
		t.admitReply(inbox, reply(model.OutcomeFailed, "door has no vent position"))
		return
	}

	target := cmd.Action.Target()

	ds.mu.Lock()
	if p := ds.pending; p != nil {
		inflight := p.action
		ds.mu.Unlock()
		t.admitReply(inbox, reply(model.OutcomeAlreadyPending,
			fmt.Sprintf("another %s request is already pending for this door, try again later", inflight)))
		return
	}
	if ds.label == target {
		update := t.statusLocked(ds, model.SourceAdmission, now)
		ds.mu.Unlock()
		t.out.Status(update)
		t.admitReply(inbox, reply(model.OutcomeAlreadySatisfied,
			fmt.Sprintf("no action performed, door is already %s", target)))
		return
	}

	// Accepted. The pending slot is filled in this same critical
	// section, so a second command sees it the moment we unlock.
	corrID, err := idgen.NewCommandID()
	if err != nil {
		ds.mu.Unlock()
		slog.Error("tracker: correlation id generation failed", "door", doorID, "error", err)
		t.admitReply(inbox, reply(model.OutcomeFailed, "internal error"))
		return
	}

	door := ds.door
	p := &pendingRequest{
		action:        cmd.Action,
		target:        target,
		callerToken:   token,
		inbox:         inbox,
		correlationID: corrID,
		startedAt:     now,
		phase:         PhaseArmed,
		deadline:      door.Deadline(cmd.Action),
	}
	ds.pending = p
	t.addCorr(corrID, doorID, p)
	metrics.PendingRequests.Inc()

	// The relay release is scheduled now and is never cancelled: the
	// pulse must complete even if the request resolves first.
	time.AfterFunc(door.PulseTime, func() {
		t.out.Actuate(model.ActuatorCommand{
			ActuatorID:    door.Actuator,
			CommandID:     door.PulseStopCmd,
			CorrelationID: corrID,
			At:            time.Now().UTC(),
		})
	})
	p.timers.slow = time.AfterFunc(t.slowAfter, func() { t.slowNotify(ds, p) })
	p.timers.hard = time.AfterFunc(p.deadline, func() { t.hardTimeout(ds, p) })
	p.timers.ceiling = time.AfterFunc(t.ceilingAfter, func() { t.ceilingCleanup(ds, p) })
	ds.mu.Unlock()

	slog.Info("tracker: command accepted", "door", doorID, "action", cmd.Action, "correlation_id", corrID)
	metrics.CommandsTotal.WithLabelValues(cmd.Action.String(), model.OutcomeAccepted.String()).Inc()
	t.out.Actuate(model.ActuatorCommand{
		ActuatorID: door.Actuator,
		CommandID:  door.PulseStartCmd,
		At:         now,
	})
	t.out.Reply(inbox, reply(model.OutcomeAccepted, "command accepted, actuating"))
}

// admitReply counts and emits a reply produced by command admission.
func (t *Tracker) admitReply(inbox string, r model.Reply) {
	metrics.CommandsTotal.WithLabelValues(r.Action.String(), r.Outcome.String()).Inc()
	t.out.Reply(inbox, r)
}

// statusLocked builds a status update from the door's current state.
// Callers hold ds.mu.
func (t *Tracker) statusLocked(ds *doorState, source model.Source, at time.Time) model.StatusUpdate {
	return model.StatusUpdate{
		DoorID:   ds.door.ID,
		Label:    ds.label,
		Position: ds.position,
		Source:   source,
		At:       at,
	}
}

// slowNotify fires once per pending request, ~1s in: if still
// unresolved, tell the caller the command is in flight.
func (t *Tracker) slowNotify(ds *doorState, p *pendingRequest) {
	ds.mu.Lock()
	if ds.pending != p {
		ds.mu.Unlock()
		return
	}
	p.phase = PhaseProcessing
	inbox := p.inbox
	r := model.Reply{
		DoorID:      ds.door.ID,
		CallerToken: p.callerToken,
		Action:      p.action,
		Outcome:     model.OutcomeProcessing,
		Message:     "command sent to the door actuator, waiting for sensor confirmation",
		At:          time.Now().UTC(),
	}
	ds.mu.Unlock()
	t.out.Reply(inbox, r)
}

// hardTimeout resolves a still-pending request as failed and raises the
// escalation alert.
func (t *Tracker) hardTimeout(ds *doorState, p *pendingRequest) {
	ds.mu.Lock()
	if ds.pending != p {
		ds.mu.Unlock()
		return
	}
	t.clearPendingLocked(ds, p)
	if p.action == model.ActionClose {
		// Surfaced on snapshots until a sensor reconciles the door
		// closed again.
		ds.badClose = true
	}
	door := ds.door
	ds.mu.Unlock()

	now := time.Now().UTC()
	slog.Warn("tracker: hard timeout", "door", door.ID, "action", p.action, "deadline", p.deadline)
	t.resolveMetrics(p, ResolutionTimedOut)
	t.out.Reply(p.inbox, model.Reply{
		DoorID:      door.ID,
		CallerToken: p.callerToken,
		Action:      p.action,
		Outcome:     model.OutcomeFailed,
		Message:     fmt.Sprintf("no sensor confirmation within %s of the %s command", p.deadline, p.action),
		At:          now,
	})
	t.out.Alert(model.Alert{
		DoorID:   door.ID,
		Title:    fmt.Sprintf("%s: %s command not confirmed", door.Name, p.action),
		Message:  fmt.Sprintf("no sensor confirmation within the configured %s deadline", p.deadline),
		Severity: model.SeverityWarning,
		Expires:  now.Add(alertTTL),
		At:       now,
	})
}

// ceilingCleanup bounds memory if every other resolution path was
// missed. The caller is long gone, so it only clears state and logs.
func (t *Tracker) ceilingCleanup(ds *doorState, p *pendingRequest) {
	ds.mu.Lock()
	if ds.pending != p {
		ds.mu.Unlock()
		return
	}
	t.clearPendingLocked(ds, p)
	ds.mu.Unlock()
	slog.Error("tracker: pending request leaked past every resolution path, cleaned up",
		"door", ds.door.ID, "action", p.action, "age", time.Since(p.startedAt))
	t.resolveMetrics(p, ResolutionCleanedUp)
}

// clearPendingLocked removes the pending request, its timers, and its
// correlation entry. Callers hold ds.mu and have verified identity.
func (t *Tracker) clearPendingLocked(ds *doorState, p *pendingRequest) {
	ds.pending = nil
	p.timers.cancelAll()
	t.removeCorr(p.correlationID)
	metrics.PendingRequests.Dec()
}

func (t *Tracker) resolveMetrics(p *pendingRequest, res Resolution) {
	metrics.ResolutionsTotal.WithLabelValues(p.action.String(), res.String()).Inc()
	metrics.ResolutionSeconds.WithLabelValues(res.String()).Observe(time.Since(p.startedAt).Seconds())
}
