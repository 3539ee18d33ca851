package tracker

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/doorman-io/doorman/internal/metrics"
	"github.com/doorman-io/doorman/internal/model"
	"github.com/doorman-io/doorman/internal/reconcile"
)

// Phase is the escalation phase of a live pending request.
type Phase string

const (
	// PhaseArmed means the pulse was sent and nothing has come back yet.
	PhaseArmed Phase = "armed"
	// PhaseProcessing means the actuation layer acknowledged the pulse,
	// or the slow notifier already told the caller to keep waiting.
	PhaseProcessing Phase = "processing"
)

func (p Phase) String() string { return string(p) }

// Resolution is the terminal disposition of a pending request.
type Resolution string

const (
	ResolutionConfirmed Resolution = "confirmed"
	ResolutionTimedOut  Resolution = "timed_out"
	ResolutionBusFailed Resolution = "bus_failed"
	ResolutionCleanedUp Resolution = "cleaned_up"
)

func (r Resolution) String() string { return string(r) }

// pendingRequest tracks one accepted command until a sensor confirms
// it, a timer fires, or the actuator reports failure. All fields except
// phase are set once at creation; phase changes under the door lock.
type pendingRequest struct {
	action        model.Action
	target        model.State
	callerToken   string
	inbox         string
	correlationID string
	startedAt     time.Time
	phase         Phase
	deadline      time.Duration
	timers        timerSet
}

// timerSet bundles a pending request's cancellable timers. The
// scheduled pulse-stop send is deliberately not part of the set: the
// relay release must fire even when the request resolves first.
type timerSet struct {
	slow    *time.Timer
	hard    *time.Timer
	ceiling *time.Timer
}

// cancelAll stops every timer. Safe on already-fired timers and safe to
// call more than once.
func (ts *timerSet) cancelAll() {
	for _, tm := range []*time.Timer{ts.slow, ts.hard, ts.ceiling} {
		if tm != nil {
			tm.Stop()
		}
	}
}

func (ts *timerSet) stopSlow() {
	if ts.slow != nil {
		ts.slow.Stop()
	}
}

// corrEntry maps a correlation id back to the door and request that
// issued it.
type corrEntry struct {
	doorID string
	p      *pendingRequest
}

func (t *Tracker) addCorr(id, doorID string, p *pendingRequest) {
	t.cmu.Lock()
	t.corr[id] = corrEntry{doorID: doorID, p: p}
	t.cmu.Unlock()
}

func (t *Tracker) removeCorr(id string) {
	t.cmu.Lock()
	delete(t.corr, id)
	t.cmu.Unlock()
}

func (t *Tracker) lookupCorr(id string) (corrEntry, bool) {
	t.cmu.Lock()
	defer t.cmu.Unlock()
	e, ok := t.corr[id]
	return e, ok
}

// HandleSensor folds one raw reading into every door bound to the
// sensor, reconciles each door's label, and resolves any pending
// request whose target the new label matches.
func (t *Tracker) HandleSensor(sensorID, reading string, at time.Time) {
	metrics.SensorReadingsTotal.Inc()
	for _, door := range t.reg.DoorsForSensor(sensorID) {
		t.applyReading(t.doors[door.ID], sensorID, reading, at)
	}
}

func (t *Tracker) applyReading(ds *doorState, sensorID, reading string, at time.Time) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	ds.mu.Lock()
	ds.readings[sensorID] = reading
	label := reconcile.Label(ds.door, ds.readings)

	var update *model.StatusUpdate
	if label != ds.label {
		ds.label = label
		if label != model.StateUnknown {
			// Unknown keeps the previous position rather than guessing.
			ds.position = label.Position()
		}
		if label == model.StateClosed {
			ds.badClose = false
		}
		ds.updatedAt = at
		u := t.statusLocked(ds, model.SourceReconciler, at)
		update = &u
		metrics.StatusChangesTotal.WithLabelValues(label.String()).Inc()
	}

	// Confirmation matching runs on every pass, changed label or not: a
	// re-asserted reading can confirm a request armed after the door
	// already reported the target state once.
	var resolved *pendingRequest
	var done model.Reply
	if p := ds.pending; p != nil && label == p.target {
		t.clearPendingLocked(ds, p)
		resolved = p
		done = model.Reply{
			DoorID:      ds.door.ID,
			CallerToken: p.callerToken,
			Action:      p.action,
			Outcome:     model.OutcomeDone,
			Message:     fmt.Sprintf("door is now %s", label),
			At:          time.Now().UTC(),
		}
	}
	ds.mu.Unlock()

	if update != nil {
		t.out.Status(*update)
	}
	if resolved != nil {
		slog.Info("tracker: confirmed by sensor", "door", ds.door.ID,
			"action", resolved.action, "elapsed", time.Since(resolved.startedAt))
		t.resolveMetrics(resolved, ResolutionConfirmed)
		t.out.Reply(resolved.inbox, done)
	}
}

// HandleAck routes an actuator ack to its pending request by
// correlation id. processing and done acks are liveness signals only;
// failed acks resolve the request immediately. Only sensors confirm.
func (t *Tracker) HandleAck(ack model.ActuatorAck) {
	if !ack.Outcome.IsValid() {
		metrics.AcksTotal.WithLabelValues("invalid").Inc()
		slog.Warn("tracker: ack with unknown outcome",
			"correlation_id", ack.CorrelationID, "outcome", ack.Outcome)
		return
	}
	entry, ok := t.lookupCorr(ack.CorrelationID)
	if !ok {
		metrics.AcksTotal.WithLabelValues("stray").Inc()
		slog.Debug("tracker: ack with unknown correlation id",
			"correlation_id", ack.CorrelationID, "outcome", ack.Outcome)
		return
	}
	metrics.AcksTotal.WithLabelValues(ack.Outcome.String()).Inc()

	ds := t.doors[entry.doorID]
	p := entry.p
	ds.mu.Lock()
	if ds.pending != p {
		ds.mu.Unlock()
		slog.Debug("tracker: ack for already-resolved request",
			"door", entry.doorID, "correlation_id", ack.CorrelationID)
		return
	}

	switch ack.Outcome {
	case model.AckProcessing:
		// The actuation layer has the pulse. Quiet the slow notifier
		// and keep the caller informed; sensors still decide.
		p.timers.stopSlow()
		p.phase = PhaseProcessing
		inbox := p.inbox
		msg := ack.Detail
		if msg == "" {
			msg = "actuator acknowledged the pulse, waiting for sensor confirmation"
		}
		r := model.Reply{
			DoorID:      ds.door.ID,
			CallerToken: p.callerToken,
			Action:      p.action,
			Outcome:     model.OutcomeProcessing,
			Message:     msg,
			At:          time.Now().UTC(),
		}
		ds.mu.Unlock()
		t.out.Reply(inbox, r)

	case model.AckDone:
		// Delivery notice only: the pulse completed, but the door's
		// position is confirmed by sensors alone.
		p.timers.stopSlow()
		p.phase = PhaseProcessing
		ds.mu.Unlock()

	case model.AckFailed:
		t.clearPendingLocked(ds, p)
		door := ds.door
		ds.mu.Unlock()

		msg := "actuator reported failure"
		if ack.Detail != "" {
			msg += ": " + ack.Detail
		}
		slog.Warn("tracker: actuator failure", "door", door.ID,
			"action", p.action, "detail", ack.Detail)
		t.resolveMetrics(p, ResolutionBusFailed)
		t.out.Reply(p.inbox, model.Reply{
			DoorID:      door.ID,
			CallerToken: p.callerToken,
			Action:      p.action,
			Outcome:     model.OutcomeFailed,
			Message:     msg,
			At:          time.Now().UTC(),
		})
	}
}
