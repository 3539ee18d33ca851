package tracker

import (
	"time"

	"github.com/doorman-io/doorman/internal/model"
)

// Snapshot returns the current read model for one door.
func (t *Tracker) Snapshot(doorID string) (model.DoorSnapshot, bool) {
	ds, ok := t.doors[doorID]
	if !ok {
		return model.DoorSnapshot{}, false
	}
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return t.snapshotLocked(ds), true
}

// Snapshots returns every door's read model, ordered by door id.
func (t *Tracker) Snapshots() []model.DoorSnapshot {
	doors := t.reg.Doors()
	out := make([]model.DoorSnapshot, 0, len(doors))
	for _, d := range doors {
		ds := t.doors[d.ID]
		ds.mu.Lock()
		out = append(out, t.snapshotLocked(ds))
		ds.mu.Unlock()
	}
	return out
}

func (t *Tracker) snapshotLocked(ds *doorState) model.DoorSnapshot {
	snap := model.DoorSnapshot{
		ID:        ds.door.ID,
		Name:      ds.door.Name,
		State:     ds.label,
		Position:  ds.position,
		BadClose:  ds.badClose,
		UpdatedAt: ds.updatedAt,
	}
	if p := ds.pending; p != nil {
		snap.Pending = &model.PendingInfo{
			Action:        p.action,
			Phase:         p.phase.String(),
			CorrelationID: p.correlationID,
			Since:         p.startedAt,
		}
	}
	return snap
}

// PublishStartup pushes every door's initial status so late-joining
// observers see the fleet before any sensor reports.
func (t *Tracker) PublishStartup() {
	for _, d := range t.reg.Doors() {
		ds := t.doors[d.ID]
		ds.mu.Lock()
		u := t.statusLocked(ds, model.SourceStartup, time.Now().UTC())
		ds.mu.Unlock()
		t.out.Status(u)
	}
}

// PendingCount reports how many doors currently hold an in-flight
// request.
func (t *Tracker) PendingCount() int {
	n := 0
	for _, ds := range t.doors {
		ds.mu.Lock()
		if ds.pending != nil {
			n++
		}
		ds.mu.Unlock()
	}
	return n
}

// CorrelationCount reports the number of live correlation index
// entries. It tracks PendingCount exactly; a divergence is a leak.
func (t *Tracker) CorrelationCount() int {
	t.cmu.Lock()
	defer t.cmu.Unlock()
	return len(t.corr)
}
