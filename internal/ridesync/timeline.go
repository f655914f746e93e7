package ridesync

import (
	"context"
	"fmt"

	"github.com/pkordes/rideplanner/internal/access"
	"github.com/pkordes/rideplanner/internal/domain"
	"github.com/pkordes/rideplanner/internal/store"
)

// TimelineManager is the live view of a ride's progress notes. Notes are only
// ever appended; there is no edit or removal.
type TimelineManager struct {
	base

	rideID string
	path   string

	owner   string
	entries []domain.TimelineUpdate // storage order
}

// OpenTimeline starts watching the notes of ride rideID. Failure rules are
// those of Open.
func OpenTimeline(ctx context.Context, st store.Store, auth AuthSource, rideID string, opts ...Option) *TimelineManager {
	o := buildOptions(opts)
	t := &TimelineManager{rideID: rideID, path: RidePath(rideID)}
	t.setup(st, o)
	t.log = t.log.With("ride_id", rideID, "view", "timeline")

	if !t.attach(auth) {
		return t
	}
	cancel, err := st.Subscribe(ctx, t.path, t.onSnapshot)
	if err != nil {
		t.log.Warn("ridesync: subscribe failed", "error", err)
		t.fail(subscriptionFailed(err))
		return t
	}
	t.bind(cancel)
	return t
}

func (t *TimelineManager) onSnapshot(snap store.Snapshot, err error) {
	t.mu.Lock()
	state, changed := t.applyLocked(snap, err)
	t.mu.Unlock()
	if changed {
		t.notify(state)
	}
}

func (t *TimelineManager) applyLocked(snap store.Snapshot, err error) (State, bool) {
	switch {
	case t.state.terminal():
		return t.state, false
	case err != nil:
		t.failLocked(subscriptionFailed(err))
		return t.state, true
	case !t.feed.accept(snap.Version):
		return t.state, false
	case !snap.Exists:
		t.failLocked(fmt.Errorf("%w: ride %s", domain.ErrNotFound, t.rideID))
		return t.state, true
	}

	plan := decodeRide(snap)
	if !access.IsOwner(t.userID, plan.OwnerID) {
		t.failLocked(access.RequireOwner(t.userID, plan.OwnerID))
		return t.state, true
	}
	t.owner = plan.OwnerID
	t.entries = plan.TimelineUpdates
	if t.state == StateLoading {
		t.state = StateViewing
		t.markReadyLocked()
	}
	return t.state, true
}

// Entries returns the notes newest first.
func (t *TimelineManager) Entries() []domain.TimelineUpdate {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.terminal() {
		return nil
	}
	return domain.RidePlan{TimelineUpdates: t.entries}.TimelineNewestFirst()
}

// Append adds a note. Empty or whitespace-only text never reaches the store.
// A write error is reported even when the view failed while the write was in
// flight; after Close the result is ignored.
func (t *TimelineManager) Append(ctx context.Context, text string) error {
	text, err := timelineText(text)
	if err != nil {
		return err
	}

	t.mu.Lock()
	if err := t.usableLocked(); err != nil {
		t.mu.Unlock()
		return err
	}
	if t.state != StateViewing {
		t.mu.Unlock()
		return fmt.Errorf("%w: cannot append while %s", domain.ErrInvalidState, t.state)
	}
	if err := access.RequireOwner(t.userID, t.owner); err != nil {
		t.mu.Unlock()
		return err
	}
	t.state = StateSaving
	t.mu.Unlock()
	t.notify(StateSaving)

	err = t.store.Update(ctx, t.path, store.Fields{fTimeline: store.Append(timelineEntry(text))})

	t.mu.Lock()
	if t.state.terminal() {
		ended := t.state
		t.mu.Unlock()
		if ended == StateFailed && err != nil {
			return writeFailed(err)
		}
		return nil
	}
	t.state = StateViewing
	t.mu.Unlock()
	t.notify(StateViewing)
	if err != nil {
		return writeFailed(err)
	}
	return nil
}
