package ridesync

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkordes/rideplanner/internal/access"
	"github.com/pkordes/rideplanner/internal/calendar"
	"github.com/pkordes/rideplanner/internal/domain"
	"github.com/pkordes/rideplanner/internal/store"
)

// Controller is the live view of one ride and its edit draft.
//
// While viewing, every newer snapshot replaces the displayed plan. While
// editing or saving, snapshots still update the latest remote copy but the
// draft is never touched; it changes only through UpdateDraft, CommitEdit and
// CancelEdit.
type Controller struct {
	base

	rideID     string
	path       string
	serializer calendar.Serializer

	remote    domain.RidePlan
	hasRemote bool
	draft     domain.RideDraft
	deleting  bool
}

// Open starts watching the ride rideID as the user supplied by auth. It
// returns at once in StateLoading; call Wait to block for the first snapshot.
// ctx bounds the subscription. A missing ride fails the controller with
// domain.ErrNotFound and a ride owned by someone else with
// domain.ErrForbidden; both are terminal.
func Open(ctx context.Context, st store.Store, auth AuthSource, rideID string, opts ...Option) *Controller {
	o := buildOptions(opts)
	c := &Controller{
		rideID:     rideID,
		path:       RidePath(rideID),
		serializer: o.serializer,
	}
	c.setup(st, o)
	c.log = c.log.With("ride_id", rideID)

	if !c.attach(auth) {
		return c
	}
	cancel, err := st.Subscribe(ctx, c.path, c.onSnapshot)
	if err != nil {
		c.log.Warn("ridesync: subscribe failed", "error", err)
		c.fail(subscriptionFailed(err))
		return c
	}
	c.bind(cancel)
	return c
}

// RideID returns the id the controller was opened with.
func (c *Controller) RideID() string { return c.rideID }

func (c *Controller) onSnapshot(snap store.Snapshot, err error) {
	c.mu.Lock()
	state, changed := c.applyLocked(snap, err)
	c.mu.Unlock()
	if changed {
		c.notify(state)
	}
}

func (c *Controller) applyLocked(snap store.Snapshot, err error) (State, bool) {
	if c.state.terminal() {
		return c.state, false
	}
	if err != nil {
		c.log.Warn("ridesync: subscription failed", "error", err)
		c.failLocked(subscriptionFailed(err))
		return c.state, true
	}
	if !c.feed.accept(snap.Version) {
		c.log.Debug("ridesync: discarding stale snapshot", "version", snap.Version, "applied", c.feed.applied)
		return c.state, false
	}
	if !snap.Exists {
		if c.deleting {
			return c.state, false
		}
		c.failLocked(fmt.Errorf("%w: ride %s", domain.ErrNotFound, c.rideID))
		return c.state, true
	}

	plan := decodeRide(snap)
	if !access.IsOwner(c.userID, plan.OwnerID) {
		c.failLocked(access.RequireOwner(c.userID, plan.OwnerID))
		return c.state, true
	}
	c.remote = plan
	c.hasRemote = true
	if c.state == StateLoading {
		c.state = StateViewing
		c.markReadyLocked()
	}
	return c.state, true
}

// Plan returns the latest applied remote copy of the ride. It reports false
// until the first snapshot has been applied or after the controller ended.
func (c *Controller) Plan() (domain.RidePlan, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasRemote || c.state.terminal() {
		return domain.RidePlan{}, false
	}
	return c.remote, true
}

// Draft returns the edit draft while editing or saving.
func (c *Controller) Draft() (domain.RideDraft, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateEditing && c.state != StateSaving {
		return domain.RideDraft{}, false
	}
	return c.draft, true
}

// guardLocked checks the acting user against the ride owner.
func (c *Controller) guardLocked() error {
	return access.RequireOwner(c.userID, c.remote.OwnerID)
}

// BeginEdit copies the latest remote plan into a fresh draft.
func (c *Controller) BeginEdit() error {
	c.mu.Lock()
	if err := c.usableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.state != StateViewing {
		c.mu.Unlock()
		return fmt.Errorf("%w: cannot begin edit while %s", domain.ErrInvalidState, c.state)
	}
	if err := c.guardLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.draft = c.remote.Draft()
	c.state = StateEditing
	c.mu.Unlock()

	c.notify(StateEditing)
	return nil
}

// UpdateDraft applies fn to the draft. It is how local edits are recorded.
func (c *Controller) UpdateDraft(fn func(d *domain.RideDraft)) error {
	c.mu.Lock()
	if err := c.usableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.state != StateEditing {
		c.mu.Unlock()
		return fmt.Errorf("%w: not editing", domain.ErrInvalidState)
	}
	fn(&c.draft)
	c.mu.Unlock()

	c.notify(StateEditing)
	return nil
}

// CancelEdit discards the draft and returns to the latest remote plan.
func (c *Controller) CancelEdit() error {
	c.mu.Lock()
	if err := c.usableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.state != StateEditing {
		c.mu.Unlock()
		return fmt.Errorf("%w: not editing", domain.ErrInvalidState)
	}
	c.draft = domain.RideDraft{}
	c.state = StateViewing
	c.mu.Unlock()

	c.notify(StateViewing)
	return nil
}

// CommitEdit normalizes draft, validates it and writes it.
//
// draft becomes the controller's draft before anything else, so on any
// failure it is still there. A validation failure never reaches the store. A
// write failure returns to StateEditing and an error matching
// domain.ErrWriteFailed. On success the controller returns to StateViewing
// and shows the next snapshot.
func (c *Controller) CommitEdit(ctx context.Context, draft domain.RideDraft) error {
	c.mu.Lock()
	if err := c.usableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.state != StateEditing {
		c.mu.Unlock()
		return fmt.Errorf("%w: not editing", domain.ErrInvalidState)
	}
	c.draft = draft
	if err := c.guardLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	clean := draft.Normalize()
	if err := clean.Validate(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.state = StateSaving
	c.mu.Unlock()
	c.notify(StateSaving)

	err := c.store.Update(ctx, c.path, rideFields(clean))

	return c.settle(StateEditing, err, func() { c.draft = domain.RideDraft{} })
}

// settle finishes a write begun from StateSaving. On success the controller
// moves to StateViewing and onSuccess runs under the lock; on failure it
// moves to onFailure. If the controller ended while the write was in flight
// the result is ignored.
func (c *Controller) settle(onFailure State, err error, onSuccess func()) error {
	c.mu.Lock()
	if c.state.terminal() {
		ended := c.state
		c.mu.Unlock()
		if ended == StateFailed && err != nil {
			return writeFailed(err)
		}
		return nil
	}
	if err != nil {
		c.state = onFailure
		c.mu.Unlock()
		c.log.Warn("ridesync: write failed", "error", err)
		c.notify(onFailure)
		return writeFailed(err)
	}
	c.state = StateViewing
	if onSuccess != nil {
		onSuccess()
	}
	c.mu.Unlock()
	c.notify(StateViewing)
	return nil
}

// beginWrite moves from StateViewing to StateSaving after the owner check.
func (c *Controller) beginWrite() error {
	c.mu.Lock()
	if err := c.usableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.state != StateViewing {
		c.mu.Unlock()
		return fmt.Errorf("%w: cannot write while %s", domain.ErrInvalidState, c.state)
	}
	if err := c.guardLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.state = StateSaving
	c.mu.Unlock()
	c.notify(StateSaving)
	return nil
}

// SetStatus writes only the status field.
func (c *Controller) SetStatus(ctx context.Context, status domain.Status) error {
	parsed, err := domain.ParseStatus(string(status))
	if err != nil {
		return err
	}
	if err := c.beginWrite(); err != nil {
		return err
	}
	err = c.store.Update(ctx, c.path, store.Fields{fStatus: string(parsed)})
	return c.settle(StateViewing, err, nil)
}

// AppendTimelineUpdate appends a progress note stamped by the store. Empty or
// whitespace-only text is rejected before any store call.
func (c *Controller) AppendTimelineUpdate(ctx context.Context, text string) error {
	text, err := timelineText(text)
	if err != nil {
		return err
	}
	if err := c.beginWrite(); err != nil {
		return err
	}
	err = c.store.Update(ctx, c.path, store.Fields{fTimeline: store.Append(timelineEntry(text))})
	return c.settle(StateViewing, err, nil)
}

// DeleteRecord deletes the ride document only; content items are left in
// place. On success the controller closes and drops everything it held.
func (c *Controller) DeleteRecord(ctx context.Context) error {
	c.mu.Lock()
	if err := c.usableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	prev := c.state
	if prev != StateViewing && prev != StateEditing {
		c.mu.Unlock()
		return fmt.Errorf("%w: cannot delete while %s", domain.ErrInvalidState, c.state)
	}
	if err := c.guardLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.state = StateSaving
	c.deleting = true
	c.mu.Unlock()
	c.notify(StateSaving)

	err := c.store.Delete(ctx, c.path)

	c.mu.Lock()
	c.deleting = false
	if c.state.terminal() {
		ended := c.state
		c.mu.Unlock()
		if ended == StateFailed && err != nil {
			return writeFailed(err)
		}
		return nil
	}
	if err != nil {
		c.state = prev
		c.mu.Unlock()
		c.notify(prev)
		return writeFailed(err)
	}
	c.remote = domain.RidePlan{}
	c.hasRemote = false
	c.draft = domain.RideDraft{}
	c.state = StateClosed
	c.releaseLocked()
	c.mu.Unlock()

	c.log.Info("ridesync: ride deleted")
	c.notify(StateClosed)
	return nil
}

// ExportCalendar renders the latest remote plan as a calendar file and
// returns it with its download name.
func (c *Controller) ExportCalendar() (filename, body string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.usableLocked(); err != nil {
		return "", "", err
	}
	if !c.hasRemote {
		return "", "", fmt.Errorf("%w: ride not loaded", domain.ErrInvalidState)
	}
	return calendar.Filename(c.remote.Title), c.serializer.Serialize(c.remote), nil
}

// GoogleCalendarLink returns a prefilled Google Calendar link for the latest
// remote plan.
func (c *Controller) GoogleCalendarLink() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.usableLocked(); err != nil {
		return "", err
	}
	if !c.hasRemote {
		return "", fmt.Errorf("%w: ride not loaded", domain.ErrInvalidState)
	}
	return c.serializer.GoogleLink(c.remote), nil
}

func timelineText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: update text is required", domain.ErrValidation)
	}
	return text, nil
}
