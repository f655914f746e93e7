package ridesync

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/pkordes/rideplanner/internal/access"
	"github.com/pkordes/rideplanner/internal/domain"
	"github.com/pkordes/rideplanner/internal/store"
)

// contentEdit is the one item being created or edited. id is empty when
// creating.
type contentEdit struct {
	id     string
	pinned domain.ContentItem
	draft  domain.ContentDraft
}

// ContentManager is the live view of a ride's content items, newest first.
//
// Editing one item never holds back its siblings: they follow every snapshot.
// Only the item under edit keeps the copy it had when editing began.
type ContentManager struct {
	base

	rideID     string
	collection string

	planOwner string
	items     []domain.ContentItem
	edit      *contentEdit
}

// OpenContent starts watching the content of ride rideID. The ride is read
// first to learn its owner; a missing ride fails with domain.ErrNotFound and
// one owned by someone else with domain.ErrForbidden. Open returns at once.
func OpenContent(ctx context.Context, st store.Store, auth AuthSource, rideID string, opts ...Option) *ContentManager {
	o := buildOptions(opts)
	m := &ContentManager{rideID: rideID, collection: ContentCollection(rideID)}
	m.setup(st, o)
	m.log = m.log.With("ride_id", rideID, "view", "content")

	if !m.attach(auth) {
		return m
	}
	go m.start(ctx)
	return m
}

func (m *ContentManager) start(ctx context.Context) {
	snap, err := m.store.Get(ctx, RidePath(m.rideID))
	if err != nil {
		m.fail(subscriptionFailed(err))
		return
	}
	if !snap.Exists {
		m.fail(fmt.Errorf("%w: ride %s", domain.ErrNotFound, m.rideID))
		return
	}
	owner := str(snap.Fields[fOwner])

	m.mu.Lock()
	if m.state.terminal() {
		m.mu.Unlock()
		return
	}
	if !access.IsOwner(m.userID, owner) {
		m.failLocked(access.RequireOwner(m.userID, owner))
		m.mu.Unlock()
		m.notify(StateFailed)
		return
	}
	m.planOwner = owner
	m.mu.Unlock()

	q := store.Query{Collection: m.collection, OrderBy: fCreatedAt, Desc: true}
	cancel, err := m.store.SubscribeQuery(ctx, q, m.onSnapshot)
	if err != nil {
		m.log.Warn("ridesync: subscribe failed", "error", err)
		m.fail(subscriptionFailed(err))
		return
	}
	m.bind(cancel)
}

func (m *ContentManager) onSnapshot(qs store.QuerySnapshot, err error) {
	m.mu.Lock()
	state, changed := m.applyLocked(qs, err)
	m.mu.Unlock()
	if changed {
		m.notify(state)
	}
}

func (m *ContentManager) applyLocked(qs store.QuerySnapshot, err error) (State, bool) {
	if m.state.terminal() {
		return m.state, false
	}
	if err != nil {
		m.log.Warn("ridesync: subscription failed", "error", err)
		m.failLocked(subscriptionFailed(err))
		return m.state, true
	}
	if !m.feed.accept(qs.Version) {
		m.log.Debug("ridesync: discarding stale snapshot", "version", qs.Version, "applied", m.feed.applied)
		return m.state, false
	}

	items := make([]domain.ContentItem, 0, len(qs.Docs))
	for _, doc := range qs.Docs {
		item, err := decodeContent(m.rideID, doc)
		if err != nil {
			m.log.Warn("ridesync: skipping unreadable content item", "content_id", doc.ID, "error", err)
			continue
		}
		items = append(items, item)
	}
	m.items = items
	if m.state == StateLoading {
		m.state = StateViewing
		m.markReadyLocked()
	}
	return m.state, true
}

// Items returns the items newest first. While an item is being edited it
// appears as it was when editing began.
func (m *ContentManager) Items() []domain.ContentItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.terminal() {
		return nil
	}
	out := slices.Clone(m.items)
	if m.edit != nil && m.edit.id != "" {
		for i := range out {
			if out[i].ID == m.edit.id {
				out[i] = m.edit.pinned
			}
		}
	}
	return out
}

// Draft returns the draft and the id it targets (empty when creating).
func (m *ContentManager) Draft() (draft domain.ContentDraft, id string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.edit == nil || m.state.terminal() {
		return domain.ContentDraft{}, "", false
	}
	return m.edit.draft, m.edit.id, true
}

func (m *ContentManager) findLocked(id string) (domain.ContentItem, bool) {
	for _, it := range m.items {
		if it.ID == id {
			return it, true
		}
	}
	return domain.ContentItem{}, false
}

// guardItemLocked checks the acting user against the ride owner and, for an
// existing item, the item owner.
func (m *ContentManager) guardItemLocked(itemOwner string) error {
	if err := access.RequireOwner(m.userID, m.planOwner); err != nil {
		return err
	}
	if itemOwner == "" {
		return nil
	}
	return access.RequireOwner(m.userID, itemOwner)
}

func (m *ContentManager) readyForEditLocked() error {
	if err := m.usableLocked(); err != nil {
		return err
	}
	if m.state != StateViewing {
		return fmt.Errorf("%w: cannot begin edit while %s", domain.ErrInvalidState, m.state)
	}
	return nil
}

// BeginCreate starts a draft for a new item. Kind defaults to photo.
func (m *ContentManager) BeginCreate() error {
	m.mu.Lock()
	if err := m.readyForEditLocked(); err != nil {
		m.mu.Unlock()
		return err
	}
	if err := m.guardItemLocked(""); err != nil {
		m.mu.Unlock()
		return err
	}
	m.edit = &contentEdit{draft: domain.ContentDraft{Kind: domain.ContentPhoto}}
	m.state = StateEditing
	m.mu.Unlock()

	m.notify(StateEditing)
	return nil
}

// BeginEdit starts a draft from the current copy of item id.
func (m *ContentManager) BeginEdit(id string) error {
	m.mu.Lock()
	if err := m.readyForEditLocked(); err != nil {
		m.mu.Unlock()
		return err
	}
	item, ok := m.findLocked(id)
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: content %s", domain.ErrNotFound, id)
	}
	if err := m.guardItemLocked(item.OwnerID); err != nil {
		m.mu.Unlock()
		return err
	}
	m.edit = &contentEdit{id: id, pinned: item, draft: item.Draft()}
	m.state = StateEditing
	m.mu.Unlock()

	m.notify(StateEditing)
	return nil
}

// UpdateDraft applies fn to the draft.
func (m *ContentManager) UpdateDraft(fn func(d *domain.ContentDraft)) error {
	m.mu.Lock()
	if err := m.usableLocked(); err != nil {
		m.mu.Unlock()
		return err
	}
	if m.state != StateEditing {
		m.mu.Unlock()
		return fmt.Errorf("%w: not editing", domain.ErrInvalidState)
	}
	fn(&m.edit.draft)
	m.mu.Unlock()

	m.notify(StateEditing)
	return nil
}

// CancelEdit drops the draft. The edited item rejoins the live list.
func (m *ContentManager) CancelEdit() error {
	m.mu.Lock()
	if err := m.usableLocked(); err != nil {
		m.mu.Unlock()
		return err
	}
	if m.state != StateEditing {
		m.mu.Unlock()
		return fmt.Errorf("%w: not editing", domain.ErrInvalidState)
	}
	m.edit = nil
	m.state = StateViewing
	m.mu.Unlock()

	m.notify(StateViewing)
	return nil
}

// Commit validates draft and writes it: an update of the item being edited,
// or the creation of exactly one new item. It returns the item id. Failures
// leave the manager editing with draft intact.
func (m *ContentManager) Commit(ctx context.Context, draft domain.ContentDraft) (string, error) {
	m.mu.Lock()
	if err := m.usableLocked(); err != nil {
		m.mu.Unlock()
		return "", err
	}
	if m.state != StateEditing {
		m.mu.Unlock()
		return "", fmt.Errorf("%w: not editing", domain.ErrInvalidState)
	}
	m.edit.draft = draft
	if err := m.guardItemLocked(m.edit.pinned.OwnerID); err != nil {
		m.mu.Unlock()
		return "", err
	}
	clean := draft.Normalize()
	if err := clean.Validate(); err != nil {
		m.mu.Unlock()
		return "", err
	}
	id := m.edit.id
	fields := contentFields(m.userID, clean)
	m.state = StateSaving
	m.mu.Unlock()
	m.notify(StateSaving)

	var err error
	if id == "" {
		fields[fCreatedAt] = store.ServerTimestamp
		id, err = m.store.Add(ctx, m.collection, fields)
	} else {
		err = m.store.Update(ctx, store.Doc(m.collection, id), fields)
	}

	m.mu.Lock()
	if m.state.terminal() {
		ended := m.state
		m.mu.Unlock()
		if ended == StateFailed && err != nil {
			return "", writeFailed(err)
		}
		return id, nil
	}
	if err != nil {
		m.state = StateEditing
		m.mu.Unlock()
		m.log.Warn("ridesync: content write failed", "error", err)
		m.notify(StateEditing)
		return "", writeFailed(err)
	}
	m.edit = nil
	m.state = StateViewing
	m.mu.Unlock()

	m.notify(StateViewing)
	return id, nil
}

// Delete removes item id at once. An item under edit cannot be deleted until
// the edit ends.
func (m *ContentManager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	if err := m.usableLocked(); err != nil {
		m.mu.Unlock()
		return err
	}
	if m.state == StateLoading || m.state == StateSaving {
		m.mu.Unlock()
		return fmt.Errorf("%w: cannot delete while %s", domain.ErrInvalidState, m.state)
	}
	if m.edit != nil && m.edit.id == id {
		m.mu.Unlock()
		return fmt.Errorf("%w: item %s is being edited", domain.ErrInvalidState, id)
	}
	item, ok := m.findLocked(id)
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: content %s", domain.ErrNotFound, id)
	}
	if err := m.guardItemLocked(item.OwnerID); err != nil {
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()

	if err := m.store.Delete(ctx, store.Doc(m.collection, id)); err != nil {
		if m.State() == StateClosed {
			return nil
		}
		return writeFailed(err)
	}
	return nil
}

// DeleteAll removes every content item of the ride, including any not yet
// delivered to this view. It is the explicit cascade that deleting a ride
// does not perform. Items already gone are skipped.
func (m *ContentManager) DeleteAll(ctx context.Context) error {
	m.mu.Lock()
	if err := m.usableLocked(); err != nil {
		m.mu.Unlock()
		return err
	}
	if m.state != StateViewing {
		m.mu.Unlock()
		return fmt.Errorf("%w: cannot delete while %s", domain.ErrInvalidState, m.state)
	}
	if err := m.guardItemLocked(""); err != nil {
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()

	return deleteCollection(ctx, m.store, m.collection)
}

// deleteCollection deletes every document directly under collection.
func deleteCollection(ctx context.Context, st store.Store, collection string) error {
	qs, err := st.Query(ctx, store.Query{Collection: collection})
	if err != nil {
		return writeFailed(err)
	}
	var errs []error
	for _, doc := range qs.Docs {
		err := st.Delete(ctx, doc.Path)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return writeFailed(err)
	}
	return nil
}
