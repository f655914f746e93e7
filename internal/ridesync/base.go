// Package ridesync keeps locally edited drafts of ride records consistent
// with the live copy in the document store.
//
// Three views share one lifecycle:
//   - Controller watches a ride and owns its edit draft.
//   - ContentManager watches a ride's content items and edits one at a time.
//   - TimelineManager watches a ride's progress notes and appends to them.
//
// Each view holds a single subscription. Snapshots are applied in delivery
// order and any snapshot whose version is not newer than the last applied one
// is dropped. Every write is checked against the owner first and fails with
// domain.ErrForbidden without touching the store. Store errors are returned
// unchanged in text and match domain.ErrWriteFailed. Views are safe for
// concurrent use.
package ridesync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pkordes/rideplanner/internal/calendar"
	"github.com/pkordes/rideplanner/internal/domain"
	"github.com/pkordes/rideplanner/internal/identity"
	"github.com/pkordes/rideplanner/internal/store"
)

// State is the lifecycle state of a view.
type State int

const (
	StateLoading State = iota
	StateViewing
	StateEditing
	StateSaving
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateViewing:
		return "viewing"
	case StateEditing:
		return "editing"
	case StateSaving:
		return "saving"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func (s State) terminal() bool { return s == StateFailed || s == StateClosed }

// AuthSource supplies the acting user. OnAuthChanged must call fn with the
// current user before returning, then again on every change. identity.Session
// satisfies it.
type AuthSource interface {
	OnAuthChanged(fn identity.AuthListener) (unsubscribe func())
}

// Option configures a view.
type Option func(*options)

type options struct {
	log        *slog.Logger
	observe    func(State)
	serializer calendar.Serializer
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithObserver registers fn to be called after every state change or applied
// snapshot. fn runs on the goroutine that caused the change, with no lock
// held, and may call back into the view.
func WithObserver(fn func(State)) Option {
	return func(o *options) { o.observe = fn }
}

// WithSerializer sets the calendar serializer used by ExportCalendar.
func WithSerializer(s calendar.Serializer) Option {
	return func(o *options) { o.serializer = s }
}

func buildOptions(opts []Option) options {
	o := options{log: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// liveFeed tracks one subscription and the version last applied from it.
type liveFeed struct {
	cancel  store.Cancel
	applied int64
	seen    bool
}

// accept reports whether version v is not older than anything applied so far
// and, if so, records it. An equal version is accepted: a collection re-read
// can report the same head version while carrying a commit whose sequence
// number was drawn earlier but landed later.
func (f *liveFeed) accept(v int64) bool {
	if f.seen && v < f.applied {
		return false
	}
	f.seen = true
	f.applied = v
	return true
}

func (f *liveFeed) stop() {
	if f.cancel != nil {
		cancel := f.cancel
		f.cancel = nil
		cancel()
	}
}

// base is the lifecycle shared by all views.
type base struct {
	store   store.Store
	log     *slog.Logger
	observe func(State)

	mu        sync.Mutex
	state     State
	err       error
	userID    string
	authSeen  bool
	unsubAuth func()
	feed      liveFeed
	ready     chan struct{}
	readyOnce sync.Once
}

func (b *base) setup(st store.Store, o options) {
	b.store = st
	b.log = o.log
	b.observe = o.observe
	b.ready = make(chan struct{})
}

// attach registers with auth. It reports false if the view could not start.
func (b *base) attach(auth AuthSource) bool {
	if auth == nil {
		b.fail(fmt.Errorf("%w: not signed in", domain.ErrForbidden))
		return false
	}
	unsub := auth.OnAuthChanged(b.HandleAuthChange)

	b.mu.Lock()
	if b.state.terminal() {
		b.mu.Unlock()
		unsub()
		return false
	}
	b.unsubAuth = unsub
	if b.userID == "" {
		b.failLocked(fmt.Errorf("%w: not signed in", domain.ErrForbidden))
		b.mu.Unlock()
		b.notify(StateFailed)
		return false
	}
	b.mu.Unlock()
	return true
}

// bind stores the subscription's cancel func, or cancels it straight away if
// the view ended while subscribing.
func (b *base) bind(cancel store.Cancel) {
	b.mu.Lock()
	if b.state.terminal() {
		b.mu.Unlock()
		cancel()
		return
	}
	b.feed.cancel = cancel
	b.mu.Unlock()
}

// HandleAuthChange applies an identity change. The first call fixes the
// acting user. Any later change to a different user, or to signed out, ends
// the view with domain.ErrForbidden.
func (b *base) HandleAuthChange(u *identity.User) {
	id := ""
	if u != nil {
		id = u.ID
	}

	b.mu.Lock()
	if b.state.terminal() {
		b.mu.Unlock()
		return
	}
	if !b.authSeen {
		b.authSeen = true
		b.userID = id
		b.mu.Unlock()
		return
	}
	if id == b.userID {
		b.mu.Unlock()
		return
	}
	reason := "signed out"
	if id != "" {
		reason = "signed in as a different user"
	}
	b.log.Info("ridesync: identity changed, closing view", "reason", reason)
	b.failLocked(fmt.Errorf("%w: %s", domain.ErrForbidden, reason))
	b.mu.Unlock()
	b.notify(StateFailed)
}

// State returns the current state.
func (b *base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Err returns the error that failed the view, or nil.
func (b *base) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Wait blocks until the view has left StateLoading or ctx ends. It returns
// the failure if the view failed and domain.ErrClosed if it was closed.
func (b *base) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.ready:
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateFailed:
		return b.err
	case StateClosed:
		return domain.ErrClosed
	}
	return nil
}

// Close releases the subscription and the identity listener. It is safe to
// call any number of times from any state. Once Close returns no snapshot is
// applied and the result of any write still in flight is ignored.
func (b *base) Close() {
	b.mu.Lock()
	if b.state == StateClosed {
		b.mu.Unlock()
		return
	}
	b.state = StateClosed
	b.releaseLocked()
	b.mu.Unlock()
	b.notify(StateClosed)
}

func (b *base) fail(err error) {
	b.mu.Lock()
	b.failLocked(err)
	b.mu.Unlock()
	b.notify(StateFailed)
}

func (b *base) failLocked(err error) {
	if b.state.terminal() {
		return
	}
	b.state = StateFailed
	b.err = err
	b.releaseLocked()
}

func (b *base) releaseLocked() {
	b.feed.stop()
	if b.unsubAuth != nil {
		unsub := b.unsubAuth
		b.unsubAuth = nil
		unsub()
	}
	b.readyOnce.Do(func() { close(b.ready) })
}

func (b *base) markReadyLocked() {
	b.readyOnce.Do(func() { close(b.ready) })
}

// usableLocked returns the error an operation should fail with when the view
// has ended, or nil.
func (b *base) usableLocked() error {
	switch b.state {
	case StateClosed:
		return domain.ErrClosed
	case StateFailed:
		return b.err
	}
	return nil
}

func (b *base) notify(s State) {
	if b.observe != nil {
		b.observe(s)
	}
}

// subscriptionFailed wraps a feed error.
func subscriptionFailed(err error) error {
	return &storeError{kind: domain.ErrSubscriptionFailed, err: err}
}

// writeFailed wraps a store write error.
func writeFailed(err error) error {
	return &storeError{kind: domain.ErrWriteFailed, err: err}
}

// storeError carries a store error unchanged in text while also matching the
// error kind it was classified as.
type storeError struct {
	kind error
	err  error
}

func (e *storeError) Error() string   { return e.err.Error() }
func (e *storeError) Unwrap() []error { return []error{e.kind, e.err} }
