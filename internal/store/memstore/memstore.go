// Package memstore is an in-process implementation of store.Store.
// It backs unit tests and STORE=memory runs.
package memstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/rideplanner/internal/store"
)

type document struct {
	collection string
	id         string
	fields     store.Fields
	version    int64
	created    time.Time
	updated    time.Time
}

type subscription struct {
	path  string       // set for document subscriptions
	query *store.Query // set for query subscriptions
	doc   store.DocListener
	qry   store.QueryListener
	box   *store.Mailbox
}

// Store holds documents in memory. All commits are serialized by one mutex,
// which also orders notifications.
type Store struct {
	mu      sync.Mutex
	docs    map[string]*document
	version int64
	subs    map[int]*subscription
	nextSub int

	now   func() time.Time
	newID func() string
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the commit clock.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDs sets the id generator used by Add.
func WithIDs(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		docs:  make(map[string]*document),
		subs:  make(map[int]*subscription),
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ store.Store = (*Store)(nil)

func (s *Store) Get(ctx context.Context, path string) (store.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return store.Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(path), nil
}

func (s *Store) Query(ctx context.Context, q store.Query) (store.QuerySnapshot, error) {
	if err := ctx.Err(); err != nil {
		return store.QuerySnapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryLocked(q), nil
}

func (s *Store) Add(ctx context.Context, collection string, fields store.Fields) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := s.newID()
	if err := s.Set(ctx, store.Doc(collection, id), fields); err != nil {
		return "", fmt.Errorf("memstore.Store.Add: %w", err)
	}
	return id, nil
}

func (s *Store) Set(ctx context.Context, path string, fields store.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	collection, id, err := store.Split(path)
	if err != nil {
		return fmt.Errorf("memstore.Store.Set: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	s.version++
	d, ok := s.docs[path]
	if !ok {
		d = &document{collection: collection, id: id, created: now}
		s.docs[path] = d
	}
	d.fields = store.Apply(nil, fields, now)
	d.version = s.version
	d.updated = now
	s.notifyLocked(path, collection)
	return nil
}

func (s *Store) Update(ctx context.Context, path string, fields store.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.docs[path]
	if !ok {
		return fmt.Errorf("memstore.Store.Update: %w", store.ErrNotFound)
	}
	now := s.now().UTC()
	s.version++
	d.fields = store.Apply(d.fields, fields, now)
	d.version = s.version
	d.updated = now
	s.notifyLocked(path, d.collection)
	return nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.docs[path]
	if !ok {
		return fmt.Errorf("memstore.Store.Delete: %w", store.ErrNotFound)
	}
	s.version++
	delete(s.docs, path)
	s.notifyLocked(path, d.collection)
	return nil
}

func (s *Store) Subscribe(ctx context.Context, path string, fn store.DocListener) (store.Cancel, error) {
	if _, _, err := store.Split(path); err != nil {
		return nil, fmt.Errorf("memstore.Store.Subscribe: %w", err)
	}
	return s.subscribe(ctx, &subscription{path: path, doc: fn}), nil
}

func (s *Store) SubscribeQuery(ctx context.Context, q store.Query, fn store.QueryListener) (store.Cancel, error) {
	if q.Collection == "" {
		return nil, fmt.Errorf("memstore.Store.SubscribeQuery: empty collection")
	}
	q.Where = slices.Clone(q.Where)
	return s.subscribe(ctx, &subscription{query: &q, qry: fn}), nil
}

func (s *Store) subscribe(ctx context.Context, sub *subscription) store.Cancel {
	sub.box = store.NewMailbox()

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = sub
	s.deliverLocked(sub)
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			sub.box.Close()
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-sub.box.Done():
		}
	}()

	return cancel
}

// notifyLocked queues a delivery for every subscription the commit touches.
// Called with s.mu held, so mailboxes receive commits in version order.
func (s *Store) notifyLocked(path, collection string) {
	for _, sub := range s.subs {
		switch {
		case sub.query != nil && sub.query.Collection == collection:
			s.deliverLocked(sub)
		case sub.path == path:
			s.deliverLocked(sub)
		}
	}
}

func (s *Store) deliverLocked(sub *subscription) {
	if sub.query != nil {
		snap := s.queryLocked(*sub.query)
		sub.box.Post(func() { sub.qry(snap, nil) })
		return
	}
	snap := s.snapshotLocked(sub.path)
	sub.box.Post(func() { sub.doc(snap, nil) })
}

func (s *Store) snapshotLocked(path string) store.Snapshot {
	d, ok := s.docs[path]
	if !ok {
		_, id, _ := store.Split(path)
		return store.Snapshot{ID: id, Path: path, Version: s.version}
	}
	return snapshotOf(path, d)
}

func (s *Store) queryLocked(q store.Query) store.QuerySnapshot {
	var docs []store.Snapshot
	for path, d := range s.docs {
		if d.collection != q.Collection || !store.Matches(d.fields, q.Where) {
			continue
		}
		docs = append(docs, snapshotOf(path, d))
	}
	slices.SortFunc(docs, func(a, b store.Snapshot) int {
		c := 0
		if q.OrderBy != "" {
			c = store.Compare(a.Fields[q.OrderBy], b.Fields[q.OrderBy])
			if q.Desc {
				c = -c
			}
		}
		return cmp.Or(c, strings.Compare(a.ID, b.ID))
	})
	return store.QuerySnapshot{Docs: docs, Version: s.version}
}

func snapshotOf(path string, d *document) store.Snapshot {
	return store.Snapshot{
		ID:         d.id,
		Path:       path,
		Exists:     true,
		Fields:     store.CloneFields(d.fields),
		Version:    d.version,
		CreateTime: d.created,
		UpdateTime: d.updated,
	}
}

// Break ends every open subscription with err, as a dropped connection
// would.
func (s *Store) Break(err error) {
	s.mu.Lock()
	subs := s.subs
	s.subs = make(map[int]*subscription)
	for _, sub := range subs {
		sub := sub
		if sub.query != nil {
			sub.box.Post(func() { sub.qry(store.QuerySnapshot{}, err); sub.box.Close() })
			continue
		}
		sub.box.Post(func() { sub.doc(store.Snapshot{}, err); sub.box.Close() })
	}
	s.mu.Unlock()
}
