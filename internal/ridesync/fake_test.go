package ridesync_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pkordes/rideplanner/internal/store"
)

// write is one mutation recorded by fakeStore.
type write struct {
	op     string
	path   string
	fields store.Fields
}

type fakeSub struct {
	path       string
	collection string
	doc        store.DocListener
	query      store.QueryListener
	cancelled  bool
}

// fakeStore records writes and lets tests push snapshots synchronously.
// Any Fn field left nil falls back to a default that succeeds.
type fakeStore struct {
	GetFn    func(ctx context.Context, path string) (store.Snapshot, error)
	QueryFn  func(ctx context.Context, q store.Query) (store.QuerySnapshot, error)
	AddFn    func(ctx context.Context, collection string, fields store.Fields) (string, error)
	UpdateFn func(ctx context.Context, path string, fields store.Fields) error
	DeleteFn func(ctx context.Context, path string) error

	mu     sync.Mutex
	subs   []*fakeSub
	writes []write
}

var _ store.Store = (*fakeStore)(nil)

func (f *fakeStore) record(w write) {
	f.mu.Lock()
	f.writes = append(f.writes, w)
	f.mu.Unlock()
}

func (f *fakeStore) Writes() []write {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]write(nil), f.writes...)
}

func (f *fakeStore) Get(ctx context.Context, path string) (store.Snapshot, error) {
	if f.GetFn != nil {
		return f.GetFn(ctx, path)
	}
	_, id, _ := store.Split(path)
	return store.Snapshot{ID: id, Path: path}, nil
}

func (f *fakeStore) Query(ctx context.Context, q store.Query) (store.QuerySnapshot, error) {
	if f.QueryFn != nil {
		return f.QueryFn(ctx, q)
	}
	return store.QuerySnapshot{}, nil
}

func (f *fakeStore) Add(ctx context.Context, collection string, fields store.Fields) (string, error) {
	f.record(write{op: "add", path: collection, fields: fields})
	if f.AddFn != nil {
		return f.AddFn(ctx, collection, fields)
	}
	return "new-id", nil
}

func (f *fakeStore) Set(_ context.Context, path string, fields store.Fields) error {
	f.record(write{op: "set", path: path, fields: fields})
	return nil
}

func (f *fakeStore) Update(ctx context.Context, path string, fields store.Fields) error {
	f.record(write{op: "update", path: path, fields: fields})
	if f.UpdateFn != nil {
		return f.UpdateFn(ctx, path, fields)
	}
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, path string) error {
	f.record(write{op: "delete", path: path})
	if f.DeleteFn != nil {
		return f.DeleteFn(ctx, path)
	}
	return nil
}

func (f *fakeStore) Subscribe(_ context.Context, path string, fn store.DocListener) (store.Cancel, error) {
	return f.add(&fakeSub{path: path, doc: fn}), nil
}

func (f *fakeStore) SubscribeQuery(_ context.Context, q store.Query, fn store.QueryListener) (store.Cancel, error) {
	return f.add(&fakeSub{collection: q.Collection, query: fn}), nil
}

func (f *fakeStore) add(s *fakeSub) store.Cancel {
	f.mu.Lock()
	f.subs = append(f.subs, s)
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		s.cancelled = true
		f.mu.Unlock()
	}
}

func (f *fakeStore) live(match func(*fakeSub) bool) []*fakeSub {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*fakeSub
	for _, s := range f.subs {
		if !s.cancelled && match(s) {
			out = append(out, s)
		}
	}
	return out
}

// push delivers snap to live subscribers of path, ignoring cancellation
// races the way a real transport might: a listener cancelled after this
// call starts still receives it.
func (f *fakeStore) push(path string, snap store.Snapshot) {
	for _, s := range f.live(func(s *fakeSub) bool { return s.doc != nil && s.path == path }) {
		s.doc(snap, nil)
	}
}

// pushAll delivers snap to every subscriber of path, cancelled or not.
func (f *fakeStore) pushAll(path string, snap store.Snapshot) {
	f.mu.Lock()
	subs := append([]*fakeSub(nil), f.subs...)
	f.mu.Unlock()
	for _, s := range subs {
		if s.doc != nil && s.path == path {
			s.doc(snap, nil)
		}
	}
}

func (f *fakeStore) pushQuery(collection string, qs store.QuerySnapshot) {
	for _, s := range f.live(func(s *fakeSub) bool { return s.query != nil && s.collection == collection }) {
		s.query(qs, nil)
	}
}

func (f *fakeStore) breakDoc(path string, err error) {
	for _, s := range f.live(func(s *fakeSub) bool { return s.doc != nil && s.path == path }) {
		s.doc(store.Snapshot{}, err)
	}
}

func (f *fakeStore) liveCount() int {
	return len(f.live(func(*fakeSub) bool { return true }))
}

// waitForQuerySub blocks until a query subscription on collection exists.
func (f *fakeStore) waitForQuerySub(t *testing.T, collection string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(f.live(func(s *fakeSub) bool { return s.query != nil && s.collection == collection })) > 0
	}, time.Second, 2*time.Millisecond)
}
