package store

import (
	"context"
	"sync"
)

// LocalFeed is an in-process Feed. Publish calls every listener inline, so
// listeners must not block.
type LocalFeed struct {
	mu        sync.Mutex
	listeners map[int]func(Change)
	next      int
}

// NewLocalFeed returns an empty feed.
func NewLocalFeed() *LocalFeed {
	return &LocalFeed{listeners: make(map[int]func(Change))}
}

var _ Feed = (*LocalFeed)(nil)

// Publish delivers c to every registered listener.
func (f *LocalFeed) Publish(_ context.Context, c Change) error {
	f.Dispatch(c)
	return nil
}

// Dispatch is Publish without the context, for feeds that receive changes
// from elsewhere and fan them out locally.
func (f *LocalFeed) Dispatch(c Change) {
	f.mu.Lock()
	fns := make([]func(Change), 0, len(f.listeners))
	for _, fn := range f.listeners {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}

// Listen registers fn until the returned Cancel is called or ctx ends.
func (f *LocalFeed) Listen(ctx context.Context, fn func(Change)) (Cancel, error) {
	f.mu.Lock()
	id := f.next
	f.next++
	f.listeners[id] = fn
	f.mu.Unlock()

	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.listeners, id)
			f.mu.Unlock()
			close(done)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return cancel, nil
}
