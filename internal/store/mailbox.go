package store

import "sync"

// Mailbox runs posted funcs one at a time, in post order, on its own
// goroutine. Posting never blocks. After Close no further func starts; one
// that is already running finishes.
type Mailbox struct {
	mu     sync.Mutex
	queue  []func()
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

// NewMailbox starts a mailbox.
func NewMailbox() *Mailbox {
	m := &Mailbox{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go m.run()
	return m
}

// Post enqueues f. It reports false if the mailbox is closed.
func (m *Mailbox) Post(f func()) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, f)
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
	return true
}

// Close discards pending funcs and stops the goroutine. Safe to call more
// than once and from inside a posted func.
func (m *Mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.queue = nil
	close(m.done)
}

// Done is closed once Close has been called.
func (m *Mailbox) Done() <-chan struct{} { return m.done }

func (m *Mailbox) next() (func(), bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || len(m.queue) == 0 {
		return nil, false
	}
	f := m.queue[0]
	m.queue[0] = nil
	m.queue = m.queue[1:]
	return f, true
}

func (m *Mailbox) run() {
	for {
		select {
		case <-m.done:
			return
		case <-m.wake:
		}
		for {
			f, ok := m.next()
			if !ok {
				break
			}
			f()
		}
	}
}
