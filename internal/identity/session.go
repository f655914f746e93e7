// Package identity supplies the acting user to the rest of the system.
//
// A Session holds the currently signed-in user and notifies listeners when it
// changes. JWT issues and verifies the bearer tokens the HTTP API accepts.
package identity

import "sync"

// User is a signed-in identity. ID is stable; Email is for display only.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// AuthListener receives the current user, or nil when signed out.
type AuthListener func(u *User)

// Session is the auth-changed source consumed by ridesync. The zero value is
// a signed-out session.
type Session struct {
	// deliver serializes notifications so every listener sees changes in
	// the order they happened. It is taken before mu.
	deliver sync.Mutex

	mu        sync.Mutex
	user      *User
	listeners map[int]AuthListener
	next      int
}

// NewSession returns a session already signed in as u. Pass nil for a
// signed-out session.
func NewSession(u *User) *Session {
	s := &Session{}
	if u != nil {
		c := *u
		s.user = &c
	}
	return s
}

// Current returns a copy of the signed-in user, or nil.
func (s *Session) Current() *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	c := *s.user
	return &c
}

// OnAuthChanged registers fn and immediately calls it with the current state.
// The returned func unregisters fn; calling it more than once is harmless.
//
// Deliveries are serialized: the first call and every later change reach fn
// in order, so the last user fn sees is always the session's current one. fn
// may unsubscribe but must not sign in, sign out or register listeners.
func (s *Session) OnAuthChanged(fn AuthListener) (unsubscribe func()) {
	s.deliver.Lock()
	defer s.deliver.Unlock()

	s.mu.Lock()
	if s.listeners == nil {
		s.listeners = make(map[int]AuthListener)
	}
	id := s.next
	s.next++
	s.listeners[id] = fn
	current := s.user
	s.mu.Unlock()

	fn(copyUser(current))

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// SignIn replaces the current user and notifies listeners.
func (s *Session) SignIn(u User) {
	s.set(&u)
}

// SignOut clears the current user and notifies listeners.
func (s *Session) SignOut() {
	s.set(nil)
}

func (s *Session) set(u *User) {
	s.deliver.Lock()
	defer s.deliver.Unlock()

	s.mu.Lock()
	s.user = u
	fns := make([]AuthListener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	// Listeners run outside the lock so they may unsubscribe themselves.
	for _, fn := range fns {
		fn(copyUser(u))
	}
}

func copyUser(u *User) *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
