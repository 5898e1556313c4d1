// Package store holds client-side state for rendered views.
//
// UserStore is an observable container for the current user's public
// fields. It knows nothing about HTTP or rendering; a view reads the getters
// and subscribes to be told when the user changes.
package store

import (
	"sync"

	"github.com/sakif/account-portal/internal/model"
)

// UserStore is safe for concurrent use. The zero value is an empty store.
type UserStore struct {
	// notifyMu serializes publishes and initial Subscribe deliveries, so
	// every subscriber sees changes in the order the store applied them.
	notifyMu sync.Mutex

	mu     sync.RWMutex
	user   *model.User
	nextID int
	subs   map[int]func(*model.User)
}

func NewUserStore() *UserStore {
	return &UserStore{}
}

// Exists reports whether a user is set.
func (s *UserStore) Exists() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

func (s *UserStore) ID() string           { return s.field(func(u *model.User) string { return u.ID }) }
func (s *UserStore) Email() string        { return s.field(func(u *model.User) string { return u.Email }) }
func (s *UserStore) Username() string     { return s.field(func(u *model.User) string { return u.Username }) }
func (s *UserStore) ProfileImage() string { return s.field(func(u *model.User) string { return u.ProfileImage }) }

func (s *UserStore) field(get func(*model.User) string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return ""
	}
	return get(s.user)
}

// Set replaces the current user and notifies subscribers.
func (s *UserStore) Set(u model.User) {
	s.publish(&u)
}

// Clear removes the current user and notifies subscribers with nil.
func (s *UserStore) Clear() {
	s.publish(nil)
}

// Subscribe calls fn with the current user (nil if none) right away and on
// every later change. The returned func unsubscribes; calling it twice is
// harmless.
//
// fn runs without the store's lock held, so it may read the store or
// unsubscribe, but it must not call Set or Clear, and it must not block for
// long: the next change waits until every subscriber has seen this one.
func (s *UserStore) Subscribe(fn func(*model.User)) (unsubscribe func()) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if s.subs == nil {
		s.subs = make(map[int]func(*model.User))
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	current := s.snapshot()
	s.mu.Unlock()

	fn(current)

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *UserStore) publish(u *model.User) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.user = u
	current := s.snapshot()
	subs := make([]func(*model.User), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(current)
	}
}

// snapshot returns a copy of the user so subscribers can't mutate the store.
// Callers hold mu.
func (s *UserStore) snapshot() *model.User {
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}
