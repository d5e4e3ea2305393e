// Package session holds the registration state shared across the client.
package session

import (
	"sync"
)

// Player is the local player's record once registered.
type Player struct {
	Address string `json:"address"`
	Role    string `json:"role"`
	// Status is true once the registration transaction is confirmed.
	Status bool `json:"status"`
	// ID is assigned by the game; 0 until then.
	ID int `json:"id"`
}

// Store is the single source of truth for the registered flag and the
// current player record. Writes are serialized; readers may call from any
// goroutine.
type Store struct {
	mu         sync.RWMutex
	registered bool
	player     *Player
	watchers   []chan struct{}
}

func NewStore() *Store {
	return &Store{}
}

// IsRegistered reports whether this client's registration is confirmed and
// the session is full.
func (s *Store) IsRegistered() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registered
}

func (s *Store) SetRegistered(registered bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.registered == registered {
		return
	}
	s.registered = registered
	s.notify()
}

// Player returns a copy of the current player record, if one was published.
func (s *Store) Player() (Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.player == nil {
		return Player{}, false
	}
	return *s.player, true
}

// SetPlayer replaces the player record.
func (s *Store) SetPlayer(p Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.player = &p
	s.notify()
}

// Changed returns a channel closed on the next write to the store.
func (s *Store) Changed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan struct{})
	s.watchers = append(s.watchers, ch)
	return ch
}

func (s *Store) notify() {
	for _, ch := range s.watchers {
		close(ch)
	}
	s.watchers = nil
}
