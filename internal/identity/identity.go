// Package identity supplies the player the engine acts for.
package identity

import "sync"

// Provider reports the signed-in player. ok is false when nobody is signed in.
type Provider interface {
	Identity() (playerID string, ok bool)
}

// Static is a Provider holding one player id until SignOut.
type Static struct {
	mu       sync.RWMutex
	playerID string
}

// NewStatic returns a provider signed in as playerID. An empty id means signed out.
func NewStatic(playerID string) *Static {
	return &Static{playerID: playerID}
}

// Identity implements Provider.
func (s *Static) Identity() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.playerID, s.playerID != ""
}

// SignIn switches to playerID.
func (s *Static) SignIn(playerID string) {
	s.mu.Lock()
	s.playerID = playerID
	s.mu.Unlock()
}

// SignOut drops the current identity.
func (s *Static) SignOut() {
	s.SignIn("")
}
