package utils

import "sync"

// TokenStore holds the current credential pair in memory. The engine keeps
// no persisted auth state; the store is rebuilt on process start.
type TokenStore struct {
	mu       sync.RWMutex
	access   string
	refresh  string
	onChange []func(access string)
}

func NewTokenStore(access, refresh string) *TokenStore {
	return &TokenStore{access: access, refresh: refresh}
}

// Access returns the current access token, empty when cleared.
func (s *TokenStore) Access() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access
}

// Refresh returns the current refresh token.
func (s *TokenStore) Refresh() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refresh
}

// Set replaces both tokens and notifies observers with the new access token.
func (s *TokenStore) Set(access, refresh string) {
	s.mu.Lock()
	s.access = access
	s.refresh = refresh
	observers := append([]func(string){}, s.onChange...)
	s.mu.Unlock()
	for _, fn := range observers {
		fn(access)
	}
}

// Clear drops both tokens. Observers receive an empty access token and must
// treat it as a sign-out.
func (s *TokenStore) Clear() {
	s.Set("", "")
}

// OnChange registers an observer called after every Set/Clear.
func (s *TokenStore) OnChange(fn func(access string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}
