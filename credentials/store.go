// Package credentials holds the per-session integration credentials the
// gateway has been given through its login tools.
//
// A Store maps (session id, integration) to the most recently supplied
// bundle. Bundles live only in process memory and disappear when the owning
// session is dropped.
package credentials

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/ggoodman/mcp-gateway/integration"
	"github.com/zeebo/blake3"
)

// ErrInvalidBundle is returned when a bundle cannot be stored.
var ErrInvalidBundle = errors.New("invalid credential bundle")

// Store is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	entries map[string]map[integration.Name]integration.Bundle
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{entries: make(map[string]map[integration.Name]integration.Bundle)}
}

// Login stores b for the session, replacing any earlier bundle for the same
// integration, and returns a confirmation token derived from the bundle.
func (s *Store) Login(sessionID string, b integration.Bundle) (string, error) {
	if sessionID == "" {
		return "", fmt.Errorf("%w: empty session id", ErrInvalidBundle)
	}
	if b == nil || !b.Integration().Valid() {
		return "", fmt.Errorf("%w: unknown integration", ErrInvalidBundle)
	}

	confirmation, err := Confirmation(b)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.entries[sessionID]
	if !ok {
		m = make(map[integration.Name]integration.Bundle, len(integration.All))
		s.entries[sessionID] = m
	}
	m[b.Integration()] = b
	return confirmation, nil
}

// Get returns the bundle stored for the session and integration.
func (s *Store) Get(sessionID string, n integration.Name) (integration.Bundle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.entries[sessionID][n]
	return b, ok
}

// Integrations lists the integrations the session has logged in to.
func (s *Store) Integrations(sessionID string) []integration.Name {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []integration.Name
	for _, n := range integration.All {
		if _, ok := s.entries[sessionID][n]; ok {
			out = append(out, n)
		}
	}
	return out
}

// Drop removes every bundle held for the session.
func (s *Store) Drop(sessionID string) {
	s.mu.Lock()
	delete(s.entries, sessionID)
	s.mu.Unlock()
}

// Sessions returns the number of sessions holding at least one bundle.
func (s *Store) Sessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Confirmation is the hex BLAKE3 digest of the integration name and the
// bundle's JSON encoding. Equal bundles always produce equal tokens.
func Confirmation(b integration.Bundle) (string, error) {
	enc, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}
	h := blake3.New()
	_, _ = h.Write([]byte(b.Integration()))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(enc)
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16]), nil
}
