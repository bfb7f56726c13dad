// Package memory provides an in-memory prefs.Store for tests and the
// default development backend.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"scontrino/internal/core"
	"scontrino/internal/prefs"
)

type Store struct {
	mu    sync.Mutex
	items map[string]prefs.Preference
}

func New() *Store {
	return &Store{items: make(map[string]prefs.Preference)}
}

func (s *Store) Load(_ context.Context, sessionID string) (prefs.Preference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.items[sessionID]
	if !ok {
		return prefs.Preference{}, prefs.ErrNotFound
	}
	if p.Mapping != nil {
		m := *p.Mapping
		p.Mapping = &m
	}
	return p, nil
}

func (s *Store) Save(_ context.Context, p prefs.Preference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if prev, ok := s.items[p.SessionID]; ok {
		p.ID = prev.ID
		p.CreatedAt = prev.CreatedAt
		p.Mapping = prev.Mapping
	} else {
		p.ID = uuid.NewString()
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.items[p.SessionID] = p
	return nil
}

func (s *Store) SaveColumnMapping(_ context.Context, sessionID string, m core.ColumnMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.items[sessionID]
	if !ok {
		return prefs.ErrNotFound
	}
	p.Mapping = &m
	p.UpdatedAt = time.Now().UTC()
	s.items[sessionID] = p
	return nil
}

func (s *Store) HasColumnMapping(_ context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.items[sessionID]
	return ok && p.Mapping != nil, nil
}
