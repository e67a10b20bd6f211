// Package storage holds published session snapshots.
package storage

import (
	"context"
	"sync"

	"github.com/hammamikhairi/voiceask/internal/domain"
	"github.com/hammamikhairi/voiceask/internal/logger"
)

// Compile-time interface check.
var _ domain.SessionStore = (*MemoryStore)(nil)

// Option configures the MemoryStore.
type Option func(*MemoryStore)

// WithHistory keeps the last n snapshots in addition to the latest one.
func WithHistory(n int) Option {
	return func(s *MemoryStore) {
		s.historyCap = n
	}
}

// MemoryStore is an in-memory snapshot store. Safe for concurrent access.
// Callers get copies; stored snapshots are never handed out directly.
type MemoryStore struct {
	mu         sync.RWMutex
	latest     *domain.SessionState
	history    []*domain.SessionState
	historyCap int
	saves      int
	log        *logger.Logger
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(log *logger.Logger, opts ...Option) *MemoryStore {
	s := &MemoryStore{log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save replaces the latest snapshot.
func (s *MemoryStore) Save(ctx context.Context, state *domain.SessionState) error {
	snap := state.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.log.Debug("saving snapshot (session=%s, gen=%d, phase=%s)", snap.ID, snap.Generation, snap.Phase)
	s.latest = snap
	s.saves++

	if s.historyCap > 0 {
		s.history = append(s.history, snap)
		if over := len(s.history) - s.historyCap; over > 0 {
			s.history = append(s.history[:0:0], s.history[over:]...)
		}
	}
	return nil
}

// Load returns the latest snapshot, or domain.ErrNotFound before the
// first Save.
func (s *MemoryStore) Load(ctx context.Context) (*domain.SessionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.latest == nil {
		return nil, domain.ErrNotFound
	}
	return s.latest.Clone(), nil
}

// History returns the retained snapshots, oldest first.
func (s *MemoryStore) History() []*domain.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.SessionState, len(s.history))
	for i, snap := range s.history {
		out[i] = snap.Clone()
	}
	return out
}

// Saves returns how many snapshots have been saved.
func (s *MemoryStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}
