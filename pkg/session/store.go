// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"sync"
	"time"
)

// Store persists drafts. Load returns (nil, nil) when no draft exists for the
// key; an error always means the store itself failed, and invocations fail
// closed on it. Implementations must tolerate concurrent access from multiple
// invocation workers; cross-key transactions are not required.
type Store interface {
	Load(ctx context.Context, key Key) (*Draft, error)
	Save(ctx context.Context, draft *Draft) error
	Delete(ctx context.Context, key Key) error
}

// Expirer removes drafts whose expiry has passed. The runtime sweeps
// registered expirers on a configurable interval.
type Expirer interface {
	ExpireBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// MemoryStore keeps drafts in memory. Useful for tests and single-node runs.
type MemoryStore struct {
	mu     sync.RWMutex
	drafts map[Key]*Draft
}

// NewMemoryStore creates an in-memory draft store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{drafts: make(map[Key]*Draft)}
}

// Load returns a copy of the draft for key, or (nil, nil) when absent.
func (s *MemoryStore) Load(_ context.Context, key Key) (*Draft, error) {
	s.mu.RLock()
	draft, ok := s.drafts[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return draft.Clone(), nil
}

// Save stores a copy of the draft under its key.
func (s *MemoryStore) Save(_ context.Context, draft *Draft) error {
	copied := draft.Clone()
	copied.UpdatedAt = time.Now().UTC()
	s.mu.Lock()
	s.drafts[draft.Key()] = copied
	s.mu.Unlock()
	return nil
}

// Delete removes the draft for key. Deleting an absent key is a no-op.
func (s *MemoryStore) Delete(_ context.Context, key Key) error {
	s.mu.Lock()
	delete(s.drafts, key)
	s.mu.Unlock()
	return nil
}

// ExpireBefore removes drafts whose ExpiresAt is before cutoff.
func (s *MemoryStore) ExpireBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, draft := range s.drafts {
		if !draft.ExpiresAt.IsZero() && draft.ExpiresAt.Before(cutoff) {
			delete(s.drafts, key)
			removed++
		}
	}
	return removed, nil
}
