package profile

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory implementation of [Store], suitable
// for tests and single-instance demos.
type MemStore struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

// NewMemStore returns an initialised [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{profiles: make(map[string]Profile)}
}

// Get implements [Store.Get].
func (s *MemStore) Get(_ context.Context, clientKey string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[clientKey]
	if !ok {
		return nil, fmt.Errorf("profile: get %q: %w", clientKey, ErrNotFound)
	}
	return &p, nil
}

// Upsert implements [Store.Upsert].
func (s *MemStore) Upsert(_ context.Context, p *Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := s.profiles[p.ClientKey]; ok {
		p.CreatedAt = existing.CreatedAt
	} else {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.profiles[p.ClientKey] = *p
	return nil
}

// List implements [Store.List].
func (s *MemStore) List(_ context.Context) ([]Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
