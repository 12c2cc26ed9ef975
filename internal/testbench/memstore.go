package testbench

import (
	"context"
	"sync"
	"time"
)

// MemStore is an in-memory [Store] for tests and local development.
type MemStore struct {
	mu     sync.RWMutex
	nextID int64
	convos []Conversation
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{nextID: 1}
}

// Save implements [Store].
func (s *MemStore) Save(_ context.Context, c *Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.nextID
	s.nextID++
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	s.convos = append(s.convos, *c)
	return nil
}

// List implements [Store].
func (s *MemStore) List(_ context.Context, clientKey string) ([]Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Conversation
	for i := len(s.convos) - 1; i >= 0; i-- {
		if s.convos[i].ClientKey == clientKey {
			out = append(out, s.convos[i])
		}
	}
	return out, nil
}
