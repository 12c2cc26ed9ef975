package lead

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory implementation of [Store] for tests.
type MemStore struct {
	mu     sync.RWMutex
	nextID int64
	leads  []Lead
}

// NewMemStore returns an initialised [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{nextID: 1}
}

// Create implements [Store.Create].
func (s *MemStore) Create(_ context.Context, l *Lead) error {
	if err := l.Validate(); err != nil {
		return err
	}
	if l.Status == "" {
		l.Status = StatusNew
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	l.ID = s.nextID
	s.nextID++
	l.CreatedAt = now
	l.UpdatedAt = now
	s.leads = append(s.leads, *l)
	return nil
}

// List implements [Store.List].
func (s *MemStore) List(_ context.Context, clientKey string) ([]Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Lead
	for _, l := range s.leads {
		if l.ClientKey == clientKey {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Stats implements [Store.Stats].
func (s *MemStore) Stats(_ context.Context, clientKey string) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Stats
	for _, l := range s.leads {
		if l.ClientKey != clientKey {
			continue
		}
		st.Total++
		if l.Status == StatusNew {
			st.New++
		}
		if l.Phone != "" {
			st.WithPhone++
		}
		if l.Email != "" {
			st.WithEmail++
		}
		if l.Status == StatusCalling || l.Status == StatusContacted {
			st.Called++
		}
	}
	return st, nil
}
