package call

import (
	"context"
	"sync"
)

// Compile-time interface check.
var _ Sink = (*MemSink)(nil)

// MemSink is an in-memory [Sink] for tests. It keeps every record keyed by
// call ID and counts how many times each call was saved.
type MemSink struct {
	mu      sync.Mutex
	records map[string]*Record
	saves   map[string]int
}

// NewMemSink returns an initialised [MemSink].
func NewMemSink() *MemSink {
	return &MemSink{
		records: make(map[string]*Record),
		saves:   make(map[string]int),
	}
}

// Save implements [Sink].
func (s *MemSink) Save(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.CallID] = rec
	s.saves[rec.CallID]++
	return nil
}

// Record returns the last saved record for callID, or nil.
func (s *MemSink) Record(callID string) *Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[callID]
}

// SaveCount returns how many times callID was saved.
func (s *MemSink) SaveCount(callID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves[callID]
}
