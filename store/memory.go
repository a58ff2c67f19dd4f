package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps consumed proofs in process memory. Entries live for
// the lifetime of the process; restarting the gate forgets them
type MemoryStore struct {
	mu       sync.Mutex
	consumed map[string]time.Time
}

var _ ProofStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory proof store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		consumed: make(map[string]time.Time),
	}
}

// IsConsumed reports whether the proof is in the set.
func (s *MemoryStore) IsConsumed(_ context.Context, proofID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.consumed[proofID]
	return ok, nil
}

// Consume records the proof under the lock, so concurrent calls with the
// same proof serialize and exactly one of them returns true.
func (s *MemoryStore) Consume(_ context.Context, proofID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.consumed[proofID]; ok {
		return false, nil
	}

	s.consumed[proofID] = time.Now().UTC()
	return true, nil
}
