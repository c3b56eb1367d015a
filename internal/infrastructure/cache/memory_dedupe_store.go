package cache

import (
	"context"
	"sync"
	"time"

	"github.com/meschain/marketsync/internal/domain/shared"
)

// MemoryDedupeStore keeps webhook delivery claims in process. Claims are only
// visible to this instance, so it suits single-instance deployments.
// Expired claims are swept lazily while new claims are made.
type MemoryDedupeStore struct {
	mu         sync.Mutex
	expiry     map[string]time.Time
	sweepEvery time.Duration
	nextSweep  time.Time
	now        func() time.Time
}

func NewMemoryDedupeStore() *MemoryDedupeStore {
	return &MemoryDedupeStore{
		expiry:     make(map[string]time.Time),
		sweepEvery: defaultCleanupInterval,
		now:        time.Now,
	}
}

func (s *MemoryDedupeStore) MarkProcessed(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if !now.Before(s.nextSweep) {
		s.sweepLocked(now)
	}
	if until, held := s.expiry[key]; held && now.Before(until) {
		return false, nil
	}
	s.expiry[key] = now.Add(ttl)
	return true, nil
}

func (s *MemoryDedupeStore) Forget(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.expiry, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryDedupeStore) sweepLocked(now time.Time) {
	for key, until := range s.expiry {
		if !now.Before(until) {
			delete(s.expiry, key)
		}
	}
	s.nextSweep = now.Add(s.sweepEvery)
}

// Len returns the number of claims held, expired ones included until swept
func (s *MemoryDedupeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.expiry)
}

// Close drops every claim
func (s *MemoryDedupeStore) Close() error {
	s.mu.Lock()
	clear(s.expiry)
	s.mu.Unlock()
	return nil
}

var _ shared.IdempotencyStore = (*MemoryDedupeStore)(nil)
