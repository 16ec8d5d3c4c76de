package memory

import (
	"context"
	"sync"
	"time"

	"concurso-duel/internal/domain"
)

// SnapshotStore keeps the last good duel snapshots in process memory with a TTL.
type SnapshotStore struct {
	ttl   time.Duration
	clock func() time.Time

	mu    sync.RWMutex
	cache map[string]cachedDuel
}

type cachedDuel struct {
	duel      domain.Duel
	expiresAt time.Time
}

// NewSnapshotStore builds a store. A ttl <= 0 keeps snapshots until overwritten.
func NewSnapshotStore(ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{
		ttl:   ttl,
		clock: time.Now,
		cache: make(map[string]cachedDuel),
	}
}

func (s *SnapshotStore) Save(_ context.Context, duel domain.Duel) error {
	entry := cachedDuel{duel: duel}
	if s.ttl > 0 {
		entry.expiresAt = s.clock().Add(s.ttl)
	}
	s.mu.Lock()
	s.cache[duel.ID] = entry
	s.mu.Unlock()
	return nil
}

func (s *SnapshotStore) Load(_ context.Context, duelID string) (domain.Duel, error) {
	s.mu.RLock()
	entry, ok := s.cache[duelID]
	s.mu.RUnlock()
	if !ok {
		return domain.Duel{}, domain.ErrNoSnapshot
	}
	if !entry.expiresAt.IsZero() && !entry.expiresAt.After(s.clock()) {
		s.mu.Lock()
		delete(s.cache, duelID)
		s.mu.Unlock()
		return domain.Duel{}, domain.ErrNoSnapshot
	}
	return entry.duel, nil
}
