package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"concurso-duel/internal/domain"
	"github.com/redis/go-redis/v9"
)

const snapshotKeyPrefix = "duel:snapshot:"

// SnapshotStore caches the last good duel snapshot as JSON:
// SET duel:snapshot:{duelID} <json> EX ttl
type SnapshotStore struct {
	client *redis.Client
	ttl    time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSnapshotStore(client *redis.Client, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{
		client: client,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *SnapshotStore) Save(ctx context.Context, duel domain.Duel) error {
	data, err := json.Marshal(duel)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, snapshotKeyPrefix+duel.ID, data, s.ttlWithJitter()).Err()
}

func (s *SnapshotStore) Load(ctx context.Context, duelID string) (domain.Duel, error) {
	data, err := s.client.Get(ctx, snapshotKeyPrefix+duelID).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Duel{}, domain.ErrNoSnapshot
	}
	if err != nil {
		return domain.Duel{}, err
	}
	var duel domain.Duel
	if err := json.Unmarshal(data, &duel); err != nil {
		return domain.Duel{}, err
	}
	return duel, nil
}

func (s *SnapshotStore) ttlWithJitter() time.Duration {
	if s.ttl <= 0 {
		return 0
	}
	// up to 10% jitter so snapshots of one session do not expire together
	jitterMax := int64(s.ttl) / 10
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ttl + time.Duration(s.rnd.Int63n(jitterMax+1))
}
