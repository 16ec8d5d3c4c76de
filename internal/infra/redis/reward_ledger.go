package redis

import (
	"context"
	"time"

	"concurso-duel/internal/domain"
	"github.com/redis/go-redis/v9"
)

const rewardKeyPrefix = "duel:reward:"

// RewardLedger dedupes reward effects across processes with SETNX.
type RewardLedger struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRewardLedger builds a ledger; ttl <= 0 keeps markers forever.
func NewRewardLedger(client *redis.Client, ttl time.Duration) *RewardLedger {
	return &RewardLedger{client: client, ttl: ttl}
}

func (l *RewardLedger) MarkFired(ctx context.Context, duelID string, outcome domain.Outcome) (bool, error) {
	return l.client.SetNX(ctx, rewardKeyPrefix+duelID, string(outcome), l.ttl).Result()
}
