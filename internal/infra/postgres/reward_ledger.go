package postgres

import (
	"context"
	"fmt"
	"time"

	"concurso-duel/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/uptrace/bun"
)

// RewardLedger records fired rewards in the duel_rewards table so the effect
// is shown once per duel even across devices sharing the database.
type RewardLedger struct {
	pool *pgxpool.Pool
}

func NewRewardLedger(pool *pgxpool.Pool) *RewardLedger {
	return &RewardLedger{pool: pool}
}

func (l *RewardLedger) MarkFired(ctx context.Context, duelID string, outcome domain.Outcome) (bool, error) {
	tag, err := l.pool.Exec(ctx,
		`INSERT INTO duel_rewards (duel_id, outcome) VALUES ($1, $2) ON CONFLICT (duel_id) DO NOTHING`,
		duelID, string(outcome))
	if err != nil {
		return false, fmt.Errorf("mark reward: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// RewardEvent is a row of duel_rewards.
type RewardEvent struct {
	bun.BaseModel `bun:"table:duel_rewards,alias:r"`

	DuelID  string         `bun:"duel_id,pk"`
	Outcome domain.Outcome `bun:"outcome,notnull"`
	FiredAt time.Time      `bun:"fired_at,notnull"`
}

// RewardArchive lists fired rewards.
type RewardArchive struct {
	db *bun.DB
}

func NewRewardArchive(db *bun.DB) *RewardArchive {
	return &RewardArchive{db: db}
}

// Recent returns the latest fired rewards, newest first.
func (a *RewardArchive) Recent(ctx context.Context, limit int) ([]RewardEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	var events []RewardEvent
	err := a.db.NewSelect().
		Model(&events).
		OrderExpr("r.fired_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	return events, nil
}
