package memory

import (
	"context"
	"sync"

	"concurso-duel/internal/domain"
)

// RewardLedger is an in-process implementation of app.RewardLedger.
type RewardLedger struct {
	mu    sync.Mutex
	fired map[string]domain.Outcome
}

func NewRewardLedger() *RewardLedger {
	return &RewardLedger{
		fired: make(map[string]domain.Outcome),
	}
}

func (l *RewardLedger) MarkFired(_ context.Context, duelID string, outcome domain.Outcome) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.fired[duelID]; ok {
		return false, nil
	}
	l.fired[duelID] = outcome
	return true, nil
}

// Outcome returns the outcome recorded for a duel.
func (l *RewardLedger) Outcome(duelID string) (domain.Outcome, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	outcome, ok := l.fired[duelID]
	return outcome, ok
}
