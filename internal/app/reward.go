package app

import (
	"context"
	"log/slog"
	"time"

	"concurso-duel/internal/domain"
)

// RewardLedger remembers which duels already fired their reward.
// MarkFired returns true only for the first call per duel id.
type RewardLedger interface {
	MarkFired(ctx context.Context, duelID string, outcome domain.Outcome) (bool, error)
}

// Tone is how a reward is visualized.
type Tone string

const (
	TonePositive Tone = "positive"
	ToneNegative Tone = "negative"
	ToneNeutral  Tone = "neutral"
)

// Reward describes the celebratory or penalty effect of a finished duel.
type Reward struct {
	DuelID  string
	Outcome domain.Outcome
	Tone    Tone
	Score   int
	Rival   int
}

// ToneFor maps an outcome to its visualization.
func ToneFor(outcome domain.Outcome) Tone {
	switch outcome {
	case domain.OutcomeVictory:
		return TonePositive
	case domain.OutcomeDefeat:
		return ToneNegative
	default:
		return ToneNeutral
	}
}

// RewardHook fires the reward notice once per completed duel.
type RewardHook struct {
	userID   string
	ledger   RewardLedger
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewRewardHook(userID string, ledger RewardLedger, notifier Notifier, logger *slog.Logger) *RewardHook {
	if notifier == nil {
		notifier = discardNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RewardHook{
		userID:   userID,
		ledger:   ledger,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Observe fires the reward if duel is completed and no reward was fired for it before.
// It reports whether the reward fired on this call.
//
// A ledger failure does not swallow the reward: the caller's own
// once-per-session guard still holds, so the effect fires and the error is logged.
func (h *RewardHook) Observe(ctx context.Context, duel domain.Duel) bool {
	if duel.Status != domain.StatusCompleted {
		return false
	}
	outcome := duel.Outcome(h.userID)
	first, err := h.ledger.MarkFired(ctx, duel.ID, outcome)
	if err != nil {
		h.logger.Warn("reward ledger unavailable", "duel", duel.ID, "error", err)
		first = true
	}
	if !first {
		return false
	}

	reward := Reward{
		DuelID:  duel.ID,
		Outcome: outcome,
		Tone:    ToneFor(outcome),
	}
	switch duel.Side(h.userID) {
	case domain.SideOpponent:
		reward.Score, reward.Rival = duel.OpponentScore, duel.ChallengerScore
	default:
		reward.Score, reward.Rival = duel.ChallengerScore, duel.OpponentScore
	}

	h.notifier.Notify(Notice{
		Kind:    NoticeReward,
		Message: rewardMessage(outcome),
		Reward:  &reward,
		At:      h.now(),
	})
	return true
}

func rewardMessage(outcome domain.Outcome) string {
	switch outcome {
	case domain.OutcomeVictory:
		return "Victory! XP earned"
	case domain.OutcomeDefeat:
		return "Defeat, XP lost"
	default:
		return "Draw"
	}
}
