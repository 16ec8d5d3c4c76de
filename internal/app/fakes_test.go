package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"concurso-duel/internal/app"
	"concurso-duel/internal/domain"
)

var errBackendDown = errors.New("backend down")

// fakeClient is an in-process DuelClient with call counters and failure switches.
type fakeClient struct {
	mu         sync.Mutex
	duel       domain.Duel
	stats      domain.DuelStats
	getErr     error
	submitErr  error
	declineErr error
	submitGate chan struct{}

	getCalls     int
	submitCalls  int
	declineCalls int
}

func newFakeClient(duel domain.Duel) *fakeClient {
	return &fakeClient{duel: duel}
}

func (c *fakeClient) GetDuel(_ context.Context, duelID string) (domain.Duel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.getCalls++
	if c.getErr != nil {
		return domain.Duel{}, c.getErr
	}
	if duelID != c.duel.ID {
		return domain.Duel{}, domain.ErrDuelNotFound
	}
	return c.duel, nil
}

func (c *fakeClient) GetStats(context.Context) (domain.DuelStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats, nil
}

func (c *fakeClient) SubmitAnswer(ctx context.Context, _ string, index int) (domain.Duel, error) {
	c.mu.Lock()
	c.submitCalls++
	gate := c.submitGate
	c.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return domain.Duel{}, ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.submitErr != nil {
		return domain.Duel{}, c.submitErr
	}
	idx := index
	for i := range c.duel.Questions {
		if c.duel.Questions[i].RoundNumber == c.duel.CurrentRound {
			c.duel.Questions[i].ChallengerAnswerIndex = &idx
		}
	}
	return c.duel, nil
}

func (c *fakeClient) DeclineDuel(context.Context, string) (domain.Duel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.declineCalls++
	if c.declineErr != nil {
		return domain.Duel{}, c.declineErr
	}
	c.duel.Status = domain.StatusCancelled
	return c.duel, nil
}

func (c *fakeClient) set(fn func(c *fakeClient)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c)
}

func (c *fakeClient) counts() (get, submit, decline int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getCalls, c.submitCalls, c.declineCalls
}

// noticeRecorder collects notices.
type noticeRecorder struct {
	mu      sync.Mutex
	notices []app.Notice
}

func (r *noticeRecorder) Notify(n app.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *noticeRecorder) ofKind(kind app.NoticeKind) []app.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []app.Notice
	for _, n := range r.notices {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

func newDuel(status domain.Status, round int) domain.Duel {
	questions := make([]domain.DuelQuestion, 0, domain.RoundsPerDuel)
	for r := 1; r <= domain.RoundsPerDuel; r++ {
		questions = append(questions, domain.DuelQuestion{
			RoundNumber: r,
			Difficulty:  domain.DifficultyEasy,
			Question: domain.Question{
				Statement: "Quanto é 2 + 2?",
				Options:   map[string]string{"A": "3", "B": "4", "C": "5", "D": "22"},
			},
		})
	}
	return domain.Duel{
		ID:           "duel-1",
		Status:       status,
		Challenger:   domain.User{ID: "u1", Name: "Ana"},
		Opponent:     domain.User{ID: "u2", Name: "Bia"},
		CurrentRound: round,
		Subject:      "Matemática",
		Questions:    questions,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}
