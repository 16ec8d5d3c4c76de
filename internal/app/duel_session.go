package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"concurso-duel/internal/domain"
)

// DuelClient is the part of the REST client used by the session and the syncer.
type DuelClient interface {
	GetDuel(ctx context.Context, duelID string) (domain.Duel, error)
	GetStats(ctx context.Context) (domain.DuelStats, error)
	SubmitAnswer(ctx context.Context, duelID string, index int) (domain.Duel, error)
	DeclineDuel(ctx context.Context, duelID string) (domain.Duel, error)
}

// AnswerStatus is the local player's answer for the current round.
type AnswerStatus int

const (
	AnswerNone AnswerStatus = iota
	// AnswerPending is set optimistically while the submission is in flight.
	AnswerPending
	AnswerConfirmed
)

type answerState struct {
	status AnswerStatus
	index  int
	round  int
}

// SessionOptions configures a DuelSession. Zero values pick production defaults.
type SessionOptions struct {
	Notifier Notifier
	Rewards  *RewardHook
	Logger   *slog.Logger
	// OnExit is called after a successful abandon (return to lobby).
	OnExit func()
	// Now and Tick exist for deterministic tests.
	Now  func() time.Time
	Tick time.Duration
}

// DuelSession is the client-side view state of one duel. The duel snapshot is
// server-owned; the session only adds local UI state on top of it and asserts
// nothing but its own pending answer.
type DuelSession struct {
	duelID string
	userID string
	client DuelClient

	notifier Notifier
	rewards  *RewardHook
	logger   *slog.Logger
	onExit   func()
	now      func() time.Time
	tick     time.Duration

	mu                sync.Mutex
	duel              *domain.Duel
	stats             domain.DuelStats
	answer            answerState
	remaining         int
	focus             bool
	fullscreen        bool
	confirmingAbandon bool
	rewardObserved    bool
	closed            bool
	countdownStop     context.CancelFunc
	countdownRound    int
	subscribers       map[chan Frame]struct{}
}

func NewDuelSession(duelID, userID string, client DuelClient, opts SessionOptions) *DuelSession {
	s := &DuelSession{
		duelID:      duelID,
		userID:      userID,
		client:      client,
		notifier:    opts.Notifier,
		rewards:     opts.Rewards,
		logger:      opts.Logger,
		onExit:      opts.OnExit,
		now:         opts.Now,
		tick:        opts.Tick,
		remaining:   domain.RoundSeconds,
		subscribers: make(map[chan Frame]struct{}),
	}
	if s.notifier == nil {
		s.notifier = discardNotifier{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.tick <= 0 {
		s.tick = time.Second
	}
	return s
}

// DuelID returns the id of the duel this session follows.
func (s *DuelSession) DuelID() string {
	return s.duelID
}

// Snapshot returns a copy of the latest applied duel.
func (s *DuelSession) Snapshot() (domain.Duel, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.duel == nil {
		return domain.Duel{}, false
	}
	return *s.duel, true
}

// Apply replaces the snapshot with duel unless it belongs to another duel or is
// older than the one already applied. It reports whether the snapshot was taken.
func (s *DuelSession) Apply(duel domain.Duel) bool {
	s.mu.Lock()
	applied, completed := s.applyLocked(duel)
	s.mu.Unlock()
	if completed != nil {
		s.observeReward(*completed)
	}
	return applied
}

// SetStats caches the caller's duel stats for the abandon gate.
func (s *DuelSession) SetStats(stats domain.DuelStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = stats
	s.broadcastLocked()
}

// applyLocked returns the duel to observe for rewards when it just completed.
func (s *DuelSession) applyLocked(duel domain.Duel) (bool, *domain.Duel) {
	if s.closed || duel.ID != s.duelID {
		return false, nil
	}
	if s.duel != nil && isStale(*s.duel, duel) {
		s.logger.Debug("ignoring stale duel snapshot",
			"duel", duel.ID,
			"round", duel.CurrentRound,
			"applied_round", s.duel.CurrentRound,
			"status", string(duel.Status))
		return false, nil
	}

	prev := s.duel
	next := duel
	// A status transition may arrive without the round it ended on.
	if prev != nil && next.CurrentRound < prev.CurrentRound {
		next.CurrentRound = prev.CurrentRound
	}
	s.duel = &next

	if prev == nil || prev.CurrentRound != next.CurrentRound {
		s.answer = answerState{}
		s.remaining = domain.RoundSeconds
	}
	s.reconcileAnswerLocked()
	if next.Status.Terminal() {
		s.confirmingAbandon = false
	}
	s.syncCountdownLocked()
	s.broadcastLocked()

	if next.Status == domain.StatusCompleted && !s.rewardObserved {
		s.rewardObserved = true
		return true, &next
	}
	return true, nil
}

// isStale reports whether next would move the view backwards.
func isStale(prev, next domain.Duel) bool {
	if prev.Version > 0 && next.Version > 0 && next.Version < prev.Version {
		return true
	}
	if next.Status.Rank() != prev.Status.Rank() {
		return next.Status.Rank() < prev.Status.Rank()
	}
	return next.CurrentRound < prev.CurrentRound
}

// reconcileAnswerLocked adopts the server's record of our answer when present.
func (s *DuelSession) reconcileAnswerLocked() {
	idx := s.serverAnswerLocked()
	if idx == nil {
		return
	}
	s.answer = answerState{status: AnswerConfirmed, index: *idx, round: s.duel.CurrentRound}
}

func (s *DuelSession) serverAnswerLocked() *int {
	if s.duel == nil {
		return nil
	}
	q, ok := s.duel.QuestionForRound(s.duel.CurrentRound)
	if !ok {
		return nil
	}
	return q.AnswerIndex(s.duel.Side(s.userID))
}

func (s *DuelSession) observeReward(duel domain.Duel) {
	if s.rewards == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.rewards.Observe(ctx, duel)
}

// SubmitAnswer optimistically selects index for the current round and sends it.
// It is a no-op returning ErrAlreadyAnswered when an answer is already selected.
func (s *DuelSession) SubmitAnswer(ctx context.Context, index int) error {
	s.mu.Lock()
	if s.duel == nil || s.duel.Status != domain.StatusInProgress {
		s.mu.Unlock()
		return domain.ErrNotInProgress
	}
	if s.duel.Side(s.userID) == domain.SideNone {
		s.mu.Unlock()
		return domain.ErrNotParticipant
	}
	if s.answer.status != AnswerNone || s.serverAnswerLocked() != nil {
		s.mu.Unlock()
		return domain.ErrAlreadyAnswered
	}
	if q, ok := s.duel.QuestionForRound(s.duel.CurrentRound); ok && len(q.Question.Options) > 0 {
		if index < 0 || index >= len(q.Question.Options) {
			s.mu.Unlock()
			return domain.ErrInvalidAnswer
		}
	}
	round := s.duel.CurrentRound
	s.answer = answerState{status: AnswerPending, index: index, round: round}
	s.broadcastLocked()
	s.mu.Unlock()

	updated, err := s.client.SubmitAnswer(ctx, s.duelID, index)
	if err != nil {
		s.mu.Lock()
		if s.answer.status == AnswerPending && s.answer.round == round {
			s.answer = answerState{}
			s.broadcastLocked()
		}
		s.mu.Unlock()
		s.notify(NoticeError, "Could not send your answer, try again")
		s.logger.Warn("submit answer failed", "duel", s.duelID, "round", round, "error", err)
		return fmt.Errorf("submit answer: %w", err)
	}

	s.mu.Lock()
	if s.answer.status == AnswerPending && s.answer.round == round {
		s.answer.status = AnswerConfirmed
	}
	applied, completed := s.applyLocked(updated)
	if !applied {
		s.broadcastLocked()
	}
	s.mu.Unlock()
	if completed != nil {
		s.observeReward(*completed)
	}
	return nil
}

// BeginAbandon enters the confirmation step of the abandon action.
func (s *DuelSession) BeginAbandon() error {
	s.mu.Lock()
	if s.duel == nil || s.duel.Status.Terminal() {
		s.mu.Unlock()
		return domain.ErrNotInProgress
	}
	if s.stats.AbandonBlocked(s.now()) {
		until := *s.stats.AbandonBlockedUntil
		s.mu.Unlock()
		s.notifyBlocked(until)
		return domain.ErrAbandonBlocked
	}
	s.confirmingAbandon = true
	s.broadcastLocked()
	s.mu.Unlock()
	return nil
}

// CancelAbandon leaves the confirmation step without side effects.
func (s *DuelSession) CancelAbandon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.confirmingAbandon {
		s.confirmingAbandon = false
		s.broadcastLocked()
	}
}

// ConfirmAbandon declines the duel after BeginAbandon was accepted and calls
// the OnExit callback on success.
func (s *DuelSession) ConfirmAbandon(ctx context.Context) error {
	s.mu.Lock()
	if !s.confirmingAbandon {
		s.mu.Unlock()
		return domain.ErrAbandonNotConfirmed
	}
	s.confirmingAbandon = false
	if s.stats.AbandonBlocked(s.now()) {
		until := *s.stats.AbandonBlockedUntil
		s.broadcastLocked()
		s.mu.Unlock()
		s.notifyBlocked(until)
		return domain.ErrAbandonBlocked
	}
	s.broadcastLocked()
	s.mu.Unlock()

	updated, err := s.client.DeclineDuel(ctx, s.duelID)
	if err != nil {
		s.notify(NoticeError, "Could not leave the duel, try again")
		s.logger.Warn("abandon failed", "duel", s.duelID, "error", err)
		return fmt.Errorf("abandon duel: %w", err)
	}
	if updated.ID != "" {
		s.Apply(updated)
	}
	s.logger.Info("duel abandoned", "duel", s.duelID)
	if s.onExit != nil {
		s.onExit()
	}
	return nil
}

// ToggleFocusMode flips the distraction-free layout.
func (s *DuelSession) ToggleFocusMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.focus = !s.focus
	s.broadcastLocked()
	return s.focus
}

// ToggleFullscreen returns the fullscreen state the UI should request. The
// session only records the change once the screen reports it via SetFullscreen,
// since the user can also leave fullscreen outside of the session's control.
func (s *DuelSession) ToggleFullscreen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.fullscreen
}

// SetFullscreen mirrors the screen's fullscreen notification.
func (s *DuelSession) SetFullscreen(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fullscreen == on {
		return
	}
	s.fullscreen = on
	s.broadcastLocked()
}

// Close stops the countdown and closes all subscriptions.
func (s *DuelSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.stopCountdownLocked()
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

func (s *DuelSession) notify(kind NoticeKind, msg string) {
	s.notifier.Notify(Notice{Kind: kind, Message: msg, At: s.now()})
}

func (s *DuelSession) notifyBlocked(until time.Time) {
	s.notify(NoticeBlocked, "Abandon temporarily blocked until "+until.Local().Format("15:04"))
}

// syncCountdownLocked keeps exactly one countdown running for the current
// round while the duel is in progress.
func (s *DuelSession) syncCountdownLocked() {
	if s.closed || s.duel == nil || s.duel.Status != domain.StatusInProgress {
		s.stopCountdownLocked()
		return
	}
	if s.countdownStop != nil && s.countdownRound == s.duel.CurrentRound {
		return
	}
	s.stopCountdownLocked()
	ctx, cancel := context.WithCancel(context.Background())
	s.countdownStop = cancel
	s.countdownRound = s.duel.CurrentRound
	go s.runCountdown(ctx, s.duel.CurrentRound)
}

func (s *DuelSession) stopCountdownLocked() {
	if s.countdownStop != nil {
		s.countdownStop()
		s.countdownStop = nil
	}
	s.countdownRound = 0
}

func (s *DuelSession) runCountdown(ctx context.Context, round int) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		if ctx.Err() != nil || s.duel == nil || s.duel.CurrentRound != round {
			s.mu.Unlock()
			return
		}
		if s.remaining > 0 {
			s.remaining--
			s.broadcastLocked()
		}
		// no auto-submit at zero, the server resolves the round timeout
		done := s.remaining == 0
		s.mu.Unlock()
		if done {
			return
		}
	}
}

// Subscribe returns a channel receiving a frame on every state change, starting
// with the current one. The caller must invoke the returned cancel function.
func (s *DuelSession) Subscribe() (<-chan Frame, func()) {
	ch := make(chan Frame, 8)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	ch <- s.frameLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *DuelSession) broadcastLocked() {
	if len(s.subscribers) == 0 {
		return
	}
	frame := s.frameLocked()
	for ch := range s.subscribers {
		select {
		case ch <- frame:
		default:
			// drop the oldest frame, renders only need the latest
			select {
			case <-ch:
			default:
			}
			ch <- frame
		}
	}
}
