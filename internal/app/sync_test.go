package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"concurso-duel/internal/apitest"
	"concurso-duel/internal/app"
	"concurso-duel/internal/domain"
	"concurso-duel/internal/infra/memory"
	duelhttp "concurso-duel/internal/transport/http"
)

// chanPush is a PushChannel fed by the test.
type chanPush struct {
	updates chan domain.Duel
	err     error
}

func (p *chanPush) Subscribe(context.Context, string) (<-chan domain.Duel, func(), error) {
	if p.err != nil {
		return nil, nil, p.err
	}
	return p.updates, func() {}, nil
}

func TestSyncerPollFailuresKeepSnapshot(t *testing.T) {
	client := newFakeClient(newDuel(domain.StatusInProgress, 3))
	notices := &noticeRecorder{}
	session := app.NewDuelSession("duel-1", "u1", client, app.SessionOptions{Notifier: notices})
	defer session.Close()

	syncer := app.NewSyncer(client, nil, nil, 10*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- syncer.Run(ctx, session) }()

	waitFor(t, func() bool { return session.Frame().Round == 3 })
	client.set(func(c *fakeClient) { c.getErr = errBackendDown })
	get, _, _ := client.counts()
	waitFor(t, func() bool {
		n, _, _ := client.counts()
		return n >= get+3
	})

	frame := session.Frame()
	if frame.Screen != app.ScreenPlaying || frame.Round != 3 {
		t.Fatalf("expected last snapshot kept through poll failures, got %+v", frame)
	}
	if errs := notices.ofKind(app.NoticeError); len(errs) != 0 {
		t.Fatalf("poll failures must stay silent, got %+v", errs)
	}

	client.set(func(c *fakeClient) {
		c.getErr = nil
		c.duel = newDuel(domain.StatusInProgress, 4)
	})
	waitFor(t, func() bool { return session.Frame().Round == 4 })

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestSyncerAppliesPushAndStopsOnTerminalStatus(t *testing.T) {
	client := newFakeClient(newDuel(domain.StatusInProgress, 1))
	push := &chanPush{updates: make(chan domain.Duel, 4)}
	ledger := memory.NewRewardLedger()
	notices := &noticeRecorder{}
	session := app.NewDuelSession("duel-1", "u1", client, app.SessionOptions{
		Rewards: app.NewRewardHook("u1", ledger, notices, nil),
	})
	defer session.Close()

	syncer := app.NewSyncer(client, push, nil, 10*time.Millisecond, nil)
	done := make(chan error, 1)
	go func() { done <- syncer.Run(context.Background(), session) }()

	waitFor(t, func() bool { return session.Frame().Round == 1 })
	push.updates <- newDuel(domain.StatusInProgress, 2)
	waitFor(t, func() bool { return session.Frame().Round == 2 })

	finished := newDuel(domain.StatusCompleted, 10)
	finished.Winner = &domain.User{ID: "u1"}
	client.set(func(c *fakeClient) { c.duel = finished })
	push.updates <- finished

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("syncer kept running after the duel completed")
	}
	if session.Frame().Screen != app.ScreenVictory {
		t.Fatalf("expected victory, got %s", session.Frame().Screen)
	}
	if len(notices.ofKind(app.NoticeReward)) != 1 {
		t.Fatalf("expected a single reward across push and poll")
	}
}

func TestSyncerStopsWhenPollReturnsCancellationWithoutRound(t *testing.T) {
	client := newFakeClient(newDuel(domain.StatusInProgress, 4))
	session := app.NewDuelSession("duel-1", "u1", client, app.SessionOptions{})
	defer session.Close()

	syncer := app.NewSyncer(client, nil, nil, 10*time.Millisecond, nil)
	done := make(chan error, 1)
	go func() { done <- syncer.Run(context.Background(), session) }()

	waitFor(t, func() bool { return session.Frame().Round == 4 })
	client.set(func(c *fakeClient) { c.duel = newDuel(domain.StatusCancelled, 0) })

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("syncer kept polling after the duel was cancelled")
	}
	if session.Frame().Screen != app.ScreenCancelled {
		t.Fatalf("expected cancelled, got %s", session.Frame().Screen)
	}
}

func TestSyncerFallsBackToPollingWhenPushFails(t *testing.T) {
	client := newFakeClient(newDuel(domain.StatusInProgress, 1))
	session := app.NewDuelSession("duel-1", "u1", client, app.SessionOptions{})
	defer session.Close()

	syncer := app.NewSyncer(client, &chanPush{err: errBackendDown}, nil, 10*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = syncer.Run(ctx, session) }()

	waitFor(t, func() bool { return session.Frame().Round == 1 })
	client.set(func(c *fakeClient) { c.duel = newDuel(domain.StatusInProgress, 5) })
	waitFor(t, func() bool { return session.Frame().Round == 5 })
}

func TestSyncerLoadResumesFromCachedSnapshot(t *testing.T) {
	store := memory.NewSnapshotStore(time.Minute)
	if err := store.Save(context.Background(), newDuel(domain.StatusInProgress, 6)); err != nil {
		t.Fatalf("save: %v", err)
	}
	client := newFakeClient(newDuel(domain.StatusInProgress, 6))
	client.getErr = errBackendDown

	session := app.NewDuelSession("duel-1", "u1", client, app.SessionOptions{})
	defer session.Close()
	syncer := app.NewSyncer(client, nil, store, time.Minute, nil)

	if err := syncer.Load(context.Background(), session); err != nil {
		t.Fatalf("load: %v", err)
	}
	if frame := session.Frame(); frame.Round != 6 || frame.Screen != app.ScreenPlaying {
		t.Fatalf("expected cached round 6, got %+v", frame)
	}
}

func TestSyncerLoadFailsWithoutCache(t *testing.T) {
	client := newFakeClient(newDuel(domain.StatusInProgress, 1))
	client.getErr = domain.ErrDuelNotFound

	session := app.NewDuelSession("duel-1", "u1", client, app.SessionOptions{})
	defer session.Close()
	syncer := app.NewSyncer(client, nil, memory.NewSnapshotStore(0), time.Minute, nil)

	err := syncer.Load(context.Background(), session)
	if !errors.Is(err, domain.ErrDuelNotFound) {
		t.Fatalf("expected ErrDuelNotFound, got %v", err)
	}
	if session.Frame().Screen != app.ScreenLoading {
		t.Fatalf("expected session to stay loading")
	}
}

func TestSyncerSavesAppliedSnapshots(t *testing.T) {
	client := newFakeClient(newDuel(domain.StatusInProgress, 2))
	store := memory.NewSnapshotStore(0)
	session := app.NewDuelSession("duel-1", "u1", client, app.SessionOptions{})
	defer session.Close()

	syncer := app.NewSyncer(client, nil, store, time.Minute, nil)
	if err := syncer.Refresh(context.Background(), session); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	cached, err := store.Load(context.Background(), "duel-1")
	if err != nil || cached.CurrentRound != 2 {
		t.Fatalf("expected round 2 cached, got %+v (%v)", cached, err)
	}
}

func TestDuelFlowAgainstBackend(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	srv.PutDuel(newDuel(domain.StatusInProgress, 1))
	srv.SetStats(domain.DuelStats{DailyAbandonCount: 1})

	client, err := duelhttp.NewClient(srv.URL, "u1", 2*time.Second)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	push := duelhttp.NewWSPushChannel(srv.PushURL(), "u1", nil)
	notices := &noticeRecorder{}
	session := app.NewDuelSession("duel-1", "u1", client, app.SessionOptions{
		Notifier: notices,
		Rewards:  app.NewRewardHook("u1", memory.NewRewardLedger(), notices, nil),
	})
	defer session.Close()

	// slow polling so updates arrive over the push channel
	syncer := app.NewSyncer(client, push, nil, time.Hour, nil)
	done := make(chan error, 1)
	go func() { done <- syncer.Run(context.Background(), session) }()

	waitFor(t, func() bool { return srv.Subscribers("duel-1") == 1 })
	if err := session.SubmitAnswer(context.Background(), 0); err != nil {
		t.Fatalf("submit: %v", err)
	}
	stored, _ := srv.Duel("duel-1")
	if idx := stored.Questions[0].ChallengerAnswerIndex; idx == nil || *idx != 0 {
		t.Fatalf("expected answer recorded by the backend, got %v", idx)
	}
	if frame := session.Frame(); frame.Answer != app.AnswerConfirmed || frame.Player.Score != 1 {
		t.Fatalf("expected confirmed answer and score 1, got %+v", frame)
	}

	next := stored
	next.CurrentRound = 2
	srv.PutDuel(next)
	waitFor(t, func() bool { return session.Frame().Round == 2 })
	if frame := session.Frame(); frame.Selected != -1 || !frame.CanAnswer {
		t.Fatalf("expected a fresh round, got %+v", frame)
	}

	final := next
	final.Status = domain.StatusCompleted
	final.Winner = &domain.User{ID: "u2", Name: "Bia"}
	srv.PutDuel(final)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("syncer did not stop after completion")
	}
	if frame := session.Frame(); frame.Screen != app.ScreenDefeat {
		t.Fatalf("expected defeat, got %s", frame.Screen)
	}
	rewards := notices.ofKind(app.NoticeReward)
	if len(rewards) != 1 || rewards[0].Reward.Tone != app.ToneNegative {
		t.Fatalf("expected one negative reward, got %+v", rewards)
	}
}
