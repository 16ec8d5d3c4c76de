package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"concurso-duel/internal/domain"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestSnapshotStoreRoundTrip(t *testing.T) {
	mr, client := newMiniredis(t)
	store := NewSnapshotStore(client, time.Minute)
	ctx := context.Background()

	if _, err := store.Load(ctx, "duel-1"); !errors.Is(err, domain.ErrNoSnapshot) {
		t.Fatalf("expected ErrNoSnapshot, got %v", err)
	}
	if err := store.Save(ctx, domain.Duel{ID: "duel-1", Status: domain.StatusInProgress, CurrentRound: 5}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !mr.Exists("duel:snapshot:duel-1") {
		t.Fatalf("expected snapshot key to be set")
	}
	if ttl := mr.TTL("duel:snapshot:duel-1"); ttl < time.Minute || ttl > time.Minute+6*time.Second {
		t.Fatalf("expected ttl with at most 10%% jitter, got %s", ttl)
	}

	got, err := store.Load(ctx, "duel-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.CurrentRound != 5 || got.Status != domain.StatusInProgress {
		t.Fatalf("unexpected snapshot: %+v", got)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := store.Load(ctx, "duel-1"); !errors.Is(err, domain.ErrNoSnapshot) {
		t.Fatalf("expected snapshot to expire, got %v", err)
	}
}

func TestRewardLedgerSetsMarkerOnce(t *testing.T) {
	mr, client := newMiniredis(t)
	ledger := NewRewardLedger(client, time.Hour)
	ctx := context.Background()

	first, err := ledger.MarkFired(ctx, "duel-1", domain.OutcomeVictory)
	if err != nil || !first {
		t.Fatalf("expected first mark, got %v %v", first, err)
	}
	again, err := ledger.MarkFired(ctx, "duel-1", domain.OutcomeVictory)
	if err != nil || again {
		t.Fatalf("expected duplicate to be refused, got %v %v", again, err)
	}
	if got, _ := mr.Get("duel:reward:duel-1"); got != "victory" {
		t.Fatalf("expected stored outcome, got %q", got)
	}
}

func TestPushChannelReceivesPublishedSnapshots(t *testing.T) {
	_, client := newMiniredis(t)
	push := NewPushChannel(client, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	updates, stop, err := push.Subscribe(ctx, "duel-1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer stop()

	if err := push.Publish(ctx, domain.Duel{ID: "duel-1", CurrentRound: 7}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case duel := <-updates:
		if duel.CurrentRound != 7 {
			t.Fatalf("expected round 7, got %d", duel.CurrentRound)
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for snapshot")
	}

	stop()
	select {
	case _, ok := <-updates:
		if ok {
			t.Fatalf("expected channel to close after cancel")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("channel not closed after cancel")
	}
}

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}
