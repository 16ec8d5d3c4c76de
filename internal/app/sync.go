package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"concurso-duel/internal/domain"
	"golang.org/x/sync/errgroup"
)

// PushChannel delivers full duel snapshots as the backend pushes them.
// The caller must invoke the returned cancel function to avoid leaks.
type PushChannel interface {
	Subscribe(ctx context.Context, duelID string) (<-chan domain.Duel, func(), error)
}

// SnapshotStore keeps the last good snapshot of a duel so a session can resume
// when the backend is briefly unreachable.
type SnapshotStore interface {
	Save(ctx context.Context, duel domain.Duel) error
	Load(ctx context.Context, duelID string) (domain.Duel, error)
}

// Syncer keeps a DuelSession eventually consistent with the backend using the
// push channel plus a periodic full re-fetch. Both write into Apply; the latest
// snapshot wins.
type Syncer struct {
	client   DuelClient
	push     PushChannel
	store    SnapshotStore
	interval time.Duration
	logger   *slog.Logger
}

// NewSyncer builds a syncer. push and store are optional.
func NewSyncer(client DuelClient, push PushChannel, store SnapshotStore, interval time.Duration, logger *slog.Logger) *Syncer {
	if interval <= 0 {
		interval = domain.PollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		client:   client,
		push:     push,
		store:    store,
		interval: interval,
		logger:   logger,
	}
}

// Run loads the duel and then follows it until ctx is cancelled or the duel
// reaches a terminal status.
func (s *Syncer) Run(ctx context.Context, session *DuelSession) error {
	if err := s.Load(ctx, session); err != nil {
		return err
	}

	ctx, stop := context.WithCancel(ctx)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)
	if s.push != nil {
		g.Go(func() error {
			s.followPush(ctx, session)
			if !active(session) {
				stop()
			}
			return nil
		})
	}
	g.Go(func() error {
		s.poll(ctx, session)
		stop()
		return nil
	})
	return g.Wait()
}

// Load performs the initial fetch of the duel and the caller's stats. When the
// duel cannot be fetched, a cached snapshot is used if one exists.
func (s *Syncer) Load(ctx context.Context, session *DuelSession) error {
	duelID := session.DuelID()

	stats, err := s.client.GetStats(ctx)
	if err != nil {
		s.logger.Warn("load duel stats failed", "error", err)
	} else {
		session.SetStats(stats)
	}

	duel, err := s.client.GetDuel(ctx, duelID)
	if err != nil {
		if s.store != nil {
			if cached, cerr := s.store.Load(ctx, duelID); cerr == nil {
				s.logger.Warn("backend unreachable, resuming from cached snapshot", "duel", duelID, "error", err)
				session.Apply(cached)
				return nil
			}
		}
		return fmt.Errorf("load duel %s: %w", duelID, err)
	}
	s.apply(ctx, session, duel)
	return nil
}

// Refresh re-fetches the duel once. Failures keep the current snapshot.
func (s *Syncer) Refresh(ctx context.Context, session *DuelSession) error {
	duel, err := s.client.GetDuel(ctx, session.DuelID())
	if err != nil {
		return fmt.Errorf("refresh duel: %w", err)
	}
	s.apply(ctx, session, duel)
	return nil
}

func (s *Syncer) poll(ctx context.Context, session *DuelSession) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if !active(session) {
			s.logger.Debug("duel finished, polling stopped", "duel", session.DuelID())
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := s.Refresh(ctx, session); err != nil {
			if ctx.Err() != nil {
				return
			}
			// retried on the next tick
			s.logger.Warn("duel poll failed", "duel", session.DuelID(), "error", err)
		}
	}
}

func (s *Syncer) followPush(ctx context.Context, session *DuelSession) {
	updates, cancel, err := s.push.Subscribe(ctx, session.DuelID())
	if err != nil {
		s.logger.Warn("push unavailable, polling only", "duel", session.DuelID(), "error", err)
		return
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case duel, ok := <-updates:
			if !ok {
				s.logger.Warn("push channel closed, polling only", "duel", session.DuelID())
				return
			}
			s.apply(ctx, session, duel)
			if !active(session) {
				return
			}
		}
	}
}

func (s *Syncer) apply(ctx context.Context, session *DuelSession, duel domain.Duel) {
	if !session.Apply(duel) || s.store == nil {
		return
	}
	if err := s.store.Save(ctx, duel); err != nil {
		s.logger.Debug("snapshot cache write failed", "duel", duel.ID, "error", err)
	}
}

func active(session *DuelSession) bool {
	duel, ok := session.Snapshot()
	return !ok || duel.Status.Active()
}
