package redis

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"concurso-duel/internal/domain"
	"github.com/redis/go-redis/v9"
)

const pushChannelPrefix = "duel:"

// PushChannel receives duel snapshots published on the Redis channel duel:{duelID}.
type PushChannel struct {
	client *redis.Client
	logger *slog.Logger
}

func NewPushChannel(client *redis.Client, logger *slog.Logger) *PushChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &PushChannel{client: client, logger: logger}
}

// ChannelName is the Pub/Sub channel for a duel.
func ChannelName(duelID string) string {
	return pushChannelPrefix + duelID
}

// Subscribe listens for snapshots of duelID until ctx is cancelled or cancel is called.
func (p *PushChannel) Subscribe(ctx context.Context, duelID string) (<-chan domain.Duel, func(), error) {
	pubsub := p.client.Subscribe(ctx, ChannelName(duelID))
	// wait for the subscription confirmation so no publish is missed afterwards
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, err
	}

	updates := make(chan domain.Duel, 8)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = pubsub.Close()
		})
	}

	go func() {
		defer close(updates)
		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				cancel()
				return
			case <-done:
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var duel domain.Duel
				if err := json.Unmarshal([]byte(msg.Payload), &duel); err != nil {
					p.logger.Warn("invalid duel push payload", "channel", msg.Channel, "error", err)
					continue
				}
				select {
				case updates <- duel:
				case <-done:
					return
				case <-ctx.Done():
					cancel()
					return
				}
			}
		}
	}()

	return updates, cancel, nil
}

// Publish sends a snapshot to subscribers of the duel.
func (p *PushChannel) Publish(ctx context.Context, duel domain.Duel) error {
	data, err := json.Marshal(duel)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, ChannelName(duel.ID), data).Err()
}
