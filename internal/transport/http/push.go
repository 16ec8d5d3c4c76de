package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"concurso-duel/internal/domain"
	"github.com/gorilla/websocket"
)

// MessageDuel is the envelope type carrying a full duel snapshot.
const MessageDuel = "duel"

// Envelope is the wire frame of the push channel.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// WSPushChannel subscribes to per-duel snapshot pushes over a websocket.
// The url template must contain "{id}", replaced by the duel id.
type WSPushChannel struct {
	urlTemplate string
	token       string
	dialer      *websocket.Dialer
	logger      *slog.Logger
}

func NewWSPushChannel(urlTemplate, token string, logger *slog.Logger) *WSPushChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSPushChannel{
		urlTemplate: urlTemplate,
		token:       token,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
		logger: logger,
	}
}

// Subscribe dials the push endpoint for duelID. The returned channel closes
// when the connection drops, ctx is cancelled or cancel is called.
func (p *WSPushChannel) Subscribe(ctx context.Context, duelID string) (<-chan domain.Duel, func(), error) {
	target := strings.ReplaceAll(p.urlTemplate, "{id}", url.PathEscape(duelID))
	conn, _, err := p.dialer.DialContext(ctx, target, AuthHeader(p.token))
	if err != nil {
		return nil, nil, err
	}

	updates := make(chan domain.Duel, 8)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = conn.Close()
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()

	go func() {
		defer close(updates)
		for {
			var env Envelope
			if err := conn.ReadJSON(&env); err != nil {
				select {
				case <-done:
				default:
					p.logger.Debug("push read ended", "duel", duelID, "error", err)
				}
				return
			}
			if env.Type != MessageDuel {
				continue
			}
			var duel domain.Duel
			if err := json.Unmarshal(env.Payload, &duel); err != nil {
				p.logger.Warn("invalid duel push payload", "duel", duelID, "error", err)
				continue
			}
			select {
			case updates <- duel:
			case <-done:
				return
			}
		}
	}()

	return updates, cancel, nil
}
