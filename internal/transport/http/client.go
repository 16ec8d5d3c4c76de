package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"concurso-duel/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status  int
	Method  string
	Path    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Message)
}

// Unwrap maps 404 to domain.ErrDuelNotFound so callers can use errors.Is.
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusNotFound {
		return domain.ErrDuelNotFound
	}
	return nil
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Client is a thin wrapper over the duel REST endpoints. It never retries;
// retry policy belongs to the caller.
type Client struct {
	baseURL  *url.URL
	hc       *http.Client
	validate *validator.Validate
	sf       singleflight.Group
}

// NewClient builds a client for baseURL. The bearer token is attached to every
// request by the transport.
func NewClient(baseURL, token string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("api url %q must be absolute", baseURL)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: u,
		hc: &http.Client{
			Timeout:   timeout,
			Transport: NewBearerTransport(http.DefaultTransport, token),
		},
		validate: validator.New(),
	}, nil
}

// GetDuel fetches a duel snapshot. Concurrent calls for the same id share one
// request, which is detached from any single caller and bounded by the client
// timeout. Each caller still returns as soon as its own ctx is done.
func (c *Client) GetDuel(ctx context.Context, duelID string) (domain.Duel, error) {
	shared := context.WithoutCancel(ctx)
	ch := c.sf.DoChan("duel:"+duelID, func() (interface{}, error) {
		var duel domain.Duel
		if err := c.do(shared, http.MethodGet, "/duelos/"+duelID, nil, &duel, nil); err != nil {
			return domain.Duel{}, err
		}
		return duel, nil
	})
	select {
	case <-ctx.Done():
		return domain.Duel{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.Duel{}, res.Err
		}
		return res.Val.(domain.Duel), nil
	}
}

// CreateDuel challenges an opponent on a subject.
func (c *Client) CreateDuel(ctx context.Context, req domain.CreateDuelRequest) (domain.Duel, error) {
	if err := c.validate.Struct(req); err != nil {
		return domain.Duel{}, fmt.Errorf("invalid duel request: %w", err)
	}
	var duel domain.Duel
	err := c.do(ctx, http.MethodPost, "/duelos", req, &duel, nil)
	return duel, err
}

// AcceptDuel accepts a pending challenge.
func (c *Client) AcceptDuel(ctx context.Context, duelID string) (domain.Duel, error) {
	var duel domain.Duel
	err := c.do(ctx, http.MethodPost, "/duelos/"+duelID+"/accept", nil, &duel, nil)
	return duel, err
}

// DeclineDuel declines a pending challenge or abandons a running duel.
func (c *Client) DeclineDuel(ctx context.Context, duelID string) (domain.Duel, error) {
	var duel domain.Duel
	err := c.do(ctx, http.MethodPost, "/duelos/"+duelID+"/decline", nil, &duel, nil)
	return duel, err
}

type answerRequest struct {
	AnswerIndex int `json:"answerIndex"`
}

// SubmitAnswer sends the caller's answer for the current round and returns the
// authoritative duel, which may already include the opponent's answer.
func (c *Client) SubmitAnswer(ctx context.Context, duelID string, index int) (domain.Duel, error) {
	header := http.Header{}
	header.Set("Idempotency-Key", uuid.NewString())
	var duel domain.Duel
	err := c.do(ctx, http.MethodPost, "/duelos/"+duelID+"/answer", answerRequest{AnswerIndex: index}, &duel, header)
	return duel, err
}

// ListPending returns challenges waiting for the caller.
func (c *Client) ListPending(ctx context.Context) ([]domain.Duel, error) {
	var duels []domain.Duel
	err := c.do(ctx, http.MethodGet, "/duelos/pending", nil, &duels, nil)
	return duels, err
}

// ListOnline returns players available to be challenged.
func (c *Client) ListOnline(ctx context.Context) ([]domain.OnlineUser, error) {
	var users []domain.OnlineUser
	err := c.do(ctx, http.MethodGet, "/duelos/online", nil, &users, nil)
	return users, err
}

// GetStats returns the caller's duel stats, including the abandon block.
func (c *Client) GetStats(ctx context.Context) (domain.DuelStats, error) {
	var stats domain.DuelStats
	err := c.do(ctx, http.MethodGet, "/duelos/me/stats", nil, &stats, nil)
	return stats, err
}

// ListRanking returns the duel ranking.
func (c *Client) ListRanking(ctx context.Context) ([]domain.RankingEntry, error) {
	var entries []domain.RankingEntry
	err := c.do(ctx, http.MethodGet, "/duelos/ranking", nil, &entries, nil)
	return entries, err
}

// ListHistory returns the caller's finished duels.
func (c *Client) ListHistory(ctx context.Context) ([]domain.Duel, error) {
	var duels []domain.Duel
	err := c.do(ctx, http.MethodGet, "/duelos/history", nil, &duels, nil)
	return duels, err
}

// JoinQueue enters matchmaking.
func (c *Client) JoinQueue(ctx context.Context) (domain.QueueTicket, error) {
	var ticket domain.QueueTicket
	err := c.do(ctx, http.MethodPost, "/duelos/queue/join", nil, &ticket, nil)
	return ticket, err
}

// LeaveQueue exits matchmaking.
func (c *Client) LeaveQueue(ctx context.Context) (domain.QueueTicket, error) {
	var ticket domain.QueueTicket
	err := c.do(ctx, http.MethodPost, "/duelos/queue/leave", nil, &ticket, nil)
	return ticket, err
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, header http.Header) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s %s: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Method: method, Path: path}
		var eb errorBody
		if json.Unmarshal(data, &eb) == nil {
			apiErr.Message = eb.Message
			if apiErr.Message == "" {
				apiErr.Message = eb.Error
			}
		}
		return apiErr
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
