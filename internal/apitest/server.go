// Package apitest provides an in-process fake of the duel backend for tests:
// the REST endpoints on a chi router plus the websocket push channel.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"concurso-duel/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// AnswerFunc mutates the stored duel when userID answers index.
type AnswerFunc func(duel *domain.Duel, userID string, index int)

// Server is a scriptable fake backend. The bearer token is taken as the caller's user id.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	duels    map[string]domain.Duel
	stats    domain.DuelStats
	ranking  []domain.RankingEntry
	online   []domain.OnlineUser
	history  []domain.Duel
	calls    map[string]int
	fail     map[string]int
	headers  map[string]http.Header
	onAnswer AnswerFunc
	subs     map[string]map[chan domain.Duel]struct{}

	upgrader websocket.Upgrader
}

// New starts the fake backend. Call Close when done.
func New() *Server {
	s := &Server{
		duels:    make(map[string]domain.Duel),
		calls:    make(map[string]int),
		fail:     make(map[string]int),
		headers:  make(map[string]http.Header),
		subs:     make(map[string]map[chan domain.Duel]struct{}),
		onAnswer: RecordAnswer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	r := chi.NewRouter()
	s.route(r, http.MethodGet, "/duelos/pending", s.listPending)
	s.route(r, http.MethodGet, "/duelos/online", s.listOnline)
	s.route(r, http.MethodGet, "/duelos/me/stats", s.getStats)
	s.route(r, http.MethodGet, "/duelos/ranking", s.listRanking)
	s.route(r, http.MethodGet, "/duelos/history", s.listHistory)
	s.route(r, http.MethodPost, "/duelos/queue/join", s.queue(true))
	s.route(r, http.MethodPost, "/duelos/queue/leave", s.queue(false))
	s.route(r, http.MethodPost, "/duelos", s.createDuel)
	s.route(r, http.MethodGet, "/duelos/{id}", s.getDuel)
	s.route(r, http.MethodPost, "/duelos/{id}/accept", s.setStatus(domain.StatusInProgress))
	s.route(r, http.MethodPost, "/duelos/{id}/decline", s.setStatus(domain.StatusCancelled))
	s.route(r, http.MethodPost, "/duelos/{id}/answer", s.answer)
	r.Get("/duelos/{id}/ws", s.serveWS)

	s.Server = httptest.NewServer(r)
	return s
}

// PushURL is the websocket url template for WSPushChannel.
func (s *Server) PushURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + "/duelos/{id}/ws"
}

// PutDuel stores duel and pushes it to subscribers.
func (s *Server) PutDuel(duel domain.Duel) {
	s.mu.Lock()
	s.duels[duel.ID] = duel
	s.mu.Unlock()
	s.Push(duel)
}

// Duel returns the stored duel.
func (s *Server) Duel(id string) (domain.Duel, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.duels[id]
	return d, ok
}

// Push sends duel to websocket subscribers without storing it.
func (s *Server) Push(duel domain.Duel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs[duel.ID] {
		select {
		case ch <- duel:
		default:
		}
	}
}

// Subscribers counts open push connections for a duel.
func (s *Server) Subscribers(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs[id])
}

func (s *Server) SetStats(stats domain.DuelStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = stats
}

func (s *Server) SetRanking(entries []domain.RankingEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ranking = entries
}

func (s *Server) SetOnline(users []domain.OnlineUser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online = users
}

func (s *Server) SetHistory(duels []domain.Duel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = duels
}

// OnAnswer replaces the default answer behaviour.
func (s *Server) OnAnswer(fn AnswerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onAnswer = fn
}

// FailNext makes the next n calls to route ("METHOD /pattern") answer 503.
func (s *Server) FailNext(route string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[route] = n
}

// Calls returns how many times route was hit, failures included.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// LastHeader returns the request headers of the latest call to route.
func (s *Server) LastHeader(route string) http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.headers[route]
}

// RecordAnswer is the default AnswerFunc: it stores the answer for the caller's
// side on the current round and marks index 0 as the correct choice.
func RecordAnswer(duel *domain.Duel, userID string, index int) {
	side := duel.Side(userID)
	for i := range duel.Questions {
		q := &duel.Questions[i]
		if q.RoundNumber != duel.CurrentRound {
			continue
		}
		correct := index == 0
		idx := index
		switch side {
		case domain.SideChallenger:
			q.ChallengerAnswerIndex = &idx
			q.ChallengerCorrect = &correct
			if correct {
				duel.ChallengerScore++
			}
		case domain.SideOpponent:
			q.OpponentAnswerIndex = &idx
			q.OpponentCorrect = &correct
			if correct {
				duel.OpponentScore++
			}
		}
	}
}

func (s *Server) route(r chi.Router, method, pattern string, h http.HandlerFunc) {
	key := method + " " + pattern
	r.Method(method, pattern, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		s.mu.Lock()
		s.calls[key]++
		s.headers[key] = req.Header.Clone()
		failing := s.fail[key] > 0
		if failing {
			s.fail[key]--
		}
		s.mu.Unlock()
		if failing {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "temporarily unavailable"})
			return
		}
		h(w, req)
	}))
}

func userID(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func (s *Server) getDuel(w http.ResponseWriter, r *http.Request) {
	duel, ok := s.Duel(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "duel not found"})
		return
	}
	writeJSON(w, http.StatusOK, duel)
}

func (s *Server) createDuel(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateDuelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}
	s.mu.Lock()
	duel := domain.Duel{
		ID:           "duel-" + string(rune('a'+len(s.duels))),
		Status:       domain.StatusPending,
		Challenger:   domain.User{ID: userID(r)},
		Opponent:     domain.User{ID: req.OpponentID},
		Subject:      req.Subject,
		CurrentRound: 1,
	}
	s.duels[duel.ID] = duel
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, duel)
}

func (s *Server) setStatus(status domain.Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		s.mu.Lock()
		duel, ok := s.duels[id]
		if ok {
			duel.Status = status
			s.duels[id] = duel
		}
		s.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "duel not found"})
			return
		}
		s.Push(duel)
		writeJSON(w, http.StatusOK, duel)
	}
}

type answerPayload struct {
	AnswerIndex int `json:"answerIndex"`
}

func (s *Server) answer(w http.ResponseWriter, r *http.Request) {
	var payload answerPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid answer payload"})
		return
	}
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	duel, ok := s.duels[id]
	if ok {
		s.onAnswer(&duel, userID(r), payload.AnswerIndex)
		s.duels[id] = duel
	}
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "duel not found"})
		return
	}
	writeJSON(w, http.StatusOK, duel)
}

func (s *Server) getStats(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.stats)
}

func (s *Server) listPending(w http.ResponseWriter, r *http.Request) {
	me := userID(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	pending := []domain.Duel{}
	for _, d := range s.duels {
		if d.Status == domain.StatusPending && d.Opponent.ID == me {
			pending = append(pending, d)
		}
	}
	writeJSON(w, http.StatusOK, pending)
}

func (s *Server) listOnline(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.online)
}

func (s *Server) listRanking(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.ranking)
}

func (s *Server) listHistory(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.history)
}

func (s *Server) queue(join bool) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		ticket := domain.QueueTicket{Queued: join}
		if join {
			ticket.Position = 1
		}
		writeJSON(w, http.StatusOK, ticket)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
