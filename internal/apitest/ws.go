package apitest

import (
	"encoding/json"
	"log"
	"net/http"

	"concurso-duel/internal/domain"
	"github.com/go-chi/chi/v5"
)

type envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// serveWS upgrades the request and forwards every pushed snapshot of the duel.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates := make(chan domain.Duel, 8)
	s.mu.Lock()
	if s.subs[id] == nil {
		s.subs[id] = make(map[chan domain.Duel]struct{})
	}
	s.subs[id][updates] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.subs[id], updates)
		s.mu.Unlock()
	}()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case duel := <-updates:
			data, err := json.Marshal(duel)
			if err != nil {
				return
			}
			if err := conn.WriteJSON(envelope{Type: "duel", Payload: json.RawMessage(data)}); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
