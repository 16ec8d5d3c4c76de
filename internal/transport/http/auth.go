package http

import (
	"net/http"

	"github.com/google/uuid"
)

// BearerTransport attaches the session token and a request id to every
// outgoing request. It is the shared wrapper for REST and websocket dials.
type BearerTransport struct {
	base  http.RoundTripper
	token string
}

func NewBearerTransport(base http.RoundTripper, token string) *BearerTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &BearerTransport{base: base, token: token}
}

func (t *BearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	if t.token != "" {
		r.Header.Set("Authorization", "Bearer "+t.token)
	}
	if r.Header.Get("X-Request-ID") == "" {
		r.Header.Set("X-Request-ID", uuid.NewString())
	}
	return t.base.RoundTrip(r)
}

// AuthHeader returns the headers used for websocket handshakes.
func AuthHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	h.Set("X-Request-ID", uuid.NewString())
	return h
}
