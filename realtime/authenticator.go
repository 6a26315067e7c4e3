// Package realtime authenticates websocket handshakes for the chat relay.
//
// Clients pass their access token either as a bearer Authorization header or
// as a "token" query parameter (browsers cannot set headers on websocket
// dials). The handshake verifies the token, performs the live-user lookup
// through the service, and only then upgrades the connection.
package realtime

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/immolink/authcore"
)

// ErrUnauthorized is returned when the handshake carries no usable token or
// the token does not resolve to an active user.
var ErrUnauthorized = errors.New("realtime: unauthorized")

// Authenticator upgrades authenticated websocket connections.
type Authenticator struct {
	svc      *authcore.Service
	upgrader websocket.Upgrader
}

// Option tweaks the Authenticator.
type Option func(*Authenticator)

// WithCheckOrigin overrides the upgrader origin check.
func WithCheckOrigin(check func(r *http.Request) bool) Option {
	return func(a *Authenticator) {
		a.upgrader.CheckOrigin = check
	}
}

// NewAuthenticator wraps svc for websocket handshakes.
func NewAuthenticator(svc *authcore.Service, opts ...Option) *Authenticator {
	a := &Authenticator{
		svc: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
			HandshakeTimeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authenticate resolves the request token to a Principal without upgrading.
func (a *Authenticator) Authenticate(r *http.Request) (*authcore.Principal, error) {
	token := requestToken(r)
	if token == "" {
		return nil, ErrUnauthorized
	}

	principal, err := a.svc.Authenticate(r.Context(), token)
	if err != nil {
		return nil, ErrUnauthorized
	}
	return principal, nil
}

// Upgrade authenticates the handshake and upgrades the connection. On auth
// failure it writes a 401 and returns ErrUnauthorized; the caller should not
// touch the ResponseWriter afterwards.
func (a *Authenticator) Upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, *authcore.Principal, error) {
	principal, err := a.Authenticate(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return nil, nil, err
	}

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		return nil, nil, err
	}
	return conn, principal, nil
}

func requestToken(r *http.Request) string {
	const bearer = "Bearer "
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, bearer) {
		return h[len(bearer):]
	}
	return r.URL.Query().Get("token")
}
