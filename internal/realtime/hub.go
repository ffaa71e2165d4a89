// Package realtime serves the websocket endpoint that carries live events
// to connected users.
package realtime

import (
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/HammerMeetNail/lingopals/internal/logging"
	"github.com/HammerMeetNail/lingopals/internal/metrics"
	"github.com/HammerMeetNail/lingopals/internal/presence"
)

const accessTokenCookie = "accessToken"

var errNoCredentials = errors.New("no credentials on handshake")

// TokenParser resolves an access token to a user id.
type TokenParser interface {
	ParseToken(token string) (uuid.UUID, error)
}

// Hub upgrades authenticated requests and keeps the presence registry in
// step with the sockets it owns.
type Hub struct {
	registry *presence.Registry
	tokens   TokenParser
	opts     Options
	metrics  *metrics.Metrics
	logger   *logging.Logger
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conns  map[*Conn]struct{}
	closed bool
}

func NewHub(registry *presence.Registry, tokens TokenParser, opts Options, m *metrics.Metrics, logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default
	}
	opts = opts.withDefaults()
	return &Hub{
		registry: registry,
		tokens:   tokens,
		opts:     opts,
		metrics:  m,
		logger:   logger.WithField("component", "realtime"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     opts.CheckOrigin,
		},
		conns: make(map[*Conn]struct{}),
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := h.authenticate(r)
	if err != nil {
		h.metrics.Connection("rejected")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"Authentication required"}`))
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written an error response.
		h.logger.Debug("Websocket upgrade failed", logging.Fields{"error": err.Error()})
		return
	}

	c := newConn(h, ws, userID)
	if !h.track(c) {
		c.Close()
		return
	}

	if displaced := h.registry.Connect(userID, c); displaced != nil {
		h.metrics.Connection("superseded")
		h.logger.Debug("Connection superseded", logging.Fields{"user_id": userID.String()})
	}
	// Shutdown may have closed c before it was registered.
	select {
	case <-c.done:
		h.registry.Disconnect(c)
		return
	default:
	}
	h.metrics.Connection("connected")
	h.logger.Debug("User connected", logging.Fields{"user_id": userID.String()})

	go c.writePump()
	go c.readPump()
}

// authenticate reads the token from the Authorization header, the access
// token cookie or the token query parameter, in that order.
func (h *Hub) authenticate(r *http.Request) (uuid.UUID, error) {
	token := ""
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		token = strings.TrimPrefix(auth, "Bearer ")
	} else if cookie, err := r.Cookie(accessTokenCookie); err == nil && cookie.Value != "" {
		token = cookie.Value
	} else {
		token = r.URL.Query().Get("token")
	}

	if token != "" && h.tokens != nil {
		return h.tokens.ParseToken(token)
	}
	if h.opts.TrustQueryUser {
		if raw := r.URL.Query().Get("userId"); raw != "" {
			return uuid.Parse(raw)
		}
	}
	return uuid.Nil, errNoCredentials
}

func (h *Hub) track(c *Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.conns[c] = struct{}{}
	return true
}

// release runs once per connection, from Conn.closeWith.
func (h *Hub) release(c *Conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()

	if _, ok := h.registry.Disconnect(c); ok {
		h.metrics.Connection("disconnected")
		h.logger.Debug("User disconnected", logging.Fields{"user_id": c.userID.String()})
	}
}

// Shutdown closes every open connection and refuses new ones.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	conns := make([]*Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.closeWith(websocket.CloseGoingAway, "server shutting down")
	}
}

// Active returns the number of open sockets, including superseded ones.
func (h *Hub) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}
