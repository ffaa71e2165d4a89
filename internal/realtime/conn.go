package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/HammerMeetNail/lingopals/internal/logging"
	"github.com/HammerMeetNail/lingopals/internal/models"
)

var (
	ErrConnClosed     = errors.New("connection closed")
	ErrSendBufferFull = errors.New("send buffer full")
)

// Conn is one live websocket. It implements presence.Handle; Push never
// blocks and events that do not fit in the send buffer are dropped.
type Conn struct {
	hub     *Hub
	ws      *websocket.Conn
	userID  uuid.UUID
	send    chan models.Event
	done    chan struct{}
	limiter *rate.Limiter
	logger  *logging.Logger

	closeOnce sync.Once
}

func newConn(h *Hub, ws *websocket.Conn, userID uuid.UUID) *Conn {
	return &Conn{
		hub:     h,
		ws:      ws,
		userID:  userID,
		send:    make(chan models.Event, h.opts.SendBuffer),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(h.opts.InboundRate), h.opts.InboundBurst),
		logger:  h.logger.WithField("user_id", userID.String()),
	}
}

func (c *Conn) UserID() uuid.UUID { return c.userID }

func (c *Conn) Push(event models.Event) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}

	select {
	case c.send <- event:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		return ErrSendBufferFull
	}
}

// Close ends the connection. Safe to call more than once.
func (c *Conn) Close() {
	c.closeWith(websocket.CloseNormalClosure, "")
}

func (c *Conn) closeWith(code int, reason string) {
	c.closeOnce.Do(func() {
		close(c.done)
		deadline := time.Now().Add(c.hub.opts.WriteWait)
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		_ = c.ws.Close()
		c.hub.release(c)
	})
}

type inbound struct {
	Type string `json:"type"`
}

// readPump consumes client frames until the socket fails or goes quiet past
// the pong deadline. It owns the connection's lifetime.
func (c *Conn) readPump() {
	defer c.Close()

	c.ws.SetReadLimit(c.hub.opts.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.hub.opts.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.hub.opts.PongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("Websocket read failed", logging.Fields{"error": err.Error()})
			}
			return
		}
		if !c.limiter.Allow() {
			c.logger.Warn("Inbound rate exceeded, closing connection")
			c.closeWith(websocket.ClosePolicyViolation, "rate limit exceeded")
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			_ = c.Push(models.Event{Type: "pong"})
		}
	}
}

// writePump is the only writer of data frames on the socket.
func (c *Conn) writePump() {
	ticker := time.NewTicker(c.hub.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case event := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteWait))
			if err := c.ws.WriteJSON(event); err != nil {
				c.logger.Debug("Websocket write failed", logging.Fields{"error": err.Error()})
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(c.hub.opts.WriteWait)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
