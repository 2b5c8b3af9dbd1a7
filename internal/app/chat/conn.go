package chat

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"pulsechat/internal/pkg/logx"
)

const (
	// writeWait bounds a single write to the WebSocket connection.
	writeWait = 10 * time.Second

	// pongWait is how long the server waits for a Pong before dropping the
	// connection.
	pongWait = 60 * time.Second

	// pingPeriod is the heartbeat interval; must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxFrameSize caps inbound frames. It must cover the worst-case
	// sendMessage envelope: MaxMessageChars runes of text can reach 12
	// bytes each when a client escapes them as surrogate pairs, plus the
	// envelope fields.
	maxFrameSize = 64 * 1024

	// sendQueueSize is the per-connection outbound buffer. The queue is the
	// ordered, single-consumer channel between fan-out and the write pump;
	// a full queue means the client is not draining and the event is
	// dropped (fire-and-forget delivery).
	sendQueueSize = 256
)

// Conn is one live client connection: the session created once the identity
// is known, destroyed when the transport closes. Events queued on it are
// delivered in FIFO order by a single writer goroutine.
type Conn struct {
	id     string
	userID string

	sock *websocket.Conn
	hub  *Hub

	send chan []byte

	logger zerolog.Logger
}

// NewConn builds the session for an authenticated transport connection.
func NewConn(hub *Hub, sock *websocket.Conn, userID string) *Conn {
	id := uuid.NewString()

	return &Conn{
		id:     id,
		userID: userID,
		sock:   sock,
		hub:    hub,
		send:   make(chan []byte, sendQueueSize),
		logger: logx.Logger().With().
			Str("component", "conn").
			Str("conn_id", id).
			Str("user_id", userID).
			Logger(),
	}
}

// ID returns the unique connection id.
func (c *Conn) ID() string { return c.id }

// UserID returns the authenticated user this connection belongs to.
func (c *Conn) UserID() string { return c.userID }

// Enqueue marshals an event and queues it for delivery. A full or closed
// queue is the connection-unavailable case: the event is dropped, logged,
// and an error returned to the single caller. No retry, no crash.
func (c *Conn) Enqueue(event EventType, payload any) error {
	frame, err := EncodeEvent(event, payload)
	if err != nil {
		c.logger.Error().Err(err).Str("event", string(event)).Msg("Failed to encode outbound event")
		return err
	}

	select {
	case c.send <- frame:
		return nil
	default:
		c.logger.Warn().
			Str("event", string(event)).
			Int("queue_len", len(c.send)).
			Msg("Connection send queue full, dropping event")
		return fmt.Errorf("connection %s unavailable for event %s", c.id, event)
	}
}

// ReadPump consumes inbound frames until the transport fails, dispatching
// each decoded event to the hub. Transport loss is the only fatal condition
// for a session; it triggers the full cleanup path.
func (c *Conn) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.sock.SetReadLimit(maxFrameSize)

	if err := c.sock.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.sock.SetPongHandler(func(string) error {
		return c.sock.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Connection read failed")
			}
			break
		}

		env, err := DecodeEnvelope(frame)
		if err != nil {
			// Core-local failures are reported and recovered here; they
			// never tear down an otherwise healthy connection.
			c.logger.Warn().Err(err).Msg("Rejected invalid inbound frame")
			continue
		}

		if err := c.hub.Dispatch(c, env); err != nil {
			c.logger.Warn().Err(err).Str("event", string(env.Event)).Msg("Event handling failed")
		}
	}
}

// cleanupOnDisconnect runs the cancellation path: deregister, release room
// memberships, update presence, close the transport.
func (c *Conn) cleanupOnDisconnect() {
	c.logger.Info().Msg("Connection cleanup starting.")

	c.hub.Disconnect(c)

	if err := c.sock.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Connection close error")
	}
}

// WritePump drains the send queue to the transport and keeps the heartbeat
// alive. It is the connection's single writer.
func (c *Conn) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := c.sock.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Connection close error in WritePump")
		}
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if err := c.sock.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error().Err(err).Msg("Failed to set write deadline")
				return
			}

			if !ok {
				if err := c.sock.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					c.logger.Debug().Err(err).Msg("Error writing close message")
				}
				return
			}

			if err := c.sock.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Info().Err(err).Msg("Error writing event frame")
				return
			}

		case <-ticker.C:
			if err := c.sock.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
				return
			}

			if err := c.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Info().Err(err).Msg("Error writing ping")
				return
			}
		}
	}
}
