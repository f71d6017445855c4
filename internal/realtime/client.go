package realtime

import (
	"encoding/json"
	"time"

	"github.com/campuslive/campuslive/internal/models"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// writeWait is how long a single frame write may take.
	writeWait = 10 * time.Second

	// pongWait is how long we wait for a pong before declaring the peer
	// dead. pingPeriod must be shorter so a ping is always in flight
	// before the deadline.
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second

	maxMessageSize = 64 * 1024

	sendBuffer = 256
)

// Client is one live websocket connection. It owns the socket: the read
// pump is the only reader, the write pump the only writer, and every
// outbound event goes through the buffered send channel — that is the
// per-connection serialization point.
type Client struct {
	id       uuid.UUID
	identity models.Identity
	conn     *websocket.Conn
	gateway  *Gateway
	logger   *zap.Logger

	send chan Envelope
	done chan struct{}
}

func newClient(conn *websocket.Conn, identity models.Identity, gw *Gateway) *Client {
	id := uuid.New()
	return &Client{
		id:       id,
		identity: identity,
		conn:     conn,
		gateway:  gw,
		logger: gw.logger.With(
			zap.String("conn_id", id.String()),
			zap.Int64("user_id", identity.ID),
		),
		send: make(chan Envelope, sendBuffer),
		done: make(chan struct{}),
	}
}

func (c *Client) ID() uuid.UUID             { return c.id }
func (c *Client) Identity() models.Identity { return c.identity }

// Send enqueues without blocking. A full buffer means the peer has
// stopped draining; the event is dropped and the write pump's deadline
// will reap the connection shortly.
func (c *Client) Send(ev Envelope) bool {
	select {
	case <-c.done:
		return false
	case c.send <- ev:
		return true
	default:
		c.logger.Warn("send buffer full; dropping event", zap.String("event", string(ev.Type)))
		return false
	}
}

// readPump reads frames, decodes the envelope, and hands each event to
// the gateway dispatcher. It runs events for this connection to
// completion, in arrival order. On any read error it triggers the full
// disconnect cleanup and exits.
func (c *Client) readPump() {
	defer c.gateway.disconnect(c)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
			) {
				c.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}

		var ev Envelope
		if err := json.Unmarshal(raw, &ev); err != nil {
			c.Send(errorEvent("malformed event payload"))
			continue
		}
		c.gateway.dispatch(c, ev)
	}
}

// writePump drains the send channel onto the socket and keeps the
// connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case ev := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				c.logger.Warn("websocket write error", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
