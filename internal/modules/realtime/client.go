// README: One websocket connection: buffered writer, reader and inbound event routing.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"keeva/internal/modules/identity"
)

const (
	EventRiderLocation = "rider:location"

	maxInboundBytes = 4 << 10
	pongWait        = 60 * time.Second
	pingPeriod      = pongWait * 9 / 10
)

type riderLocation struct {
	OrderID   string  `json:"orderId"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type Client struct {
	id           string
	conn         *websocket.Conn
	caller       identity.Identity
	send         chan []byte
	done         chan struct{}
	closeOnce    sync.Once
	writeTimeout time.Duration
	log          *slog.Logger
}

func newClient(conn *websocket.Conn, caller identity.Identity, buffer int, writeTimeout time.Duration, log *slog.Logger) *Client {
	if buffer <= 0 {
		buffer = 64
	}
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	id := uuid.NewString()
	return &Client{
		id:           id,
		conn:         conn,
		caller:       caller,
		send:         make(chan []byte, buffer),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
		log:          log.With("conn_id", id, "role", caller.Role(), "caller", caller.ID()),
	}
}

func (c *Client) ID() string { return c.id }

// Send queues frame without blocking; a full buffer drops the frame.
func (c *Client) Send(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()
	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Debug("ws write failed", "err", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump blocks until the peer goes away.
func (c *Client) readPump(ctx context.Context, locations LocationReporter) {
	defer c.close()
	c.conn.SetReadLimit(maxInboundBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("ws read failed", "err", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.route(ctx, raw, locations)
	}
}

func (c *Client) route(ctx context.Context, raw []byte, locations LocationReporter) {
	var in Frame
	if err := json.Unmarshal(raw, &in); err != nil {
		return
	}
	switch in.Event {
	case EventRiderLocation:
		if locations == nil || !identity.IsPartner(c.caller) {
			return
		}
		var loc riderLocation
		if err := json.Unmarshal(in.Data, &loc); err != nil {
			return
		}
		locations.Report(ctx, c.caller.ID(), loc.OrderID, loc.Latitude, loc.Longitude)
	default:
		c.log.Debug("ignoring inbound event", "event", in.Event)
	}
}
