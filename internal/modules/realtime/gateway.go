// README: Websocket endpoint: authenticate, join rooms, push the orders snapshot.
package realtime

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"keeva/internal/config"
	"keeva/internal/infra"
	"keeva/internal/modules/identity"
	"keeva/internal/modules/order"
)

const EventInit = order.EventInit

// Snapshotter lists the orders a caller may see.
type Snapshotter interface {
	List(ctx context.Context, caller identity.Identity) ([]*order.Order, error)
}

// LocationReporter handles inbound rider positions. Failures are dropped silently.
type LocationReporter interface {
	Report(ctx context.Context, riderID, orderID string, lat, lng float64)
}

type Gateway struct {
	hub       *Hub
	verifier  infra.TokenVerifier
	orders    Snapshotter
	locations LocationReporter
	cfg       config.RealtimeConfig
	upgrader  websocket.Upgrader
	log       *slog.Logger
}

func NewGateway(hub *Hub, verifier infra.TokenVerifier, orders Snapshotter, locations LocationReporter,
	cfg config.RealtimeConfig, log *slog.Logger) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{
		hub:       hub,
		verifier:  verifier,
		orders:    orders,
		locations: locations,
		cfg:       cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: log,
	}
}

func bearer(r *http.Request) string {
	if t := strings.TrimSpace(r.URL.Query().Get("token")); t != "" {
		return t
	}
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw := bearer(r)
	if raw == "" {
		http.Error(w, `{"error":"missing token"}`, http.StatusUnauthorized)
		return
	}
	tok, err := g.verifier.VerifyIDToken(r.Context(), raw)
	if err != nil {
		http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
		return
	}
	caller, err := identity.FromClaims(tok.UID, tok.Claims)
	if err != nil {
		http.Error(w, `{"error":"unknown identity"}`, http.StatusForbidden)
		return
	}
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Debug("ws upgrade failed", "err", err)
		return
	}

	c := newClient(conn, caller, g.cfg.SendBuffer, g.cfg.WriteTimeout, g.log)
	rooms := g.hub.JoinForIdentity(c, caller)
	defer g.hub.Leave(c, rooms...)
	c.log.Info("ws connected", "rooms", rooms)

	// Inbound events must not depend on the hijacked request's lifetime.
	ctx := context.WithoutCancel(r.Context())
	g.sendSnapshot(ctx, c, caller)

	go c.writePump()
	c.readPump(ctx, g.locations)
	c.log.Info("ws disconnected")
}

func (g *Gateway) sendSnapshot(ctx context.Context, c *Client, caller identity.Identity) {
	if g.orders == nil {
		return
	}
	orders, err := g.orders.List(ctx, caller)
	if err != nil {
		c.log.Warn("orders snapshot failed", "err", err)
		return
	}
	if orders == nil {
		orders = []*order.Order{}
	}
	frame, err := EncodeFrame(EventInit, orders)
	if err != nil {
		return
	}
	c.Send(frame)
}
