package realtime

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_ReachesOrderAudience(t *testing.T) {
	h := NewHub(nil)
	conns := map[string]*fakeConn{}
	for _, room := range []string{"user:u1", "user:u2", RoomAdmin, RoomPartner, RoomRider, "category:plumbing", "category:cleaning"} {
		c := &fakeConn{id: room}
		conns[room] = c
		h.Join(c, room)
	}

	NewBroadcaster(NewLocalBus(h), nil).Broadcast(context.Background(), "orders:status",
		map[string]string{"orderId": "ORD1", "status": "Accepted"}, "u1", "Plumbing")

	for room, c := range conns {
		want := 1
		if room == "user:u2" || room == "category:cleaning" {
			want = 0
		}
		assert.Len(t, c.events(t), want, room)
	}
}

func TestRedisBus_DeliverEnvelope(t *testing.T) {
	h := NewHub(nil)
	c := &fakeConn{id: "c"}
	h.Join(c, RoomAdmin)
	b := NewRedisBus(nil, "keeva:events", h, nil)

	raw, err := json.Marshal(envelope{Event: "orders:new", Data: json.RawMessage(`{"orderId":"ORD9"}`), Rooms: []string{RoomAdmin}})
	require.NoError(t, err)
	b.deliver(string(raw))
	b.deliver("not json")

	evs := c.events(t)
	require.Len(t, evs, 1)
	assert.Equal(t, "orders:new", evs[0].Event)
	assert.JSONEq(t, `{"orderId":"ORD9"}`, string(evs[0].Data))
}

func TestRedisBus_RoundTrip(t *testing.T) {
	addr := os.Getenv("KEEVA_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("KEEVA_TEST_REDIS_ADDR not set; skipping redis bus test")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	h := NewHub(nil)
	c := &fakeConn{id: "c"}
	h.Join(c, UserRoom("u1"))
	channel := "keeva:test:" + time.Now().Format("150405.000000")
	b := NewRedisBus(client, channel, h, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = b.Run(ctx) }()

	require.Eventually(t, func() bool {
		_ = b.Publish(ctx, "orders:status", map[string]string{"orderId": "ORD1"}, UserRoom("u1"))
		return len(c.events(t)) > 0
	}, 5*time.Second, 100*time.Millisecond)
	assert.Equal(t, "orders:status", c.events(t)[0].Event)
}
