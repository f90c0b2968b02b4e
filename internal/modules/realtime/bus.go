// README: Event bus; local delivery or Redis pub/sub fan-out across API instances.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Bus publishes an event to rooms. Publish never blocks on slow connections.
type Bus interface {
	Publish(ctx context.Context, event string, payload any, rooms ...string) error
}

type LocalBus struct {
	hub *Hub
}

func NewLocalBus(hub *Hub) *LocalBus {
	return &LocalBus{hub: hub}
}

func (b *LocalBus) Publish(_ context.Context, event string, payload any, rooms ...string) error {
	frame, err := EncodeFrame(event, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	b.hub.Deliver(frame, rooms...)
	return nil
}

// envelope is what travels over the Redis channel.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Rooms []string        `json:"rooms"`
}

// RedisBus publishes to a channel every instance subscribes to; each instance's Run
// loop delivers to its own connections. Publishing does not deliver locally.
type RedisBus struct {
	redis   *redis.Client
	channel string
	hub     *Hub
	log     *slog.Logger
}

func NewRedisBus(client *redis.Client, channel string, hub *Hub, log *slog.Logger) *RedisBus {
	if log == nil {
		log = slog.Default()
	}
	return &RedisBus{redis: client, channel: channel, hub: hub, log: log}
}

func (b *RedisBus) Publish(ctx context.Context, event string, payload any, rooms ...string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	msg, err := json.Marshal(envelope{Event: event, Data: data, Rooms: rooms})
	if err != nil {
		return err
	}
	return b.redis.Publish(ctx, b.channel, msg).Err()
}

// Run subscribes to the channel until ctx is cancelled.
func (b *RedisBus) Run(ctx context.Context) error {
	sub := b.redis.Subscribe(ctx, b.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.log.Info("event bus subscribed", "channel", b.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			b.deliver(m.Payload)
		}
	}
}

func (b *RedisBus) deliver(raw string) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		b.log.Warn("bad event envelope", "err", err)
		return
	}
	frame, err := json.Marshal(Frame{Event: env.Event, Data: env.Data})
	if err != nil {
		return
	}
	b.hub.Deliver(frame, env.Rooms...)
}

// Broadcaster routes order events to their audience over a Bus.
type Broadcaster struct {
	bus Bus
	log *slog.Logger
}

func NewBroadcaster(bus Bus, log *slog.Logger) *Broadcaster {
	if log == nil {
		log = slog.Default()
	}
	return &Broadcaster{bus: bus, log: log}
}

// Broadcast is fire-and-forget; a failed publish is logged and the write it
// follows stands.
func (b *Broadcaster) Broadcast(ctx context.Context, event string, payload any, owner any, category string) {
	rooms := OrderRooms(owner, category)
	if err := b.bus.Publish(ctx, event, payload, rooms...); err != nil {
		b.log.Warn("broadcast failed", "event", event, "rooms", rooms, "err", err)
	}
}
