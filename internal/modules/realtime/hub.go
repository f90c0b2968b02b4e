// README: Room registry; fan-out in one room never waits on another room's lock.
package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Conn is a live connection the hub can push frames to. Send must not block.
type Conn interface {
	ID() string
	Send(frame []byte) bool
}

type room struct {
	mu      sync.RWMutex
	members map[string]Conn
	// dead is set once the room was removed from the hub; joiners must retry.
	dead bool
}

type Hub struct {
	mu    sync.RWMutex
	rooms map[string]*room
	log   *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{rooms: make(map[string]*room), log: log}
}

// Frame is the wire shape of every pushed event.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func EncodeFrame(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: data})
}

func (h *Hub) room(name string) *room {
	h.mu.RLock()
	r := h.rooms[name]
	h.mu.RUnlock()
	if r != nil {
		return r
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if r = h.rooms[name]; r == nil {
		r = &room{members: make(map[string]Conn)}
		h.rooms[name] = r
	}
	return r
}

func (h *Hub) Join(c Conn, rooms ...string) {
	for _, name := range rooms {
		for {
			r := h.room(name)
			r.mu.Lock()
			if r.dead {
				r.mu.Unlock()
				continue
			}
			r.members[c.ID()] = c
			r.mu.Unlock()
			break
		}
	}
}

func (h *Hub) Leave(c Conn, rooms ...string) {
	for _, name := range rooms {
		h.mu.RLock()
		r := h.rooms[name]
		h.mu.RUnlock()
		if r == nil {
			continue
		}
		r.mu.Lock()
		delete(r.members, c.ID())
		empty := len(r.members) == 0
		r.mu.Unlock()
		if empty {
			h.reap(name, r)
		}
	}
}

func (h *Hub) reap(name string, r *room) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.members) == 0 && h.rooms[name] == r {
		r.dead = true
		delete(h.rooms, name)
	}
}

// Emit encodes payload once and delivers it to every member of rooms. A connection
// in several of the rooms receives the frame once. It returns the delivered count.
func (h *Hub) Emit(event string, payload any, rooms ...string) int {
	frame, err := EncodeFrame(event, payload)
	if err != nil {
		h.log.Error("encode event", "event", event, "err", err)
		return 0
	}
	return h.Deliver(frame, rooms...)
}

// Deliver pushes a pre-encoded frame.
func (h *Hub) Deliver(frame []byte, rooms ...string) int {
	sent := make(map[string]bool)
	n := 0
	for _, name := range rooms {
		h.mu.RLock()
		r := h.rooms[name]
		h.mu.RUnlock()
		if r == nil {
			continue
		}
		r.mu.RLock()
		for id, c := range r.members {
			if sent[id] {
				continue
			}
			sent[id] = true
			if c.Send(frame) {
				n++
			} else {
				h.log.Warn("dropped event for slow connection", "conn_id", id, "room", name)
			}
		}
		r.mu.RUnlock()
	}
	return n
}

func (h *Hub) Members(name string) int {
	h.mu.RLock()
	r := h.rooms[name]
	h.mu.RUnlock()
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}
