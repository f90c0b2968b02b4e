package realtime

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keeva/internal/modules/identity"
)

type fakeConn struct {
	id     string
	mu     sync.Mutex
	frames [][]byte
	full   bool
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Send(frame []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return false
	}
	f.frames = append(f.frames, frame)
	return true
}

func (f *fakeConn) events(t *testing.T) []Frame {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Frame, 0, len(f.frames))
	for _, raw := range f.frames {
		var fr Frame
		require.NoError(t, json.Unmarshal(raw, &fr))
		out = append(out, fr)
	}
	return out
}

func TestHub_EmitReachesRoomMembersOnce(t *testing.T) {
	h := NewHub(nil)
	admin := &fakeConn{id: "a"}
	both := &fakeConn{id: "b"}
	other := &fakeConn{id: "c"}
	h.Join(admin, RoomAdmin)
	h.Join(both, RoomAdmin, RoomPartner)
	h.Join(other, UserRoom("someone-else"))

	n := h.Emit("orders:new", map[string]string{"orderId": "ORD1"}, RoomAdmin, RoomPartner)
	assert.Equal(t, 2, n)
	require.Len(t, admin.events(t), 1)
	require.Len(t, both.events(t), 1)
	assert.Empty(t, other.events(t))

	fr := both.events(t)[0]
	assert.Equal(t, "orders:new", fr.Event)
	assert.JSONEq(t, `{"orderId":"ORD1"}`, string(fr.Data))
}

func TestHub_LeaveRemovesEmptyRooms(t *testing.T) {
	h := NewHub(nil)
	c := &fakeConn{id: "x"}
	h.Join(c, RoomRider, UserRoom("u1"))
	assert.Equal(t, 1, h.Members(RoomRider))

	h.Leave(c, RoomRider, UserRoom("u1"))
	assert.Equal(t, 0, h.Members(RoomRider))
	h.mu.RLock()
	assert.Empty(t, h.rooms)
	h.mu.RUnlock()

	assert.Equal(t, 0, h.Emit("orders:status", nil, RoomRider))
}

func TestHub_SlowConnectionIsSkipped(t *testing.T) {
	h := NewHub(nil)
	slow := &fakeConn{id: "slow", full: true}
	fast := &fakeConn{id: "fast"}
	h.Join(slow, RoomAdmin)
	h.Join(fast, RoomAdmin)

	assert.Equal(t, 1, h.Emit("orders:status", "x", RoomAdmin))
	assert.Len(t, fast.events(t), 1)
}

func TestHub_ConcurrentJoinLeaveEmit(t *testing.T) {
	h := NewHub(nil)
	stay := &fakeConn{id: "stay"}
	h.Join(stay, RoomPartner)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			c := &fakeConn{id: fmt.Sprintf("c%d", i)}
			for j := 0; j < 50; j++ {
				h.Join(c, RoomPartner, CategoryRoom("plumbing"))
				h.Leave(c, RoomPartner, CategoryRoom("plumbing"))
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				h.Emit("orders:status", j, RoomPartner, CategoryRoom("plumbing"))
			}
		}()
	}
	wg.Wait()

	assert.Len(t, stay.events(t), 20*50)
	assert.Equal(t, 1, h.Members(RoomPartner))
	assert.Equal(t, 0, h.Members(CategoryRoom("plumbing")))
}

func TestOrderRooms(t *testing.T) {
	assert.Equal(t,
		[]string{"user:u1", RoomAdmin, RoomPartner, RoomRider, "category:plumbing"},
		OrderRooms("u1", " Plumbing "))
	assert.Equal(t, []string{RoomAdmin, RoomPartner, RoomRider}, OrderRooms(nil, ""))
	assert.Equal(t, []string{"user:u2", RoomAdmin, RoomPartner}, LocationRooms(map[string]any{"_id": "u2"}))
}

type stringer string

func (s stringer) String() string { return string(s) }

func TestOwnerKey(t *testing.T) {
	id := "u3"
	cases := []struct {
		name  string
		owner any
		want  string
	}{
		{"string", "u1", "u1"},
		{"pointer", &id, "u3"},
		{"nil pointer", (*string)(nil), ""},
		{"identity", identity.Customer{UserID: "u4"}, "u4"},
		{"map id", map[string]any{"id": "u5"}, "u5"},
		{"stringer", stringer("u6"), "u6"},
		{"unknown", 42, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, OwnerKey(tc.owner))
		})
	}
}

func TestRoomsFor(t *testing.T) {
	cases := []struct {
		caller identity.Identity
		want   []string
	}{
		{identity.Customer{UserID: "u1"}, []string{"user:u1"}},
		{identity.Admin{UserID: "a1"}, []string{RoomAdmin}},
		{identity.GenericPartner{PartnerID: "p1", PartnerRole: identity.RoleRider}, []string{RoomRider}},
		{identity.GenericPartner{PartnerID: "p2", PartnerRole: identity.RolePicker}, []string{RoomPartner}},
		{identity.GenericPartner{PartnerID: "p3", PartnerRole: identity.RoleAdmin}, []string{RoomAdmin, RoomPartner}},
		{identity.ServicePartner{PartnerID: "s1", Category: "Cleaning"}, []string{"category:cleaning"}},
		{identity.ServicePartner{PartnerID: "s2"}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.caller.Role()+"/"+tc.caller.ID(), func(t *testing.T) {
			assert.Equal(t, tc.want, RoomsFor(tc.caller))
		})
	}
}
