// README: Room naming and audience selection per identity and per event.
package realtime

import (
	"fmt"
	"strings"

	"keeva/internal/modules/identity"
)

const (
	RoomAdmin   = "admin"
	RoomPartner = "partner"
	RoomRider   = "rider"
)

func UserRoom(userID string) string { return "user:" + userID }

// CategoryRoom keys are case-insensitive.
func CategoryRoom(category string) string {
	return "category:" + strings.ToLower(strings.TrimSpace(category))
}

// OwnerKey normalizes the different shapes an owner reference can take.
func OwnerKey(owner any) string {
	switch v := owner.(type) {
	case nil:
		return ""
	case string:
		return v
	case *string:
		if v == nil {
			return ""
		}
		return *v
	case interface{ ID() string }:
		return v.ID()
	case map[string]any:
		for _, k := range []string{"id", "_id"} {
			if inner, ok := v[k]; ok {
				return OwnerKey(inner)
			}
		}
		return ""
	case fmt.Stringer:
		return v.String()
	}
	return ""
}

// OrderRooms is the audience of an order event: the owner, every admin, partner
// and rider, and the service partners of the order's category.
func OrderRooms(owner any, category string) []string {
	rooms := make([]string, 0, 5)
	if id := OwnerKey(owner); id != "" {
		rooms = append(rooms, UserRoom(id))
	}
	rooms = append(rooms, RoomAdmin, RoomPartner, RoomRider)
	if strings.TrimSpace(category) != "" {
		rooms = append(rooms, CategoryRoom(category))
	}
	return rooms
}

// LocationRooms is the audience of a rider position update.
func LocationRooms(owner any) []string {
	rooms := make([]string, 0, 3)
	if id := OwnerKey(owner); id != "" {
		rooms = append(rooms, UserRoom(id))
	}
	return append(rooms, RoomAdmin, RoomPartner)
}

// RoomsFor returns the rooms a connection joins for its identity.
func RoomsFor(id identity.Identity) []string {
	switch v := id.(type) {
	case identity.Customer:
		return []string{UserRoom(v.UserID)}
	case identity.Admin:
		return []string{RoomAdmin}
	case identity.GenericPartner:
		switch v.Role() {
		case identity.RoleRider:
			return []string{RoomRider}
		case identity.RoleAdmin:
			return []string{RoomAdmin, RoomPartner}
		}
		return []string{RoomPartner}
	case identity.ServicePartner:
		if strings.TrimSpace(v.Category) == "" {
			return nil
		}
		return []string{CategoryRoom(v.Category)}
	}
	return nil
}

// JoinForIdentity joins c to the rooms of caller and returns them for the later Leave.
func (h *Hub) JoinForIdentity(c Conn, caller identity.Identity) []string {
	rooms := RoomsFor(caller)
	h.Join(c, rooms...)
	return rooms
}
