// README: Rider position as relayed to order watchers and kept as last-known.
package location

import "time"

const EventLocationUpdate = "rider:location-update"

// Update is the rider:location-update payload.
type Update struct {
	OrderID   string  `json:"orderId"`
	RiderID   string  `json:"riderId,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	// DistanceKm is the straight-line distance to the delivery address when it has coordinates.
	DistanceKm *float64  `json:"distanceKm,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
