// README: Live location relay: validate, resolve the order, fan out and remember.
package location

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"keeva/internal/modules/identity"
	"keeva/internal/modules/order"
	"keeva/internal/modules/realtime"
)

var ErrBadRequest = errors.New("bad request")

const maxNearbyRadiusKm = 50

type Orders interface {
	Find(ctx context.Context, ref string) (*order.Order, error)
	Get(ctx context.Context, caller identity.Identity, ref string) (*order.Order, error)
}

type Relay struct {
	orders    Orders
	bus       realtime.Bus
	positions Positions
	log       *slog.Logger
	now       func() time.Time
}

// NewRelay builds the relay. positions may be nil, in which case nothing is remembered.
func NewRelay(orders Orders, bus realtime.Bus, positions Positions, log *slog.Logger) *Relay {
	if log == nil {
		log = slog.Default()
	}
	return &Relay{orders: orders, bus: bus, positions: positions, log: log, now: time.Now}
}

// Report is the socket path: any failure drops the update.
func (r *Relay) Report(ctx context.Context, riderID, orderID string, lat, lng float64) {
	if _, err := r.Publish(ctx, riderID, orderID, lat, lng); err != nil {
		r.log.Debug("location update dropped", "order_id", orderID, "rider_id", riderID, "err", err)
	}
}

// Publish relays a position to the order owner, admins and partners.
func (r *Relay) Publish(ctx context.Context, riderID, orderID string, lat, lng float64) (*Update, error) {
	if orderID == "" {
		return nil, fmt.Errorf("%w: orderId is required", ErrBadRequest)
	}
	if !validCoordinates(lat, lng) {
		return nil, fmt.Errorf("%w: coordinates out of range", ErrBadRequest)
	}
	o, err := r.orders.Find(ctx, orderID)
	if err != nil {
		return nil, err
	}

	u := Update{
		OrderID:   o.OrderID,
		RiderID:   riderID,
		Latitude:  lat,
		Longitude: lng,
		UpdatedAt: r.now().UTC(),
	}
	if a := o.Address; a.Latitude != nil && a.Longitude != nil {
		km := roundKm(haversineKm(lat, lng, *a.Latitude, *a.Longitude))
		u.DistanceKm = &km
	}

	if err := r.bus.Publish(ctx, EventLocationUpdate, u, realtime.LocationRooms(o.UserID)...); err != nil {
		return nil, err
	}
	if r.positions != nil {
		if err := r.positions.Save(ctx, u); err != nil {
			r.log.Warn("save position failed", "order_id", o.OrderID, "err", err)
		}
	}
	return &u, nil
}

// Latest returns the last relayed position of an order the caller may see.
func (r *Relay) Latest(ctx context.Context, caller identity.Identity, ref string) (*Update, error) {
	o, err := r.orders.Get(ctx, caller, ref)
	if err != nil {
		return nil, err
	}
	if r.positions == nil {
		return nil, ErrNoPosition
	}
	return r.positions.Latest(ctx, o.OrderID)
}

// Nearby lists riders that reported within radiusKm of a point.
func (r *Relay) Nearby(ctx context.Context, lat, lng, radiusKm float64) ([]string, error) {
	if !validCoordinates(lat, lng) || radiusKm <= 0 || radiusKm > maxNearbyRadiusKm {
		return nil, fmt.Errorf("%w: invalid point or radius", ErrBadRequest)
	}
	if r.positions == nil {
		return []string{}, nil
	}
	return r.positions.RidersNear(ctx, lat, lng, radiusKm)
}
