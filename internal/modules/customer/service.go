// README: Customer service resolves shipping addresses and maintains the address book.
package customer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"keeva/internal/maps"
)

var (
	ErrNotFound   = errors.New("customer not found")
	ErrNoAddress  = errors.New("no address available for order")
	ErrBadRequest = errors.New("bad request")
)

type Repository interface {
	Get(ctx context.Context, id string) (*Customer, error)
	Ensure(ctx context.Context, id, name, phone string) error
	ReplaceAddresses(ctx context.Context, userID string, addrs []Address) error
}

type Geocoder interface {
	Forward(ctx context.Context, address string) (maps.Location, error)
	Reverse(ctx context.Context, lat, lng float64) (maps.Address, error)
}

type Service struct {
	store    Repository
	geocoder Geocoder
	log      *slog.Logger
}

// NewService wires the address book. geocoder may be nil; coordinates are then left as given.
func NewService(store Repository, geocoder Geocoder, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, geocoder: geocoder, log: log}
}

func (s *Service) Get(ctx context.Context, id string) (*Customer, error) {
	return s.store.Get(ctx, id)
}

// ShippingAddress builds the snapshot stored on a new order. Missing coordinates
// are filled by forward geocoding when a geocoder is configured.
func (s *Service) ShippingAddress(ctx context.Context, userID, addressID string, ov Overrides) (Snapshot, error) {
	c, err := s.store.Get(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	addr, ok := SelectAddress(c.Addresses, addressID)
	if !ok {
		return Snapshot{}, ErrNoAddress
	}
	snap := BuildSnapshot(*c, addr, ov)
	if !snap.HasCoordinates() && s.geocoder != nil {
		if loc, err := s.geocoder.Forward(ctx, snap.Line()); err == nil {
			snap.Latitude, snap.Longitude = &loc.Lat, &loc.Lng
		} else {
			s.log.Debug("snapshot geocode failed", "user_id", userID, "err", err)
		}
	}
	return snap, nil
}

// SaveAddress inserts or replaces one address and returns the corrected book.
func (s *Service) SaveAddress(ctx context.Context, userID string, a Address) ([]Address, error) {
	if a.Line() == "" && (a.Latitude == nil || a.Longitude == nil) {
		return nil, fmt.Errorf("%w: address needs a street line or coordinates", ErrBadRequest)
	}
	c, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if (a.Latitude == nil || a.Longitude == nil) && s.geocoder != nil {
		if loc, err := s.geocoder.Forward(ctx, a.Line()); err == nil {
			a.Latitude, a.Longitude = &loc.Lat, &loc.Lng
		} else {
			s.log.Debug("address geocode failed", "user_id", userID, "err", err)
		}
	}

	addrs := make([]Address, 0, len(c.Addresses)+1)
	replaced := false
	for _, existing := range c.Addresses {
		if existing.ID == a.ID {
			addrs = append(addrs, a)
			replaced = true
			continue
		}
		addrs = append(addrs, existing)
	}
	if !replaced {
		addrs = append(addrs, a)
	}
	preferred := ""
	if a.IsDefault {
		preferred = a.ID
	}
	NormalizeDefaults(addrs, preferred)

	if err := s.store.ReplaceAddresses(ctx, userID, addrs); err != nil {
		return nil, err
	}
	return addrs, nil
}

// Reverse looks up a structured address for coordinates.
func (s *Service) Reverse(ctx context.Context, lat, lng float64) (maps.Address, error) {
	if s.geocoder == nil {
		return maps.Address{}, maps.ErrNoResult
	}
	return s.geocoder.Reverse(ctx, lat, lng)
}

// Ensure registers the caller on first contact.
func (s *Service) Ensure(ctx context.Context, id, name, phone string) error {
	return s.store.Ensure(ctx, id, name, phone)
}
