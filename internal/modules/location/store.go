// README: Last-known rider positions in Redis (per-order snapshot plus a rider GEO set).
package location

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	riderGeoKey    = "location:riders"
	orderKeyPrefix = "location:order:%s"
	// Positions of finished deliveries are not worth keeping around.
	positionTTL = 6 * time.Hour
)

var ErrNoPosition = errors.New("no position reported yet")

type Positions interface {
	Save(ctx context.Context, u Update) error
	Latest(ctx context.Context, orderID string) (*Update, error)
	RidersNear(ctx context.Context, lat, lng, radiusKm float64) ([]string, error)
}

type Store struct {
	redis *redis.Client
}

func NewStore(redis *redis.Client) *Store {
	return &Store{redis: redis}
}

func (s *Store) Save(ctx context.Context, u Update) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return err
	}
	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, fmt.Sprintf(orderKeyPrefix, u.OrderID), raw, positionTTL)
	if u.RiderID != "" {
		pipe.GeoAdd(ctx, riderGeoKey, &redis.GeoLocation{
			Name:      u.RiderID,
			Longitude: u.Longitude,
			Latitude:  u.Latitude,
		})
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Store) Latest(ctx context.Context, orderID string) (*Update, error) {
	raw, err := s.redis.Get(ctx, fmt.Sprintf(orderKeyPrefix, orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoPosition
	}
	if err != nil {
		return nil, err
	}
	var u Update
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("decode position %s: %w", orderID, err)
	}
	return &u, nil
}

// RidersNear lists rider ids within radiusKm of a point, nearest first.
func (s *Store) RidersNear(ctx context.Context, lat, lng, radiusKm float64) ([]string, error) {
	return s.redis.GeoSearch(ctx, riderGeoKey, &redis.GeoSearchQuery{
		Longitude:  lng,
		Latitude:   lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
	}).Result()
}
