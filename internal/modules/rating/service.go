// README: Rating service: validates a delivered order and records the order/rider rating pair.
package rating

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"keeva/internal/modules/order"
)

var (
	ErrBadRequest    = errors.New("bad request")
	ErrForbidden     = errors.New("not allowed")
	ErrConflict      = errors.New("order already rated")
	ErrRiderNotFound = errors.New("rider not found")
)

type OrderFinder interface {
	Find(ctx context.Context, ref string) (*order.Order, error)
}

type Service struct {
	store  Repository
	orders OrderFinder
	log    *slog.Logger
	now    func() time.Time
}

func NewService(store Repository, orders OrderFinder, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, orders: orders, log: log, now: func() time.Time { return time.Now().UTC() }}
}

type RateCommand struct {
	UserID   string
	OrderRef string
	Order    Score
	Rider    Score
}

// Rate records both ratings for a delivered order owned by the caller.
func (s *Service) Rate(ctx context.Context, cmd RateCommand) (*Pair, error) {
	if !cmd.Order.valid() {
		return nil, fmt.Errorf("%w: invalid order rating, must be between 1 and 5", ErrBadRequest)
	}
	if !cmd.Rider.valid() {
		return nil, fmt.Errorf("%w: invalid rider rating, must be between 1 and 5", ErrBadRequest)
	}
	o, err := s.owned(ctx, cmd.UserID, cmd.OrderRef)
	if err != nil {
		return nil, err
	}
	if o.Status != order.StatusDelivered {
		return nil, fmt.Errorf("%w: only delivered orders can be rated", ErrBadRequest)
	}
	existing, err := s.store.Find(ctx, o.ID, cmd.UserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrConflict
	}
	riderID := RiderOf(o)
	if riderID == "" {
		return nil, fmt.Errorf("%w: no rider found for this order", ErrBadRequest)
	}

	now := s.now()
	p := Pair{
		Order: OrderRating{OrderID: o.ID, UserID: cmd.UserID, Rating: cmd.Order.Rating, ReviewText: cmd.Order.ReviewText, CreatedAt: now},
		Rider: RiderRating{OrderID: o.ID, RiderID: riderID, UserID: cmd.UserID, Rating: cmd.Rider.Rating, ReviewText: cmd.Rider.ReviewText, CreatedAt: now},
	}
	avg, err := s.store.Insert(ctx, p)
	if err != nil {
		return nil, err
	}
	s.log.Info("order rated", "order_id", o.OrderID, "rider_id", riderID, "rider_average", avg)
	return &p, nil
}

type StatusView struct {
	OrderID  string       `json:"orderId"`
	Status   order.Status `json:"status"`
	CanRate  bool         `json:"can_rate"`
	HasRated bool         `json:"has_rated"`
	Ratings  *Pair        `json:"ratings"`
}

// Status tells the owner whether the order can be rated and returns existing ratings.
func (s *Service) Status(ctx context.Context, userID, ref string) (*StatusView, error) {
	o, err := s.owned(ctx, userID, ref)
	if err != nil {
		return nil, err
	}
	p, err := s.store.Find(ctx, o.ID, userID)
	if err != nil {
		return nil, err
	}
	return &StatusView{
		OrderID:  o.OrderID,
		Status:   o.Status,
		CanRate:  o.Status == order.StatusDelivered,
		HasRated: p != nil,
		Ratings:  p,
	}, nil
}

// ForRider lists the ratings a partner has received.
func (s *Service) ForRider(ctx context.Context, riderID string) ([]RiderRating, error) {
	return s.store.ForRider(ctx, riderID)
}

// All lists every rating; callers are admins.
func (s *Service) All(ctx context.Context) (Listing, error) {
	return s.list(ctx, "")
}

// ForUser lists the ratings userID has written. Customers may only read their own.
func (s *Service) ForUser(ctx context.Context, callerID, userID string) (Listing, error) {
	if userID == "" {
		return Listing{}, fmt.Errorf("%w: missing user id", ErrBadRequest)
	}
	if callerID != userID {
		return Listing{}, fmt.Errorf("%w: you can only view your own ratings", ErrForbidden)
	}
	return s.list(ctx, userID)
}

func (s *Service) list(ctx context.Context, userID string) (Listing, error) {
	l, err := s.store.List(ctx, userID)
	if err != nil {
		return Listing{}, err
	}
	if l.OrderRatings == nil {
		l.OrderRatings = []OrderRating{}
	}
	if l.RiderRatings == nil {
		l.RiderRatings = []RiderRating{}
	}
	return l, nil
}

func (s *Service) owned(ctx context.Context, userID, ref string) (*order.Order, error) {
	o, err := s.orders.Find(ctx, ref)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, fmt.Errorf("%w: you can only rate your own orders", ErrForbidden)
	}
	return o, nil
}

// RiderOf returns the partner on the most recent history entry made by a partner.
func RiderOf(o *order.Order) string {
	for i := len(o.History) - 1; i >= 0; i-- {
		if p, ok := o.History[i].By.(order.PartnerRef); ok {
			return string(p)
		}
	}
	return ""
}
