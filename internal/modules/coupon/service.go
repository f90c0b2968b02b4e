// README: Coupon service: first-order eligibility, apply, exactly-once consume and expiry sweep.
package coupon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"keeva/internal/config"
)

var (
	ErrInvalid  = errors.New("invalid coupon")
	ErrNotFound = errors.New("coupon not found or expired")
)

// OrderCounter reports how many orders a customer has placed.
type OrderCounter interface {
	CountByUser(ctx context.Context, userID string) (int, error)
}

type Service struct {
	store  Repository
	orders OrderCounter
	cfg    config.CouponConfig
	log    *slog.Logger
	now    func() time.Time
}

func NewService(store Repository, orders OrderCounter, cfg config.CouponConfig, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 10 * time.Minute
	}
	return &Service{
		store:  store,
		orders: orders,
		cfg:    cfg,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetOrderCounter breaks the construction cycle with the order service.
func (s *Service) SetOrderCounter(orders OrderCounter) {
	s.orders = orders
}

// Eligible returns the first-order code for customers without orders, issuing it
// on first call. It returns "" for returning customers.
func (s *Service) Eligible(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: missing user", ErrInvalid)
	}
	n, err := s.orders.CountByUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if n > 0 {
		return "", nil
	}
	now := s.now()
	if _, err := s.store.FindActive(ctx, userID, s.cfg.FirstOrderCode, now); err == nil {
		return s.cfg.FirstOrderCode, nil
	} else if !errors.Is(err, ErrNotFound) {
		return "", err
	}
	expires := now.Add(s.cfg.FirstOrderTTL)
	err = s.store.Ensure(ctx, Coupon{
		Code:      s.cfg.FirstOrderCode,
		Type:      TypeFixed,
		Value:     s.cfg.FirstOrderOff,
		UserID:    userID,
		ExpiresAt: &expires,
		CreatedAt: now,
	})
	if err != nil {
		return "", err
	}
	s.log.Info("first-order coupon issued", "user_id", userID, "code", s.cfg.FirstOrderCode)
	return s.cfg.FirstOrderCode, nil
}

// Apply validates code for userID without consuming it.
func (s *Service) Apply(ctx context.Context, userID, code string) (*Coupon, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, fmt.Errorf("%w: coupon code is required", ErrInvalid)
	}
	c, err := s.store.FindActive(ctx, userID, code, s.now())
	if err != nil {
		return nil, err
	}
	if code == s.cfg.FirstOrderCode {
		n, err := s.orders.CountByUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			return nil, fmt.Errorf("%w: coupon no longer valid", ErrInvalid)
		}
	}
	return c, nil
}

// MarkUsed consumes the coupon. It reports false if the coupon was already used,
// expired or never issued; used_at is only written by the winning call.
func (s *Service) MarkUsed(ctx context.Context, userID, code string) (bool, error) {
	return s.store.MarkUsed(ctx, userID, NormalizeCode(code), s.now())
}

// Release undoes MarkUsed when the order it was consumed for could not be created.
func (s *Service) Release(ctx context.Context, userID, code string) error {
	return s.store.Release(ctx, userID, NormalizeCode(code))
}

func (s *Service) sweep(ctx context.Context) {
	n, err := s.store.DeleteExpired(ctx, s.now())
	if err != nil {
		s.log.Warn("coupon sweep failed", "err", err)
		return
	}
	if n > 0 {
		s.log.Info("expired coupons removed", "count", n)
	}
}

// RunExpireSweeper deletes expired coupons every SweepInterval until ctx is done.
func (s *Service) RunExpireSweeper(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}
