// README: Coupon store backed by PostgreSQL.
package coupon

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	// FindActive returns the unused, unexpired coupon or ErrNotFound.
	FindActive(ctx context.Context, userID, code string, now time.Time) (*Coupon, error)
	// Ensure inserts c unless the user already holds that code.
	Ensure(ctx context.Context, c Coupon) error
	MarkUsed(ctx context.Context, userID, code string, now time.Time) (bool, error)
	Release(ctx context.Context, userID, code string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) FindActive(ctx context.Context, userID, code string, now time.Time) (*Coupon, error) {
	var c Coupon
	var typ string
	err := s.db.QueryRow(ctx, `
		SELECT code, type, value, user_id, is_used, used_at, expires_at, created_at
		FROM coupons
		WHERE user_id = $1 AND code = $2 AND is_used = false
		  AND (expires_at IS NULL OR expires_at > $3)`,
		userID, code, now,
	).Scan(&c.Code, &typ, &c.Value, &c.UserID, &c.IsUsed, &c.UsedAt, &c.ExpiresAt, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.Type = Type(typ)
	return &c, nil
}

// Ensure refreshes an expired, unused row in place so the user can be offered the code again.
func (s *Store) Ensure(ctx context.Context, c Coupon) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO coupons (code, type, value, user_id, is_used, expires_at, created_at)
		VALUES ($1, $2, $3, $4, false, $5, $6)
		ON CONFLICT (user_id, code) DO UPDATE
		SET expires_at = EXCLUDED.expires_at
		WHERE coupons.is_used = false
		  AND coupons.expires_at IS NOT NULL AND coupons.expires_at <= EXCLUDED.created_at`,
		c.Code, string(c.Type), c.Value, c.UserID, c.ExpiresAt, c.CreatedAt,
	)
	return err
}

// MarkUsed flips is_used with a single guarded UPDATE. Only one caller can win.
func (s *Store) MarkUsed(ctx context.Context, userID, code string, now time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE coupons SET is_used = true, used_at = $3
		WHERE user_id = $1 AND code = $2 AND is_used = false
		  AND (expires_at IS NULL OR expires_at > $3)`,
		userID, code, now,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) Release(ctx context.Context, userID, code string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE coupons SET is_used = false, used_at = NULL
		WHERE user_id = $1 AND code = $2 AND is_used = true`,
		userID, code,
	)
	return err
}

func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM coupons WHERE is_used = false AND expires_at IS NOT NULL AND expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
