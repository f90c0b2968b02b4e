// README: Rating store backed by PostgreSQL; the pair and the rider average are written in one transaction.
package rating

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	// Insert stores both ratings and returns the rider's new average.
	Insert(ctx context.Context, p Pair) (float64, error)
	Find(ctx context.Context, orderID, userID string) (*Pair, error)
	ForRider(ctx context.Context, riderID string) ([]RiderRating, error)
	// List returns the ratings written by userID, or every rating when userID is empty.
	List(ctx context.Context, userID string) (Listing, error)
}

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Insert(ctx context.Context, p Pair) (float64, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO order_ratings (order_id, user_id, rating, review_text, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		p.Order.OrderID, p.Order.UserID, p.Order.Rating, p.Order.ReviewText, p.Order.CreatedAt,
	)
	if err != nil {
		return 0, mapInsertErr(err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO rider_ratings (order_id, rider_id, user_id, rating, review_text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		p.Rider.OrderID, p.Rider.RiderID, p.Rider.UserID, p.Rider.Rating, p.Rider.ReviewText, p.Rider.CreatedAt,
	)
	if err != nil {
		return 0, mapInsertErr(err)
	}

	var avg float64
	err = tx.QueryRow(ctx, `
		UPDATE partners
		SET average_rating = (
			SELECT round(avg(rating)::numeric, 1) FROM rider_ratings WHERE rider_id = $1
		)
		WHERE id = $1
		RETURNING average_rating::float8`,
		p.Rider.RiderID,
	).Scan(&avg)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrRiderNotFound
	}
	if err != nil {
		return 0, err
	}
	return avg, tx.Commit(ctx)
}

func mapInsertErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrConflict
	}
	return err
}

func (s *Store) Find(ctx context.Context, orderID, userID string) (*Pair, error) {
	var p Pair
	err := s.db.QueryRow(ctx, `
		SELECT o.order_id, o.user_id, o.rating, o.review_text, o.created_at,
		       r.order_id, r.rider_id, r.user_id, r.rating, r.review_text, r.created_at
		FROM order_ratings o
		JOIN rider_ratings r ON r.order_id = o.order_id AND r.user_id = o.user_id
		WHERE o.order_id = $1 AND o.user_id = $2`,
		orderID, userID,
	).Scan(
		&p.Order.OrderID, &p.Order.UserID, &p.Order.Rating, &p.Order.ReviewText, &p.Order.CreatedAt,
		&p.Rider.OrderID, &p.Rider.RiderID, &p.Rider.UserID, &p.Rider.Rating, &p.Rider.ReviewText, &p.Rider.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) ForRider(ctx context.Context, riderID string) ([]RiderRating, error) {
	return s.riderRatings(ctx, `WHERE rider_id = $1`, riderID)
}

func (s *Store) List(ctx context.Context, userID string) (Listing, error) {
	const byUser = `WHERE ($1::text = '' OR user_id = $1)`
	rows, err := s.db.Query(ctx, `
		SELECT order_id, user_id, rating, review_text, created_at
		FROM order_ratings
		`+byUser+`
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return Listing{}, err
	}
	defer rows.Close()
	var l Listing
	for rows.Next() {
		var r OrderRating
		if err := rows.Scan(&r.OrderID, &r.UserID, &r.Rating, &r.ReviewText, &r.CreatedAt); err != nil {
			return Listing{}, err
		}
		l.OrderRatings = append(l.OrderRatings, r)
	}
	if err := rows.Err(); err != nil {
		return Listing{}, err
	}
	l.RiderRatings, err = s.riderRatings(ctx, byUser, userID)
	if err != nil {
		return Listing{}, err
	}
	return l, nil
}

func (s *Store) riderRatings(ctx context.Context, where string, arg string) ([]RiderRating, error) {
	rows, err := s.db.Query(ctx, `
		SELECT order_id, rider_id, user_id, rating, review_text, created_at
		FROM rider_ratings
		`+where+`
		ORDER BY created_at DESC`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RiderRating
	for rows.Next() {
		var r RiderRating
		if err := rows.Scan(&r.OrderID, &r.RiderID, &r.UserID, &r.Rating, &r.ReviewText, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
