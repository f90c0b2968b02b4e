// README: Customer store backed by PostgreSQL (users + user_addresses).
package customer

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, id string) (*Customer, error) {
	var c Customer
	err := s.db.QueryRow(ctx, `SELECT id, name, phone FROM users WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Phone)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, label, house_no, street, landmark, city, state, pincode,
		       latitude, longitude, is_default
		FROM user_addresses
		WHERE user_id = $1
		ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var a Address
		if err := rows.Scan(&a.ID, &a.Label, &a.HouseNo, &a.Street, &a.Landmark, &a.City,
			&a.State, &a.Pincode, &a.Latitude, &a.Longitude, &a.IsDefault); err != nil {
			return nil, err
		}
		c.Addresses = append(c.Addresses, a)
	}
	return &c, rows.Err()
}

// Ensure creates the user row on first sight and refreshes name/phone when provided.
func (s *Store) Ensure(ctx context.Context, id, name, phone string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO users (id, name, phone) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			name = COALESCE(NULLIF(EXCLUDED.name, ''), users.name),
			phone = COALESCE(NULLIF(EXCLUDED.phone, ''), users.phone)`,
		id, name, phone)
	return err
}

// ReplaceAddresses rewrites the address book in one transaction.
func (s *Store) ReplaceAddresses(ctx context.Context, userID string, addrs []Address) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM user_addresses WHERE user_id = $1`, userID); err != nil {
		return err
	}
	for i, a := range addrs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO user_addresses (
				id, user_id, position, label, house_no, street, landmark, city, state, pincode,
				latitude, longitude, is_default
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			a.ID, userID, i, a.Label, a.HouseNo, a.Street, a.Landmark, a.City, a.State, a.Pincode,
			a.Latitude, a.Longitude, a.IsDefault,
		); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
