// README: Product catalog reads backed by PostgreSQL.
package search

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrProductNotFound = errors.New("product not found")

// Filter narrows the candidate set. Empty fields mean no filter.
type Filter struct {
	Category string
	MinPrice *float64
	MaxPrice *float64
}

type Catalog interface {
	// Candidates returns products where any token is a case-insensitive substring of
	// name, category or description. With no tokens only f applies.
	Candidates(ctx context.Context, tokens []string, f Filter) ([]Product, error)
	All(ctx context.Context) ([]Product, error)
	// Related samples products in categories, excluding ids.
	Related(ctx context.Context, categories, excludeIDs []string, limit int) ([]Product, error)
	Categories(ctx context.Context) ([]string, error)
	CategoryCounts(ctx context.Context) ([]CategoryCount, error)
	NamesLike(ctx context.Context, q string, limit int) ([]string, error)
	// CategoriesLike returns distinct category names containing q.
	CategoriesLike(ctx context.Context, q string, limit int) ([]string, error)
}

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const productColumns = `id, name, coalesce(description, ''), coalesce(category, ''),
	price_mrp::float8, price_selling::float8, images, average_rating::float8`

func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

func (s *Store) Candidates(ctx context.Context, tokens []string, f Filter) ([]Product, error) {
	patterns := make([]string, len(tokens))
	for i, t := range tokens {
		patterns[i] = likePattern(t)
	}
	category := ""
	if f.Category != "" {
		category = likePattern(f.Category)
	}
	return s.query(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE (cardinality($1::text[]) = 0
		       OR name ILIKE ANY($1::text[])
		       OR category ILIKE ANY($1::text[])
		       OR description ILIKE ANY($1::text[]))
		  AND ($2::text = '' OR category ILIKE $2)
		  AND ($3::float8 IS NULL OR price_selling >= $3)
		  AND ($4::float8 IS NULL OR price_selling <= $4)
		ORDER BY name, id`,
		patterns, category, f.MinPrice, f.MaxPrice,
	)
}

func (s *Store) All(ctx context.Context) ([]Product, error) {
	return s.query(ctx, `SELECT `+productColumns+` FROM products ORDER BY name, id`)
}

func (s *Store) Related(ctx context.Context, categories, excludeIDs []string, limit int) ([]Product, error) {
	if excludeIDs == nil {
		excludeIDs = []string{}
	}
	return s.query(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE category = ANY($1::text[]) AND NOT (id = ANY($2::text[]))
		ORDER BY name, id
		LIMIT $3`,
		categories, excludeIDs, limit,
	)
}

func (s *Store) query(ctx context.Context, sql string, args ...any) ([]Product, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Category,
			&p.Price.MRP, &p.Price.Selling, &p.Images, &p.AverageRating); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) strings(ctx context.Context, sql string, args ...any) ([]string, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (s *Store) Categories(ctx context.Context) ([]string, error) {
	return s.strings(ctx, `
		SELECT DISTINCT category FROM products
		WHERE category IS NOT NULL AND category <> ''
		ORDER BY category`)
}

func (s *Store) CategoryCounts(ctx context.Context) ([]CategoryCount, error) {
	rows, err := s.db.Query(ctx, `
		SELECT category, count(*)
		FROM products
		WHERE category IS NOT NULL AND category <> ''
		GROUP BY category
		ORDER BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CategoryCount
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.Name, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) NamesLike(ctx context.Context, q string, limit int) ([]string, error) {
	return s.strings(ctx, `SELECT name FROM products WHERE name ILIKE $1 ORDER BY name LIMIT $2`, likePattern(q), limit)
}

func (s *Store) CategoriesLike(ctx context.Context, q string, limit int) ([]string, error) {
	return s.strings(ctx, `
		SELECT DISTINCT category FROM products
		WHERE category ILIKE $1
		ORDER BY category LIMIT $2`, likePattern(q), limit)
}

// CategoryOf resolves the catalog category for an order line item.
func (s *Store) CategoryOf(ctx context.Context, productID string) (string, error) {
	var c *string
	err := s.db.QueryRow(ctx, `SELECT category FROM products WHERE id = $1`, productID).Scan(&c)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrProductNotFound
	}
	if err != nil {
		return "", err
	}
	if c == nil {
		return "", nil
	}
	return *c, nil
}
