package search

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("KEEVA_TEST_DSN")
	if dsn == "" {
		t.Skip("KEEVA_TEST_DSN not set; skipping DB-backed store tests")
	}
	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sql, err := os.ReadFile(filepath.Join("..", "..", "..", "migrations", "0001_init.sql"))
	require.NoError(t, err)
	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.Exec(ctx, "SELECT pg_advisory_xact_lock(4201)")
	require.NoError(t, err)
	for _, stmt := range strings.Split(stripComments(string(sql)), ";") {
		if s := strings.TrimSpace(stmt); s != "" {
			_, err := tx.Exec(ctx, s)
			require.NoError(t, err)
		}
	}
	require.NoError(t, tx.Commit(ctx))
	_, err = db.Exec(ctx, "TRUNCATE TABLE products")
	require.NoError(t, err)
	return NewStore(db)
}

func stripComments(sql string) string {
	var kept []string
	for _, line := range strings.Split(sql, "\n") {
		if !strings.HasPrefix(strings.TrimSpace(line), "--") {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func TestStoreCategoriesLikeIsDistinct(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	for _, p := range []struct{ name, category string }{
		{"Basmati Rice", "Grocery"},
		{"Toor Dal", "Grocery"},
		{"Atta", "Grocery"},
		{"Face Wash", "Personal Care"},
	} {
		_, err := store.db.Exec(ctx,
			`INSERT INTO products (id, name, category) VALUES ($1, $2, $3)`,
			strings.ToLower(p.name), p.name, p.category)
		require.NoError(t, err)
	}

	got, err := store.CategoriesLike(ctx, "gro", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"Grocery"}, got)
}
