package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/meetscribe/internal/blockstore"
	"github.com/MrWong99/meetscribe/internal/blockstore/postgres"
	"github.com/MrWong99/meetscribe/internal/blockstore/storetest"
)

// testDSN returns the test database DSN from the environment, or skips the
// test if MEETSCRIBE_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("MEETSCRIBE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("MEETSCRIBE_TEST_POSTGRES_DSN not set, skipping PostgreSQL integration tests")
	}
	return dsn
}

func dropSchema(t *testing.T, dsn string) {
	t.Helper()
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pool.Close()
	const q = `DROP TABLE IF EXISTS meetscribe_documents, meetscribe_minutes, meetscribe_blocks, meetscribe_sessions`
	if _, err := pool.Exec(ctx, q); err != nil {
		t.Fatalf("drop schema: %v", err)
	}
}

func TestConformance(t *testing.T) {
	dsn := testDSN(t)
	dropSchema(t, dsn)

	storetest.Run(t, func(t *testing.T) blockstore.Store {
		s, err := postgres.NewStore(context.Background(), dsn)
		if err != nil {
			t.Fatalf("NewStore: %v", err)
		}
		return s
	})
}

func TestMigrateIdempotent(t *testing.T) {
	dsn := testDSN(t)
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	for i := range 2 {
		if err := postgres.Migrate(ctx, pool); err != nil {
			t.Fatalf("Migrate run %d: %v", i+1, err)
		}
	}
}
