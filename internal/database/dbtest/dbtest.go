// Package dbtest starts a throwaway Postgres with the chakucart schema for integration tests.
package dbtest

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	testpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/JulesNsenda/chakucart/internal/database"
)

const image = "postgres:16-alpine"

// NewPool runs a Postgres container, applies the embedded migrations and returns a pool.
// The container and pool are released when the test ends.
func NewPool(t testing.TB) *pgxpool.Pool {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	opts := []testcontainers.ContainerCustomizer{
		testpostgres.WithDatabase("chakucart"),
		testpostgres.WithUsername("chakucart"),
		testpostgres.WithPassword("chakucart"),
		testpostgres.BasicWaitStrategies(),
	}
	container, err := testpostgres.Run(ctx, image, opts...)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("postgres connection string: %v", err)
	}
	if err := database.RunMigrations(dsn, ""); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	pool, err := database.NewPool(ctx, dsn)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}
