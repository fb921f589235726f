//go:build db_test

package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgres starts a postgres container and returns a migrated store.
func setupPostgres(t *testing.T) (*DB, func()) {
	t.Helper()

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("otc"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	d, err := NewPostgresDB(ctx, dsn)
	require.NoError(t, err, "failed to open store")

	cleanup := func() {
		d.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return d, cleanup
}

func TestPostgresStore(t *testing.T) {
	d, cleanup := setupPostgres(t)
	defer cleanup()

	testStore(t, d)
	require.NoError(t, d.Migrate(context.Background()))
}

func TestPostgresProjection(t *testing.T) {
	d, cleanup := setupPostgres(t)
	defer cleanup()

	testProjection(t, d)
}
