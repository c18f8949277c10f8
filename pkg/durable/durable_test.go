package durable_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/worldforge/server/pkg/config"
	"github.com/worldforge/server/pkg/durable"
)

// newTestClient starts a Postgres container, applies migrations through
// the real NewClient path, and returns a ready Client.
func newTestClient(t *testing.T) *durable.Client {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("worldforge_test"),
		postgres.WithUsername("worldforge"),
		postgres.WithPassword("worldforge"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	portNum, err := strconv.Atoi(port.Port())
	require.NoError(t, err)

	cfg := config.DurableConfig{
		Host:            host,
		Port:            portNum,
		User:            "worldforge",
		Password:        "worldforge",
		Database:        "worldforge_test",
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
	}

	client, err := durable.NewClient(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client
}
