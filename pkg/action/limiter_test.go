package action

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/worldforge/server/pkg/config"
	"github.com/worldforge/server/pkg/durable"
	"github.com/worldforge/server/pkg/models"
)

func newTestDurableClient(t *testing.T) *durable.Client {
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

	client, err := durable.NewClient(ctx, config.DurableConfig{
		Host:            host,
		Port:            portNum,
		User:            "worldforge",
		Password:        "worldforge",
		Database:        "worldforge_test",
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestLimiterAllowsUnderLimit(t *testing.T) {
	db := newTestDurableClient(t)
	limiter := NewLimiter(db, config.RateLimitConfig{Limit: 3, Interval: time.Minute})

	playerID := "player_" + uuid.NewString()
	allowed, info, err := limiter.Check(context.Background(), playerID)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 0, info.ActionCount)
}

func TestLimiterDeniesAtLimit(t *testing.T) {
	db := newTestDurableClient(t)
	ctx := context.Background()
	limiter := NewLimiter(db, config.RateLimitConfig{Limit: 2, Interval: time.Minute})

	playerID := "player_" + uuid.NewString()
	for i := 0; i < 2; i++ {
		require.NoError(t, db.PutActionRecord(ctx, &models.ActionRecord{
			ID:         uuid.NewString(),
			PlayerID:   playerID,
			RoomID:     "room_start",
			SessionID:  "s1",
			Action:     "look",
			AIResponse: "ok",
			Timestamp:  time.Now(),
		}))
	}

	allowed, info, err := limiter.Check(ctx, playerID)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 2, info.ActionCount)
	assert.GreaterOrEqual(t, info.TimeUntilReset, time.Duration(0))
}

func TestLimiterSetConfigTakesEffectImmediately(t *testing.T) {
	db := newTestDurableClient(t)
	ctx := context.Background()
	limiter := NewLimiter(db, config.RateLimitConfig{Limit: 1, Interval: time.Minute})

	playerID := "player_" + uuid.NewString()
	require.NoError(t, db.PutActionRecord(ctx, &models.ActionRecord{
		ID: uuid.NewString(), PlayerID: playerID, RoomID: "room_start",
		SessionID: "s1", Action: "look", AIResponse: "ok", Timestamp: time.Now(),
	}))

	allowed, _, err := limiter.Check(ctx, playerID)
	require.NoError(t, err)
	assert.False(t, allowed, "first check should deny at limit=1")

	cfg := limiter.Config()
	cfg.Limit = 5
	limiter.SetConfig(cfg)

	allowed, _, err = limiter.Check(ctx, playerID)
	require.NoError(t, err)
	assert.True(t, allowed, "raised limit should allow immediately, no restart needed")
}
