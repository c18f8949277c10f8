package durable_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worldforge/server/pkg/models"
)

func TestActionRecordsSinceAndRecent(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	playerID := "player_" + uuid.NewString()

	old := &models.ActionRecord{
		ID:         uuid.NewString(),
		PlayerID:   playerID,
		RoomID:     "room_start",
		SessionID:  "s1",
		Action:     "look around",
		AIResponse: "You see a clearing.",
		Timestamp:  time.Now().Add(-time.Hour),
	}
	recent := &models.ActionRecord{
		ID:         uuid.NewString(),
		PlayerID:   playerID,
		RoomID:     "room_start",
		SessionID:  "s1",
		Action:     "go north",
		AIResponse: "You head north.",
		Timestamp:  time.Now(),
	}
	require.NoError(t, client.PutActionRecord(ctx, old))
	require.NoError(t, client.PutActionRecord(ctx, recent))

	since, err := client.ListActionRecordsSince(ctx, playerID, time.Now().Add(-10*time.Minute))
	require.NoError(t, err)
	require.Len(t, since, 1)
	assert.Equal(t, recent.ID, since[0].ID)

	all, err := client.ListRecentActionRecords(ctx, playerID, 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, recent.ID, all[0].ID, "newest first")
}

func TestPlayerRoundTrip(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	player := &models.Player{
		ID:          uuid.NewString(),
		UserID:      "user-1",
		Name:        "Rowan",
		CurrentRoom: models.StartRoomID,
		Gold:        0,
		Health:      100,
	}
	require.NoError(t, client.PutPlayer(ctx, player))

	loaded, err := client.GetPlayer(ctx, player.ID)
	require.NoError(t, err)
	assert.Equal(t, "Rowan", loaded.Name)
	assert.Equal(t, 100, loaded.Health)
}

func TestPutPlayerSkipsPseudoPlayers(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	player := &models.Player{ID: uuid.NewString(), UserID: "guest_anon", Name: "Ghost"}
	require.NoError(t, client.PutPlayer(ctx, player))

	_, err := client.GetPlayer(ctx, player.ID)
	assert.Error(t, err, "pseudo-player write must be a silent no-op")
}
