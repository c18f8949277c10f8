package durable_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worldforge/server/pkg/durable"
	"github.com/worldforge/server/pkg/models"
)

func TestRoomRoundTrip(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	room := &models.Room{
		ID:          "room_test",
		X:           3,
		Y:           4,
		Title:       "A Quiet Clearing",
		Description: "Sunlight filters through the canopy.",
		Biome:       "forest",
		Connections: map[models.Direction]string{},
	}

	require.NoError(t, client.PutRoom(ctx, room))

	loaded, err := client.GetRoom(ctx, "room_test")
	require.NoError(t, err)
	assert.Equal(t, room.Title, loaded.Title)
	assert.Equal(t, room.X, loaded.X)
	assert.Equal(t, room.Y, loaded.Y)
}

func TestGetRoomNotFound(t *testing.T) {
	client := newTestClient(t)
	_, err := client.GetRoom(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, durable.ErrNotFound)
}

func TestAtomicCreateRoomAtCoordinates(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	first := &models.Room{ID: "room_a", X: 0, Y: 0, Title: "First"}
	existing, err := client.AtomicCreateRoomAtCoordinates(ctx, first, true)
	require.NoError(t, err)
	assert.Empty(t, existing)

	second := &models.Room{ID: "room_b", X: 0, Y: 0, Title: "Second"}
	winnerID, err := client.AtomicCreateRoomAtCoordinates(ctx, second, true)
	assert.ErrorIs(t, err, durable.ErrCoordinateTaken)
	assert.Equal(t, "room_a", winnerID)

	byCoord, err := client.GetRoomByCoordinates(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "room_a", byCoord.ID)
}

func TestListDiscoveredCoordinates(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	room := &models.Room{ID: "room_discovered", X: 1, Y: 1, Title: "Ridge"}
	_, err := client.AtomicCreateRoomAtCoordinates(ctx, room, true)
	require.NoError(t, err)

	hidden := &models.Room{ID: "room_hidden", X: 2, Y: 2, Title: "Undiscovered"}
	_, err = client.AtomicCreateRoomAtCoordinates(ctx, hidden, false)
	require.NoError(t, err)

	coords, err := client.ListDiscoveredCoordinates(ctx)
	require.NoError(t, err)

	var found bool
	for _, c := range coords {
		if c.RoomID == "room_discovered" {
			found = true
		}
		assert.NotEqual(t, "room_hidden", c.RoomID)
	}
	assert.True(t, found)
}
