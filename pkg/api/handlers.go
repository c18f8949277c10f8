package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/worldforge/server/pkg/action"
	"github.com/worldforge/server/pkg/auth"
	"github.com/worldforge/server/pkg/durable"
	"github.com/worldforge/server/pkg/llmgateway"
	"github.com/worldforge/server/pkg/models"
)

// startHandler bootstraps the world's starting room.
// world.Engine.EnsureStartingRoom already implements the full bootstrap
// semantics; this handler reports the resulting state.
func (s *Server) startHandler(c *gin.Context) {
	ctx := c.Request.Context()

	if err := s.world.EnsureStartingRoom(ctx); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	room, err := s.store.Durable.GetRoom(ctx, models.StartRoomID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var seed llmgateway.WorldSeed
	_ = s.store.Durable.GetGlobalData(ctx, "world_seed", &seed)

	c.JSON(http.StatusOK, gin.H{
		"starting_room": room,
		"world_seed":    seed,
	})
}

type createPlayerRequest struct {
	Name string `json:"name" binding:"required"`
}

// createPlayerHandler creates a player record for the JWT-verified
// subject. Account and identity management belong to the external
// identity provider; this handler only materializes the game-domain
// Player row the first time a verified subject is seen.
func (s *Server) createPlayerHandler(c *gin.Context) {
	userID, ok := auth.PlayerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authenticated subject"})
		return
	}

	var req createPlayerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()

	if err := s.world.EnsureStartingRoom(ctx); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	quest, err := s.store.Durable.GetNextQuestByOrder(ctx, -1)
	if err != nil && err != durable.ErrNotFound {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	player := &models.Player{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        req.Name,
		CurrentRoom: models.StartRoomID,
		Gold:        0,
		Health:      100,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if quest != nil {
		player.ActiveQuestID = quest.ID
	}

	if err := s.store.Durable.PutPlayer(ctx, player); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, player)
}

// getRoomHandler returns a room snapshot by id.
func (s *Server) getRoomHandler(c *gin.Context) {
	room, err := s.store.Durable.GetRoom(c.Request.Context(), c.Param("id"))
	if err == durable.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, room)
}

// worldStructureHandler returns the discovered coordinate grid and the
// world seed's genesis narrative.
func (s *Server) worldStructureHandler(c *gin.Context) {
	ctx := c.Request.Context()

	coords, err := s.store.Durable.ListDiscoveredCoordinates(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	biomes, err := s.store.Durable.ListBiomes(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	var seed llmgateway.WorldSeed
	_ = s.store.Durable.GetGlobalData(ctx, "world_seed", &seed)

	c.JSON(http.StatusOK, gin.H{
		"coordinates": coords,
		"biomes":      biomes,
		"world_seed":  seed,
	})
}

// rateLimitStatusHandler reports a player's current window usage.
func (s *Server) rateLimitStatusHandler(c *gin.Context) {
	_, info, err := s.pipeline.Limiter().Check(c.Request.Context(), c.Param("player_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, info)
}

type rateLimitConfigRequest struct {
	Limit           int `json:"limit" binding:"required,min=1"`
	IntervalMinutes int `json:"interval_minutes" binding:"required,min=1"`
}

// rateLimitConfigHandler updates the limiter's runtime settings, taking
// effect on the next Check with no restart required.
func (s *Server) rateLimitConfigHandler(c *gin.Context) {
	var req rateLimitConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	limiter := s.pipeline.Limiter()
	cfg := limiter.Config()
	cfg.Limit = req.Limit
	cfg.Interval = time.Duration(req.IntervalMinutes) * time.Minute
	limiter.SetConfig(cfg)

	c.JSON(http.StatusOK, cfg)
}

// actionsHistoryHandler returns a player's recent action log.
func (s *Server) actionsHistoryHandler(c *gin.Context) {
	limit := 50
	records, err := s.store.Durable.ListRecentActionRecords(c.Request.Context(), c.Param("player_id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, records)
}

// chatHistoryHandler returns a room's recent chat transcript, backed by
// the Transient Store.
func (s *Server) chatHistoryHandler(c *gin.Context) {
	messages, err := action.RecentChatMessages(c.Request.Context(), s.store.Transient, c.Param("room_id"), 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, messages)
}

type playerAnalytics struct {
	PlayerID    string `json:"player_id"`
	Gold        int    `json:"gold"`
	Health      int    `json:"health"`
	CurrentRoom string `json:"current_room"`
	ActionCount int    `json:"action_count_recent"`
}

// analyticsPlayerHandler returns a small aggregate snapshot of a player's
// current state: the player record plus a recent action count, not a
// general analytics pipeline.
func (s *Server) analyticsPlayerHandler(c *gin.Context) {
	ctx := c.Request.Context()
	playerID := c.Param("player_id")

	player, err := s.store.Durable.GetPlayer(ctx, playerID)
	if err == durable.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "player not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	records, err := s.store.Durable.ListRecentActionRecords(ctx, playerID, 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, playerAnalytics{
		PlayerID:    player.ID,
		Gold:        player.Gold,
		Health:      player.Health,
		CurrentRoom: player.CurrentRoom,
		ActionCount: len(records),
	})
}
