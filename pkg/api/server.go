// Package api is the HTTP surface: gin handlers for world bootstrap,
// player creation, the streaming action endpoint, read-only
// world/rate-limit/history endpoints, and the websocket upgrade into the
// Connection Hub.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/worldforge/server/pkg/action"
	"github.com/worldforge/server/pkg/auth"
	"github.com/worldforge/server/pkg/combat"
	"github.com/worldforge/server/pkg/config"
	"github.com/worldforge/server/pkg/hub"
	"github.com/worldforge/server/pkg/monster"
	"github.com/worldforge/server/pkg/quest"
	"github.com/worldforge/server/pkg/store"
	"github.com/worldforge/server/pkg/version"
	"github.com/worldforge/server/pkg/world"
)

// Server is the HTTP API server.
type Server struct {
	engine *gin.Engine
	http   *http.Server

	store    *store.Facade
	world    *world.Engine
	pipeline *action.Pipeline
	combat   *combat.Engine
	quests   *quest.Manager
	monsters *monster.Registry
	hub      *hub.Hub
	verifier *auth.Verifier

	authCfg   config.AuthConfig
	serverCfg config.ServerConfig
}

// New builds a Server and registers every route.
func New(
	s *store.Facade,
	w *world.Engine,
	pipeline *action.Pipeline,
	combatEngine *combat.Engine,
	quests *quest.Manager,
	monsters *monster.Registry,
	h *hub.Hub,
	verifier *auth.Verifier,
	authCfg config.AuthConfig,
	serverCfg config.ServerConfig,
) *Server {
	gin.SetMode(gin.ReleaseMode)
	e := gin.New()
	e.Use(gin.Recovery())

	srv := &Server{
		engine:    e,
		store:     s,
		world:     w,
		pipeline:  pipeline,
		combat:    combatEngine,
		quests:    quests,
		monsters:  monsters,
		hub:       h,
		verifier:  verifier,
		authCfg:   authCfg,
		serverCfg: serverCfg,
	}

	srv.setupRoutes()
	return srv
}

func (s *Server) setupRoutes() {
	s.engine.Use(securityHeaders(), corsMiddleware(s.serverCfg.CORSOrigins), auth.APIKeyGate(s.authCfg))

	s.engine.GET("/health", s.healthHandler)

	s.engine.POST("/start", s.startHandler)
	s.engine.POST("/player", auth.JWTMiddleware(s.verifier), s.createPlayerHandler)
	s.engine.POST("/action/stream", s.actionStreamHandler)
	s.engine.GET("/room/:id", s.getRoomHandler)
	s.engine.GET("/world/structure", s.worldStructureHandler)
	s.engine.GET("/rate-limit/status/:player_id", s.rateLimitStatusHandler)
	s.engine.POST("/rate-limit/config", s.rateLimitConfigHandler)
	s.engine.GET("/actions/history/:player_id", s.actionsHistoryHandler)
	s.engine.GET("/chat/history/:room_id", s.chatHistoryHandler)
	s.engine.GET("/analytics/player/:player_id", s.analyticsPlayerHandler)

	s.engine.GET("/ws", s.websocketHandler)
}

// Start runs the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.http = &http.Server{Addr: addr, Handler: s.engine}
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := s.store.Durable.DB().PingContext(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, healthResponse{Status: "unhealthy", Version: version.Full()})
		return
	}
	c.JSON(http.StatusOK, healthResponse{Status: "healthy", Version: version.Full()})
}
