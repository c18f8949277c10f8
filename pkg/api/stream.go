package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/worldforge/server/pkg/action"
)

type actionStreamRequest struct {
	PlayerID string `json:"player_id" binding:"required"`
	RoomID   string `json:"room_id" binding:"required"`
	Action   string `json:"action" binding:"required"`
}

// actionStreamHandler streams the Action Pipeline's chunk sequence to an
// HTTP client as Server-Sent Events,
// using gin's native SSE support rather than a hand-rolled flusher loop.
func (s *Server) actionStreamHandler(c *gin.Context) {
	var req actionStreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	chunks := s.pipeline.Process(c.Request.Context(), action.Request{
		PlayerID: req.PlayerID,
		RoomID:   req.RoomID,
		Action:   req.Action,
	})

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		chunk, ok := <-chunks
		if !ok {
			return false
		}
		eventName, payload := sseEnvelope(chunk)
		c.SSEvent(eventName, payload)
		return true
	})
}

// sseEnvelope maps an action.Chunk to its SSE event name and JSON body.
func sseEnvelope(chunk action.Chunk) (event string, payload any) {
	switch v := chunk.(type) {
	case action.NarrativeChunk:
		return "narrative", v
	case action.ResultChunk:
		return "result", v
	case action.DeniedChunk:
		return "denied", v
	case action.ErrorChunk:
		return "error", gin.H{"error": v.Err.Error()}
	default:
		return "unknown", nil
	}
}
