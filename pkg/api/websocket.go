package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/worldforge/server/pkg/action"
	"github.com/worldforge/server/pkg/hub"
)

// newUpgrader builds a gorilla websocket upgrader whose origin check is
// driven by the server's configured CORS allow-list rather than a
// blanket allow-all.
func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = struct{}{}
	}
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if allowAll {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			_, ok := allowed[origin]
			return ok
		},
	}
}

// clientMessage is the envelope a connected client sends over the
// websocket: an action to process, a chat line to broadcast, or a duel
// challenge/response/move.
type clientMessage struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Text   string `json:"text"`
	DuelID string `json:"duel_id"`
	Move   string `json:"move"`
}

// websocketHandler upgrades the connection, registers it with the
// Connection Hub, and runs its read loop until the client disconnects.
func (s *Server) websocketHandler(c *gin.Context) {
	roomID := c.Query("room_id")
	playerID := c.Query("player_id")
	if roomID == "" || playerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room_id and player_id are required"})
		return
	}

	if token := c.Query("token"); token != "" && s.verifier != nil {
		subject, err := s.verifier.Verify(token)
		owner := ""
		if err == nil {
			if player, perr := s.store.Durable.GetPlayer(c.Request.Context(), playerID); perr == nil {
				owner = player.UserID
			}
		}
		if err != nil || subject != owner {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or mismatched token"})
			return
		}
	}

	upgrader := newUpgrader(s.serverCfg.CORSOrigins)
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	ctx := c.Request.Context()
	sess, err := s.hub.Connect(ctx, roomID, playerID, conn)
	if err != nil {
		slog.Warn("hub connect failed", "room_id", roomID, "player_id", playerID, "error", err)
		_ = conn.Close()
		return
	}

	s.readLoop(sess, roomID, playerID, conn)
}

// readLoop dispatches every inbound clientMessage until the connection
// closes, then runs the Hub's disconnect policy.
func (s *Server) readLoop(sess *hub.Session, roomID, playerID string, conn *websocket.Conn) {
	defer s.hub.Disconnect(context.Background(), roomID, playerID)

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "action":
			s.dispatchAction(sess, playerID, roomID, msg.Action)
		case "chat":
			s.dispatchChat(roomID, playerID, msg.Text)
		case "duel_challenge":
			s.dispatchChallenge(sess, roomID, playerID, msg.Text)
		case "duel_respond":
			s.dispatchDuelRespond(sess, msg.DuelID, msg.Move == "accept")
		case "duel_move":
			s.dispatchDuelMove(sess, msg.DuelID, playerID, msg.Move)
		}
	}
}

// dispatchAction relays the action pipeline's chunk stream to the
// originating session as it is produced.
func (s *Server) dispatchAction(sess *hub.Session, playerID, roomID, actionText string) {
	ctx := context.Background()
	for chunk := range s.pipeline.Process(ctx, action.Request{PlayerID: playerID, RoomID: roomID, Action: actionText}) {
		_ = sess.Send(chunk)
	}
}

type chatBroadcast struct {
	Type     string `json:"type"`
	PlayerID string `json:"player_id"`
	Text     string `json:"text"`
}

func (s *Server) dispatchChat(roomID, playerID, text string) {
	ctx := context.Background()
	if err := action.RecordChatMessage(ctx, s.store.Transient, roomID, playerID, text); err != nil {
		slog.Warn("record chat message failed", "room_id", roomID, "player_id", playerID, "error", err)
		return
	}
	s.hub.BroadcastToRoom(roomID, chatBroadcast{Type: "chat", PlayerID: playerID, Text: text}, "")
}

func (s *Server) dispatchChallenge(sess *hub.Session, roomID, challengerID, opponentID string) {
	ctx := context.Background()
	duel, err := s.combat.Challenge(ctx, roomID, challengerID, opponentID)
	if err != nil {
		_ = sess.Send(gin.H{"type": "error", "error": err.Error()})
		return
	}
	s.hub.BroadcastToRoom(roomID, gin.H{"type": "duel_challenge", "duel": duel}, "")
}

func (s *Server) dispatchDuelRespond(sess *hub.Session, duelID string, accept bool) {
	ctx := context.Background()
	if err := s.combat.Respond(ctx, duelID, accept); err != nil {
		_ = sess.Send(gin.H{"type": "error", "error": err.Error()})
	}
}

func (s *Server) dispatchDuelMove(sess *hub.Session, duelID, playerID, move string) {
	ctx := context.Background()
	if err := s.combat.SubmitMove(ctx, duelID, playerID, move); err != nil {
		_ = sess.Send(gin.H{"type": "error", "error": err.Error()})
	}
}
