package action

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/worldforge/server/pkg/transient"
)

// ChatMessage is one entry of a room's recent chat log, also surfaced
// to the LLM as the last 20 chat messages of room context.
type ChatMessage struct {
	PlayerID  string    `json:"player_id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// RecordChatMessage appends a chat message to roomID's history, trimmed
// to a 1000-entry cap. No expiry is set on the history key.
func RecordChatMessage(ctx context.Context, t *transient.Store, roomID, playerID, text string) error {
	msg := ChatMessage{PlayerID: playerID, Text: text, Timestamp: time.Now()}
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("action: encode chat message: %w", err)
	}
	key := transient.MessagesHistoryKey(roomID)
	if err := t.ListPushFront(ctx, key, string(raw)); err != nil {
		return fmt.Errorf("action: push chat message: %w", err)
	}
	if err := t.ListTrim(ctx, key, transient.MessagesHistoryMaxLen); err != nil {
		return fmt.Errorf("action: trim chat history: %w", err)
	}
	return nil
}

// RecentChatMessages returns up to n of roomID's most recent chat
// messages, newest first.
func RecentChatMessages(ctx context.Context, t *transient.Store, roomID string, n int) ([]ChatMessage, error) {
	raw, err := t.ListRange(ctx, transient.MessagesHistoryKey(roomID), 0, int64(n-1))
	if err != nil {
		return nil, fmt.Errorf("action: list chat messages: %w", err)
	}
	out := make([]ChatMessage, 0, len(raw))
	for _, entry := range raw {
		var msg ChatMessage
		if err := json.Unmarshal([]byte(entry), &msg); err != nil {
			continue // tolerate malformed legacy entries rather than failing context loading
		}
		out = append(out, msg)
	}
	return out, nil
}
