package quest

import (
	"context"
	"errors"
	"fmt"

	"github.com/worldforge/server/pkg/durable"
)

// PendingStoryline returns the active quest's storyline text if the
// player has not yet been shown it, for the on-connect typewriter
// effect.
func (m *Manager) PendingStoryline(ctx context.Context, activeQuestID string, storylineShown bool) (string, bool, error) {
	if activeQuestID == "" || storylineShown {
		return "", false, nil
	}
	q, err := m.db.GetQuest(ctx, activeQuestID)
	if errors.Is(err, durable.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("quest: load quest for storyline: %w", err)
	}
	if q.Data.StorylineText == "" {
		return "", false, nil
	}
	return q.Data.StorylineText, true, nil
}
