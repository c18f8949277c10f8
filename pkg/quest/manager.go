// Package quest implements the quest progression boundary:
// keyword/action-type objective matching, gold and badge awarding, and
// auto-advance to the next quest by order_index.
package quest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/worldforge/server/pkg/durable"
	"github.com/worldforge/server/pkg/models"
)

// ProgressResult is returned after every action, reported to the caller
// as either a quest_progress or quest_completed envelope.
type ProgressResult struct {
	Type       string // "quest_progress" or "quest_completed"
	QuestID    string
	GoldReward int
	BadgeID    string
	NextQuestID string
}

// Manager is the Quest Manager.
type Manager struct {
	db  *durable.Client
	log *slog.Logger
}

// New builds a Manager.
func New(db *durable.Client) *Manager {
	return &Manager{db: db, log: slog.With("component", "quest")}
}

// ProcessAction checks actionText/actionType against the player's active
// quest's objective and, on a match, awards gold, records the
// transaction, awards at most one badge per (player, badge), and
// auto-assigns the next quest by order_index.
func (m *Manager) ProcessAction(ctx context.Context, playerID, activeQuestID, actionText, actionType string) (*ProgressResult, error) {
	if activeQuestID == "" {
		return nil, nil
	}

	quest, err := m.db.GetQuest(ctx, activeQuestID)
	if err != nil {
		if errors.Is(err, durable.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("quest: load quest %s: %w", activeQuestID, err)
	}

	matched := matchesObjective(quest.Data, actionText, actionType)
	if !matched {
		return &ProgressResult{Type: "quest_progress", QuestID: quest.ID}, nil
	}

	if err := m.db.PutPlayerQuestProgress(ctx, playerID, quest.ID, 1, true); err != nil {
		return nil, fmt.Errorf("quest: mark quest complete: %w", err)
	}

	if quest.Data.GoldReward > 0 {
		if err := m.db.RecordGoldTransaction(ctx, uuid.NewString(), playerID, quest.Data.GoldReward, fmt.Sprintf("quest_reward:%s", quest.ID)); err != nil {
			return nil, fmt.Errorf("quest: record gold reward: %w", err)
		}
	}

	badgeID := ""
	if quest.Data.BadgeID != "" {
		awarded, err := m.db.AwardBadge(ctx, playerID, quest.Data.BadgeID)
		if err != nil {
			return nil, fmt.Errorf("quest: award badge: %w", err)
		}
		if awarded {
			badgeID = quest.Data.BadgeID
		}
	}

	nextQuestID := ""
	next, err := m.db.GetNextQuestByOrder(ctx, quest.OrderIndex)
	if err == nil {
		nextQuestID = next.ID
	} else if !errors.Is(err, durable.ErrNotFound) {
		return nil, fmt.Errorf("quest: find next quest: %w", err)
	}

	return &ProgressResult{
		Type:        "quest_completed",
		QuestID:     quest.ID,
		GoldReward:  quest.Data.GoldReward,
		BadgeID:     badgeID,
		NextQuestID: nextQuestID,
	}, nil
}

// matchesObjective implements the keyword/action-type objective match:
// the action's type must equal the quest's ObjectiveActionType (if set),
// and its text must contain the objective keyword (case-insensitive, if
// set). A quest with neither constraint never auto-matches.
func matchesObjective(q models.Quest, actionText, actionType string) bool {
	if q.ObjectiveActionType == "" && q.ObjectiveKeyword == "" {
		return false
	}
	if q.ObjectiveActionType != "" && !strings.EqualFold(q.ObjectiveActionType, actionType) {
		return false
	}
	if q.ObjectiveKeyword != "" && !strings.Contains(strings.ToLower(actionText), strings.ToLower(q.ObjectiveKeyword)) {
		return false
	}
	return true
}
