package quest

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/worldforge/server/pkg/models"
)

func TestMatchesObjective(t *testing.T) {
	cases := []struct {
		name       string
		quest      models.Quest
		actionText string
		actionType string
		want       bool
	}{
		{
			name:       "keyword match, case insensitive",
			quest:      models.Quest{ObjectiveKeyword: "Torch"},
			actionText: "I pick up the torch",
			want:       true,
		},
		{
			name:       "keyword mismatch",
			quest:      models.Quest{ObjectiveKeyword: "torch"},
			actionText: "I pick up the sword",
			want:       false,
		},
		{
			name:       "action type match",
			quest:      models.Quest{ObjectiveActionType: "combat"},
			actionType: "combat",
			want:       true,
		},
		{
			name:       "action type mismatch",
			quest:      models.Quest{ObjectiveActionType: "combat"},
			actionType: "movement",
			want:       false,
		},
		{
			name:       "both constraints must match",
			quest:      models.Quest{ObjectiveActionType: "combat", ObjectiveKeyword: "wolf"},
			actionText: "I fight the wolf",
			actionType: "combat",
			want:       true,
		},
		{
			name:       "both constraints, type fails",
			quest:      models.Quest{ObjectiveActionType: "combat", ObjectiveKeyword: "wolf"},
			actionText: "I fight the wolf",
			actionType: "movement",
			want:       false,
		},
		{
			name: "no constraints never matches",
			quest: models.Quest{},
			want:  false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, matchesObjective(tc.quest, tc.actionText, tc.actionType))
		})
	}
}
