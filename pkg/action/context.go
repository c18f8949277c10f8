package action

import (
	"fmt"
	"strings"

	"github.com/worldforge/server/pkg/models"
)

// loadedContext is the `{player, current_room, game_state, npcs_in_room,
// monsters_in_room, last 20 chat messages}` bundle step 2.
type loadedContext struct {
	Player   *models.Player
	Room     *models.Room
	NPCs     []*models.NPC
	Monsters []*models.Monster
	Chat     []ChatMessage
}

// buildPrompt renders the loaded context and the raw action text into the
// user prompt handed to the narration stream.
func buildPrompt(ctx *loadedContext, actionText string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Player %s (gold=%d, health=%d, inventory=[%s])\n",
		ctx.Player.Name, ctx.Player.Gold, ctx.Player.Health, strings.Join(ctx.Player.Inventory, ", "))
	fmt.Fprintf(&sb, "Room %q: %s\n", ctx.Room.Title, ctx.Room.Description)

	if len(ctx.NPCs) > 0 {
		names := make([]string, 0, len(ctx.NPCs))
		for _, n := range ctx.NPCs {
			names = append(names, n.Name)
		}
		fmt.Fprintf(&sb, "NPCs present: %s\n", strings.Join(names, ", "))
	}
	if len(ctx.Monsters) > 0 {
		names := make([]string, 0, len(ctx.Monsters))
		for _, m := range ctx.Monsters {
			if m.IsAlive {
				names = append(names, m.Name)
			}
		}
		if len(names) > 0 {
			fmt.Fprintf(&sb, "Monsters present: %s\n", strings.Join(names, ", "))
		}
	}
	if len(ctx.Chat) > 0 {
		fmt.Fprintf(&sb, "Recent chat (%d messages omitted from prose, for context only)\n", len(ctx.Chat))
	}

	fmt.Fprintf(&sb, "Player action: %s\n", actionText)
	return sb.String()
}
