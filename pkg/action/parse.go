package action

import (
	"strings"

	"github.com/worldforge/server/pkg/models"
)

var directionWords = map[string]models.Direction{
	"north": models.DirectionNorth, "n": models.DirectionNorth,
	"south": models.DirectionSouth, "s": models.DirectionSouth,
	"east": models.DirectionEast, "e": models.DirectionEast,
	"west": models.DirectionWest, "w": models.DirectionWest,
	"up": models.DirectionUp, "u": models.DirectionUp,
	"down": models.DirectionDown, "d": models.DirectionDown,
}

var movementVerbs = []string{"go", "move", "head", "walk", "run", "travel", "climb"}

// detectMovement parses actionText for a movement intent, returning the
// direction and true if one was found. This is a lightweight pre-LLM
// check used only to evaluate monster guards
// before the narration call; the authoritative movement decision still
// comes from the LLM's updates.player.direction field applied in step 5.
func detectMovement(actionText string) (models.Direction, bool) {
	fields := strings.Fields(strings.ToLower(actionText))
	if len(fields) == 0 {
		return "", false
	}

	if d, ok := directionWords[fields[0]]; ok && len(fields) == 1 {
		return d, true
	}

	for _, verb := range movementVerbs {
		if fields[0] != verb {
			continue
		}
		if len(fields) < 2 {
			return "", false
		}
		if d, ok := directionWords[fields[1]]; ok {
			return d, true
		}
	}
	return "", false
}
