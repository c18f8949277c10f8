package action

import (
	"context"
	"fmt"
	"strings"

	"github.com/worldforge/server/pkg/models"
)

// equipmentRules is the static basic/equipment action split and the
// verb-to-capability keyword mapping used to pre-screen an action before
// it ever reaches the narration stream. A fully adaptive, per-world,
// AI-authored rule set (one generated and cached per world seed) is out
// of scope here: it would mean the pipeline calling the LLM gateway a
// second time just to decide whether to call it a first time, which
// buys little for a server that already treats narration as
// best-effort. This table is the one fixed "default ruleset" fallback
// of that scheme, made permanent instead of a fallback.
var equipmentRules = struct {
	basic      map[string]struct{}
	equipment  map[string]struct{}
	capability map[string][]string
}{
	basic: toSet(
		"punch", "kick", "tackle", "dodge", "block", "parry", "grapple",
		"wrestle", "headbutt", "elbow", "knee", "shoulder", "charge",
		"sidestep", "duck", "jump", "roll", "crawl", "climb", "run",
		"walk", "sneak", "hide",
	),
	equipment: toSet(
		"slash", "stab", "cut", "thrust", "swing", "strike", "hack",
		"chop", "shoot", "fire", "aim", "draw", "release", "throw",
		"launch", "blast", "cast", "spell", "enchant", "summon",
		"teleport", "levitate", "heal", "restore", "boost", "enhance",
		"protect", "ward", "shield", "unlock", "pick", "smash", "drill",
		"saw", "hammer", "repair", "craft", "build", "scan", "detect",
		"identify", "activate", "deactivate",
	),
	capability: map[string][]string{
		"slash":  {"slash", "cut", "hack", "chop"},
		"stab":   {"stab", "thrust", "pierce"},
		"shoot":  {"shoot", "fire", "aim", "launch"},
		"cast":   {"cast", "spell", "magic", "enchant"},
		"heal":   {"heal", "restore", "cure"},
		"protect": {"protect", "defend", "guard", "shield"},
		"unlock": {"unlock", "open", "access"},
		"hack":   {"hack", "access", "control", "analyze"},
	},
}

func toSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// matchedVerb returns the equipment verb that occurs earliest in action,
// if any; of two verbs starting at the same position the longer wins.
func matchedVerb(action string) (string, bool) {
	lower := strings.ToLower(action)
	best, bestIdx := "", -1
	for verb := range equipmentRules.equipment {
		idx := strings.Index(lower, verb)
		if idx < 0 {
			continue
		}
		if bestIdx < 0 || idx < bestIdx || (idx == bestIdx && len(verb) > len(best)) {
			best, bestIdx = verb, idx
		}
	}
	return best, bestIdx >= 0
}

func isBasicAction(action string) bool {
	lower := strings.ToLower(action)
	for verb := range equipmentRules.basic {
		if strings.Contains(lower, verb) {
			return true
		}
	}
	return false
}

// checkEquipment reports whether actionText requires a capability none of
// player's inventory items grant. Unrecognized actions (neither a basic
// nor a known equipment verb) are always allowed through to the LLM,
// matching the "if unsure, allow it" fallback of the default rule table.
func (p *Pipeline) checkEquipment(ctx context.Context, player *models.Player, actionText string) (ok bool, suggestion string, err error) {
	if isBasicAction(actionText) {
		return true, "", nil
	}
	verb, ok := matchedVerb(actionText)
	if !ok {
		return true, "", nil
	}
	required := equipmentRules.capability[verb]
	if len(required) == 0 {
		required = []string{verb}
	}

	for _, itemID := range player.Inventory {
		item, err := p.store.Durable.GetItem(ctx, itemID)
		if err != nil {
			continue // tolerate a stale inventory reference rather than failing the action
		}
		if hasAnyCapability(item.Capabilities, required) {
			return true, "", nil
		}
	}
	return false, fmt.Sprintf("you don't have anything that can %s", verb), nil
}

func hasAnyCapability(have, want []string) bool {
	set := toSet(have...)
	for _, w := range want {
		if _, ok := set[w]; ok {
			return true
		}
	}
	return false
}
