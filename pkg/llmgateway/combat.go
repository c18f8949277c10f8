package llmgateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// RoundJudgment is the LLM's raw verdict for one duel round, before the
// Combat Engine's post-processing clamp/nudge pass.
type RoundJudgment struct {
	VitalDelta1   int    `json:"vital_delta_1"`
	VitalDelta2   int    `json:"vital_delta_2"`
	ControlDelta1 int    `json:"control_delta_1"`
	ControlDelta2 int    `json:"control_delta_2"`
	Reason1       string `json:"reason_1"`
	Reason2       string `json:"reason_2"`
	IsHealing1    bool   `json:"is_healing_1"`
	IsHealing2    bool   `json:"is_healing_2"`
}

// JudgeRound asks the LLM to score one duel round given both moves and
// context.
func (g *Gateway) JudgeRound(ctx context.Context, roomContext, inventoryContext, historyContext, move1, move2 string) (*RoundJudgment, error) {
	prompt := fmt.Sprintf(
		"Room: %s\nInventories: %s\nRecent rounds: %s\nSide 1 move: %s\nSide 2 move: %s\nJudge this round.",
		roomContext, inventoryContext, historyContext, move1, move2,
	)
	raw, err := g.complete(ctx, combatJudgeSystemPrompt, prompt, 512)
	if err != nil {
		return nil, fmt.Errorf("llmgateway: judge round: %w", err)
	}
	var out RoundJudgment
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &out); err != nil {
		return nil, fmt.Errorf("llmgateway: parse round judgment: %w", err)
	}
	return &out, nil
}

// GenerateRoundNarrative produces the 2-4 sentence narration for one
// resolved round.
func (g *Gateway) GenerateRoundNarrative(ctx context.Context, historyContext, move1, move2, outcomeSummary string) (string, error) {
	prompt := fmt.Sprintf(
		"Recent rounds: %s\nSide 1 move: %s\nSide 2 move: %s\nOutcome: %s\nNarrate this round.",
		historyContext, move1, move2, outcomeSummary,
	)
	return g.complete(ctx, combatNarrativeSystemPrompt, prompt, 256)
}

// AttackClassification is ClassifyAttackIntent's result.
type AttackClassification struct {
	IsAttack  bool   `json:"is_attack"`
	MonsterID string `json:"monster_id"`
}

// ClassifyAttackIntent asks the LLM whether actionText is an attack on
// one of the candidate monsters present in the room.
func (g *Gateway) ClassifyAttackIntent(ctx context.Context, actionText string, candidateMonsters map[string]string) (*AttackClassification, error) {
	var sb strings.Builder
	for id, name := range candidateMonsters {
		fmt.Fprintf(&sb, "%s: %s\n", id, name)
	}
	prompt := fmt.Sprintf("Player action: %s\nCandidate monsters:\n%s\nClassify.", actionText, sb.String())
	raw, err := g.complete(ctx, attackClassifierSystemPrompt, prompt, 128)
	if err != nil {
		return nil, fmt.Errorf("llmgateway: classify attack intent: %w", err)
	}
	var out AttackClassification
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &out); err != nil {
		return nil, fmt.Errorf("llmgateway: parse attack classification: %w", err)
	}
	return &out, nil
}

// GenerateCandidateMoves produces five candidate moves for a monster's
// turn, biased against recentVerbs.
func (g *Gateway) GenerateCandidateMoves(ctx context.Context, monsterName, monsterDescription string, recentVerbs []string) ([]string, error) {
	prompt := fmt.Sprintf(
		"Monster: %s\nDescription: %s\nAvoid reusing these recent verbs: %s\nGenerate five candidate moves.",
		monsterName, monsterDescription, strings.Join(recentVerbs, ", "),
	)
	raw, err := g.complete(ctx, candidateMovesSystemPrompt, prompt, 256)
	if err != nil {
		return nil, fmt.Errorf("llmgateway: generate candidate moves: %w", err)
	}
	var out struct {
		Moves []string `json:"moves"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &out); err != nil {
		return nil, fmt.Errorf("llmgateway: parse candidate moves: %w", err)
	}
	return out.Moves, nil
}
