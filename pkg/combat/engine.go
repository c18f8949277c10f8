package combat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/agext/levenshtein"
	"github.com/google/uuid"

	"github.com/worldforge/server/pkg/llmgateway"
	"github.com/worldforge/server/pkg/models"
	"github.com/worldforge/server/pkg/monster"
	"github.com/worldforge/server/pkg/store"
	"github.com/worldforge/server/pkg/transient"
)

// Broadcaster is the subset of the Connection Hub the combat engine
// needs to publish round results and outcomes. Declared locally to avoid
// an import cycle between combat and hub.
type Broadcaster interface {
	BroadcastToRoom(roomID string, message any, exclude string)
	SendPersonal(playerID string, message any)
}

// Engine is the Combat Engine (C8).
type Engine struct {
	store    *store.Facade
	llm      *llmgateway.Gateway
	hub      Broadcaster
	monsters *monster.Registry
	rng      *rand.Rand
	log      *slog.Logger

	mu    sync.Mutex
	duels map[string]*Duel // duel_id -> state; also covers duel_pending+duel_moves
}

// New builds an Engine. hub may be nil at construction time when the
// Connection Hub itself needs a constructed Engine first (see SetHub).
func New(s *store.Facade, llm *llmgateway.Gateway, hub Broadcaster, monsters *monster.Registry) *Engine {
	return &Engine{
		store:    s,
		llm:      llm,
		hub:      hub,
		monsters: monsters,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		log:      slog.With("component", "combat"),
		duels:    map[string]*Duel{},
	}
}

// SetHub wires the Connection Hub after construction, breaking the
// Engine/Hub construction cycle (the Hub's own constructor takes a
// *combat.Engine).
func (e *Engine) SetHub(hub Broadcaster) {
	e.hub = hub
}

// Challenge creates a player-vs-player duel record and broadcasts the
// challenge.
func (e *Engine) Challenge(ctx context.Context, roomID, challengerID, opponentID string) (*Duel, error) {
	d := &Duel{
		ID:        uuid.NewString(),
		Player1ID: challengerID,
		Player2ID: opponentID,
		RoomID:    roomID,
		Round:     1,
		Vital1:    MaxPlayerVital,
		Vital2:    MaxPlayerVital,
		MaxVital1: MaxPlayerVital,
		MaxVital2: MaxPlayerVital,
		CreatedAt: time.Now(),
	}

	e.mu.Lock()
	e.duels[d.ID] = d
	e.mu.Unlock()

	if err := e.persist(ctx, d); err != nil {
		return nil, err
	}
	e.hub.BroadcastToRoom(roomID, challengeMessage(d), "")
	return d, nil
}

// Respond handles a duel_response. On decline the duel record is
// destroyed. On accept nothing changes: the record created by Challenge
// is used as is, and a missing record is not recreated.
func (e *Engine) Respond(ctx context.Context, duelID string, accept bool) error {
	if accept {
		return nil // duel record already exists from Challenge
	}
	e.mu.Lock()
	delete(e.duels, duelID)
	e.mu.Unlock()
	return e.store.Transient.Delete(ctx, transient.ActiveDuelKey(duelID))
}

// StartMonsterDuel classifies an action as an attack on a monster present
// in the room and, if so, creates and auto-accepts a monster duel.
func (e *Engine) StartMonsterDuel(ctx context.Context, roomID, playerID, actionText string, monstersInRoom []*models.Monster) (*Duel, error) {
	candidates := make(map[string]string, len(monstersInRoom))
	for _, m := range monstersInRoom {
		if m.IsAlive {
			candidates[m.ID] = m.Name
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	classification, err := e.llm.ClassifyAttackIntent(ctx, actionText, candidates)
	if err != nil {
		return nil, fmt.Errorf("combat: classify attack intent: %w", err)
	}
	if !classification.IsAttack || classification.MonsterID == "" {
		return nil, nil
	}

	m, err := e.store.Durable.GetMonster(ctx, classification.MonsterID)
	if err != nil {
		return nil, fmt.Errorf("combat: load monster %s: %w", classification.MonsterID, err)
	}

	return e.startMonsterDuel(ctx, roomID, playerID, m)
}

// StartMonsterDuelWithMonster bypasses classification when the caller
// already knows which monster to engage, as the territorial and
// aggressive guards do when they identify the monster directly.
func (e *Engine) StartMonsterDuelWithMonster(ctx context.Context, roomID, playerID string, m *models.Monster) (*Duel, error) {
	return e.startMonsterDuel(ctx, roomID, playerID, m)
}

func (e *Engine) startMonsterDuel(ctx context.Context, roomID, playerID string, m *models.Monster) (*Duel, error) {
	maxVital := maxVitalForSize(m.Size)
	d := &Duel{
		ID:            uuid.NewString(),
		Player1ID:     playerID,
		RoomID:        roomID,
		Round:         1,
		IsMonsterDuel: true,
		MonsterID:     m.ID,
		Vital1:        MaxPlayerVital,
		MaxVital1:     MaxPlayerVital,
		Vital2:        maxVital,
		MaxVital2:     maxVital,
		CreatedAt:     time.Now(),
	}

	e.mu.Lock()
	e.duels[d.ID] = d
	e.mu.Unlock()

	if err := e.persist(ctx, d); err != nil {
		return nil, err
	}
	e.hub.SendPersonal(playerID, monsterDuelAutoAcceptMessage(d, m.Name))
	return d, nil
}

// maxVitalForSize computes a monster's max vital meter from its size
// class.
func maxVitalForSize(size models.Size) int {
	mult := models.SizeMultiplier[size]
	v := int(6*mult + 0.5) // round half up
	if v < 1 {
		v = 1
	}
	return v
}

// SubmitMove records participantID's move for duelID. In a player-vs-
// player duel this records one side and waits for the other; in a
// monster duel the player's move alone triggers generating and recording
// the monster's move too, so a single call always resolves the round.
// Once both moves are present, the round is judged under the mutex
// section that observed both moves, giving each duel a single writer.
func (e *Engine) SubmitMove(ctx context.Context, duelID, participantID, moveText string) error {
	e.mu.Lock()
	d, ok := e.duels[duelID]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("combat: unknown duel %s", duelID)
	}
	d.recordMove(participantID, moveText)
	e.mu.Unlock()

	if d.IsMonsterDuel {
		monsterMove, err := e.chooseMonsterMove(ctx, d)
		if err != nil {
			return err
		}
		e.mu.Lock()
		d.recordMove(d.MonsterID, monsterMove)
		e.mu.Unlock()
	}

	e.mu.Lock()
	move1, ok1 := d.pendingMoves[d.Player1ID]
	move2, ok2 := d.pendingMoves[d.participant2ID()]
	if !ok1 || !ok2 {
		e.mu.Unlock()
		return nil
	}
	d.pendingMoves = map[string]string{}
	e.mu.Unlock()

	return e.judgeRound(ctx, d, move1, move2)
}

// chooseMonsterMove generates candidate moves biased against recent
// verbs, then picks the one least similar to the last 5 monster moves
// by string-similarity ratio.
func (e *Engine) chooseMonsterMove(ctx context.Context, d *Duel) (string, error) {
	m, err := e.store.Durable.GetMonster(ctx, d.MonsterID)
	if err != nil {
		return "", fmt.Errorf("combat: load monster for move selection: %w", err)
	}

	recent := recentMonsterMoves(d, 5)
	candidates, err := e.llm.GenerateCandidateMoves(ctx, m.Name, m.Description, recentVerbs(recent))
	if err != nil {
		return "", fmt.Errorf("combat: generate candidate moves: %w", err)
	}
	if len(candidates) == 0 {
		return "attacks wildly", nil
	}
	if len(recent) == 0 {
		return candidates[0], nil
	}

	best := candidates[0]
	bestScore := 2.0 // similarity ratio is in [0,1]; start above the max
	for _, c := range candidates {
		maxSim := 0.0
		for _, r := range recent {
			sim := levenshtein.Match(c, r, nil)
			if sim > maxSim {
				maxSim = sim
			}
		}
		if maxSim < bestScore {
			bestScore = maxSim
			best = c
		}
	}
	return best, nil
}

func recentMonsterMoves(d *Duel, n int) []string {
	var out []string
	for i := len(d.History) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, d.History[i].Move2)
	}
	return out
}

func recentVerbs(moves []string) []string {
	out := make([]string, 0, len(moves))
	for _, m := range moves {
		fields := strings.Fields(m)
		if len(fields) > 0 {
			out = append(out, fields[0])
		}
	}
	return out
}

// judgeRound asks the LLM to judge the submitted moves, applies the
// resulting deltas, tracks the finishing-window mechanic, and persists
// the outcome.
func (e *Engine) judgeRound(ctx context.Context, d *Duel, move1, move2 string) error {
	roomContext, err := e.roomContext(ctx, d.RoomID)
	if err != nil {
		return err
	}
	inventoryContext, err := e.inventoryContext(ctx, d)
	if err != nil {
		return err
	}
	historyContext := historySummary(d.History, 5)

	judgment, err := e.llm.JudgeRound(ctx, roomContext, inventoryContext, historyContext, move1, move2)
	if err != nil {
		return fmt.Errorf("combat: judge round: %w", err)
	}

	vd1, vd2, cd1, cd2 := postProcess(*judgment)

	e.mu.Lock()

	// Vital counts down from MaxVital: a positive delta is damage taken,
	// -1 is healing.
	d.Vital1 = clampRange(d.Vital1-vd1, 0, d.MaxVital1)
	d.Vital2 = clampRange(d.Vital2-vd2, 0, d.MaxVital2)
	d.Control1 = clampRange(d.Control1+cd1, 0, MaxControl)
	d.Control2 = clampRange(d.Control2+cd2, 0, MaxControl)

	// Step 5: finishing window. The previous round's window owner is the
	// side that reached control 5; if that side inflicts positive vital
	// delta this round, the opponent is instantly finished.
	prevOwner := d.FinishingWindowOwner
	if prevOwner == side1 && vd2 > 0 {
		d.Vital2 = 0
		d.FinishingWindowOwner = sideNone
	} else if prevOwner == side2 && vd1 > 0 {
		d.Vital1 = 0
		d.FinishingWindowOwner = sideNone
	} else {
		d.FinishingWindowOwner = sideNone
		if d.Control1 >= MaxControl && prevOwner == sideNone {
			d.FinishingWindowOwner = side1
		} else if d.Control2 >= MaxControl && prevOwner == sideNone {
			d.FinishingWindowOwner = side2
		}
	}
	d.PreviousWindowOwner = prevOwner

	combatEnds := d.Vital1 <= 0 || d.Vital2 <= 0

	record := RoundRecord{
		Round: d.Round, Move1: move1, Move2: move2,
		VitalDelta1: vd1, VitalDelta2: vd2, ControlDelta1: cd1, ControlDelta2: cd2,
	}
	d.appendHistory(record)
	round := d.Round
	d.Round++
	duelCopy := *d
	e.mu.Unlock()

	outcomeSummary := fmt.Sprintf("vital deltas %d/%d, control deltas %d/%d, reasons: %s / %s", vd1, vd2, cd1, cd2, judgment.Reason1, judgment.Reason2)
	narrative, err := e.llm.GenerateRoundNarrative(ctx, historyContext, move1, move2, outcomeSummary)
	if err != nil {
		e.log.Warn("round narrative generation failed", "duel_id", d.ID, "error", err)
		narrative = outcomeSummary
	}

	e.mu.Lock()
	if len(d.History) > 0 {
		d.History[len(d.History)-1].Narrative = narrative
	}
	e.mu.Unlock()

	if err := e.persist(ctx, d); err != nil {
		e.log.Warn("failed to persist duel state", "duel_id", d.ID, "error", err)
	}

	e.hub.BroadcastToRoom(d.RoomID, roundResultMessage(&duelCopy, round, narrative), "")

	if combatEnds {
		return e.concludeDuel(ctx, d)
	}
	return nil
}

// postProcess clamps the judged deltas to their valid ranges, applies a
// consistency nudge so the side taking more vital loss does not also
// gain control, and if both control deltas are positive zeroes the
// smaller.
func postProcess(j llmgateway.RoundJudgment) (vd1, vd2, cd1, cd2 int) {
	vd1 = clampVitalDelta(j.VitalDelta1, j.IsHealing1)
	vd2 = clampVitalDelta(j.VitalDelta2, j.IsHealing2)
	cd1 = clampRange(j.ControlDelta1, -2, 2)
	cd2 = clampRange(j.ControlDelta2, -2, 2)

	// Consistency nudge: the side taking more vital loss (higher vd)
	// does not also gain control.
	if vd1 > vd2 && cd1 > 0 {
		cd1 = 0
	}
	if vd2 > vd1 && cd2 > 0 {
		cd2 = 0
	}

	if cd1 > 0 && cd2 > 0 {
		if cd1 < cd2 {
			cd1 = 0
		} else {
			cd2 = 0
		}
	}
	return vd1, vd2, cd1, cd2
}

func clampVitalDelta(v int, isHealing bool) int {
	if v < -1 {
		v = -1
	}
	if v > 3 {
		v = 3
	}
	if v == -1 && !isHealing {
		v = 0
	}
	return v
}

func clampRange(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampMin0(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

// concludeDuel determines the winner, broadcasts the outcome, and erases
// in-memory and persistent duel state.
func (e *Engine) concludeDuel(ctx context.Context, d *Duel) error {
	e.mu.Lock()
	vital1, vital2 := d.Vital1, d.Vital2
	delete(e.duels, d.ID)
	e.mu.Unlock()

	var winner string
	switch {
	case vital1 <= 0 && vital2 <= 0:
		winner = ""
	case vital1 <= 0:
		winner = d.participant2ID()
	case vital2 <= 0:
		winner = d.Player1ID
	}

	e.hub.BroadcastToRoom(d.RoomID, outcomeMessage(d, winner), "")
	return e.store.Transient.Delete(ctx, transient.ActiveDuelKey(d.ID))
}

// Disconnect handles a player dropping out of an active duel: the
// remaining participant is declared the winner, the duel state is
// cleaned up, and the room is notified.
func (e *Engine) Disconnect(ctx context.Context, participantID string) error {
	e.mu.Lock()
	var found *Duel
	for _, d := range e.duels {
		if d.Player1ID == participantID || (!d.IsMonsterDuel && d.Player2ID == participantID) {
			found = d
			break
		}
	}
	if found == nil {
		e.mu.Unlock()
		return nil
	}
	delete(e.duels, found.ID)
	e.mu.Unlock()

	winner := found.otherParticipant(participantID)
	e.hub.BroadcastToRoom(found.RoomID, outcomeMessage(found, winner), "")
	return e.store.Transient.Delete(ctx, transient.ActiveDuelKey(found.ID))
}

func (e *Engine) roomContext(ctx context.Context, roomID string) (string, error) {
	room, err := e.store.Durable.GetRoom(ctx, roomID)
	if err != nil {
		return "", fmt.Errorf("combat: load room %s: %w", roomID, err)
	}
	return fmt.Sprintf("%s: %s", room.Title, room.Description), nil
}

func (e *Engine) inventoryContext(ctx context.Context, d *Duel) (string, error) {
	p1, err := e.store.Durable.GetPlayer(ctx, d.Player1ID)
	if err != nil {
		return "", fmt.Errorf("combat: load player %s: %w", d.Player1ID, err)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "side1: %s", strings.Join(p1.Inventory, ", "))
	if d.IsMonsterDuel {
		m, err := e.store.Durable.GetMonster(ctx, d.MonsterID)
		if err != nil {
			return "", fmt.Errorf("combat: load monster %s: %w", d.MonsterID, err)
		}
		fmt.Fprintf(&sb, " | side2 (monster, equipment validation disabled): %s", m.Description)
	} else {
		p2, err := e.store.Durable.GetPlayer(ctx, d.Player2ID)
		if err != nil {
			return "", fmt.Errorf("combat: load player %s: %w", d.Player2ID, err)
		}
		fmt.Fprintf(&sb, " | side2: %s", strings.Join(p2.Inventory, ", "))
	}
	return sb.String(), nil
}

func historySummary(history []RoundRecord, n int) string {
	if len(history) > n {
		history = history[len(history)-n:]
	}
	parts := make([]string, 0, len(history))
	for _, r := range history {
		parts = append(parts, fmt.Sprintf("round %d: %q vs %q -> %s", r.Round, r.Move1, r.Move2, r.Narrative))
	}
	return strings.Join(parts, "; ")
}

func (e *Engine) persist(ctx context.Context, d *Duel) error {
	e.mu.Lock()
	snapshot := *d
	e.mu.Unlock()
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("combat: marshal duel state: %w", err)
	}
	if err := e.store.Transient.SetString(ctx, transient.ActiveDuelKey(d.ID), string(data), 0); err != nil {
		return fmt.Errorf("combat: persist duel state: %w", err)
	}
	return nil
}
