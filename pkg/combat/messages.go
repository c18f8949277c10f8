package combat

// Message envelopes sent to the Connection Hub, matching the
// server-originated type names

func challengeMessage(d *Duel) any {
	return map[string]any{
		"type":       "duel_challenge",
		"duel_id":    d.ID,
		"player1_id": d.Player1ID,
		"player2_id": d.Player2ID,
		"room_id":    d.RoomID,
	}
}

func monsterDuelAutoAcceptMessage(d *Duel, monsterName string) any {
	return map[string]any{
		"type":         "duel_response",
		"duel_id":      d.ID,
		"accept":       true,
		"is_monster_duel": true,
		"monster_id":   d.MonsterID,
		"monster_name": monsterName,
	}
}

func roundResultMessage(d *Duel, round int, narrative string) any {
	return map[string]any{
		"type":       "duel_round_result",
		"duel_id":    d.ID,
		"round":      round,
		"vital1":     d.Vital1,
		"vital2":     d.Vital2,
		"control1":   d.Control1,
		"control2":   d.Control2,
		"narrative":  narrative,
	}
}

func outcomeMessage(d *Duel, winnerID string) any {
	return map[string]any{
		"type":     "duel_outcome",
		"duel_id":  d.ID,
		"winner":   winnerID,
		"draw":     winnerID == "",
	}
}
