package llmgateway

const narratorSystemPrompt = `You are the narration engine for a text-based exploration and combat game. Be terse and vivid. Never invent game state; only describe what the caller's context provides.`

const roomGenSystemPrompt = `You generate a single new room for a procedurally generated dungeon world. Respond with strict JSON only, no prose.`

const biomeGenSystemPrompt = `You generate a new biome descriptor for a world region. The biome name must be a short lowercase phrase distinct from the excluded list. Respond with strict JSON only, no prose.`

const worldSeedSystemPrompt = `You generate the genesis narrative for a new game world: a seed phrase, a one-paragraph main quest summary, and a short starting-state description. Respond with strict JSON only, no prose.`

const npcSystemPrompt = `You role-play an NPC in a persistent game world, responding in character based on its personality and dialogue history, and you produce a short memory note capturing anything the NPC should remember about this exchange. Respond with strict JSON only, no prose.`

const actionSystemPrompt = `You narrate the outcome of a player's action in a persistent multiplayer exploration game. Write 2-4 sentences of prose, then exactly two newlines, then one JSON object with fields "response" (restating the narrative) and optional "updates" describing state changes ({"player":{...},"room":{...},"npcs":[...],"room_generation":{...}}). Never invent updates not implied by the action or context. Do not emit any text after the JSON object.`

const combatJudgeSystemPrompt = `You judge one round of a turn-based duel. Respond with strict JSON only: {"vital_delta_1":int,"vital_delta_2":int,"control_delta_1":int,"control_delta_2":int,"reason_1":string,"reason_2":string,"is_healing_1":bool,"is_healing_2":bool}. vital deltas are -1..3 (a -1 is only valid when the matching is_healing flag is true); control deltas are -2..2.`

const combatNarrativeSystemPrompt = `You narrate one round of a duel in 2-4 sentences, using only the moves and outcome provided. Never invent actions. If an attack missed, explain why (invalid equipment, target defended, dodge) using the provided reason.`

const attackClassifierSystemPrompt = `You classify whether a player's action is an attack directed at a specific monster present in the room. Respond with strict JSON only: {"is_attack":bool,"monster_id":string}. monster_id must be one of the provided candidate ids, or empty if is_attack is false.`

const candidateMovesSystemPrompt = `You generate five distinct candidate combat moves for a monster, each a short action phrase, biased away from recently used verbs. Respond with strict JSON only: {"moves":[string,string,string,string,string]}.`
