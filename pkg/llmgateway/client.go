// Package llmgateway is the stateless adapter to the text, image, and
// 3D-model generation providers. Text generation uses
// github.com/anthropics/anthropic-sdk-go for narration.
package llmgateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/worldforge/server/pkg/config"
)

const defaultModel = anthropic.ModelClaudeSonnet4_5

// Gateway is the LLM Gateway. All operations are blocking-but-cancelable
// via ctx,
type Gateway struct {
	client anthropic.Client
	images *imageClient
	log    *slog.Logger
}

// New builds a Gateway from cfg.
func New(cfg config.LLMConfig) *Gateway {
	return &Gateway{
		client: anthropic.NewClient(option.WithAPIKey(cfg.TextAPIKey)),
		images: newImageClient(cfg),
		log:    slog.With("component", "llmgateway"),
	}
}

func (g *Gateway) complete(ctx context.Context, system, prompt string, maxTokens int64) (string, error) {
	msg, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     defaultModel,
		MaxTokens: maxTokens,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("llmgateway: complete: %w", err)
	}
	var sb strings.Builder
	for _, block := range msg.Content {
		if text := block.AsAny(); text != nil {
			if tb, ok := text.(anthropic.TextBlock); ok {
				sb.WriteString(tb.Text)
			}
		}
	}
	return sb.String(), nil
}

// GenerateText produces a single completion, used for combat scoring
// and classification prompts.
func (g *Gateway) GenerateText(ctx context.Context, prompt string) (string, error) {
	return g.complete(ctx, narratorSystemPrompt, prompt, 1024)
}

// RoomDescription is GenerateRoomDescription's result.
type RoomDescription struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ImagePrompt string `json:"image_prompt"`
}

// GenerateRoomDescription asks the LLM for a new room's title,
// description, and an image-generation prompt.
func (g *Gateway) GenerateRoomDescription(ctx context.Context, biome, context string) (*RoomDescription, error) {
	prompt := fmt.Sprintf(
		"Biome: %s\nContext: %s\nRespond with JSON only: {\"title\":...,\"description\":...,\"image_prompt\":...}",
		biome, context,
	)
	raw, err := g.complete(ctx, roomGenSystemPrompt, prompt, 512)
	if err != nil {
		return nil, err
	}
	var out RoomDescription
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &out); err != nil {
		return nil, fmt.Errorf("llmgateway: parse room description: %w", err)
	}
	return &out, nil
}

// BiomeChunk is GenerateBiomeChunk's result.
type BiomeChunk struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

// GenerateBiomeChunk asks the LLM for a biome distinct from excluded
// names already assigned to adjacent chunks.
func (g *Gateway) GenerateBiomeChunk(ctx context.Context, chunkID string, excludedBiomeNames []string) (*BiomeChunk, error) {
	prompt := fmt.Sprintf(
		"Chunk: %s\nExisting adjacent biomes to avoid duplicating: %s\nRespond with JSON only: {\"name\":...,\"description\":...,\"color\":...}",
		chunkID, strings.Join(excludedBiomeNames, ", "),
	)
	raw, err := g.complete(ctx, biomeGenSystemPrompt, prompt, 256)
	if err != nil {
		return nil, err
	}
	var out BiomeChunk
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &out); err != nil {
		return nil, fmt.Errorf("llmgateway: parse biome chunk: %w", err)
	}
	out.Name = strings.ToLower(out.Name)
	return &out, nil
}

// WorldSeed is GenerateWorldSeed's result.
type WorldSeed struct {
	WorldSeed         string `json:"world_seed"`
	MainQuestSummary  string `json:"main_quest_summary"`
	StartingState     string `json:"starting_state"`
}

// GenerateWorldSeed asks the LLM for the world's genesis narrative.
func (g *Gateway) GenerateWorldSeed(ctx context.Context) (*WorldSeed, error) {
	raw, err := g.complete(ctx, worldSeedSystemPrompt,
		"Generate a new world seed. Respond with JSON only: {\"world_seed\":...,\"main_quest_summary\":...,\"starting_state\":...}", 512)
	if err != nil {
		return nil, err
	}
	var out WorldSeed
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &out); err != nil {
		return nil, fmt.Errorf("llmgateway: parse world seed: %w", err)
	}
	return &out, nil
}

// ProcessNPCInteraction asks the LLM to respond in an NPC's voice and
// produce an updated memory entry.
func (g *Gateway) ProcessNPCInteraction(ctx context.Context, npcPersonality, dialogueHistory, playerInput string) (response, newMemory string, err error) {
	prompt := fmt.Sprintf(
		"NPC personality: %s\nRecent dialogue: %s\nPlayer says: %s\nRespond with JSON only: {\"response\":...,\"new_memory\":...}",
		npcPersonality, dialogueHistory, playerInput,
	)
	raw, cerr := g.complete(ctx, npcSystemPrompt, prompt, 512)
	if cerr != nil {
		return "", "", cerr
	}
	var out struct {
		Response  string `json:"response"`
		NewMemory string `json:"new_memory"`
	}
	if jerr := json.Unmarshal([]byte(extractJSONObject(raw)), &out); jerr != nil {
		return "", "", fmt.Errorf("llmgateway: parse npc interaction: %w", jerr)
	}
	return out.Response, out.NewMemory, nil
}

// StreamPlayerAction streams a player action's narration using the
// gateway's standing action system prompt.
func (g *Gateway) StreamPlayerAction(ctx context.Context, prompt string) <-chan Chunk {
	return g.StreamAction(ctx, actionSystemPrompt, prompt)
}

// StreamAction streams an action's narrative tokens, then yields exactly
// one terminal EnvelopeChunk (or ErrorChunk on stream or tail-parse failure),
//'s streaming contract: prose, then two newlines,
// then one JSON object.
func (g *Gateway) StreamAction(ctx context.Context, system, prompt string) <-chan Chunk {
	out := make(chan Chunk, 32)

	go func() {
		defer close(out)

		stream := g.client.Messages.NewStreaming(ctx, anthropic.MessageNewParams{
			Model:     defaultModel,
			MaxTokens: 1024,
			System:    []anthropic.TextBlockParam{{Text: system}},
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})

		var full strings.Builder
		for stream.Next() {
			event := stream.Current()
			delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
			if !ok {
				continue
			}
			text, ok := delta.Delta.AsAny().(anthropic.TextDelta)
			if !ok {
				continue
			}
			full.WriteString(text.Text)
			select {
			case out <- TextChunk{Content: text.Text}:
			case <-ctx.Done():
				return
			}
		}
		if err := stream.Err(); err != nil {
			out <- ErrorChunk{Err: fmt.Errorf("llmgateway: stream action: %w", err)}
			return
		}

		response, updates, err := parseActionTail(full.String())
		if err != nil {
			g.log.Warn("action tail parse failed", "error", err)
			out <- ErrorChunk{Err: err}
			return
		}
		out <- EnvelopeChunk{Response: response, Updates: updates}
	}()

	return out
}

// parseActionTail splits prose from the trailing JSON envelope: prose,
// "\n\n", then one JSON object with fields `response` and optional
// `updates`.
func parseActionTail(full string) (response string, updates *UpdatesEnvelope, err error) {
	idx := strings.LastIndex(full, "\n\n")
	var jsonPart string
	if idx >= 0 {
		jsonPart = strings.TrimSpace(full[idx+2:])
	} else {
		jsonPart = strings.TrimSpace(full)
	}
	jsonPart = extractJSONObject(jsonPart)
	if jsonPart == "" {
		return "", nil, fmt.Errorf("no terminal JSON envelope found in action stream")
	}

	var envelope struct {
		Response string           `json:"response"`
		Updates  *UpdatesEnvelope `json:"updates"`
	}
	dec := json.NewDecoder(strings.NewReader(jsonPart))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&envelope); err != nil {
		return "", nil, fmt.Errorf("decode action envelope: %w", err)
	}
	return envelope.Response, envelope.Updates, nil
}

// extractJSONObject finds the first top-level {...} object in s,
// tolerating leading prose a model may emit despite instructions.
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
