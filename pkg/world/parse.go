package world

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/worldforge/server/pkg/models"
)

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

func parseNameDescription(raw string) (name, description string, err error) {
	var out struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	jsonPart := extractJSONObject(raw)
	if jsonPart == "" {
		return "", "", fmt.Errorf("world: no JSON object in generated content")
	}
	if err := json.Unmarshal([]byte(jsonPart), &out); err != nil {
		return "", "", fmt.Errorf("world: decode name/description: %w", err)
	}
	return out.Name, out.Description, nil
}

func parseItemContent(raw string) (*models.Item, error) {
	var out struct {
		Name           string   `json:"name"`
		Description    string   `json:"description"`
		Capabilities   []string `json:"capabilities"`
		SpecialEffects []string `json:"special_effects"`
	}
	jsonPart := extractJSONObject(raw)
	if jsonPart == "" {
		return nil, fmt.Errorf("world: no JSON object in generated item")
	}
	if err := json.Unmarshal([]byte(jsonPart), &out); err != nil {
		return nil, fmt.Errorf("world: decode item content: %w", err)
	}
	return &models.Item{
		Name:           out.Name,
		Description:    out.Description,
		Capabilities:   out.Capabilities,
		SpecialEffects: out.SpecialEffects,
	}, nil
}
