package llmgateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// ModelJobStatus is a 3D-model generation job's lifecycle state, as
// reported by the provider's polling endpoint.
type ModelJobStatus string

// 3D-model generation job states.
const (
	ModelJobQueued     ModelJobStatus = "queued"
	ModelJobInProgress ModelJobStatus = "in_progress"
	ModelJobCompleted  ModelJobStatus = "completed"
	ModelJobFailed     ModelJobStatus = "failed"
)

// Model3DEnabled reports whether the gateway is configured to generate
// 3D models at all, so callers can skip the submit/poll cycle entirely.
func (g *Gateway) Model3DEnabled() bool {
	return g.images.cfg.ModelEnabled
}

// Submit3DModel submits an image-to-3D generation job and returns the
// provider's request id for later polling. 3D generation is
// queue-and-poll, not webhook-driven: no Go SDK exists for this
// provider, so this speaks its documented HTTP queue API directly, the
// same way Flux image generation does.
func (g *Gateway) Submit3DModel(ctx context.Context, imageURL string) (requestID string, err error) {
	if !g.images.cfg.ModelEnabled {
		return "", fmt.Errorf("llmgateway: 3d model generation disabled")
	}
	if g.images.cfg.ModelAPIKey == "" {
		return "", fmt.Errorf("llmgateway: LLM_MODEL_API_KEY not configured")
	}

	body, err := json.Marshal(model3DSubmitRequest{
		ImageURL: imageURL,
		Model:    g.images.cfg.ModelID,
		ExportDRC: true,
	})
	if err != nil {
		return "", fmt.Errorf("llmgateway: encode 3d model request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, model3DSubmitEndpoint, strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("llmgateway: build 3d model request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Key "+g.images.cfg.ModelAPIKey)

	resp, err := g.images.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llmgateway: submit 3d model job: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("llmgateway: 3d model submit status %d", resp.StatusCode)
	}

	var out model3DSubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("llmgateway: decode 3d model submit response: %w", err)
	}
	if out.RequestID == "" {
		return "", fmt.Errorf("llmgateway: 3d model submit returned no request id")
	}
	return out.RequestID, nil
}

// Poll3DModel checks a submitted job's status. A completed job carries
// the finished model's URL; any other status carries none.
func (g *Gateway) Poll3DModel(ctx context.Context, requestID string) (status ModelJobStatus, resultURL string, err error) {
	url := fmt.Sprintf("%s/%s/status", model3DSubmitEndpoint, requestID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", fmt.Errorf("llmgateway: build 3d model poll request: %w", err)
	}
	req.Header.Set("Authorization", "Key "+g.images.cfg.ModelAPIKey)

	resp, err := g.images.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("llmgateway: poll 3d model job: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("llmgateway: 3d model poll status %d", resp.StatusCode)
	}

	var out model3DPollResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", "", fmt.Errorf("llmgateway: decode 3d model poll response: %w", err)
	}
	switch ModelJobStatus(out.Status) {
	case ModelJobCompleted:
		return ModelJobCompleted, out.WorldFile.URL, nil
	case ModelJobQueued, ModelJobInProgress:
		return ModelJobStatus(out.Status), "", nil
	default:
		return ModelJobFailed, "", nil
	}
}

type model3DSubmitRequest struct {
	ImageURL  string `json:"image_url"`
	Model     string `json:"model,omitempty"`
	ExportDRC bool   `json:"export_drc"`
}

type model3DSubmitResponse struct {
	RequestID string `json:"request_id"`
}

type model3DPollResponse struct {
	Status    string `json:"status"`
	WorldFile struct {
		URL      string `json:"url"`
		FileSize int    `json:"file_size"`
	} `json:"world_file"`
}

const model3DSubmitEndpoint = "https://queue.fal.run/fal-ai/hunyuan-world"
