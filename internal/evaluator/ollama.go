package evaluator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mkoval/refinex/internal"
	"github.com/mkoval/refinex/internal/rubric"
)

// OllamaEvaluator scores content with a local Ollama model.
type OllamaEvaluator struct {
	model   string
	baseURL string
	client  *http.Client
}

type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Format  string         `json:"format"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

// NewOllamaEvaluator creates an evaluator backed by a local Ollama model.
func NewOllamaEvaluator(model, baseURL string) *OllamaEvaluator {
	return &OllamaEvaluator{
		model:   model,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (e *OllamaEvaluator) Name() string { return "ollama" }

// Evaluate runs one scoring pass. Transport failures surface as
// ExternalCallError; unmappable payloads as ParseError.
func (e *OllamaEvaluator) Evaluate(ctx context.Context, content string, r *rubric.Rubric, cfg EvalConfig) ([]internal.CriterionEvaluation, error) {
	model := e.model
	if cfg.Model != "" {
		model = cfg.Model
	}
	baseURL := e.baseURL
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}

	// Each pass carries its own deadline so one slow call cannot hold a
	// voting round open past the configured budget.
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	reqBody := ollamaRequest{
		Model:  model,
		Prompt: buildEvaluationPrompt(content, r, cfg.Fast),
		Stream: false,
		Format: "json",
		// Temperature 0 keeps scoring deterministic across passes.
		Options: map[string]any{"temperature": 0},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal evaluation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/api/generate", baseURL), bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create evaluation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, &internal.ExternalCallError{Op: "ollama evaluate", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &internal.ExternalCallError{
			Op:  "ollama evaluate",
			Err: fmt.Errorf("status %d", resp.StatusCode),
		}
	}

	var ollamaResp ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return nil, &internal.ExternalCallError{Op: "ollama evaluate", Err: err}
	}

	return parsePayload(e.Name(), ollamaResp.Response, r)
}
