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

// OpenRouterEvaluator scores content through the OpenRouter chat API.
type OpenRouterEvaluator struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// NewOpenRouterEvaluator creates an evaluator backed by an OpenRouter model.
func NewOpenRouterEvaluator(apiKey, baseURL, model string) *OpenRouterEvaluator {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	return &OpenRouterEvaluator{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (e *OpenRouterEvaluator) Name() string { return "openrouter" }

func (e *OpenRouterEvaluator) Evaluate(ctx context.Context, content string, r *rubric.Rubric, cfg EvalConfig) ([]internal.CriterionEvaluation, error) {
	apiKey := e.apiKey
	if apiKey == "" && cfg.APIKey != "" {
		apiKey = cfg.APIKey
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenRouter API key required")
	}

	model := e.model
	if cfg.Model != "" {
		model = cfg.Model
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	openrouterReq := map[string]interface{}{
		"model": model,
		"messages": []map[string]string{
			{"role": "system", "content": "You are a strict content quality evaluator. Respond only with JSON."},
			{"role": "user", "content": buildEvaluationPrompt(content, r, cfg.Fast)},
		},
		"max_tokens":  maxTokens,
		"temperature": 0,
	}

	jsonData, err := json.Marshal(openrouterReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/chat/completions", e.baseURL), bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", apiKey))

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, &internal.ExternalCallError{Op: "openrouter evaluate", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &internal.ExternalCallError{
			Op:  "openrouter evaluate",
			Err: fmt.Errorf("status %d", resp.StatusCode),
		}
	}

	var openrouterResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&openrouterResp); err != nil {
		return nil, &internal.ExternalCallError{Op: "openrouter evaluate", Err: err}
	}
	if len(openrouterResp.Choices) == 0 {
		return nil, &internal.ExternalCallError{
			Op:  "openrouter evaluate",
			Err: fmt.Errorf("empty response from API"),
		}
	}

	return parsePayload(e.Name(), openrouterResp.Choices[0].Message.Content, r)
}
