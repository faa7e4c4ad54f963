package refine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mkoval/refinex/internal"
	"github.com/mkoval/refinex/internal/postprocess"
	"github.com/mkoval/refinex/internal/validator"
)

// OllamaReviser uses a local Ollama model as the revision producer.
type OllamaReviser struct {
	model   string
	baseURL string
	client  *http.Client
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

// NewOllamaReviser creates a reviser backed by a local Ollama model.
func NewOllamaReviser(model, baseURL string) *OllamaReviser {
	return &OllamaReviser{
		model:   model,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// Revise sends the draft and its repair list to the model and returns the
// revised text. An empty model response returns the draft unchanged.
func (r *OllamaReviser) Revise(ctx context.Context, content string, recs []internal.FixRecommendation) (string, error) {
	reqBody := ollamaRequest{
		Model:  r.model,
		Prompt: buildRevisionPrompt(content, recs),
		Stream: false,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal revision request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/api/generate", r.baseURL), bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create revision request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", &internal.ExternalCallError{Op: "revise", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &internal.ExternalCallError{Op: "revise", Err: fmt.Errorf("reviser returned status %d", resp.StatusCode)}
	}

	var ollamaResp ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return "", &internal.ExternalCallError{Op: "revise", Err: fmt.Errorf("failed to decode revision response: %w", err)}
	}

	revised := postprocess.Clean(ollamaResp.Response)
	if revised == "" {
		return content, nil
	}
	if err := validator.Check(content, revised, preservedElements(recs)); err != nil {
		// A revision that gutted the text or lost protected context is worse
		// than no revision.
		return content, nil
	}
	return revised, nil
}

func preservedElements(recs []internal.FixRecommendation) []string {
	var preserved []string
	seen := make(map[string]bool)
	for _, rec := range recs {
		for _, p := range rec.PreservedContext {
			if !seen[p] {
				seen[p] = true
				preserved = append(preserved, p)
			}
		}
	}
	return preserved
}

func buildRevisionPrompt(content string, recs []internal.FixRecommendation) string {
	var repairs strings.Builder
	for i, rec := range recs {
		fmt.Fprintf(&repairs, "%d. [%s] %s: %s\n   Remedy: %s\n", i+1, rec.Priority, rec.CriterionID, rec.Issue, rec.Remedy)
	}
	preserved := preservedElements(recs)

	preserve := "- All factual content and meaning"
	if len(preserved) > 0 {
		preserve = "- " + strings.Join(preserved, "\n- ")
	}

	return fmt.Sprintf(`You are a careful editor. Revise the draft below to resolve the listed issues.

DRAFT:
%s

ISSUES TO FIX (in priority order):
%s
# REVISION PRINCIPLES

**What to Fix:**
Address every listed issue, highest priority first.

**What to Preserve:**
%s

CRITICAL: Change only what the issues require. Do not introduce new claims.

Output ONLY the revised text. Do not include any explanation.`, content, repairs.String(), preserve)
}
