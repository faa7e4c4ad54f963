package factcheck

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
)

// OllamaChecker implements the Checker capability with a local Ollama model.
type OllamaChecker struct {
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

// NewOllamaChecker creates a fact checker backed by a local Ollama model.
func NewOllamaChecker(model, baseURL string) *OllamaChecker {
	return &OllamaChecker{
		model:   model,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *OllamaChecker) generate(ctx context.Context, op, prompt string) (string, error) {
	reqBody := ollamaRequest{
		Model:   c.model,
		Prompt:  prompt,
		Stream:  false,
		Format:  "json",
		Options: map[string]any{"temperature": 0},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/api/generate", c.baseURL), bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &internal.ExternalCallError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &internal.ExternalCallError{Op: op, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var ollamaResp ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return "", &internal.ExternalCallError{Op: op, Err: err}
	}
	return ollamaResp.Response, nil
}

// ExtractClaims asks the model for the verifiable factual claims contained
// in the flagged passages.
func (c *OllamaChecker) ExtractClaims(ctx context.Context, passages []string) ([]string, error) {
	var sb strings.Builder
	sb.WriteString("Extract every verifiable factual claim from the passages below.\n")
	sb.WriteString("A claim is a statement that could be checked against reference material.\n")
	sb.WriteString("Ignore opinions, hedged statements, and instructions.\n\nPASSAGES:\n")
	for i, p := range passages {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, p))
	}
	sb.WriteString(`
Respond ONLY in JSON:
{"claims": ["..."]}
Return an empty list when there is nothing verifiable.
`)

	raw, err := c.generate(ctx, "claim extraction", sb.String())
	if err != nil {
		return nil, err
	}

	doc := postprocess.ExtractJSON(raw)
	if doc == "" {
		return nil, &internal.ParseError{Judge: "factcheck", Detail: "no JSON in claim extraction response"}
	}

	var parsed struct {
		Claims []string `json:"claims"`
	}
	if err := json.Unmarshal([]byte(doc), &parsed); err != nil {
		return nil, &internal.ParseError{Judge: "factcheck", Detail: "malformed claim extraction response", Err: err}
	}
	return parsed.Claims, nil
}

// VerifyClaims checks all claims against the reference passages in a single
// batched call.
func (c *OllamaChecker) VerifyClaims(ctx context.Context, claims, references []string) ([]Claim, error) {
	var sb strings.Builder
	sb.WriteString("Verify each claim against the reference material.\n\nREFERENCES:\n")
	for i, r := range references {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, r))
	}
	sb.WriteString("\nCLAIMS:\n")
	for i, cl := range claims {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, cl))
	}
	sb.WriteString(`
For each claim report whether the references support it, the supporting
excerpt when they do, and a one-sentence rationale.
Respond ONLY in JSON:
{"results": [{"claim": "...", "verified": true, "excerpt": "...", "rationale": "..."}]}
Include every claim exactly once, in order.
`)

	raw, err := c.generate(ctx, "claim verification", sb.String())
	if err != nil {
		return nil, err
	}

	doc := postprocess.ExtractJSON(raw)
	if doc == "" {
		return nil, &internal.ParseError{Judge: "factcheck", Detail: "no JSON in verification response"}
	}

	var parsed struct {
		Results []struct {
			Claim     string `json:"claim"`
			Verified  bool   `json:"verified"`
			Excerpt   string `json:"excerpt"`
			Rationale string `json:"rationale"`
		} `json:"results"`
	}
	if err := json.Unmarshal([]byte(doc), &parsed); err != nil {
		return nil, &internal.ParseError{Judge: "factcheck", Detail: "malformed verification response", Err: err}
	}
	if len(parsed.Results) != len(claims) {
		return nil, &internal.ParseError{
			Judge:  "factcheck",
			Detail: fmt.Sprintf("verified %d claims, expected %d", len(parsed.Results), len(claims)),
		}
	}

	out := make([]Claim, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		out = append(out, Claim{
			Text:      r.Claim,
			Verified:  r.Verified,
			Excerpt:   r.Excerpt,
			Rationale: r.Rationale,
		})
	}
	return out, nil
}
