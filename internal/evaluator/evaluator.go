// Package evaluator invokes an external scoring model against content and
// maps the structured response onto the active rubric. It is the only place
// where untyped model payloads exist; everything past this boundary is the
// fixed CriterionEvaluation shape or a ParseError.
package evaluator

import (
	"context"
	"time"

	"github.com/mkoval/refinex/internal"
	"github.com/mkoval/refinex/internal/rubric"
)

// EvalConfig selects the model and profile for one evaluation pass.
// Sampling temperature is fixed at 0 by every adapter for determinism and is
// deliberately not configurable.
type EvalConfig struct {
	Model     string        `mapstructure:"model" json:"model"`
	BaseURL   string        `mapstructure:"base_url" json:"base_url"`
	APIKey    string        `mapstructure:"api_key" json:"api_key"`
	Timeout   time.Duration `mapstructure:"timeout" json:"timeout"`
	MaxTokens int           `mapstructure:"max_tokens" json:"max_tokens"`

	// Fast selects the shorter-context profile used by the cascade's first
	// pass: level ladders are omitted from the prompt and reasoning is kept
	// brief.
	Fast bool `mapstructure:"fast" json:"fast"`
}

// Gateway is one scoring capability. Evaluate returns exactly one
// CriterionEvaluation per rubric criterion, in rubric order, or an error:
// *internal.ParseError when the payload cannot be mapped to the rubric,
// *internal.ExternalCallError for transport failures. It never retries
// internally; retry policy belongs to the caller-side wrapper.
type Gateway interface {
	Name() string
	Evaluate(ctx context.Context, content string, r *rubric.Rubric, cfg EvalConfig) ([]internal.CriterionEvaluation, error)
}
