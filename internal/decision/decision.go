// Package decision maps an overall score onto the accept / fix / regenerate
// / escalate action. The mapping is a pure function of the score and the
// configured thresholds.
package decision

import (
	"fmt"

	"github.com/mkoval/refinex/internal"
)

// Default thresholds. Boundaries are closed on the upper side: a score equal
// to a threshold takes the better action.
const (
	DefaultAccept     = 0.85
	DefaultFix        = 0.65
	DefaultRegenerate = 0.50
)

// Thresholds is the ordered threshold set. Validity requires
// 0 < Regenerate < Fix < Accept ≤ 1.
type Thresholds struct {
	Accept     float64 `mapstructure:"accept" json:"accept"`
	Fix        float64 `mapstructure:"fix" json:"fix"`
	Regenerate float64 `mapstructure:"regenerate" json:"regenerate"`
}

// DefaultThresholds returns the standard threshold set.
func DefaultThresholds() Thresholds {
	return Thresholds{Accept: DefaultAccept, Fix: DefaultFix, Regenerate: DefaultRegenerate}
}

// Validate rejects threshold sets violating the required ordering. Called at
// engine construction, never at decision time.
func (t Thresholds) Validate() error {
	if !(0 < t.Regenerate && t.Regenerate < t.Fix && t.Fix < t.Accept && t.Accept <= 1) {
		return &internal.ConfigError{
			Field:  "thresholds",
			Reason: fmt.Sprintf("require 0 < regenerate < fix < accept <= 1, got regenerate=%g fix=%g accept=%g", t.Regenerate, t.Fix, t.Accept),
		}
	}
	return nil
}

// Values returns the thresholds ordered high to low, for borderline checks.
func (t Thresholds) Values() []float64 {
	return []float64{t.Accept, t.Fix, t.Regenerate}
}

// Engine decides the action for a score.
type Engine struct {
	thresholds Thresholds
}

// New builds an Engine, rejecting invalid threshold orderings.
func New(t Thresholds) (*Engine, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &Engine{thresholds: t}, nil
}

// Thresholds returns the engine's threshold set.
func (e *Engine) Thresholds() Thresholds { return e.thresholds }

// Decide maps a score to exactly one decision.
func (e *Engine) Decide(score float64) internal.Decision {
	switch {
	case score >= e.thresholds.Accept:
		return internal.DecisionAccept
	case score >= e.thresholds.Fix:
		return internal.DecisionFix
	case score >= e.thresholds.Regenerate:
		return internal.DecisionRegenerate
	default:
		return internal.DecisionEscalate
	}
}

// Explain decides and additionally returns a human-readable justification
// and the recommended next action, for audit logs.
func (e *Engine) Explain(score float64) (internal.Decision, string, string) {
	d := e.Decide(score)
	switch d {
	case internal.DecisionAccept:
		return d,
			fmt.Sprintf("score %.3f meets the accept threshold %.2f", score, e.thresholds.Accept),
			"publish content as-is"
	case internal.DecisionFix:
		return d,
			fmt.Sprintf("score %.3f is below accept %.2f but at or above fix %.2f", score, e.thresholds.Accept, e.thresholds.Fix),
			"run targeted self-refinement"
	case internal.DecisionRegenerate:
		return d,
			fmt.Sprintf("score %.3f is below fix %.2f but at or above regenerate %.2f", score, e.thresholds.Fix, e.thresholds.Regenerate),
			"discard and regenerate from the original request"
	default:
		return d,
			fmt.Sprintf("score %.3f is below the regenerate threshold %.2f", score, e.thresholds.Regenerate),
			"escalate to manual review"
	}
}
