// Package refine drives the bounded self-refinement loop: evaluate, apply
// the top fix recommendations through a reviser, re-evaluate, and stop on
// acceptance, stagnation, or iteration exhaustion. Regenerate and escalate
// decisions leave the loop immediately for the caller to route.
package refine

import (
	"context"

	"github.com/mkoval/refinex/internal"
	"github.com/mkoval/refinex/internal/cascade"
	"github.com/mkoval/refinex/internal/evaluator"
	"github.com/mkoval/refinex/internal/rubric"
)

// DefaultMaxIterations bounds the revision attempts per piece of content.
const DefaultMaxIterations = 2

// maxFixesPerIteration caps how many recommendations one revision pass
// addresses. The fix list is already sorted by priority, so the cap keeps
// the highest-impact repairs.
const maxFixesPerIteration = 3

// Outcome explains why the loop stopped.
type Outcome string

const (
	// OutcomeAccepted means a verdict reached the accept decision.
	OutcomeAccepted Outcome = "accepted"
	// OutcomeRerouted means the verdict demands regeneration or escalation,
	// which the loop never performs itself.
	OutcomeRerouted Outcome = "rerouted"
	// OutcomeStagnated means a revision failed to improve the score.
	OutcomeStagnated Outcome = "stagnated"
	// OutcomeExhausted means the iteration budget ran out while the decision
	// was still fix.
	OutcomeExhausted Outcome = "exhausted"
	// OutcomeFailed means an evaluation or revision call errored.
	OutcomeFailed Outcome = "failed"
)

// Reviser produces a revised draft addressing the given recommendations
// while preserving the listed context.
type Reviser interface {
	Revise(ctx context.Context, content string, recs []internal.FixRecommendation) (string, error)
}

// Config tunes one refinement loop.
type Config struct {
	MaxIterations int `mapstructure:"max_iterations" json:"max_iterations"`
}

// Loop runs refinement rounds over a cascade controller.
type Loop struct {
	cascade *cascade.Controller
	reviser Reviser
	cfg     Config
}

// New creates a Loop, filling config defaults.
func New(c *cascade.Controller, reviser Reviser, cfg Config) *Loop {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	return &Loop{cascade: c, reviser: reviser, cfg: cfg}
}

// Round records one revision attempt: the overall scores on either side of
// the revision and the recommendations actually handed to the reviser.
type Round struct {
	Before  float64                      `json:"before"`
	After   float64                      `json:"after"`
	Applied []internal.FixRecommendation `json:"applied"`
}

// Result is the loop's final state. Content and Verdict always describe the
// best version seen: a stagnated revision attempt appears in History and
// Rounds but never replaces them.
type Result struct {
	Content    string              `json:"content"`
	Verdict    *internal.Verdict   `json:"verdict"`
	Iterations int                 `json:"iterations"`
	History    []*internal.Verdict `json:"history"`
	Rounds     []Round             `json:"rounds,omitempty"`
	Success    bool                `json:"success"`
	Outcome    Outcome             `json:"outcome"`
}

// Run evaluates the input and revises it until acceptance or a stop
// condition. Every verdict produced along the way, including a rejected
// stagnant attempt, is recorded in History.
func (l *Loop) Run(ctx context.Context, in cascade.Input, r *rubric.Rubric, evalCfg evaluator.EvalConfig) (*Result, error) {
	res := &Result{Content: in.Content}

	v, err := l.cascade.Evaluate(ctx, in, r, evalCfg)
	if err != nil {
		res.Outcome = OutcomeFailed
		return res, err
	}
	res.Verdict = v
	res.History = append(res.History, v)

	for {
		switch v.Decision {
		case internal.DecisionAccept:
			res.Success = true
			res.Outcome = OutcomeAccepted
			return res, nil
		case internal.DecisionRegenerate, internal.DecisionEscalate:
			res.Outcome = OutcomeRerouted
			return res, nil
		}

		if res.Iterations >= l.cfg.MaxIterations {
			res.Outcome = OutcomeExhausted
			return res, nil
		}

		recs := v.Fixes
		if len(recs) > maxFixesPerIteration {
			recs = recs[:maxFixesPerIteration]
		}

		revised, err := l.reviser.Revise(ctx, res.Content, recs)
		if err != nil {
			res.Outcome = OutcomeFailed
			return res, err
		}
		res.Iterations++

		next := in
		next.Content = revised
		nv, err := l.cascade.Evaluate(ctx, next, r, evalCfg)
		if err != nil {
			res.Outcome = OutcomeFailed
			return res, err
		}
		res.History = append(res.History, nv)
		res.Rounds = append(res.Rounds, Round{
			Before:  v.OverallScore,
			After:   nv.OverallScore,
			Applied: recs,
		})

		if nv.OverallScore <= v.OverallScore {
			res.Outcome = OutcomeStagnated
			return res, nil
		}

		res.Content = revised
		res.Verdict = nv
		v = nv
	}
}
