// Package consensus reduces single-evaluator variance by voting: two
// independent judge passes run concurrently, and a third tie-breaking pass
// is dispatched only when the first two disagree beyond tolerance.
package consensus

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mkoval/refinex/internal"
	"github.com/mkoval/refinex/internal/evaluator"
	"github.com/mkoval/refinex/internal/rubric"
)

// Defaults for the voting protocol. Tolerance and spread are empirical
// constants carried as configuration, not invariants.
const (
	DefaultTolerance = 0.15
	DefaultSpread    = 0.5

	// tiebreakerPenalty discounts confidence when a third judge was needed.
	tiebreakerPenalty = 0.9
)

// Config tunes one voting controller.
type Config struct {
	// Tolerance is the maximum |score1 - score2| at which two judges agree.
	Tolerance float64 `mapstructure:"tolerance" json:"tolerance"`
	// Spread is the theoretical maximum stddev used to normalize the
	// agreement level on a [0,1] score scale.
	Spread float64 `mapstructure:"spread" json:"spread"`
	// PassTimeout bounds each individual judge pass. Zero means the caller's
	// context deadline applies alone.
	PassTimeout time.Duration `mapstructure:"pass_timeout" json:"pass_timeout"`
}

// Pass is one judge's complete result.
type Pass struct {
	Judge        string                         `json:"judge"`
	Evaluations  []internal.CriterionEvaluation `json:"evaluations"`
	OverallScore float64                        `json:"overall_score"`
}

// Result is the aggregated outcome of a voting round.
type Result struct {
	Evaluations        []internal.CriterionEvaluation `json:"evaluations"`
	OverallScore       float64                        `json:"overall_score"`
	AgreementLevel     float64                        `json:"agreement_level"`
	Confidence         float64                        `json:"confidence"`
	RequiredTiebreaker bool                           `json:"required_tiebreaker"`
	Passes             []Pass                         `json:"passes"`
}

// IndividualScores returns the overall score of every participating pass.
func (r *Result) IndividualScores() []float64 {
	scores := make([]float64, len(r.Passes))
	for i, p := range r.Passes {
		scores[i] = p.OverallScore
	}
	return scores
}

// Controller runs voting rounds against a single gateway.
type Controller struct {
	gateway evaluator.Gateway
	cfg     Config
}

// New creates a Controller, filling config defaults.
func New(gateway evaluator.Gateway, cfg Config) *Controller {
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultTolerance
	}
	if cfg.Spread <= 0 {
		cfg.Spread = DefaultSpread
	}
	return &Controller{gateway: gateway, cfg: cfg}
}

// Evaluate runs the voting protocol. The two initial passes run
// concurrently; aggregation never begins until every dispatched pass has
// returned. A failure or timeout on any pass aborts the whole round — there
// is no partial aggregation over fewer passes than were dispatched.
func (c *Controller) Evaluate(ctx context.Context, content string, r *rubric.Rubric, evalCfg evaluator.EvalConfig) (*Result, error) {
	passes := make([]Pass, 2)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 2; i++ {
		i := i
		judge := fmt.Sprintf("judge-%d", i+1)
		g.Go(func() error {
			p, err := c.runPass(gctx, judge, content, r, evalCfg)
			if err != nil {
				return err
			}
			passes[i] = *p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("voting round aborted: %w", err)
	}

	result := &Result{Passes: passes}

	if math.Abs(passes[0].OverallScore-passes[1].OverallScore) > c.cfg.Tolerance {
		// The tiebreaker runs only after both initial passes completed and
		// disagreement is confirmed.
		third, err := c.runPass(ctx, "judge-3", content, r, evalCfg)
		if err != nil {
			return nil, fmt.Errorf("voting round aborted: %w", err)
		}
		result.Passes = append(result.Passes, *third)
		result.RequiredTiebreaker = true
	}

	result.Evaluations = aggregate(r, result.Passes)
	result.OverallScore = r.Overall(result.Evaluations)
	result.AgreementLevel = agreementLevel(result.IndividualScores(), c.cfg.Spread)
	result.Confidence = result.AgreementLevel
	if result.RequiredTiebreaker {
		result.Confidence *= tiebreakerPenalty
	}
	return result, nil
}

func (c *Controller) runPass(ctx context.Context, judge, content string, r *rubric.Rubric, evalCfg evaluator.EvalConfig) (*Pass, error) {
	if c.cfg.PassTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.PassTimeout)
		defer cancel()
	}

	evals, err := c.gateway.Evaluate(ctx, content, r, evalCfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", judge, err)
	}
	return &Pass{
		Judge:        judge,
		Evaluations:  evals,
		OverallScore: r.Overall(evals),
	}, nil
}

// aggregate computes the arithmetic mean per criterion across all passes
// that ran, in rubric order. Issues are pooled; reasoning is left to the
// verdict summary.
func aggregate(r *rubric.Rubric, passes []Pass) []internal.CriterionEvaluation {
	out := make([]internal.CriterionEvaluation, 0, len(r.Criteria))
	for _, c := range r.Criteria {
		var scoreSum, confSum, levelSum float64
		var issues []string
		seen := make(map[string]bool)

		n := 0
		for _, p := range passes {
			for _, e := range p.Evaluations {
				if e.CriterionID != c.ID {
					continue
				}
				scoreSum += e.Score
				confSum += e.Confidence
				levelSum += float64(e.Level)
				for _, issue := range e.Issues {
					if !seen[issue] {
						seen[issue] = true
						issues = append(issues, issue)
					}
				}
				n++
			}
		}
		if n == 0 {
			continue
		}

		out = append(out, internal.CriterionEvaluation{
			CriterionID: c.ID,
			Score:       scoreSum / float64(n),
			Level:       int(math.Round(levelSum / float64(n))),
			Confidence:  confSum / float64(n),
			Issues:      issues,
		})
	}
	return out
}

// agreementLevel maps the population stddev of the overall scores to [0,1]:
// 1 − min(1, stddev/spread).
func agreementLevel(scores []float64, spread float64) float64 {
	if len(scores) < 2 {
		return 1
	}

	mean := 0.0
	for _, s := range scores {
		mean += s
	}
	mean /= float64(len(scores))

	variance := 0.0
	for _, s := range scores {
		d := s - mean
		variance += d * d
	}
	variance /= float64(len(scores))

	stddev := math.Sqrt(variance)
	return 1 - math.Min(1, stddev/spread)
}
