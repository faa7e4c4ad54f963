// Package cascade runs the tiered evaluation pipeline: a cheap fast pass
// first, full consensus voting only when the fast score lands too close to a
// decision boundary to be trusted, then decision, hallucination annotation,
// and fix generation assembled into one verdict.
package cascade

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/mkoval/refinex/internal"
	"github.com/mkoval/refinex/internal/consensus"
	"github.com/mkoval/refinex/internal/decision"
	"github.com/mkoval/refinex/internal/entropy"
	"github.com/mkoval/refinex/internal/evaluator"
	"github.com/mkoval/refinex/internal/factcheck"
	"github.com/mkoval/refinex/internal/fixes"
	"github.com/mkoval/refinex/internal/rubric"
)

// DefaultBorderlineMargin is the distance from any decision threshold within
// which a fast-pass score is considered borderline and escalated to a full
// voting round.
const DefaultBorderlineMargin = 0.05

// fastConfidence is the fixed confidence assigned to a fast-pass score that
// was not escalated. Fast passes skip the level ladders and run a single
// judge, so their confidence is capped rather than model-reported.
const fastConfidence = 0.85

// Config tunes one cascade controller.
type Config struct {
	// BorderlineMargin widens or narrows the escalation band around each
	// decision threshold.
	BorderlineMargin float64 `mapstructure:"borderline_margin" json:"borderline_margin"`
}

// Input is one piece of content to evaluate, with whatever verification
// signal the caller has available.
type Input struct {
	// ContentID identifies the content across refinement iterations.
	ContentID string
	// Content is the text under evaluation.
	Content string
	// Tokens, when supplied, enables the token-uncertainty entropy strategy.
	Tokens []entropy.Token
	// References is the source material claims are verified against. Empty
	// references downgrade verification to a recorded low-confidence pass.
	References []string
	// Preserved lists context elements a later repair must not disturb.
	Preserved []string
}

// Controller owns the pipeline stages. The fact-check gate is optional; a
// nil gate records the entropy analysis without claim verification.
type Controller struct {
	gateway evaluator.Gateway
	voter   *consensus.Controller
	engine  *decision.Engine
	gate    *factcheck.Gate
	cfg     Config
}

// New assembles a cascade controller, filling config defaults.
func New(gateway evaluator.Gateway, voter *consensus.Controller, engine *decision.Engine, gate *factcheck.Gate, cfg Config) *Controller {
	if cfg.BorderlineMargin <= 0 {
		cfg.BorderlineMargin = DefaultBorderlineMargin
	}
	return &Controller{
		gateway: gateway,
		voter:   voter,
		engine:  engine,
		gate:    gate,
		cfg:     cfg,
	}
}

// Evaluate runs the full cascade and returns an immutable verdict.
func (c *Controller) Evaluate(ctx context.Context, in Input, r *rubric.Rubric, evalCfg evaluator.EvalConfig) (*internal.Verdict, error) {
	fastCfg := evalCfg
	fastCfg.Fast = true

	evals, err := c.gateway.Evaluate(ctx, in.Content, r, fastCfg)
	if err != nil {
		return nil, fmt.Errorf("fast pass failed: %w", err)
	}

	score := r.Overall(evals)
	confidence := fastConfidence
	var voting *internal.VotingMetadata

	if c.borderline(score) {
		// The fast score cannot be trusted this close to a threshold; the
		// voting round replaces it entirely.
		vote, err := c.voter.Evaluate(ctx, in.Content, r, evalCfg)
		if err != nil {
			return nil, err
		}
		evals = vote.Evaluations
		score = vote.OverallScore
		confidence = vote.Confidence
		voting = &internal.VotingMetadata{
			JudgeCount:         len(vote.Passes),
			AgreementLevel:     vote.AgreementLevel,
			IndividualScores:   vote.IndividualScores(),
			RequiredTiebreaker: vote.RequiredTiebreaker,
		}
	}

	dec, justification, next := c.engine.Explain(score)

	hallucination, err := c.checkHallucination(ctx, in)
	if err != nil {
		return nil, err
	}

	var recs []internal.FixRecommendation
	if dec == internal.DecisionFix {
		recs = fixes.New(r).Generate(evals, in.Preserved)
	}

	return &internal.Verdict{
		ID:               uuid.NewString(),
		ContentID:        in.ContentID,
		RubricVersion:    r.Version,
		Evaluations:      evals,
		OverallScore:     score,
		Decision:         dec,
		Confidence:       confidence,
		Voting:           voting,
		Hallucination:    hallucination,
		Fixes:            recs,
		ReasoningSummary: fmt.Sprintf("%s; next: %s", justification, next),
		CreatedAt:        time.Now().UTC(),
	}, nil
}

// borderline reports whether the score lies within the margin of any
// decision threshold.
func (c *Controller) borderline(score float64) bool {
	for _, t := range c.engine.Thresholds().Values() {
		if math.Abs(score-t) <= c.cfg.BorderlineMargin {
			return true
		}
	}
	return false
}

// checkHallucination always records the entropy analysis; claim verification
// runs only when the analysis demands it and a gate is wired.
func (c *Controller) checkHallucination(ctx context.Context, in Input) (*internal.HallucinationCheck, error) {
	analysis := entropy.Analyze(in.Content, in.Tokens)

	hc := &internal.HallucinationCheck{
		EntropyScore:          analysis.Score,
		Risk:                  string(analysis.Risk),
		FlaggedPassages:       analysis.FlaggedPassages(),
		RAGVerificationPassed: true,
	}
	if !analysis.RequiresVerification || c.gate == nil {
		return hc, nil
	}

	res, err := c.gate.Check(ctx, analysis, in.References)
	if err != nil {
		return nil, fmt.Errorf("verification gate failed: %w", err)
	}
	hc.VerificationRan = true
	hc.RAGVerificationPassed = res.Passed
	hc.Confidence = res.Confidence
	hc.UnverifiedClaims = res.UnverifiedClaims
	hc.NoContext = res.NoContext
	return hc, nil
}
