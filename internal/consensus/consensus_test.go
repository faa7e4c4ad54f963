package consensus

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/mkoval/refinex/internal"
	"github.com/mkoval/refinex/internal/evaluator"
	"github.com/mkoval/refinex/internal/rubric"
)

func fiveEqualCriteria() *rubric.Rubric {
	return &rubric.Rubric{
		Version:          "test-v1",
		PassingThreshold: 0.75,
		Criteria: []rubric.Criterion{
			{ID: "c1", Weight: 0.2, Class: rubric.ClassMedium},
			{ID: "c2", Weight: 0.2, Class: rubric.ClassMedium},
			{ID: "c3", Weight: 0.2, Class: rubric.ClassMedium},
			{ID: "c4", Weight: 0.2, Class: rubric.ClassMedium},
			{ID: "c5", Weight: 0.2, Class: rubric.ClassMedium},
		},
	}
}

// flatEvals scores every criterion of r at the same value, so the pass's
// overall score equals that value.
func flatEvals(r *rubric.Rubric, score float64) []internal.CriterionEvaluation {
	evals := make([]internal.CriterionEvaluation, 0, len(r.Criteria))
	for _, c := range r.Criteria {
		evals = append(evals, internal.CriterionEvaluation{
			CriterionID: c.ID,
			Score:       score,
			Level:       1 + int(score*4+0.5),
			Confidence:  0.9,
		})
	}
	return evals
}

// scriptedGateway hands out one prepared response per call, in order. The
// two initial judges race for the first two responses, which is fine for
// tests whose aggregation is symmetric in the judge order.
type scriptedGateway struct {
	responses [][]internal.CriterionEvaluation
	errs      []error
	next      atomic.Int32
}

func (s *scriptedGateway) Name() string { return "scripted" }

func (s *scriptedGateway) Evaluate(ctx context.Context, content string, r *rubric.Rubric, cfg evaluator.EvalConfig) ([]internal.CriterionEvaluation, error) {
	i := int(s.next.Add(1)) - 1
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i >= len(s.responses) {
		return nil, errors.New("scripted gateway exhausted")
	}
	return s.responses[i], nil
}

func TestEvaluate_Agreement(t *testing.T) {
	r := fiveEqualCriteria()
	gw := &scriptedGateway{responses: [][]internal.CriterionEvaluation{
		flatEvals(r, 0.80),
		flatEvals(r, 0.82),
	}}

	c := New(gw, Config{})
	res, err := c.Evaluate(context.Background(), "content", r, evaluator.EvalConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// diff 0.02 ≤ 0.15: no third pass.
	if res.RequiredTiebreaker {
		t.Error("agreement within tolerance must not dispatch a tiebreaker")
	}
	if got := gw.next.Load(); got != 2 {
		t.Errorf("expected exactly 2 judge passes, got %d", got)
	}
	if len(res.Passes) != 2 {
		t.Errorf("expected 2 recorded passes, got %d", len(res.Passes))
	}
	if math.Abs(res.OverallScore-0.81) > 1e-9 {
		t.Errorf("expected aggregated score 0.81, got %g", res.OverallScore)
	}
	if res.Confidence != res.AgreementLevel {
		t.Error("no tiebreaker: confidence must equal agreement level")
	}
}

func TestEvaluate_TiebreakerFires(t *testing.T) {
	r := fiveEqualCriteria()
	gw := &scriptedGateway{responses: [][]internal.CriterionEvaluation{
		flatEvals(r, 0.90),
		flatEvals(r, 0.60),
		flatEvals(r, 0.75),
	}}

	c := New(gw, Config{})
	res, err := c.Evaluate(context.Background(), "content", r, evaluator.EvalConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// diff 0.30 > 0.15: exactly one third pass, included in aggregation.
	if !res.RequiredTiebreaker {
		t.Error("expected tiebreaker to fire")
	}
	if got := gw.next.Load(); got != 3 {
		t.Errorf("expected exactly 3 judge passes, got %d", got)
	}
	if math.Abs(res.OverallScore-0.75) > 1e-9 {
		t.Errorf("expected per-criterion mean of {0.90,0.60,0.75} = 0.75, got %g", res.OverallScore)
	}
	if res.Passes[2].Judge != "judge-3" {
		t.Errorf("expected judge-3 label on the tiebreaker, got %q", res.Passes[2].Judge)
	}
	want := res.AgreementLevel * tiebreakerPenalty
	if math.Abs(res.Confidence-want) > 1e-9 {
		t.Errorf("expected confidence %g after tiebreaker penalty, got %g", want, res.Confidence)
	}
}

func TestEvaluate_AgreementLevelFormula(t *testing.T) {
	r := fiveEqualCriteria()
	gw := &scriptedGateway{responses: [][]internal.CriterionEvaluation{
		flatEvals(r, 0.80),
		flatEvals(r, 0.82),
	}}

	c := New(gw, Config{})
	res, err := c.Evaluate(context.Background(), "content", r, evaluator.EvalConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Population stddev of {0.80, 0.82} is 0.01; 1 − 0.01/0.5 = 0.98.
	if math.Abs(res.AgreementLevel-0.98) > 1e-9 {
		t.Errorf("expected agreement level 0.98, got %g", res.AgreementLevel)
	}
}

func TestEvaluate_PassFailureAbortsVote(t *testing.T) {
	r := fiveEqualCriteria()
	gw := &scriptedGateway{
		responses: [][]internal.CriterionEvaluation{flatEvals(r, 0.80), nil, flatEvals(r, 0.75)},
		errs:      []error{nil, &internal.ExternalCallError{Op: "evaluate", Err: errors.New("timeout")}},
	}

	c := New(gw, Config{})
	res, err := c.Evaluate(context.Background(), "content", r, evaluator.EvalConfig{})
	if err == nil {
		t.Fatal("expected vote abort on pass failure")
	}
	if res != nil {
		t.Error("no partial aggregation: result must be nil")
	}
	var extErr *internal.ExternalCallError
	if !errors.As(err, &extErr) {
		t.Errorf("expected wrapped ExternalCallError, got %T", err)
	}
	if got := gw.next.Load(); got > 2 {
		t.Errorf("failed initial round must not dispatch a tiebreaker, got %d calls", got)
	}
}

func TestEvaluate_TiebreakerFailureAbortsVote(t *testing.T) {
	r := fiveEqualCriteria()
	gw := &scriptedGateway{
		responses: [][]internal.CriterionEvaluation{flatEvals(r, 0.90), flatEvals(r, 0.60), nil},
		errs:      []error{nil, nil, &internal.ParseError{Judge: "scripted", Detail: "gibberish"}},
	}

	c := New(gw, Config{})
	_, err := c.Evaluate(context.Background(), "content", r, evaluator.EvalConfig{})
	if err == nil {
		t.Fatal("expected vote abort when the tiebreaker fails")
	}
	var parseErr *internal.ParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("expected wrapped ParseError, got %T", err)
	}
}

func TestAggregate_MixedCriterionScores(t *testing.T) {
	r := &rubric.Rubric{
		Version:          "mixed-v1",
		PassingThreshold: 0.75,
		Criteria: []rubric.Criterion{
			{ID: "a", Weight: 0.5, Class: rubric.ClassHigh},
			{ID: "b", Weight: 0.5, Class: rubric.ClassMedium},
		},
	}
	passes := []Pass{
		{Judge: "judge-1", Evaluations: []internal.CriterionEvaluation{
			{CriterionID: "a", Score: 1.0, Level: 5, Confidence: 0.9, Issues: []string{"x"}},
			{CriterionID: "b", Score: 0.2, Level: 2, Confidence: 0.8},
		}},
		{Judge: "judge-2", Evaluations: []internal.CriterionEvaluation{
			{CriterionID: "a", Score: 0.6, Level: 3, Confidence: 0.7, Issues: []string{"x", "y"}},
			{CriterionID: "b", Score: 0.4, Level: 3, Confidence: 0.6},
		}},
	}

	evals := aggregate(r, passes)
	if len(evals) != 2 {
		t.Fatalf("expected 2 aggregated evaluations, got %d", len(evals))
	}
	if math.Abs(evals[0].Score-0.8) > 1e-9 {
		t.Errorf("expected mean 0.8 for a, got %g", evals[0].Score)
	}
	if math.Abs(evals[1].Score-0.3) > 1e-9 {
		t.Errorf("expected mean 0.3 for b, got %g", evals[1].Score)
	}
	if len(evals[0].Issues) != 2 {
		t.Errorf("expected deduplicated issue pool of 2, got %v", evals[0].Issues)
	}
}

func TestAgreementLevel_Clamped(t *testing.T) {
	// Extreme disagreement cannot push the level below zero.
	if got := agreementLevel([]float64{0, 1, 0, 1}, 0.5); got != 0 {
		t.Errorf("expected clamp at 0, got %g", got)
	}
	if got := agreementLevel([]float64{0.7}, 0.5); got != 1 {
		t.Errorf("single score should yield full agreement, got %g", got)
	}
}
