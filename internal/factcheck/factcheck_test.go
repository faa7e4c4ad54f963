package factcheck

import (
	"context"
	"errors"
	"testing"

	"github.com/mkoval/refinex/internal"
	"github.com/mkoval/refinex/internal/entropy"
)

type mockChecker struct {
	extractFunc func(ctx context.Context, passages []string) ([]string, error)
	verifyFunc  func(ctx context.Context, claims, references []string) ([]Claim, error)
	extractions int
	checks      int
}

func (m *mockChecker) ExtractClaims(ctx context.Context, passages []string) ([]string, error) {
	m.extractions++
	if m.extractFunc != nil {
		return m.extractFunc(ctx, passages)
	}
	return []string{"claim one", "claim two"}, nil
}

func (m *mockChecker) VerifyClaims(ctx context.Context, claims, references []string) ([]Claim, error) {
	m.checks++
	if m.verifyFunc != nil {
		return m.verifyFunc(ctx, claims, references)
	}
	out := make([]Claim, len(claims))
	for i, c := range claims {
		out[i] = Claim{Text: c, Verified: true, Excerpt: "ref", Rationale: "supported"}
	}
	return out, nil
}

func flaggedAnalysis() *entropy.Analysis {
	return &entropy.Analysis{
		Score: 1.2,
		Risk:  entropy.RiskMedium,
		Windows: []entropy.Window{
			{Passage: "Studies show everything works.", Flagged: true},
		},
		RequiresVerification: true,
	}
}

func TestGate_AllVerified(t *testing.T) {
	g := NewGate(&mockChecker{})

	res, err := g.Check(context.Background(), flaggedAnalysis(), []string{"the reference text"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Passed {
		t.Error("expected pass when all claims verify")
	}
	if res.Confidence != 1.0 {
		t.Errorf("expected confidence 1.0, got %g", res.Confidence)
	}
	if res.EntropyScore != 1.2 {
		t.Errorf("expected entropy passthrough 1.2, got %g", res.EntropyScore)
	}
}

func TestGate_BelowThresholdFails(t *testing.T) {
	checker := &mockChecker{
		extractFunc: func(ctx context.Context, passages []string) ([]string, error) {
			return []string{"a", "b", "c", "d"}, nil
		},
		verifyFunc: func(ctx context.Context, claims, references []string) ([]Claim, error) {
			out := make([]Claim, len(claims))
			for i, c := range claims {
				out[i] = Claim{Text: c, Verified: i < 2, Rationale: "checked"}
			}
			return out, nil
		},
	}
	g := NewGate(checker)

	res, err := g.Check(context.Background(), flaggedAnalysis(), []string{"ref"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Passed {
		t.Error("2/4 verified must fail the 0.75 threshold")
	}
	if res.Confidence != 0.5 {
		t.Errorf("expected confidence 0.5, got %g", res.Confidence)
	}
	if len(res.UnverifiedClaims) != 2 {
		t.Errorf("expected 2 unverified claims, got %d", len(res.UnverifiedClaims))
	}
}

func TestGate_ExactThresholdPasses(t *testing.T) {
	checker := &mockChecker{
		extractFunc: func(ctx context.Context, passages []string) ([]string, error) {
			return []string{"a", "b", "c", "d"}, nil
		},
		verifyFunc: func(ctx context.Context, claims, references []string) ([]Claim, error) {
			out := make([]Claim, len(claims))
			for i, c := range claims {
				out[i] = Claim{Text: c, Verified: i < 3}
			}
			return out, nil
		},
	}
	g := NewGate(checker)

	res, err := g.Check(context.Background(), flaggedAnalysis(), []string{"ref"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Passed {
		t.Error("3/4 verified equals the threshold and must pass")
	}
}

func TestGate_NoContext(t *testing.T) {
	checker := &mockChecker{}
	g := NewGate(checker)

	res, err := g.Check(context.Background(), flaggedAnalysis(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.NoContext {
		t.Error("expected no-context mode")
	}
	if !res.Passed {
		t.Error("no-context is a recorded low-confidence pass, not a failure")
	}
	if res.Confidence != 0.5 {
		t.Errorf("expected confidence 0.5, got %g", res.Confidence)
	}
	if len(res.UnverifiedClaims) != 2 {
		t.Errorf("expected every claim unverified, got %d", len(res.UnverifiedClaims))
	}
	for _, c := range res.Claims {
		if c.Rationale != "no reference context available" {
			t.Errorf("expected explicit no-context rationale, got %q", c.Rationale)
		}
	}
	if checker.checks != 0 {
		t.Error("verification must not be attempted without references")
	}
}

func TestGate_NothingFlagged(t *testing.T) {
	checker := &mockChecker{}
	g := NewGate(checker)

	analysis := &entropy.Analysis{Score: 2.0, Risk: entropy.RiskMedium, RequiresVerification: true}

	res, err := g.Check(context.Background(), analysis, []string{"ref"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Passed || res.Confidence != 1.0 {
		t.Error("no flagged passages means nothing to verify")
	}
	if checker.extractions != 0 {
		t.Error("extraction must only run over flagged passages")
	}
}

func TestGate_ExtractionFailure(t *testing.T) {
	checker := &mockChecker{
		extractFunc: func(ctx context.Context, passages []string) ([]string, error) {
			return nil, &internal.ExternalCallError{Op: "claim extraction", Err: errors.New("timeout")}
		},
	}
	g := NewGate(checker)

	_, err := g.Check(context.Background(), flaggedAnalysis(), []string{"ref"})
	if err == nil {
		t.Fatal("expected error")
	}
	var extErr *internal.ExternalCallError
	if !errors.As(err, &extErr) {
		t.Errorf("expected wrapped ExternalCallError, got %T", err)
	}
}
