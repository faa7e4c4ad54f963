// Package factcheck verifies factual claims in flagged passages against
// supplied reference material. The gate is only invoked when the entropy
// estimator demands verification; it annotates verdicts and never mutates
// content.
package factcheck

import (
	"context"
	"fmt"

	"github.com/mkoval/refinex/internal/entropy"
)

// PassThreshold is the verified-claim ratio at or above which the gate
// passes.
const PassThreshold = 0.75

// noContextConfidence is reported when no reference material is available
// and claims cannot be checked at all.
const noContextConfidence = 0.5

// Claim is one verifiable assertion and its verification outcome.
type Claim struct {
	Text      string `json:"text"`
	Verified  bool   `json:"verified"`
	Excerpt   string `json:"excerpt,omitempty"`
	Rationale string `json:"rationale,omitempty"`
}

// Checker is the external LLM capability behind the gate: claim extraction
// from flagged passages and batched verification against references. Both
// calls run at temperature 0.
type Checker interface {
	ExtractClaims(ctx context.Context, passages []string) ([]string, error)
	VerifyClaims(ctx context.Context, claims, references []string) ([]Claim, error)
}

// Result is the gate's annotation for one verdict.
type Result struct {
	Passed           bool     `json:"passed"`
	Confidence       float64  `json:"confidence"`
	EntropyScore     float64  `json:"entropy_score"`
	FlaggedPassages  []string `json:"flagged_passages,omitempty"`
	Claims           []Claim  `json:"claims,omitempty"`
	UnverifiedClaims []string `json:"unverified_claims,omitempty"`
	NoContext        bool     `json:"no_context,omitempty"`
}

// Gate runs claim extraction and verification.
type Gate struct {
	checker   Checker
	threshold float64
}

// NewGate creates a gate over the given checker capability.
func NewGate(checker Checker) *Gate {
	return &Gate{checker: checker, threshold: PassThreshold}
}

// Check extracts claims from the analysis' flagged passages and verifies
// them against references. With no references every claim is recorded
// unverified with explicit no-context reasoning and the gate reports a
// low-confidence pass rather than an error.
func (g *Gate) Check(ctx context.Context, analysis *entropy.Analysis, references []string) (*Result, error) {
	result := &Result{
		EntropyScore:    analysis.Score,
		FlaggedPassages: analysis.FlaggedPassages(),
	}

	// Claims come from flagged passages only; elevated risk with nothing
	// flagged leaves nothing to verify.
	if len(result.FlaggedPassages) == 0 {
		result.Passed = true
		result.Confidence = 1.0
		return result, nil
	}

	claims, err := g.checker.ExtractClaims(ctx, result.FlaggedPassages)
	if err != nil {
		return nil, fmt.Errorf("claim extraction failed: %w", err)
	}
	if len(claims) == 0 {
		result.Passed = true
		result.Confidence = 1.0
		return result, nil
	}

	if len(references) == 0 {
		for _, c := range claims {
			result.Claims = append(result.Claims, Claim{
				Text:      c,
				Verified:  false,
				Rationale: "no reference context available",
			})
			result.UnverifiedClaims = append(result.UnverifiedClaims, c)
		}
		result.Passed = true
		result.Confidence = noContextConfidence
		result.NoContext = true
		return result, nil
	}

	verified, err := g.checker.VerifyClaims(ctx, claims, references)
	if err != nil {
		return nil, fmt.Errorf("claim verification failed: %w", err)
	}

	verifiedCount := 0
	for _, c := range verified {
		result.Claims = append(result.Claims, c)
		if c.Verified {
			verifiedCount++
		} else {
			result.UnverifiedClaims = append(result.UnverifiedClaims, c.Text)
		}
	}

	result.Confidence = float64(verifiedCount) / float64(len(verified))
	result.Passed = result.Confidence >= g.threshold
	return result, nil
}
