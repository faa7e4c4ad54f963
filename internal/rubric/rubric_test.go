package rubric

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/mkoval/refinex/internal"
)

func equalWeightRubric(n int) *Rubric {
	r := &Rubric{Version: "test-v1", PassingThreshold: 0.75}
	w := 1.0 / float64(n)
	for i := 0; i < n; i++ {
		r.Criteria = append(r.Criteria, Criterion{
			ID:     string(rune('a' + i)),
			Weight: w,
			Class:  ClassMedium,
		})
	}
	return r
}

func TestValidate_Default(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default rubric should validate: %v", err)
	}
}

func TestValidate_WeightSum(t *testing.T) {
	r := equalWeightRubric(5)
	if err := r.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r.Criteria[0].Weight = 0.3 // sum now 1.1
	err := r.Validate()
	if err == nil {
		t.Fatal("expected error for weights not summing to 1.0")
	}
	var cfgErr *internal.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("expected ConfigError, got %T", err)
	}
}

func TestValidate_WeightSumTolerance(t *testing.T) {
	// 3 × (1/3) does not sum to exactly 1.0 in floating point.
	r := equalWeightRubric(3)
	if err := r.Validate(); err != nil {
		t.Errorf("sum within 1e-6 of 1.0 should pass: %v", err)
	}
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Rubric)
	}{
		{"empty criteria", func(r *Rubric) { r.Criteria = nil }},
		{"duplicate id", func(r *Rubric) { r.Criteria[1].ID = r.Criteria[0].ID }},
		{"zero weight", func(r *Rubric) {
			r.Criteria[0].Weight = 0
			r.Criteria[1].Weight += 0.2
		}},
		{"bad class", func(r *Rubric) { r.Criteria[0].Class = "urgent" }},
		{"bad threshold", func(r *Rubric) { r.PassingThreshold = 1.5 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := equalWeightRubric(5)
			tc.mutate(r)
			err := r.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			var cfgErr *internal.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Errorf("expected ConfigError, got %T", err)
			}
		})
	}
}

func TestWeightedScore(t *testing.T) {
	r := equalWeightRubric(5)
	scores := map[string]float64{"a": 1.0, "b": 0.5, "c": 0.5, "d": 0.5, "e": 0.5}

	got := r.WeightedScore(scores)
	if math.Abs(got-0.6) > 1e-9 {
		t.Errorf("expected 0.6, got %g", got)
	}
}

func TestOverall_MatchesWeightedSum(t *testing.T) {
	r := Default()
	var evals []internal.CriterionEvaluation
	want := 0.0
	for i, c := range r.Criteria {
		score := 0.2 * float64(i+1)
		if score > 1 {
			score = 1
		}
		evals = append(evals, internal.CriterionEvaluation{CriterionID: c.ID, Score: score})
		want += c.Weight * score
	}

	got := r.Overall(evals)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("overall %g does not equal weighted sum %g", got, want)
	}
}

func TestWeightClassMultiplier(t *testing.T) {
	if ClassCritical.Multiplier() <= ClassHigh.Multiplier() {
		t.Error("critical must outweigh high")
	}
	if ClassHigh.Multiplier() <= ClassMedium.Multiplier() {
		t.Error("high must outweigh medium")
	}
	if ClassMedium.Multiplier() <= ClassLow.Multiplier() {
		t.Error("medium must outweigh low")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rubric.yaml")
	yaml := `version: file-v1
passing_threshold: 0.7
criteria:
  - id: accuracy
    description: statements are correct
    weight: 0.6
    class: critical
  - id: clarity
    description: text is readable
    weight: 0.4
    class: medium
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Version != "file-v1" {
		t.Errorf("expected version file-v1, got %q", r.Version)
	}
	if len(r.Criteria) != 2 {
		t.Errorf("expected 2 criteria, got %d", len(r.Criteria))
	}
}

func TestLoad_InvalidWeights(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rubric.yaml")
	yaml := `version: bad-v1
criteria:
  - id: accuracy
    weight: 0.9
    class: critical
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected ConfigError for weight sum 0.9")
	}
}
