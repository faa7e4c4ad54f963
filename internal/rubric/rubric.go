// Package rubric defines the weighted multi-criterion scoring model used by
// every evaluator pass. A rubric is immutable at evaluation time and safe to
// share across concurrent judges.
package rubric

import (
	"fmt"
	"math"

	"github.com/mkoval/refinex/internal"
)

// weightSumTolerance is the allowed deviation of the criterion weight sum
// from 1.0.
const weightSumTolerance = 1e-6

// DefaultPassingThreshold is the per-criterion score below which a fix
// recommendation is generated.
const DefaultPassingThreshold = 0.75

// WeightClass expresses how much a criterion matters relative to the others.
type WeightClass string

const (
	ClassCritical WeightClass = "critical"
	ClassHigh     WeightClass = "high"
	ClassMedium   WeightClass = "medium"
	ClassLow      WeightClass = "low"
)

// Multiplier converts a weight class to its numeric factor.
func (c WeightClass) Multiplier() float64 {
	switch c {
	case ClassCritical:
		return 2.0
	case ClassHigh:
		return 1.5
	case ClassMedium:
		return 1.0
	case ClassLow:
		return 0.5
	}
	return 0
}

func (c WeightClass) valid() bool {
	switch c {
	case ClassCritical, ClassHigh, ClassMedium, ClassLow:
		return true
	}
	return false
}

// Criterion is one scoring dimension of a rubric. Levels describe the 1-5
// ordinal ladder shown to evaluators.
type Criterion struct {
	ID          string         `yaml:"id" json:"id"`
	Description string         `yaml:"description" json:"description"`
	Weight      float64        `yaml:"weight" json:"weight"`
	Class       WeightClass    `yaml:"class" json:"class"`
	Levels      map[int]string `yaml:"levels,omitempty" json:"levels,omitempty"`
	Remedy      string         `yaml:"remedy,omitempty" json:"remedy,omitempty"`
}

// Rubric is an ordered, versioned set of criteria whose weights sum to 1.0.
type Rubric struct {
	Version          string      `yaml:"version" json:"version"`
	PassingThreshold float64     `yaml:"passing_threshold" json:"passing_threshold"`
	Criteria         []Criterion `yaml:"criteria" json:"criteria"`
}

// Validate checks the structural invariants. Violations are configuration
// errors and must be rejected before any evaluation runs.
func (r *Rubric) Validate() error {
	if len(r.Criteria) == 0 {
		return &internal.ConfigError{Field: "criteria", Reason: "rubric has no criteria"}
	}
	if r.PassingThreshold <= 0 || r.PassingThreshold > 1 {
		return &internal.ConfigError{
			Field:  "passing_threshold",
			Reason: fmt.Sprintf("must be in (0,1], got %g", r.PassingThreshold),
		}
	}

	sum := 0.0
	seen := make(map[string]bool, len(r.Criteria))
	for _, c := range r.Criteria {
		if c.ID == "" {
			return &internal.ConfigError{Field: "criteria", Reason: "criterion with empty id"}
		}
		if seen[c.ID] {
			return &internal.ConfigError{Field: "criteria", Reason: "duplicate criterion id " + c.ID}
		}
		seen[c.ID] = true
		if c.Weight <= 0 {
			return &internal.ConfigError{
				Field:  "criteria." + c.ID + ".weight",
				Reason: fmt.Sprintf("must be positive, got %g", c.Weight),
			}
		}
		if !c.Class.valid() {
			return &internal.ConfigError{
				Field:  "criteria." + c.ID + ".class",
				Reason: fmt.Sprintf("unknown weight class %q", c.Class),
			}
		}
		sum += c.Weight
	}
	if math.Abs(sum-1.0) > weightSumTolerance {
		return &internal.ConfigError{
			Field:  "criteria",
			Reason: fmt.Sprintf("weights sum to %g, want 1.0", sum),
		}
	}
	return nil
}

// Criterion returns the criterion with the given id.
func (r *Rubric) Criterion(id string) (*Criterion, bool) {
	for i := range r.Criteria {
		if r.Criteria[i].ID == id {
			return &r.Criteria[i], true
		}
	}
	return nil, false
}

// WeightedScore computes the rubric-weighted overall score from a
// criterion-id → normalized-score map. Criteria absent from the map
// contribute zero.
func (r *Rubric) WeightedScore(scores map[string]float64) float64 {
	total := 0.0
	for _, c := range r.Criteria {
		total += c.Weight * scores[c.ID]
	}
	return total
}

// Overall computes the weighted overall score of one evaluation pass.
func (r *Rubric) Overall(evals []internal.CriterionEvaluation) float64 {
	scores := make(map[string]float64, len(evals))
	for _, e := range evals {
		scores[e.CriterionID] = e.Score
	}
	return r.WeightedScore(scores)
}

// Default returns the built-in content-quality rubric used when no rubric
// file is supplied.
func Default() *Rubric {
	return &Rubric{
		Version:          "content-quality-v1",
		PassingThreshold: DefaultPassingThreshold,
		Criteria: []Criterion{
			{
				ID:          "factual_accuracy",
				Description: "Statements are correct and supportable; no invented facts, figures, or citations.",
				Weight:      0.30,
				Class:       ClassCritical,
				Remedy:      "Correct or remove unsupported statements; qualify claims that cannot be verified.",
				Levels: map[int]string{
					1: "Multiple fabricated or contradicted statements.",
					2: "Several questionable claims without support.",
					3: "Mostly accurate with isolated unsupported details.",
					4: "Accurate; minor imprecision only.",
					5: "Fully accurate and verifiable throughout.",
				},
			},
			{
				ID:          "objective_alignment",
				Description: "Content addresses the stated objectives and stays on scope.",
				Weight:      0.25,
				Class:       ClassHigh,
				Remedy:      "Re-anchor each section to the stated objectives; remove off-scope material.",
				Levels: map[int]string{
					1: "Objectives ignored.",
					2: "Objectives only partially addressed.",
					3: "All objectives touched, unevenly.",
					4: "Objectives covered with minor gaps.",
					5: "Every objective fully and proportionately covered.",
				},
			},
			{
				ID:          "clarity",
				Description: "Explanations are unambiguous and readable for the intended audience.",
				Weight:      0.20,
				Class:       ClassHigh,
				Remedy:      "Simplify dense passages, define jargon on first use, shorten overlong sentences.",
				Levels: map[int]string{
					1: "Largely incomprehensible.",
					2: "Frequent ambiguity or jargon.",
					3: "Understandable with effort.",
					4: "Clear with occasional rough spots.",
					5: "Consistently clear and precise.",
				},
			},
			{
				ID:          "structure",
				Description: "Material is logically ordered with coherent transitions.",
				Weight:      0.15,
				Class:       ClassMedium,
				Remedy:      "Reorder sections into a logical progression and add connecting transitions.",
				Levels: map[int]string{
					1: "No discernible organization.",
					2: "Ordering hinders comprehension.",
					3: "Acceptable ordering, weak transitions.",
					4: "Good flow with minor jumps.",
					5: "Ideal progression and transitions.",
				},
			},
			{
				ID:          "engagement",
				Description: "Tone and examples hold the reader's attention.",
				Weight:      0.10,
				Class:       ClassLow,
				Remedy:      "Add concrete examples and vary sentence rhythm; trim filler.",
				Levels: map[int]string{
					1: "Flat and repetitive throughout.",
					2: "Rarely engaging.",
					3: "Serviceable but dry.",
					4: "Engaging in most sections.",
					5: "Compelling throughout.",
				},
			},
		},
	}
}
