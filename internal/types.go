package internal

import "time"

// Decision is the action the engine recommends for a piece of content.
type Decision string

const (
	DecisionAccept     Decision = "accept"
	DecisionFix        Decision = "fix"
	DecisionRegenerate Decision = "regenerate"
	DecisionEscalate   Decision = "escalate"
)

// Priority orders fix recommendations from most to least urgent.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Rank returns the sort rank of a priority; lower sorts first.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	default:
		return 3
	}
}

// CriterionEvaluation is one evaluator's verdict for one rubric criterion.
// Created once per pass per criterion and never mutated.
type CriterionEvaluation struct {
	CriterionID string   `json:"criterion_id"`
	Score       float64  `json:"score"` // normalized to [0,1]
	Level       int      `json:"level"` // raw ordinal level, 1-5
	Confidence  float64  `json:"confidence"`
	Reasoning   string   `json:"reasoning"`
	Issues      []string `json:"issues,omitempty"`
}

// VotingMetadata records how a consensus vote arrived at its scores.
type VotingMetadata struct {
	JudgeCount         int       `json:"judge_count"`
	AgreementLevel     float64   `json:"agreement_level"`
	IndividualScores   []float64 `json:"individual_scores"`
	RequiredTiebreaker bool      `json:"required_tiebreaker"`
}

// FixRecommendation tells the revision producer what to repair and what to
// leave alone.
type FixRecommendation struct {
	CriterionID      string   `json:"criterion_id"`
	Priority         Priority `json:"priority"`
	Issue            string   `json:"issue"`
	Remedy           string   `json:"remedy"`
	PreservedContext []string `json:"preserved_context,omitempty"`
}

// HallucinationCheck annotates a Verdict with the entropy estimate and, when
// the verification gate fired, the fact-check outcome. RAGVerificationPassed
// defaults to true when the gate never ran.
type HallucinationCheck struct {
	EntropyScore          float64  `json:"entropy_score"`
	Risk                  string   `json:"risk"`
	FlaggedPassages       []string `json:"flagged_passages,omitempty"`
	RAGVerificationPassed bool     `json:"rag_verification_passed"`
	VerificationRan       bool     `json:"verification_ran"`
	Confidence            float64  `json:"confidence,omitempty"`
	UnverifiedClaims      []string `json:"unverified_claims,omitempty"`
	NoContext             bool     `json:"no_context,omitempty"`
}

// Verdict is the complete output of one evaluation pass. It is immutable
// once produced; each refinement iteration creates a new one.
type Verdict struct {
	ID               string                `json:"id"`
	ContentID        string                `json:"content_id,omitempty"`
	RubricVersion    string                `json:"rubric_version"`
	Evaluations      []CriterionEvaluation `json:"evaluations"`
	OverallScore     float64               `json:"overall_score"`
	Decision         Decision              `json:"decision"`
	Confidence       float64               `json:"confidence"`
	Voting           *VotingMetadata       `json:"voting,omitempty"`
	Hallucination    *HallucinationCheck   `json:"hallucination,omitempty"`
	Fixes            []FixRecommendation   `json:"fixes,omitempty"`
	ReasoningSummary string                `json:"reasoning_summary,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
}
