package evaluator

import (
	"encoding/json"
	"fmt"

	"github.com/mkoval/refinex/internal"
	"github.com/mkoval/refinex/internal/postprocess"
	"github.com/mkoval/refinex/internal/rubric"
)

type wireEvaluation struct {
	CriterionID string   `json:"criterion_id"`
	Level       int      `json:"level"`
	Score       *float64 `json:"score"`
	Confidence  *float64 `json:"confidence"`
	Reasoning   string   `json:"reasoning"`
	Issues      []string `json:"issues"`
}

type wirePayload struct {
	Evaluations []wireEvaluation `json:"evaluations"`
}

// defaultConfidence is assumed when the model omits a per-criterion
// confidence. Missing confidence is metadata, not a scoring defect, so it is
// defaulted rather than rejected.
const defaultConfidence = 0.75

// parsePayload converts a raw model response into one CriterionEvaluation
// per rubric criterion, in rubric order. Any shape violation — missing or
// unknown criteria, duplicates, scores outside [0,1], levels outside 1..5 —
// is a *internal.ParseError. Recovery of fenced or prose-wrapped JSON is
// handled here and nowhere else.
func parsePayload(judge, raw string, r *rubric.Rubric) ([]internal.CriterionEvaluation, error) {
	doc := postprocess.ExtractJSON(raw)
	if doc == "" {
		return nil, &internal.ParseError{Judge: judge, Detail: "no JSON document in response"}
	}

	var payload wirePayload
	if err := json.Unmarshal([]byte(doc), &payload); err != nil {
		return nil, &internal.ParseError{Judge: judge, Detail: "malformed JSON", Err: err}
	}

	byID := make(map[string]wireEvaluation, len(payload.Evaluations))
	for _, we := range payload.Evaluations {
		if _, dup := byID[we.CriterionID]; dup {
			return nil, &internal.ParseError{
				Judge:  judge,
				Detail: fmt.Sprintf("criterion %q evaluated twice", we.CriterionID),
			}
		}
		if _, known := r.Criterion(we.CriterionID); !known {
			return nil, &internal.ParseError{
				Judge:  judge,
				Detail: fmt.Sprintf("unknown criterion %q", we.CriterionID),
			}
		}
		byID[we.CriterionID] = we
	}

	evals := make([]internal.CriterionEvaluation, 0, len(r.Criteria))
	for _, c := range r.Criteria {
		we, ok := byID[c.ID]
		if !ok {
			return nil, &internal.ParseError{
				Judge:  judge,
				Detail: fmt.Sprintf("criterion %q missing from response", c.ID),
			}
		}

		eval, err := normalize(judge, we)
		if err != nil {
			return nil, err
		}
		evals = append(evals, eval)
	}

	return evals, nil
}

// normalize validates one wire evaluation and fills derivable gaps: a missing
// score comes from the level ((level-1)/4), a missing level from the score.
func normalize(judge string, we wireEvaluation) (internal.CriterionEvaluation, error) {
	var zero internal.CriterionEvaluation

	if we.Score == nil && we.Level == 0 {
		return zero, &internal.ParseError{
			Judge:  judge,
			Detail: fmt.Sprintf("criterion %q has neither score nor level", we.CriterionID),
		}
	}

	level := we.Level
	var score float64
	switch {
	case we.Score != nil:
		score = *we.Score
	default:
		score = float64(level-1) / 4.0
	}
	if score < 0 || score > 1 {
		return zero, &internal.ParseError{
			Judge:  judge,
			Detail: fmt.Sprintf("criterion %q score %g outside [0,1]", we.CriterionID, score),
		}
	}

	if level == 0 {
		level = 1 + int(score*4.0+0.5)
	}
	if level < 1 || level > 5 {
		return zero, &internal.ParseError{
			Judge:  judge,
			Detail: fmt.Sprintf("criterion %q level %d outside 1..5", we.CriterionID, level),
		}
	}

	confidence := defaultConfidence
	if we.Confidence != nil {
		confidence = *we.Confidence
		if confidence < 0 || confidence > 1 {
			return zero, &internal.ParseError{
				Judge:  judge,
				Detail: fmt.Sprintf("criterion %q confidence %g outside [0,1]", we.CriterionID, confidence),
			}
		}
	}

	return internal.CriterionEvaluation{
		CriterionID: we.CriterionID,
		Score:       score,
		Level:       level,
		Confidence:  confidence,
		Reasoning:   we.Reasoning,
		Issues:      we.Issues,
	}, nil
}
