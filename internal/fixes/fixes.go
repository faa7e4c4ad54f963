// Package fixes converts per-criterion deficits into a prioritized repair
// list for the revision producer.
package fixes

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mkoval/refinex/internal"
	"github.com/mkoval/refinex/internal/rubric"
)

// Gap magnitudes that escalate a recommendation's priority regardless of the
// criterion's weight class.
const (
	criticalGap = 0.3
	highGap     = 0.2
	mediumGap   = 0.1
)

// Generator derives fix recommendations from evaluations against one rubric.
type Generator struct {
	r *rubric.Rubric
}

// New creates a Generator for the given rubric.
func New(r *rubric.Rubric) *Generator {
	return &Generator{r: r}
}

// Generate returns one recommendation per criterion scoring below the
// rubric's passing threshold, sorted critical→low. The sort is stable, so
// equal priorities keep rubric order. preserved lists the context elements
// (objectives, named entities) a repair must not disturb.
func (g *Generator) Generate(evals []internal.CriterionEvaluation, preserved []string) []internal.FixRecommendation {
	byID := make(map[string]internal.CriterionEvaluation, len(evals))
	for _, e := range evals {
		byID[e.CriterionID] = e
	}

	var recs []internal.FixRecommendation
	for _, c := range g.r.Criteria {
		e, ok := byID[c.ID]
		if !ok || e.Score >= g.r.PassingThreshold {
			continue
		}

		gap := g.r.PassingThreshold - e.Score
		recs = append(recs, internal.FixRecommendation{
			CriterionID:      c.ID,
			Priority:         priorityFor(c.Class, gap),
			Issue:            issueText(&c, e),
			Remedy:           remedyText(&c),
			PreservedContext: preserved,
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Priority.Rank() < recs[j].Priority.Rank()
	})
	return recs
}

// priorityFor derives a recommendation priority from the criterion's weight
// class and the score gap below the passing threshold.
func priorityFor(class rubric.WeightClass, gap float64) internal.Priority {
	switch {
	case class == rubric.ClassCritical || gap > criticalGap:
		return internal.PriorityCritical
	case class == rubric.ClassHigh || gap > highGap:
		return internal.PriorityHigh
	case gap > mediumGap:
		return internal.PriorityMedium
	default:
		return internal.PriorityLow
	}
}

func issueText(c *rubric.Criterion, e internal.CriterionEvaluation) string {
	if len(e.Issues) > 0 {
		return strings.Join(e.Issues, "; ")
	}
	if e.Reasoning != "" {
		return e.Reasoning
	}
	return fmt.Sprintf("%s scored %.2f, below the passing threshold", c.ID, e.Score)
}

func remedyText(c *rubric.Criterion) string {
	if c.Remedy != "" {
		return c.Remedy
	}
	return fmt.Sprintf("Revise the content to improve %s: %s", c.ID, c.Description)
}
