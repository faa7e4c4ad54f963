package evaluator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mkoval/refinex/internal/rubric"
)

// buildEvaluationPrompt renders the rubric into a scoring prompt. The fast
// profile omits the level ladders and asks for one-sentence reasoning to keep
// the pass cheap; the full profile includes the complete ladder per criterion.
func buildEvaluationPrompt(content string, r *rubric.Rubric, fast bool) string {
	var sb strings.Builder

	sb.WriteString("You are a strict content quality evaluator.\n")
	sb.WriteString(fmt.Sprintf("Score the content below against rubric %s.\n\n", r.Version))

	sb.WriteString("CRITERIA:\n")
	for _, c := range r.Criteria {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", c.ID, c.Description))
		if !fast && len(c.Levels) > 0 {
			levels := make([]int, 0, len(c.Levels))
			for l := range c.Levels {
				levels = append(levels, l)
			}
			sort.Ints(levels)
			for _, l := range levels {
				sb.WriteString(fmt.Sprintf("    level %d: %s\n", l, c.Levels[l]))
			}
		}
	}

	sb.WriteString("\nCONTENT:\n")
	sb.WriteString(content)
	sb.WriteString("\n\n")

	sb.WriteString("For every criterion assign a level from 1 (worst) to 5 (best), ")
	sb.WriteString("a normalized score in [0,1], and a confidence in [0,1].\n")
	if fast {
		sb.WriteString("Keep reasoning to one sentence per criterion.\n")
	}
	sb.WriteString(`Respond ONLY in JSON:
{
  "evaluations": [
    {
      "criterion_id": "...",
      "level": 1,
      "score": 0.0,
      "confidence": 0.0,
      "reasoning": "...",
      "issues": ["..."]
    }
  ]
}
Include every criterion exactly once. No text outside the JSON object.
`)

	return sb.String()
}
