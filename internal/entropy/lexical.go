package entropy

import (
	"regexp"
	"strings"
)

// Lexical strategy constants. Each pattern match adds riskIncrement to the
// accumulated score; the bands mirror the entropy strategy's shape on the
// increment scale.
const (
	riskIncrement     = 0.5
	lexicalRiskMedium = 1.0
	lexicalRiskHigh   = 2.0
)

// riskPatterns match phrasing historically correlated with unsupported
// claims: vague attribution, unqualified statistics, and appeal-to-authority
// wording.
var riskPatterns = []*regexp.Regexp{
	// Vague attribution: "studies show", "research suggests", "it is known".
	regexp.MustCompile(`(?i)\b(?:studies|research|reports?|surveys?)\s+(?:show|shows|suggest|suggests|indicate|indicates|prove|proves)\b`),
	regexp.MustCompile(`(?i)\bit is (?:well[- ])?known that\b`),
	regexp.MustCompile(`(?i)\b(?:some|many|most) (?:people|scientists|researchers) (?:say|believe|agree|think)\b`),
	// Unqualified statistics: a percentage or multiplier with no citation marker.
	regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?\s*(?:%|percent)\b`),
	regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?x (?:more|less|faster|slower|higher|lower)\b`),
	// Appeal to authority: "experts say", "according to experts", "widely accepted".
	regexp.MustCompile(`(?i)\b(?:experts?|authorities|specialists) (?:say|agree|confirm|recommend|warn)\b`),
	regexp.MustCompile(`(?i)\baccording to (?:experts?|authorities|scientists)\b`),
	regexp.MustCompile(`(?i)\b(?:widely|universally|generally) (?:accepted|acknowledged|recognized)\b`),
	regexp.MustCompile(`(?i)\b(?:everyone|everybody) knows\b`),
}

var sentenceSplitRe = regexp.MustCompile(`[.!?]+\s+`)

// FromLexical accumulates a fixed risk increment for every pattern match and
// flags each sentence containing at least one match. Used when no
// token-uncertainty signal is available.
func FromLexical(content string) *Analysis {
	a := &Analysis{Risk: RiskLow}

	sentences := sentenceSplitRe.Split(content, -1)
	for i, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}

		matches := 0
		for _, re := range riskPatterns {
			matches += len(re.FindAllStringIndex(sentence, -1))
		}
		if matches == 0 {
			continue
		}

		increment := riskIncrement * float64(matches)
		a.Score += increment
		a.Windows = append(a.Windows, Window{
			Passage: sentence,
			Start:   i,
			End:     i + 1,
			Entropy: increment,
			Flagged: true,
		})
	}

	switch {
	case a.Score < lexicalRiskMedium:
		a.Risk = RiskLow
	case a.Score < lexicalRiskHigh:
		a.Risk = RiskMedium
	default:
		a.Risk = RiskHigh
	}
	a.RequiresVerification = a.Risk != RiskLow || len(a.Windows) > 0
	return a
}
