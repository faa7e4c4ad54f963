// Package entropy estimates hallucination risk for generated content.
//
// Two interchangeable strategies are provided: a token-uncertainty strategy
// for when per-token candidate distributions are available, and a lexical
// fallback that pattern-matches phrasing historically correlated with
// unsupported claims. Both are stateless and recomputed each pass.
package entropy

import "math"

// Risk classifies overall hallucination likelihood.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// Token-uncertainty strategy constants. The window flag threshold and risk
// bands are in bits of Shannon entropy.
const (
	windowSize          = 50
	windowStep          = 25
	windowFlagThreshold = 2.5
	tokenRiskMedium     = 1.5
	tokenRiskHigh       = 2.5
)

// Token carries one generated token and the candidate probabilities the
// model considered for it. Probabilities need not be normalized.
type Token struct {
	Text       string
	Candidates []float64
}

// Window is one analyzed span of the content.
type Window struct {
	Passage string  `json:"passage"`
	Start   int     `json:"start"` // token index, or sentence index for lexical analysis
	End     int     `json:"end"`
	Entropy float64 `json:"entropy"`
	Flagged bool    `json:"flagged"`
}

// Analysis is the estimator's output. For the lexical strategy Score is the
// accumulated risk increment rather than an entropy in bits; the risk bands
// account for the difference.
type Analysis struct {
	Score                float64  `json:"score"`
	Windows              []Window `json:"windows"`
	Risk                 Risk     `json:"risk"`
	RequiresVerification bool     `json:"requires_verification"`
}

// FlaggedPassages returns the text of every flagged window.
func (a *Analysis) FlaggedPassages() []string {
	var passages []string
	for _, w := range a.Windows {
		if w.Flagged {
			passages = append(passages, w.Passage)
		}
	}
	return passages
}

// Analyze picks the strategy by available signal: token uncertainty when
// candidate distributions are supplied, lexical heuristics otherwise.
func Analyze(content string, tokens []Token) *Analysis {
	if len(tokens) > 0 {
		return FromTokenUncertainty(tokens)
	}
	return FromLexical(content)
}

// FromTokenUncertainty computes per-token Shannon entropy, averages it over
// sliding windows, and flags any window whose mean exceeds the medium
// threshold. Overall score is the mean across windows.
func FromTokenUncertainty(tokens []Token) *Analysis {
	a := &Analysis{Risk: RiskLow}
	if len(tokens) == 0 {
		return a
	}

	perToken := make([]float64, len(tokens))
	for i, tok := range tokens {
		perToken[i] = shannon(tok.Candidates)
	}

	sum := 0.0
	count := 0
	for start := 0; start < len(tokens); start += windowStep {
		end := start + windowSize
		if end > len(tokens) {
			end = len(tokens)
		}

		mean := 0.0
		for _, e := range perToken[start:end] {
			mean += e
		}
		mean /= float64(end - start)

		a.Windows = append(a.Windows, Window{
			Passage: joinTokens(tokens[start:end]),
			Start:   start,
			End:     end,
			Entropy: mean,
			Flagged: mean > windowFlagThreshold,
		})
		sum += mean
		count++

		if end == len(tokens) {
			break
		}
	}

	a.Score = sum / float64(count)
	switch {
	case a.Score < tokenRiskMedium:
		a.Risk = RiskLow
	case a.Score < tokenRiskHigh:
		a.Risk = RiskMedium
	default:
		a.Risk = RiskHigh
	}
	a.RequiresVerification = a.Risk != RiskLow || len(a.FlaggedPassages()) > 0
	return a
}

// shannon computes -Σ p·log2(p) over the candidate set, with probabilities
// renormalized to sum to 1. Zero or negative entries are ignored.
func shannon(candidates []float64) float64 {
	total := 0.0
	for _, p := range candidates {
		if p > 0 {
			total += p
		}
	}
	if total == 0 {
		return 0
	}

	h := 0.0
	for _, p := range candidates {
		if p <= 0 {
			continue
		}
		p /= total
		h -= p * math.Log2(p)
	}
	return h
}

func joinTokens(tokens []Token) string {
	n := 0
	for _, t := range tokens {
		n += len(t.Text)
	}
	buf := make([]byte, 0, n)
	for _, t := range tokens {
		buf = append(buf, t.Text...)
	}
	return string(buf)
}
