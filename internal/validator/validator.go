// Package validator sanity-checks revised content before it replaces a
// draft: a revision that emptied the text, gutted it, or dropped preserved
// context elements is rejected.
package validator

import (
	"fmt"
	"strings"
)

// minRetainedRatio is the smallest acceptable revised/original length ratio.
// A revision below it almost always means the model summarised or truncated
// instead of editing.
const minRetainedRatio = 0.3

// minCheckLength is the minimum original rune count required to apply the
// length-ratio check. Short texts legitimately shrink or grow a lot.
const minCheckLength = 80

// Check reports whether revised is an acceptable replacement for original.
// preserved lists context elements the revision must not drop; each is
// matched on its value part, case-insensitively, so a "key: value" element
// only requires the value to survive.
func Check(original, revised string, preserved []string) error {
	text := strings.TrimSpace(revised)
	if text == "" {
		return fmt.Errorf("revision is empty")
	}

	lo, lr := len([]rune(strings.TrimSpace(original))), len([]rune(text))
	if lo >= minCheckLength && float64(lr) < minRetainedRatio*float64(lo) {
		return fmt.Errorf("revision retained %d of %d characters", lr, lo)
	}

	lower := strings.ToLower(text)
	for _, p := range preserved {
		if term := preservedTerm(p); term != "" && !strings.Contains(lower, strings.ToLower(term)) {
			return fmt.Errorf("revision dropped preserved element %q", p)
		}
	}
	return nil
}

// preservedTerm extracts the matchable part of a preserved-context element:
// the value after a "key: value" prefix, or the whole element otherwise.
func preservedTerm(element string) string {
	if _, value, ok := strings.Cut(element, ":"); ok {
		return strings.TrimSpace(value)
	}
	return strings.TrimSpace(element)
}
