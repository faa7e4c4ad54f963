// Package postprocess removes common LLM artifacts from model output.
//
// It is applied to the raw text returned by any LLM-backed capability
// (evaluator, claim extractor, verifier, reviser) before the result is
// parsed or used downstream. Payload recovery stays here so that core logic
// never sees malformed model text.
package postprocess

import (
	"regexp"
	"strings"
)

// Clean removes LLM artifacts from free-form text in three phases and
// returns the trimmed result:
//  1. Thinking / reasoning block removal
//  2. Instruction echo removal (prompt leakage)
//  3. Quote wrapping removal
func Clean(text string) string {
	text = removeThinkingBlocks(text)
	text = removeInstructionEchoes(text)
	text = removeQuoteWrapping(text)
	return strings.TrimSpace(text)
}

// ExtractJSON returns the JSON document inside a model response: thinking
// blocks are removed, a fenced ```json block is unwrapped when present, and
// the result is trimmed to the outermost {...} or [...] span. Returns "" when
// no JSON-looking span exists; the caller decides whether that is fatal.
func ExtractJSON(text string) string {
	text = removeThinkingBlocks(text)
	text = strings.TrimSpace(text)

	if m := fencedJSONRe.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return ""
	}
	var end int
	if text[start] == '{' {
		end = strings.LastIndexByte(text, '}')
	} else {
		end = strings.LastIndexByte(text, ']')
	}
	if end <= start {
		return ""
	}
	return text[start : end+1]
}

// fencedJSONRe matches a markdown code fence, optionally tagged json.
// Flags: i = case-insensitive, s = dot matches newline.
var fencedJSONRe = regexp.MustCompile("(?is)```(?:json)?\\s*(.*?)```")

// --- Phase 1: thinking blocks ---

// thinkingBlockRe matches complete <thinking>…</thinking> style blocks.
// Each tag variant is listed explicitly because Go's RE2 engine does not
// support backreferences.
var thinkingBlockRe = regexp.MustCompile(
	`(?is)<thinking>.*?</thinking>|<think>.*?</think>|<reasoning>.*?</reasoning>|<reflection>.*?</reflection>`,
)

// truncatedThinkingRe matches an opened thinking tag whose closing tag is
// missing (the model was cut off mid-thought).
var truncatedThinkingRe = regexp.MustCompile(
	`(?is)(?:<thinking>|<think>|<reasoning>|<reflection>).*$`,
)

func removeThinkingBlocks(text string) string {
	text = thinkingBlockRe.ReplaceAllString(text, "")
	text = truncatedThinkingRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// --- Phase 2: instruction echoes ---

// echoPatterns match introductory phrases that LLMs sometimes prepend even
// when instructed not to. Each pattern is anchored to the start of the string
// and requires a colon to reduce false positives on legitimate content.
var echoPatterns = []*regexp.Regexp{
	// "Here is / Here's [the] [revised|corrected|updated] [content|text|version]:"
	regexp.MustCompile(`(?i)^here(?:'s| is)(?: the)? (?:revised |corrected |updated |improved )?(?:content|text|version)\s*:`),
	// "[The] [revised|corrected] [content|text|version]:"
	regexp.MustCompile(`(?i)^(?:the )?(?:revised |corrected |updated |improved )?(?:content|text|version)\s*:`),
	// "Certainly / Sure / Of course[,] here is [the] revised content:"
	regexp.MustCompile(`(?i)^(?:certainly|sure|of course)[,.]? here(?:'s| is)(?: the)? (?:revised |corrected |updated |improved )?(?:content|text|version)\s*:`),
}

func removeInstructionEchoes(text string) string {
	for _, re := range echoPatterns {
		if loc := re.FindStringIndex(text); loc != nil && loc[0] == 0 {
			text = strings.TrimSpace(text[loc[1]:])
		}
	}
	return text
}

// --- Phase 3: quote wrapping ---

// removeQuoteWrapping strips a matching pair of outer quotes when the entire
// text is wrapped in them (a common LLM artifact).  Supported pairs:
//
//	"…"  '…'  «…»  “…”  ‘…’
func removeQuoteWrapping(text string) string {
	runes := []rune(text)
	n := len(runes)
	if n < 2 {
		return text
	}
	first, last := runes[0], runes[n-1]
	if (first == '"' && last == '"') ||
		(first == '\'' && last == '\'') ||
		(first == '«' && last == '»') ||
		(first == '“' && last == '”') ||
		(first == '‘' && last == '’') {
		return strings.TrimSpace(string(runes[1 : n-1]))
	}
	return text
}
