// Package score computes the trivial keyword-count mood score that is
// recomputed whenever an entry's text changes. It is intentionally naive:
// a word-list tally, not sentiment analysis (that is the AI analyzer's job).
package score

import (
	"strings"
	"unicode"
)

var positive = map[string]struct{}{
	"happy": {}, "joy": {}, "grateful": {}, "thankful": {}, "love": {},
	"excited": {}, "calm": {}, "proud": {}, "hopeful": {}, "great": {},
	"good": {}, "wonderful": {}, "fun": {}, "relaxed": {}, "accomplished": {},
}

var negative = map[string]struct{}{
	"sad": {}, "angry": {}, "anxious": {}, "stressed": {}, "tired": {},
	"worried": {}, "afraid": {}, "lonely": {}, "upset": {}, "frustrated": {},
	"bad": {}, "terrible": {}, "exhausted": {}, "overwhelmed": {}, "hurt": {},
}

// Bounds keep a single entry's score within a sane display range.
const (
	Min = -10
	Max = 10
)

// Keyword returns the clamped positive-minus-negative keyword count for
// the given text. Matching is case-insensitive on whole words.
func Keyword(text string) int {
	s := 0
	for _, w := range tokenize(text) {
		if _, ok := positive[w]; ok {
			s++
		} else if _, ok := negative[w]; ok {
			s--
		}
	}
	if s > Max {
		return Max
	}
	if s < Min {
		return Min
	}
	return s
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	})
}
