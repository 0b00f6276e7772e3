package session

import (
	"strings"
	"unicode"
)

// stopwords are tokens too common to carry topical signal.
var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "can": {}, "had": {}, "her": {}, "was": {},
	"one": {}, "our": {}, "out": {}, "has": {}, "have": {}, "this": {},
	"that": {}, "with": {}, "from": {}, "they": {}, "will": {}, "would": {},
	"there": {}, "their": {}, "what": {}, "about": {}, "which": {}, "when": {},
	"make": {}, "like": {}, "just": {}, "into": {}, "some": {}, "could": {},
	"them": {}, "then": {}, "than": {}, "been": {}, "also": {}, "should": {},
	"please": {}, "need": {}, "want": {}, "using": {}, "use": {},
}

// ExtractKeywords lowercases the text, splits on non-alphanumeric runes and
// returns the distinct tokens of length ≥ 3 that are not stopwords, in first
// occurrence order.
func ExtractKeywords(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]struct{}, len(fields))
	var out []string
	for _, f := range fields {
		if len(f) < 3 {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// KeywordSet converts a keyword slice into a set.
func KeywordSet(keywords []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		set[k] = struct{}{}
	}
	return set
}

// EstimateTokens approximates the token count of text as ceil(len/4).
// This is a deliberately crude heuristic, not a tokenizer-accurate count;
// it only needs to be monotone in text length for the health length factor.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}
