// Dealhound - Adaptive Deal Ranking and Content Diversification Engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dealhound/dealhound

package analytics

import (
	"strings"
	"unicode"
)

// stopwords are filtered from all frequency tables. Deal copy is short, so
// the list stays small and domain-flavored.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "the": {}, "for": {}, "with": {}, "to": {},
	"of": {}, "in": {}, "on": {}, "your": {}, "you": {}, "is": {}, "it": {},
	"at": {}, "by": {}, "or": {}, "get": {}, "now": {}, "off": {}, "all": {},
	"this": {}, "that": {}, "from": {}, "deal": {}, "lifetime": {},
}

// Tokenize lowercases, strips non-alphanumerics, filters stopwords and
// applies light stemming. Tokens shorter than two characters are dropped.
func Tokenize(text string) []string {
	fields := splitWords(text)
	out := make([]string, 0, len(fields))
	for _, w := range fields {
		if len(w) < 2 {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		out = append(out, stem(w))
	}
	return out
}

// splitWords lowercases and splits on every non-alphanumeric rune.
func splitWords(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// stem applies a few cheap suffix rules, enough to fold plural variants
// into one term without a full stemmer.
func stem(w string) string {
	switch {
	case strings.HasSuffix(w, "ies") && len(w) > 4:
		return w[:len(w)-3] + "y"
	case strings.HasSuffix(w, "sses"):
		return w[:len(w)-2]
	case strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") && len(w) > 3:
		return w[:len(w)-1]
	}
	return w
}

// ngrams builds space-joined n-grams from consecutive tokens.
func ngrams(tokens []string, n int) []string {
	if len(tokens) < n {
		return nil
	}
	out := make([]string, 0, len(tokens)-n+1)
	for i := 0; i+n <= len(tokens); i++ {
		out = append(out, strings.Join(tokens[i:i+n], " "))
	}
	return out
}
