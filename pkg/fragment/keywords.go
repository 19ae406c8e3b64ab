package fragment

import (
	"sort"
	"strings"
	"unicode"
)

// ExtractKeywords lowercases text, splits on non-word runes (Unicode-aware,
// including Hangul syllables), drops the bilingual stopword set, ranks the
// remainder by term frequency, and returns the top five terms. Ties break by first-seen order for determinism.
func ExtractKeywords(text string) []string {
	terms := splitWords(strings.ToLower(text))

	freq := make(map[string]int, len(terms))
	order := make([]string, 0, len(terms))
	for _, t := range terms {
		if t == "" || isStopword(t) {
			continue
		}
		if _, seen := freq[t]; !seen {
			order = append(order, t)
		}
		freq[t]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return freq[order[i]] > freq[order[j]]
	})

	if len(order) > 5 {
		order = order[:5]
	}
	return order
}

// splitWords splits s on any rune that is not a letter, digit, or
// underscore — Unicode-aware, so Hangul syllables (unicode.IsLetter) stay
// intact as single "words" per syllable block boundary.
func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
	})
}
