// Package fuzzy implements the pure string-similarity primitives used by
// the two-way and three-way matching engines: edit distance, token-level
// ratios, phonetic matching, TF-IDF cosine similarity and OCR-variant
// generation.
package fuzzy

import (
	"sort"
	"strings"

	"github.com/agext/levenshtein"
)

var levParams = levenshtein.NewParams()

// LevenshteinRatio returns 1 - edit_distance/max_len, in [0,1].
func LevenshteinRatio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1.0
	}
	dist := levenshtein.Distance(a, b, levParams)
	return 1.0 - float64(dist)/float64(maxLen)
}

func tokenize(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

// TokenSortRatio lowercases, splits on whitespace, sorts the tokens, rejoins
// and compares with LevenshteinRatio.
func TokenSortRatio(a, b string) float64 {
	ta := tokenize(a)
	tb := tokenize(b)
	sort.Strings(ta)
	sort.Strings(tb)
	return LevenshteinRatio(strings.Join(ta, " "), strings.Join(tb, " "))
}

// TokenSetRatio compares the two strings as token sets so that duplicated
// or reordered tokens don't penalize the score: it computes the ratio
// between the sorted intersection and each side's sorted
// intersection+difference, and returns the max of the three.
func TokenSetRatio(a, b string) float64 {
	sa := uniqueSorted(tokenize(a))
	sb := uniqueSorted(tokenize(b))

	inter, onlyA, onlyB := splitSets(sa, sb)

	interStr := strings.Join(inter, " ")
	sortedInterOnlyA := strings.Join(append(append([]string{}, inter...), onlyA...), " ")
	sortedInterOnlyB := strings.Join(append(append([]string{}, inter...), onlyB...), " ")

	r1 := LevenshteinRatio(interStr, sortedInterOnlyA)
	r2 := LevenshteinRatio(interStr, sortedInterOnlyB)
	r3 := LevenshteinRatio(sortedInterOnlyA, sortedInterOnlyB)

	max := r1
	if r2 > max {
		max = r2
	}
	if r3 > max {
		max = r3
	}
	return max
}

func uniqueSorted(tokens []string) []string {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func splitSets(a, b []string) (inter, onlyA, onlyB []string) {
	bSet := make(map[string]struct{}, len(b))
	for _, t := range b {
		bSet[t] = struct{}{}
	}
	aSet := make(map[string]struct{}, len(a))
	for _, t := range a {
		aSet[t] = struct{}{}
	}
	for _, t := range a {
		if _, ok := bSet[t]; ok {
			inter = append(inter, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for _, t := range b {
		if _, ok := aSet[t]; !ok {
			onlyB = append(onlyB, t)
		}
	}
	return inter, onlyA, onlyB
}
