// Package keyphrase extracts candidate skill phrases from free text and
// collapses near-duplicates into a canonical set.
package keyphrase

import (
	"sort"
	"strings"
)

// DefaultContainmentRatio is the length-ratio bound below which a contained
// phrase is absorbed by the longer phrase. The bound is tunable: phrase
// containment is a heuristic, not a single correct answer.
const DefaultContainmentRatio = 0.75

// Canonical normalizes a phrase for set membership: lowercase, collapsed
// whitespace, trailing punctuation stripped.
func Canonical(phrase string) string {
	phrase = strings.Join(strings.Fields(strings.ToLower(phrase)), " ")
	return strings.TrimRight(phrase, ".,;:!?")
}

// Dedupe collapses a phrase list into a sorted canonical set. Equal
// canonical forms merge; a phrase contained in a longer phrase on token
// boundaries is absorbed by it when the shorter-to-longer length ratio is
// below ratio ("machine learning" folds into "machine learning algorithms").
// Applying Dedupe to its own output returns the same set.
func Dedupe(phrases []string, ratio float64) []string {
	if ratio <= 0 {
		ratio = DefaultContainmentRatio
	}

	seen := make(map[string]struct{}, len(phrases))
	canon := make([]string, 0, len(phrases))
	for _, p := range phrases {
		c := Canonical(p)
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		canon = append(canon, c)
	}

	// Longest first so every phrase is checked against all candidates that
	// could absorb it.
	sort.Slice(canon, func(i, j int) bool {
		if len(canon[i]) != len(canon[j]) {
			return len(canon[i]) > len(canon[j])
		}
		return canon[i] < canon[j]
	})

	kept := make([]string, 0, len(canon))
	for _, c := range canon {
		absorbed := false
		for _, longer := range kept {
			if containsTokens(longer, c) && float64(len(c))/float64(len(longer)) < ratio {
				absorbed = true
				break
			}
		}
		if !absorbed {
			kept = append(kept, c)
		}
	}

	sort.Strings(kept)
	return kept
}

// Merge unions existing and incoming phrases into one deduplicated set.
// Used across re-scrapes so earlier skills are never silently dropped.
func Merge(existing, incoming []string, ratio float64) []string {
	merged := make([]string, 0, len(existing)+len(incoming))
	merged = append(merged, existing...)
	merged = append(merged, incoming...)
	return Dedupe(merged, ratio)
}

// containsTokens reports whether needle appears in haystack on whole-token
// boundaries. Plain substring matching would let "art" absorb "artificial".
func containsTokens(haystack, needle string) bool {
	return strings.Contains(" "+haystack+" ", " "+needle+" ")
}
