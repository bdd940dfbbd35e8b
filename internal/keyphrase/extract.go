package keyphrase

import (
	"sort"
	"strings"
	"unicode"

	"github.com/jsv832/UoL-AI-Expert-Finder/internal/classify"
)

// Function words that never start, end, or stand as a keyphrase.
var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "of": {}, "to": {}, "in": {}, "a": {}, "for": {}, "is": {}, "on": {}, "with": {}, "as": {},
	"by": {}, "at": {}, "from": {}, "that": {}, "this": {}, "it": {}, "an": {}, "be": {}, "or": {}, "are": {}, "was": {},
	"will": {}, "has": {}, "have": {}, "had": {}, "but": {}, "not": {}, "your": {}, "you": {}, "we": {}, "our": {},
	"its": {}, "their": {}, "into": {}, "using": {}, "via": {}, "within": {}, "without": {}, "through": {}, "across": {},
	"between": {}, "during": {}, "towards": {}, "toward": {}, "under": {}, "over": {}, "how": {}, "what": {}, "when": {},
	"where": {}, "which": {}, "who": {}, "why": {}, "can": {}, "could": {}, "should": {}, "would": {}, "may": {},
	"might": {}, "must": {}, "do": {}, "does": {}, "did": {}, "since": {}, "until": {}, "after": {}, "before": {},
}

// Extractor produces length-bounded candidate phrases ranked by a frequency
// score that favors longer, more specific n-grams.
type Extractor struct {
	topN      int
	maxTokens int
}

// NewExtractor builds an extractor. topN defaults to 5 phrases, maxTokens
// to 4-token n-grams.
func NewExtractor(topN, maxTokens int) *Extractor {
	if topN <= 0 {
		topN = 5
	}
	if maxTokens <= 0 {
		maxTokens = 4
	}
	return &Extractor{topN: topN, maxTokens: maxTokens}
}

// Extract returns up to topN candidate phrases from text, lowercased.
// Stopwords bound phrases but never appear at their edges; candidates that
// are years or bare numbers are dropped.
func (e *Extractor) Extract(text string) []string {
	runs := tokenRuns(text)
	if len(runs) == 0 {
		return nil
	}

	counts := make(map[string]int)
	lengths := make(map[string]int)
	for _, run := range runs {
		for n := 1; n <= e.maxTokens; n++ {
			for start := 0; start+n <= len(run); start++ {
				phrase := strings.Join(run[start:start+n], " ")
				if classify.IsNumericNoise(phrase) {
					continue
				}
				counts[phrase]++
				lengths[phrase] = n
			}
		}
	}
	if len(counts) == 0 {
		return nil
	}

	type scored struct {
		phrase string
		score  float64
	}
	ranked := make([]scored, 0, len(counts))
	for phrase, count := range counts {
		// Longer n-grams get a specificity boost over their parts.
		boost := 1 + 0.25*float64(lengths[phrase]-1)
		ranked = append(ranked, scored{phrase: phrase, score: float64(count) * boost})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].phrase < ranked[j].phrase
	})

	n := e.topN
	if n > len(ranked) {
		n = len(ranked)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = ranked[i].phrase
	}
	return out
}

// tokenRuns splits text into runs of consecutive non-stopword tokens.
func tokenRuns(text string) [][]string {
	notToken := func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsNumber(r) }
	words := strings.FieldsFunc(strings.ToLower(text), notToken)

	var runs [][]string
	var current []string
	flush := func() {
		if len(current) > 0 {
			runs = append(runs, current)
			current = nil
		}
	}
	for _, w := range words {
		if _, stop := stopwords[w]; stop {
			flush()
			continue
		}
		current = append(current, w)
	}
	flush()
	return runs
}
