package store

import (
	"regexp"
	"strings"
	"unicode"
)

// Query filters lecturer listings. The zero value matches every record.
type Query struct {
	// School restricts results to one school, compared case-insensitively.
	School string
	// Name keeps lecturers whose display name contains this substring,
	// compared case-insensitively.
	Name string
	// AIOnly keeps only lecturers with at least one confirmed AI skill.
	AIOnly bool
	// Skills are search terms matched against AI skills, publication titles,
	// and declared expertise, tolerating plural and hyphenation variants.
	Skills []string
	// MatchAll requires every skill term to match; the default keeps a
	// record when any term matches.
	MatchAll bool
}

// SkillPatterns returns one inflection pattern per usable skill term. Terms
// that are empty after trimming are dropped.
func (q Query) SkillPatterns() []string {
	if len(q.Skills) == 0 {
		return nil
	}
	out := make([]string, 0, len(q.Skills))
	for _, term := range q.Skills {
		if strings.TrimSpace(term) == "" {
			continue
		}
		out = append(out, InflectionPattern(term))
	}
	return out
}

// InflectionPattern builds the body of a case-insensitive regular expression
// that matches simple inflections of a search term: "machine learning"
// becomes `machine\w*[-\s]*learn\w*`, which also hits "machine-learned" and
// "Machine Learning". The result carries no word-boundary anchors because Go
// (\b) and Postgres (\y) spell them differently; each backend wraps the
// pattern in its own syntax.
func InflectionPattern(term string) string {
	tokens := patternTokens(term)
	if len(tokens) == 0 {
		return regexp.QuoteMeta(strings.TrimSpace(strings.ToLower(term)))
	}
	parts := make([]string, len(tokens))
	for i, tok := range tokens {
		parts[i] = regexp.QuoteMeta(stem(tok)) + `\w*`
	}
	return strings.Join(parts, `[-\s]*`)
}

// patternTokens lowercases the term, treats hyphens as spaces and keeps only
// runs of letters and digits.
func patternTokens(term string) []string {
	lowered := strings.ToLower(strings.ReplaceAll(term, "-", " "))
	return strings.FieldsFunc(lowered, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// stem strips common English suffixes so the remainder, extended with \w*,
// matches the word's inflections. It is deliberately crude; search terms are
// short noun phrases and the pattern tolerates over-matching better than
// missing "machine-learning" when asked for "machine learning".
func stem(token string) string {
	switch {
	case len(token) > 4 && strings.HasSuffix(token, "ies"):
		token = token[:len(token)-3]
	case hasAnySuffix(token, "sses", "shes", "ches", "xes", "zes"):
		token = token[:len(token)-2]
	case len(token) > 3 && strings.HasSuffix(token, "s") && !strings.HasSuffix(token, "ss"):
		token = token[:len(token)-1]
	}
	if len(token) > 5 && strings.HasSuffix(token, "ing") {
		token = token[:len(token)-3]
	} else if len(token) > 4 && strings.HasSuffix(token, "ed") {
		token = token[:len(token)-2]
	}
	return token
}

func hasAnySuffix(s string, suffixes ...string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(s, suffix) {
			return true
		}
	}
	return false
}
