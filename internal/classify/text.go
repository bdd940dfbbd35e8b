package classify

import (
	"regexp"
	"strings"
)

var (
	letterDigit = regexp.MustCompile(`([a-zA-Z])(\d)`)
	digitLetter = regexp.MustCompile(`(\d)([a-zA-Z])`)
	sentenceEnd = regexp.MustCompile(`[.!?]+(?:\s+|$)`)
	chunkSep    = regexp.MustCompile(`[;()]+`)
	yearLike    = regexp.MustCompile(`\d{4}`)
	numericTok  = regexp.MustCompile(`^\d[\d.,%]*$`)
)

// CleanText prepares a unit for scoring: letter/digit boundaries get a
// space, whitespace is collapsed, and units dominated by numeric tokens
// reduce to the empty string.
func CleanText(text string) string {
	text = letterDigit.ReplaceAllString(text, "$1 $2")
	text = digitLetter.ReplaceAllString(text, "$1 $2")

	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	numeric := 0
	for _, f := range fields {
		if numericTok.MatchString(f) {
			numeric++
		}
	}
	if numeric*2 > len(fields) {
		return ""
	}
	return strings.Join(fields, " ")
}

// IsNumericNoise reports whether a phrase is a year or a bare number, which
// carries no topical signal.
func IsNumericNoise(phrase string) bool {
	cleaned := strings.TrimSpace(strings.ToLower(phrase))
	if cleaned == "" {
		return false
	}
	if yearLike.MatchString(cleaned) {
		return true
	}
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Sentences splits text on terminal punctuation, trimming empties.
func Sentences(text string) []string {
	var out []string
	for _, part := range sentenceEnd.Split(text, -1) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Chunks breaks a sentence into scoring units on semicolons and parentheses.
func Chunks(sentence string) []string {
	var out []string
	for _, part := range chunkSep.Split(sentence, -1) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
