package lecturer

import (
	"regexp"
	"strings"
)

var (
	titlePrefix = regexp.MustCompile(`(?i)^\s*(professor|prof\.?|dr\.?)\s+`)

	// Post-nominal honours that staff pages append to names. Stripped before
	// the name is used for external matching.
	honours = regexp.MustCompile(`(?i)\b(obe|cbe|mbe|frs|frse|freng|freeng|fmedsci|facss|dphil|phd|dsc|frsa|ficheme|ceng|ieng|amrsc|amicheme|mimmm|frms|lrps|cmbe|fhea|fcmi|cmgr|cfcipd)\b\.?`)

	multiSpace = regexp.MustCompile(`\s+`)
)

// CleanFullName reduces a display name to the bare "First Last" form used for
// publication-index queries: text after the first comma, leading titles, and
// trailing honours are removed.
func CleanFullName(raw string) string {
	name := raw
	if idx := strings.Index(name, ","); idx >= 0 {
		name = name[:idx]
	}
	for {
		stripped := titlePrefix.ReplaceAllString(name, "")
		if stripped == name {
			break
		}
		name = stripped
	}
	name = honours.ReplaceAllString(name, "")
	name = multiSpace.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// NameKey returns a loose identity for cross-source name matching:
// "lastname|first-initial", lowercased. Empty when no usable name remains.
func NameKey(raw string) string {
	fields := strings.Fields(strings.ToLower(CleanFullName(raw)))
	if len(fields) == 0 {
		return ""
	}
	last := fields[len(fields)-1]
	initial := string([]rune(fields[0])[:1])
	return last + "|" + initial
}
