package scholar

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/jsv832/UoL-AI-Expert-Finder/internal/lecturer"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/metrics"
)

// Outcome classifies an author resolution attempt.
type Outcome string

const (
	// Matched means exactly one candidate survived the match policy.
	Matched Outcome = "matched"
	// NoMatch means no candidate cleared the policy. A valid outcome.
	NoMatch Outcome = "no_match"
	// Ambiguous means several candidates tied and none could be preferred.
	// Treated as NoMatch downstream; recorded separately for visibility.
	Ambiguous Outcome = "ambiguous"
)

// Resolution is the result of resolving a lecturer against the author index.
type Resolution struct {
	Outcome     Outcome
	ProfileURL  string
	Affiliation string
	Interests   []string
}

// Found reports whether the resolution produced a usable profile.
func (r Resolution) Found() bool {
	return r.Outcome == Matched && r.ProfileURL != ""
}

// ResolverConfig carries the match policy knobs.
type ResolverConfig struct {
	// BaseURL is the citations endpoint. Defaults to BaseURL.
	BaseURL string
	// Institution is the display name used in the search query and as the
	// token-overlap reference, e.g. "University of Leeds".
	Institution string
	// AffiliationTerms are phrases whose presence in a candidate's
	// affiliation confirms the institution. Matched case-insensitively.
	AffiliationTerms []string
	// MinMatchScore is the token-overlap floor a non-confirming affiliation
	// must clear before the candidate is considered at all.
	MinMatchScore float64
}

func (c *ResolverConfig) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = BaseURL
	}
	if c.Institution == "" {
		c.Institution = "University of Leeds"
	}
	if len(c.AffiliationTerms) == 0 {
		c.AffiliationTerms = []string{"University of Leeds", "Leeds University"}
	}
	if c.MinMatchScore <= 0 {
		c.MinMatchScore = 0.5
	}
}

// Resolver finds a lecturer's author profile by name and affiliation. It
// never guesses: zero surviving candidates or an unresolved tie both leave
// the lecturer without a profile.
type Resolver struct {
	client PageFetcher
	cfg    ResolverConfig
	log    *zap.Logger
}

// NewResolver builds a resolver with defaults applied to cfg.
func NewResolver(client PageFetcher, cfg ResolverConfig, log *zap.Logger) *Resolver {
	cfg.applyDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{client: client, cfg: cfg, log: log}
}

// SearchURL builds the author-search URL for name.
func (r *Resolver) SearchURL(name string) string {
	terms := make([]string, 0, len(r.cfg.AffiliationTerms))
	for _, term := range r.cfg.AffiliationTerms {
		terms = append(terms, fmt.Sprintf("%q", term))
	}
	query := fmt.Sprintf("(%s) %q", strings.Join(terms, " OR "), lecturer.CleanFullName(name))

	values := url.Values{
		"view_op":  {"search_authors"},
		"hl":       {"en"},
		"mauthors": {query},
	}
	return r.cfg.BaseURL + "?" + values.Encode()
}

// Resolve searches the author index for name and applies the match policy.
// The outcome is always recorded; the error is non-nil only for fetch or
// parse failures, in which case the outcome is NoMatch.
func (r *Resolver) Resolve(ctx context.Context, name string) (Resolution, error) {
	searchURL := r.SearchURL(name)
	page, err := r.client.Fetch(ctx, searchURL)
	if err != nil {
		return Resolution{Outcome: NoMatch}, fmt.Errorf("author search for %q: %w", name, err)
	}
	candidates, err := ParseAuthorSearch(page.Body, searchURL)
	if err != nil {
		return Resolution{Outcome: NoMatch}, err
	}

	resolution := r.pick(name, candidates)
	metrics.ObserveResolution(string(resolution.Outcome))
	r.log.Info("author resolution",
		zap.String("name", name),
		zap.String("outcome", string(resolution.Outcome)),
		zap.Int("candidates", len(candidates)),
		zap.String("profile_url", resolution.ProfileURL))
	return resolution, nil
}

// pick applies the match policy: exact normalized-name equality first, then
// a confirmed affiliation; several confirmed candidates are separated by
// token overlap against the institution name, and an unresolved tie is
// Ambiguous. Candidates with no affiliation are rejected outright.
func (r *Resolver) pick(name string, candidates []Candidate) Resolution {
	want := normalizeName(name)
	if want == "" {
		return Resolution{Outcome: NoMatch}
	}

	var exact []Candidate
	for _, c := range candidates {
		if normalizeName(c.Name) == want {
			exact = append(exact, c)
		}
	}
	if len(exact) == 0 {
		return Resolution{Outcome: NoMatch}
	}

	var pool []Candidate
	for _, c := range exact {
		if r.confirmedAffiliation(c.Affiliation) {
			pool = append(pool, c)
		}
	}
	if len(pool) == 0 {
		for _, c := range exact {
			if c.Affiliation == "" {
				continue
			}
			if r.overlapScore(c.Affiliation) >= r.cfg.MinMatchScore {
				pool = append(pool, c)
			}
		}
	}

	switch len(pool) {
	case 0:
		return Resolution{Outcome: NoMatch}
	case 1:
		return matched(pool[0])
	}

	best, unique := r.bestOverlap(pool)
	if !unique {
		return Resolution{Outcome: Ambiguous}
	}
	return matched(best)
}

func (r *Resolver) confirmedAffiliation(affiliation string) bool {
	lower := strings.ToLower(affiliation)
	for _, term := range r.cfg.AffiliationTerms {
		if strings.Contains(lower, strings.ToLower(term)) {
			return true
		}
	}
	return false
}

// overlapScore is the fraction of institution-name tokens present in the
// affiliation string.
func (r *Resolver) overlapScore(affiliation string) float64 {
	instTokens := strings.Fields(strings.ToLower(r.cfg.Institution))
	if len(instTokens) == 0 {
		return 0
	}
	affTokens := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(affiliation)) {
		affTokens[strings.Trim(tok, ".,;()")] = struct{}{}
	}
	hits := 0
	for _, tok := range instTokens {
		if _, ok := affTokens[tok]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(instTokens))
}

func (r *Resolver) bestOverlap(pool []Candidate) (Candidate, bool) {
	best := pool[0]
	bestScore := r.overlapScore(best.Affiliation)
	unique := true
	for _, c := range pool[1:] {
		score := r.overlapScore(c.Affiliation)
		switch {
		case score > bestScore:
			best, bestScore, unique = c, score, true
		case score == bestScore:
			unique = false
		}
	}
	return best, unique
}

func matched(c Candidate) Resolution {
	return Resolution{
		Outcome:     Matched,
		ProfileURL:  c.ProfileURL,
		Affiliation: c.Affiliation,
		Interests:   c.Interests,
	}
}

func normalizeName(name string) string {
	return strings.ToLower(collapseSpace(lecturer.CleanFullName(name)))
}
