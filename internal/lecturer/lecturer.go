// Package lecturer defines the domain types shared across subsystems.
package lecturer

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Stub is one row of a staff directory index page. Stubs are immutable once
// parsed; everything richer is filled in by later pipeline stages.
type Stub struct {
	ProfileURL string `json:"profile_url"`
	Name       string `json:"name"`
	School     string `json:"school"`
	Department string `json:"department,omitempty"`
}

// Profile carries the fields extracted from a staff profile page.
type Profile struct {
	Name       string   `json:"name"`
	Position   string   `json:"position,omitempty"`
	Expertise  []string `json:"expertise,omitempty"`
	ScholarURL string   `json:"scholar_url,omitempty"`
	Bio        string   `json:"bio,omitempty"`
}

// Publication is a single entry from a publication index listing.
type Publication struct {
	Title   string   `json:"title"`
	Year    int      `json:"year,omitempty"`
	Authors []string `json:"authors,omitempty"`
}

// Key returns the dedup key for a publication: the same title may repeat
// across listing pages, optionally with a different author rendering.
func (p Publication) Key() string {
	title := strings.Join(strings.Fields(strings.ToLower(p.Title)), " ")
	return title + "|" + strconv.Itoa(p.Year)
}

// Collaborator is a co-author matched against another stored lecturer.
type Collaborator struct {
	Name         string   `json:"name"`
	ProfileURL   string   `json:"profile_url,omitempty"`
	Publications int      `json:"publications"`
	Titles       []string `json:"titles,omitempty"`
}

// Record is the persisted document for one lecturer. ID is derived solely
// from the directory profile URL so repeated scrapes merge instead of
// duplicating.
type Record struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	School           string         `json:"school,omitempty"`
	Department       string         `json:"department,omitempty"`
	Position         string         `json:"position,omitempty"`
	SkillsExpertise  []string       `json:"skills_expertise,omitempty"`
	Bio              string         `json:"bio,omitempty"`
	ScholarProfile   string         `json:"scholar_profile,omitempty"`
	ScholarInterests []string       `json:"scholar_interests,omitempty"`
	Publications     []Publication  `json:"publications,omitempty"`
	AISkills         []string       `json:"ai_skills,omitempty"`
	IsAILecturer     bool           `json:"is_ai_lecturer"`
	ScholarProcessed bool           `json:"scholar_processed"`
	Collaborators    []Collaborator `json:"collaborators,omitempty"`
	ScrapedAt        time.Time      `json:"scraped_at,omitempty"`
	ScholarScrapedAt time.Time      `json:"scholar_scraped_at,omitempty"`
}

// RecomputeAIStatus re-derives IsAILecturer from the current skill set.
// It is the only way the flag may change.
func (r *Record) RecomputeAIStatus() {
	r.IsAILecturer = len(r.AISkills) > 0
}

// Clone returns a deep copy that can be mutated without touching r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.SkillsExpertise = append([]string(nil), r.SkillsExpertise...)
	out.ScholarInterests = append([]string(nil), r.ScholarInterests...)
	out.AISkills = append([]string(nil), r.AISkills...)
	if r.Publications != nil {
		out.Publications = make([]Publication, len(r.Publications))
		for i, pub := range r.Publications {
			pub.Authors = append([]string(nil), pub.Authors...)
			out.Publications[i] = pub
		}
	}
	if r.Collaborators != nil {
		out.Collaborators = make([]Collaborator, len(r.Collaborators))
		for i, collab := range r.Collaborators {
			collab.Titles = append([]string(nil), collab.Titles...)
			out.Collaborators[i] = collab
		}
	}
	return &out
}

// trackingParams are query keys that vary per visit without changing the
// identity of the page they point at.
var trackingParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"gclid":        {},
	"fbclid":       {},
	"ref":          {},
}

// NormalizeProfileURL canonicalizes a profile URL into the record identity:
// lowercased scheme and host, fragment and tracking noise removed, remaining
// query keys sorted, trailing slash trimmed. Two captures of the same page
// must normalize to the same string.
func NormalizeProfileURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("empty profile url")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("parse profile url %q: %w", raw, err)
	}
	if parsed.Scheme == "" {
		parsed.Scheme = "https"
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	if parsed.Host == "" {
		return "", fmt.Errorf("profile url %q has no host", raw)
	}

	query := parsed.Query()
	for key := range query {
		if _, noisy := trackingParams[strings.ToLower(key)]; noisy {
			query.Del(key)
		}
	}
	parsed.RawQuery = encodeSorted(query)

	if parsed.Path != "/" {
		parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	}
	if parsed.Path == "" {
		parsed.Path = "/"
	}
	return parsed.String(), nil
}

func encodeSorted(values url.Values) string {
	if len(values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, key := range keys {
		for _, value := range values[key] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(key))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(value))
		}
	}
	return b.String()
}
