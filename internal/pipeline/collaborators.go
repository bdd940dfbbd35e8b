package pipeline

import (
	"sort"
	"strings"

	"github.com/jsv832/UoL-AI-Expert-Finder/internal/lecturer"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/store"
)

// MatchCollaborators resolves the record's publication co-authors against
// the stored name-key directory. Each collaborator is counted once per
// publication; the record's own entry is excluded. Single-word names are too
// ambiguous to match and are skipped. The result is ordered by shared
// publication count, then name.
func MatchCollaborators(rec *lecturer.Record, names map[string]store.NameRef) []lecturer.Collaborator {
	if rec == nil || len(rec.Publications) == 0 || len(names) == 0 {
		return nil
	}

	byProfile := make(map[string]*lecturer.Collaborator)
	for _, pub := range rec.Publications {
		seenInPub := make(map[string]struct{})
		for _, author := range pub.Authors {
			clean := lecturer.CleanFullName(author)
			if len(strings.Fields(clean)) < 2 {
				continue
			}
			ref, ok := names[lecturer.NameKey(clean)]
			if !ok || ref.ProfileURL == rec.ID {
				continue
			}
			if _, counted := seenInPub[ref.ProfileURL]; counted {
				continue
			}
			seenInPub[ref.ProfileURL] = struct{}{}

			collab, known := byProfile[ref.ProfileURL]
			if !known {
				collab = &lecturer.Collaborator{
					Name:       ref.Name,
					ProfileURL: ref.ProfileURL,
				}
				byProfile[ref.ProfileURL] = collab
			}
			collab.Publications++
			if pub.Title != "" {
				collab.Titles = append(collab.Titles, pub.Title)
			}
		}
	}
	if len(byProfile) == 0 {
		return nil
	}

	out := make([]lecturer.Collaborator, 0, len(byProfile))
	for _, collab := range byProfile {
		sort.Slice(collab.Titles, func(i, j int) bool {
			return strings.ToLower(collab.Titles[i]) < strings.ToLower(collab.Titles[j])
		})
		out = append(out, *collab)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Publications != out[j].Publications {
			return out[i].Publications > out[j].Publications
		}
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

// collaboratorsEqual reports whether two collaborator lists carry the same
// matches, ignoring title order differences already normalized by
// MatchCollaborators.
func collaboratorsEqual(a, b []lecturer.Collaborator) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name ||
			a[i].ProfileURL != b[i].ProfileURL ||
			a[i].Publications != b[i].Publications ||
			len(a[i].Titles) != len(b[i].Titles) {
			return false
		}
		for j := range a[i].Titles {
			if a[i].Titles[j] != b[i].Titles[j] {
				return false
			}
		}
	}
	return true
}
