package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jsv832/UoL-AI-Expert-Finder/internal/clock/system"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/keyphrase"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/lecturer"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/metrics"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/store"
)

// Coordinator reconciles freshly scraped records with what the store already
// holds. Identity is the normalized profile URL; repeated scrapes merge into
// one document instead of duplicating it.
type Coordinator struct {
	store store.LecturerStore
	ratio float64
	clock Clock
	log   *zap.Logger
}

// NewCoordinator builds a Coordinator over st. ratio is the keyphrase
// containment bound used when skill sets are unioned.
func NewCoordinator(st store.LecturerStore, ratio float64, clk Clock, log *zap.Logger) *Coordinator {
	if clk == nil {
		clk = system.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{store: st, ratio: ratio, clock: clk, log: log}
}

// Upsert persists incoming and returns the stored result.
//
// A record with no stored counterpart is inserted as-is. An existing record
// is merged: directory fields refresh when the new pass carried them, skills
// and declared expertise are unioned, and a completed Scholar pass is never
// overwritten by a run that did not reach Scholar. force re-derives the
// record instead: Scholar fields are replaced by the new pass and declared
// expertise is taken from the page, though confirmed skills still union so
// earlier evidence survives. IsAILecturer is recomputed from the final skill
// set on every path.
func (c *Coordinator) Upsert(ctx context.Context, incoming *lecturer.Record, force bool) (*lecturer.Record, error) {
	if incoming == nil || incoming.ID == "" {
		return nil, errors.New("record has no identity")
	}

	existing, err := c.store.Get(ctx, incoming.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		rec := incoming.Clone()
		if rec.ScrapedAt.IsZero() {
			rec.ScrapedAt = c.clock.Now()
		}
		rec.AISkills = keyphrase.Dedupe(rec.AISkills, c.ratio)
		rec.RecomputeAIStatus()
		if err := c.store.Put(ctx, rec); err != nil {
			metrics.ObserveUpsert("error")
			return nil, fmt.Errorf("insert lecturer %s: %w", rec.ID, err)
		}
		metrics.ObserveUpsert("insert")
		c.log.Debug("lecturer inserted",
			zap.String("id", rec.ID),
			zap.Bool("ai", rec.IsAILecturer))
		return rec, nil
	case err != nil:
		metrics.ObserveUpsert("error")
		return nil, fmt.Errorf("load lecturer %s: %w", incoming.ID, err)
	}

	merged := c.merge(existing, incoming, force)
	if err := c.store.Put(ctx, merged); err != nil {
		metrics.ObserveUpsert("error")
		return nil, fmt.Errorf("update lecturer %s: %w", merged.ID, err)
	}
	metrics.ObserveUpsert("update")
	c.log.Debug("lecturer updated",
		zap.String("id", merged.ID),
		zap.Bool("ai", merged.IsAILecturer),
		zap.Bool("force", force))
	return merged, nil
}

func (c *Coordinator) merge(existing, incoming *lecturer.Record, force bool) *lecturer.Record {
	out := existing.Clone()

	// Directory fields refresh whenever the new pass carried them.
	if incoming.Name != "" {
		out.Name = incoming.Name
	}
	if incoming.School != "" {
		out.School = incoming.School
	}
	if incoming.Department != "" {
		out.Department = incoming.Department
	}
	if incoming.Position != "" {
		out.Position = incoming.Position
	}
	if incoming.Bio != "" {
		out.Bio = incoming.Bio
	}

	if force && len(incoming.SkillsExpertise) > 0 {
		out.SkillsExpertise = keyphrase.Dedupe(incoming.SkillsExpertise, c.ratio)
	} else {
		out.SkillsExpertise = keyphrase.Merge(out.SkillsExpertise, incoming.SkillsExpertise, c.ratio)
	}
	out.AISkills = keyphrase.Merge(out.AISkills, incoming.AISkills, c.ratio)

	c.mergeScholar(out, incoming, force)

	if !incoming.ScrapedAt.IsZero() {
		out.ScrapedAt = incoming.ScrapedAt
	} else {
		out.ScrapedAt = c.clock.Now()
	}
	out.RecomputeAIStatus()
	return out
}

// mergeScholar folds the Scholar side of incoming into out. A run that never
// reached Scholar leaves the stored Scholar fields alone; a completed pass
// replaces them under force and unions publications otherwise.
func (c *Coordinator) mergeScholar(out, incoming *lecturer.Record, force bool) {
	if !incoming.ScholarProcessed {
		if incoming.ScholarProfile != "" && out.ScholarProfile == "" {
			out.ScholarProfile = incoming.ScholarProfile
		}
		// Partial Scholar data from an aborted pass still merges in, and
		// the record stays unprocessed so the next run retries.
		if len(incoming.Publications) > 0 {
			out.Publications = mergePublications(out.Publications, incoming.Publications)
		}
		if len(incoming.ScholarInterests) > 0 {
			out.ScholarInterests = keyphrase.Merge(out.ScholarInterests, incoming.ScholarInterests, c.ratio)
		}
		return
	}

	if force {
		out.ScholarProfile = incoming.ScholarProfile
		out.ScholarInterests = append([]string(nil), incoming.ScholarInterests...)
		out.Publications = clonePublications(incoming.Publications)
	} else {
		if incoming.ScholarProfile != "" {
			out.ScholarProfile = incoming.ScholarProfile
		}
		out.ScholarInterests = keyphrase.Merge(out.ScholarInterests, incoming.ScholarInterests, c.ratio)
		out.Publications = mergePublications(out.Publications, incoming.Publications)
	}
	if len(incoming.Collaborators) > 0 || force {
		out.Collaborators = cloneCollaborators(incoming.Collaborators)
	}
	out.ScholarProcessed = true
	if !incoming.ScholarScrapedAt.IsZero() {
		out.ScholarScrapedAt = incoming.ScholarScrapedAt
	} else {
		out.ScholarScrapedAt = c.clock.Now()
	}
}

// mergePublications unions by publication key, keeping the stored order and
// appending unseen titles.
func mergePublications(existing, incoming []lecturer.Publication) []lecturer.Publication {
	if len(incoming) == 0 {
		return existing
	}
	if len(existing) == 0 {
		return clonePublications(incoming)
	}
	seen := make(map[string]struct{}, len(existing))
	out := clonePublications(existing)
	for _, pub := range existing {
		seen[pub.Key()] = struct{}{}
	}
	for _, pub := range incoming {
		if _, dup := seen[pub.Key()]; dup {
			continue
		}
		seen[pub.Key()] = struct{}{}
		pub.Authors = append([]string(nil), pub.Authors...)
		out = append(out, pub)
	}
	return out
}

func clonePublications(pubs []lecturer.Publication) []lecturer.Publication {
	if pubs == nil {
		return nil
	}
	out := make([]lecturer.Publication, len(pubs))
	for i, pub := range pubs {
		pub.Authors = append([]string(nil), pub.Authors...)
		out[i] = pub
	}
	return out
}

func cloneCollaborators(collabs []lecturer.Collaborator) []lecturer.Collaborator {
	if collabs == nil {
		return nil
	}
	out := make([]lecturer.Collaborator, len(collabs))
	for i, collab := range collabs {
		collab.Titles = append([]string(nil), collab.Titles...)
		out[i] = collab
	}
	return out
}
