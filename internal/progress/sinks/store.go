package sinks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jsv832/UoL-AI-Expert-Finder/internal/progress"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/store"
)

// StoreSink persists progress deltas via a store.ProgressRepository. It
// collapses per-school counters within a batch to reduce write amplification.
type StoreSink struct {
	repo   store.ProgressRepository
	logger *zap.Logger
}

// NewStoreSink constructs a StoreSink for the provided repository.
func NewStoreSink(repo store.ProgressRepository, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{repo: repo, logger: logger}
}

// Consume collapses school deltas and forwards them to the repository. It
// respects ctx deadlines and returns any repository errors verbatim.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	stats := make(map[statsKey]*statsDelta)

	for _, evt := range batch {
		jobID := evt.JobUUID()
		switch evt.Stage {
		case progress.StageJobStart, progress.StageJobDone, progress.StageJobError:
			if err := s.handleJobEvent(ctx, jobID, evt); err != nil {
				return err
			}
		default:
			if evt.Stage.SchoolScoped() {
				recordSchoolStats(stats, jobID, evt)
			}
		}
	}

	for key, delta := range stats {
		if delta.count == 0 {
			continue
		}
		if err := s.repo.UpsertSchoolStats(
			ctx,
			key.jobID,
			key.school,
			key.counter,
			delta.count,
			delta.at,
		); err != nil {
			return fmt.Errorf("upsert school stats: %w", err)
		}
	}
	return nil
}

func (s *StoreSink) handleJobEvent(ctx context.Context, jobID uuid.UUID, evt progress.Event) error {
	switch evt.Stage {
	case progress.StageJobStart:
		if err := s.repo.UpsertJobStart(ctx, jobID, evt.TS); err != nil {
			return fmt.Errorf("upsert job start: %w", err)
		}
	case progress.StageJobDone:
		if err := s.repo.CompleteJob(ctx, jobID, evt.TS, store.RunSuccess, nil); err != nil {
			return fmt.Errorf("complete job: %w", err)
		}
	case progress.StageJobError:
		var note *string
		if evt.Note != "" {
			note = &evt.Note
		}
		if err := s.repo.CompleteJob(ctx, jobID, evt.TS, store.RunError, note); err != nil {
			return fmt.Errorf("complete job: %w", err)
		}
	}
	return nil
}

// counterFor maps a school-scoped milestone onto the school_stats counter it
// feeds. LECTURER_DONE only counts toward ai_flagged when the record carries
// AI skills; profiles_scraped already counts every processed lecturer. Skips
// are log/metric signals only and hold no column.
func counterFor(evt progress.Event) (string, bool) {
	switch evt.Stage {
	case progress.StageStaffFound:
		return store.CounterStaff, true
	case progress.StageProfileDone:
		return store.CounterProfiles, true
	case progress.StageScholarMatch:
		return store.CounterScholar, true
	case progress.StageLecturerDone:
		if evt.AI {
			return store.CounterAI, true
		}
		return "", false
	case progress.StageLecturerError:
		return store.CounterErrors, true
	default:
		return "", false
	}
}

func recordSchoolStats(stats map[statsKey]*statsDelta, jobID uuid.UUID, evt progress.Event) {
	if evt.School == "" {
		return
	}
	counter, ok := counterFor(evt)
	if !ok {
		return
	}
	key := statsKey{
		jobID:   jobID,
		school:  evt.School,
		counter: counter,
	}
	stat := stats[key]
	if stat == nil {
		stat = &statsDelta{}
		stats[key] = stat
	}
	stat.count += evt.Delta()
	if evt.TS.After(stat.at) || stat.at.IsZero() {
		stat.at = evt.TS
	}
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}

type statsKey struct {
	jobID   uuid.UUID
	school  string
	counter string
}

type statsDelta struct {
	count int64
	at    time.Time
}
