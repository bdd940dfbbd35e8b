package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jsv832/UoL-AI-Expert-Finder/internal/store"
)

// ProgressStore keeps run progress in memory. It mirrors the Postgres
// implementation closely enough that development deployments see the same
// API behavior, minus durability.
type ProgressStore struct {
	mu      sync.RWMutex
	runs    map[uuid.UUID]store.JobRun
	schools map[uuid.UUID]map[string]store.SchoolStats
}

// NewProgressStore constructs an empty ProgressStore.
func NewProgressStore() *ProgressStore {
	return &ProgressStore{
		runs:    make(map[uuid.UUID]store.JobRun),
		schools: make(map[uuid.UUID]map[string]store.SchoolStats),
	}
}

// UpsertJobStart inserts the run or refreshes its status. The original
// started_at is kept on repeat calls.
func (s *ProgressStore) UpsertJobStart(_ context.Context, jobID uuid.UUID, startedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[jobID]
	if !ok {
		run = store.JobRun{ID: jobID, StartedAt: startedAt}
	}
	run.Status = store.RunRunning
	s.runs[jobID] = run
	return nil
}

// CompleteJob marks the run finished. Completing an unknown run is a no-op,
// matching an UPDATE that touches zero rows.
func (s *ProgressStore) CompleteJob(
	_ context.Context,
	jobID uuid.UUID,
	finishedAt time.Time,
	status store.JobRunStatus,
	errMsg *string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[jobID]
	if !ok {
		return nil
	}
	ts := finishedAt
	run.FinishedAt = &ts
	run.Status = status
	run.ErrorMessage = errMsg
	s.runs[jobID] = run
	return nil
}

// UpsertSchoolStats adds delta to one counter of a (job, school) pair.
func (s *ProgressStore) UpsertSchoolStats(
	_ context.Context,
	jobID uuid.UUID,
	school string,
	counter string,
	delta int64,
	at time.Time,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bySchool, ok := s.schools[jobID]
	if !ok {
		bySchool = make(map[string]store.SchoolStats)
		s.schools[jobID] = bySchool
	}
	stat, ok := bySchool[school]
	if !ok {
		stat = store.SchoolStats{JobID: jobID, School: school}
	}
	switch counter {
	case store.CounterStaff:
		stat.StaffFound += delta
	case store.CounterProfiles:
		stat.ProfilesScraped += delta
	case store.CounterScholar:
		stat.ScholarHits += delta
	case store.CounterAI:
		stat.AIFlagged += delta
	case store.CounterErrors:
		stat.Errors += delta
	default:
		return fmt.Errorf("unknown counter: %s", counter)
	}
	stat.LastUpdate = at
	bySchool[school] = stat
	return nil
}

// GetJob loads one run or returns store.ErrNotFound.
func (s *ProgressStore) GetJob(_ context.Context, jobID uuid.UUID) (store.JobRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[jobID]
	if !ok {
		return store.JobRun{}, store.ErrNotFound
	}
	return run, nil
}

// ListJobs returns runs newest first, optionally filtered by status.
func (s *ProgressStore) ListJobs(
	_ context.Context,
	status *store.JobRunStatus,
	limit, offset int,
) ([]store.JobRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.JobRun, 0, len(s.runs))
	for _, run := range s.runs {
		if status != nil && run.Status != *status {
			continue
		}
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return window(out, limit, offset), nil
}

// ListJobSchools returns one run's school aggregates ordered by school name.
func (s *ProgressStore) ListJobSchools(
	_ context.Context,
	jobID uuid.UUID,
	limit, offset int,
) ([]store.SchoolStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bySchool := s.schools[jobID]
	out := make([]store.SchoolStats, 0, len(bySchool))
	for _, stat := range bySchool {
		out = append(out, stat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].School < out[j].School })
	return window(out, limit, offset), nil
}

func window[T any](in []T, limit, offset int) []T {
	if offset >= len(in) {
		return nil
	}
	in = in[offset:]
	if limit > 0 && len(in) > limit {
		in = in[:limit]
	}
	return in
}
