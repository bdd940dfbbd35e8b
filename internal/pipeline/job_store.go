package pipeline

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jsv832/UoL-AI-Expert-Finder/internal/clock/system"
)

// Job registry errors.
var (
	ErrJobExists   = errors.New("job already exists")
	ErrJobNotFound = errors.New("job not found")
	ErrJobFinished = errors.New("job already finished")
)

// JobStore is the in-memory job registry. Jobs are ephemeral control-plane
// state; run aggregates that must survive a restart live in the progress
// repository.
type JobStore struct {
	mu      sync.RWMutex
	jobs    map[uuid.UUID]Job
	cancels map[uuid.UUID]context.CancelFunc
	clock   Clock
}

// NewJobStore constructs a JobStore.
func NewJobStore(clk Clock) *JobStore {
	if clk == nil {
		clk = system.New()
	}
	return &JobStore{
		jobs:    make(map[uuid.UUID]Job),
		cancels: make(map[uuid.UUID]context.CancelFunc),
		clock:   clk,
	}
}

// CreateJob stores a new job in pending status.
func (s *JobStore) CreateJob(_ context.Context, job Job) error {
	if job.ID == uuid.Nil {
		return errors.New("job id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return ErrJobExists
	}
	job.Status = StatusPending
	if job.Submitted.IsZero() {
		job.Submitted = s.clock.Now()
	}
	s.jobs[job.ID] = job
	return nil
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(_ context.Context, jobID uuid.UUID) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return job, nil
}

// ListJobs returns jobs ordered newest first. limit <= 0 returns all.
func (s *JobStore) ListJobs(_ context.Context, limit int) ([]Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Submitted.After(out[j].Submitted) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UpdateJobStatus updates the status, error text and summary for a job. The
// first transition to running stamps Started; terminal transitions stamp
// Finished and drop the cancel handle.
func (s *JobStore) UpdateJobStatus(
	_ context.Context,
	jobID uuid.UUID,
	status Status,
	errText string,
	summary Summary,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if job.Status.Terminal() {
		return ErrJobFinished
	}
	job.Status = status
	job.ErrorText = errText
	job.Summary = summary
	now := s.clock.Now()
	if status == StatusRunning && job.Started == nil {
		job.Started = pointerTime(now)
	}
	if status.Terminal() {
		job.Finished = pointerTime(now)
		delete(s.cancels, jobID)
	}
	s.jobs[jobID] = job
	return nil
}

// RegisterCancel attaches the cancel function for a running job.
func (s *JobStore) RegisterCancel(jobID uuid.UUID, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels[jobID] = cancel
}

// CancelJob stops a job. Pending jobs move straight to canceled; running
// jobs get their context canceled and reach the terminal status once the
// runner drains. Finished jobs return ErrJobFinished.
func (s *JobStore) CancelJob(_ context.Context, jobID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if job.Status.Terminal() {
		return ErrJobFinished
	}
	if cancel, running := s.cancels[jobID]; running {
		cancel()
		delete(s.cancels, jobID)
		return nil
	}
	job.Status = StatusCanceled
	job.Finished = pointerTime(s.clock.Now())
	s.jobs[jobID] = job
	return nil
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}
