package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JobRunStatus mirrors the job_runs status column.
type JobRunStatus string

// Job run statuses persisted in job_runs.status.
const (
	RunRunning JobRunStatus = "running"
	RunSuccess JobRunStatus = "success"
	RunError   JobRunStatus = "error"
)

// Counter labels accepted by UpsertSchoolStats, each naming one column of
// school_stats.
const (
	CounterStaff    = "staff"
	CounterProfiles = "profiles"
	CounterScholar  = "scholar"
	CounterAI       = "ai"
	CounterErrors   = "errors"
)

// JobRun models the job_runs table for API responses.
type JobRun struct {
	// ID is the scrape run identifier shared with workers.
	ID uuid.UUID
	// StartedAt captures when the run was first marked running.
	StartedAt time.Time
	// FinishedAt is nil until the run is marked success/error.
	FinishedAt *time.Time
	// Status is running/success/error.
	Status JobRunStatus
	// ErrorMessage optionally stores the final failure reason.
	ErrorMessage *string
}

// SchoolStats captures per-school aggregation for one scrape run.
type SchoolStats struct {
	// JobID is the owning run.
	JobID uuid.UUID
	// School is the school name as listed in the staff directory.
	School string
	// LastUpdate captures the timestamp of the most recent aggregate.
	LastUpdate time.Time
	// StaffFound counts directory stubs discovered for the school.
	StaffFound int64
	// ProfilesScraped counts staff profile pages fetched and parsed.
	ProfilesScraped int64
	// ScholarHits counts lecturers matched to a publication profile.
	ScholarHits int64
	// AIFlagged counts lecturers confirmed to hold at least one AI skill.
	AIFlagged int64
	// Errors counts lecturers whose processing failed.
	Errors int64
}

// ProgressRepository persists incremental scrape progress.
type ProgressRepository interface {
	// UpsertJobStart inserts (or idempotently updates) the started_at timestamp.
	UpsertJobStart(ctx context.Context, jobID uuid.UUID, startedAt time.Time) error
	// CompleteJob marks the run finished with the provided status and error.
	CompleteJob(ctx context.Context, jobID uuid.UUID, finishedAt time.Time, status JobRunStatus, errMsg *string) error
	// UpsertSchoolStats adds delta to one counter of (job, school).
	UpsertSchoolStats(
		ctx context.Context,
		jobID uuid.UUID,
		school string,
		counter string,
		delta int64,
		at time.Time,
	) error

	// GetJob loads a single job run or returns ErrNotFound.
	GetJob(ctx context.Context, jobID uuid.UUID) (JobRun, error)
	// ListJobs returns job runs filtered by optional status plus limit/offset.
	ListJobs(ctx context.Context, status *JobRunStatus, limit, offset int) ([]JobRun, error)
	// ListJobSchools returns aggregated school stats for one run.
	ListJobSchools(ctx context.Context, jobID uuid.UUID, limit, offset int) ([]SchoolStats, error)
}
