package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jsv832/UoL-AI-Expert-Finder/internal/store"
)

// ProgressStore implements the store.ProgressRepository interface using Postgres.
type ProgressStore struct {
	pool dbPool
}

// NewProgressStore creates a new ProgressStore.
func NewProgressStore(ctx context.Context, dsn string) (*ProgressStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	return &ProgressStore{pool: pool}, nil
}

// NewProgressStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewProgressStoreWithPool(pool dbPool) (*ProgressStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &ProgressStore{pool: pool}, nil
}

// Close closes the underlying connection pool.
func (s *ProgressStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// UpsertJobStart inserts or updates a run's start time.
func (s *ProgressStore) UpsertJobStart(ctx context.Context, jobID uuid.UUID, startedAt time.Time) error {
	query := `
		INSERT INTO job_runs (id, started_at, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status
		WHERE job_runs.status <> EXCLUDED.status;
	`
	_, err := s.pool.Exec(ctx, query, jobID, startedAt, store.RunRunning)
	if err != nil {
		return fmt.Errorf("failed to upsert job start: %w", err)
	}
	return nil
}

// CompleteJob marks a run as completed with a status and optional error message.
func (s *ProgressStore) CompleteJob(
	ctx context.Context,
	jobID uuid.UUID,
	finishedAt time.Time,
	status store.JobRunStatus,
	errMsg *string,
) error {
	query := `
		UPDATE job_runs
		SET finished_at = $1, status = $2, error_message = $3
		WHERE id = $4;
	`
	_, err := s.pool.Exec(ctx, query, finishedAt, status, errMsg, jobID)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	return nil
}

func schoolStatsColumn(counter string) (string, error) {
	switch counter {
	case store.CounterStaff:
		return "staff_found", nil
	case store.CounterProfiles:
		return "profiles_scraped", nil
	case store.CounterScholar:
		return "scholar_hits", nil
	case store.CounterAI:
		return "ai_flagged", nil
	case store.CounterErrors:
		return "errors", nil
	default:
		return "", fmt.Errorf("unknown counter: %s", counter)
	}
}

// UpsertSchoolStats adds delta to one counter of a (job, school) pair. The
// counter columns must default to zero so the first write for a pair can
// insert any single counter.
func (s *ProgressStore) UpsertSchoolStats(
	ctx context.Context,
	jobID uuid.UUID,
	school string,
	counter string,
	delta int64,
	at time.Time,
) error {
	column, err := schoolStatsColumn(counter)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
		INSERT INTO school_stats (job_id, school, last_update, %[1]s)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (job_id, school) DO UPDATE
		SET %[1]s = school_stats.%[1]s + EXCLUDED.%[1]s, last_update = EXCLUDED.last_update;
	`, column)
	if _, err := s.pool.Exec(ctx, query, jobID, school, at, delta); err != nil {
		return fmt.Errorf("failed to upsert school stats: %w", err)
	}
	return nil
}

// GetJob retrieves a single job run by its ID.
func (s *ProgressStore) GetJob(ctx context.Context, jobID uuid.UUID) (store.JobRun, error) {
	query := `
		SELECT id, started_at, finished_at, status, error_message
		FROM job_runs
		WHERE id = $1;
	`
	var run store.JobRun
	err := s.pool.QueryRow(ctx, query, jobID).Scan(
		&run.ID,
		&run.StartedAt,
		&run.FinishedAt,
		&run.Status,
		&run.ErrorMessage,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.JobRun{}, store.ErrNotFound
		}
		return store.JobRun{}, fmt.Errorf("failed to get job: %w", err)
	}
	return run, nil
}

// ListJobs retrieves a list of job runs, with optional status filtering.
func (s *ProgressStore) ListJobs(
	ctx context.Context,
	status *store.JobRunStatus,
	limit,
	offset int,
) ([]store.JobRun, error) {
	query := `
		SELECT id, started_at, finished_at, status, error_message
		FROM job_runs
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3;
	`
	rows, err := s.pool.Query(ctx, query, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var runs []store.JobRun
	for rows.Next() {
		var run store.JobRun
		err := rows.Scan(
			&run.ID,
			&run.StartedAt,
			&run.FinishedAt,
			&run.Status,
			&run.ErrorMessage,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return runs, nil
}

// ListJobSchools retrieves aggregated school statistics for a given run.
func (s *ProgressStore) ListJobSchools(
	ctx context.Context,
	jobID uuid.UUID,
	limit,
	offset int,
) ([]store.SchoolStats, error) {
	query := `
		SELECT job_id, school, last_update, staff_found, profiles_scraped, scholar_hits, ai_flagged, errors
		FROM school_stats
		WHERE job_id = $1
		ORDER BY school
		LIMIT $2 OFFSET $3;
	`
	rows, err := s.pool.Query(ctx, query, jobID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list job schools: %w", err)
	}
	defer rows.Close()

	var stats []store.SchoolStats
	for rows.Next() {
		var stat store.SchoolStats
		err := rows.Scan(
			&stat.JobID,
			&stat.School,
			&stat.LastUpdate,
			&stat.StaffFound,
			&stat.ProfilesScraped,
			&stat.ScholarHits,
			&stat.AIFlagged,
			&stat.Errors,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan school stats row: %w", err)
		}
		stats = append(stats, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list job schools: %w", err)
	}
	return stats, nil
}
