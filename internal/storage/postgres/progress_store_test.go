package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/jsv832/UoL-AI-Expert-Finder/internal/store"
)

func TestUpsertSchoolStatsBumpsCounter(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewProgressStoreWithPool(mock)
	require.NoError(t, err)

	jobID := uuid.New()
	now := time.Unix(1700000000, 0).UTC()

	mock.ExpectExec("INSERT INTO school_stats").
		WithArgs(jobID, "School of Computing", now, int64(3)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = s.UpsertSchoolStats(context.Background(), jobID, "School of Computing", store.CounterStaff, 3, now)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSchoolStatsRejectsUnknownCounter(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewProgressStoreWithPool(mock)
	require.NoError(t, err)

	err = s.UpsertSchoolStats(context.Background(), uuid.New(), "School of Computing", "bogus", 1, time.Now())
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteJobUpdatesRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewProgressStoreWithPool(mock)
	require.NoError(t, err)

	jobID := uuid.New()
	now := time.Unix(1700000000, 0).UTC()
	msg := "directory unreachable"

	mock.ExpectExec("UPDATE job_runs").
		WithArgs(now, store.RunError, &msg, jobID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.CompleteJob(context.Background(), jobID, now, store.RunError, &msg))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetJobNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewProgressStoreWithPool(mock)
	require.NoError(t, err)

	jobID := uuid.New()
	mock.ExpectQuery("SELECT id, started_at").
		WithArgs(jobID).
		WillReturnError(pgx.ErrNoRows)

	_, err = s.GetJob(context.Background(), jobID)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
