package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/jsv832/UoL-AI-Expert-Finder/internal/progress"
)

// TestPrometheusSinkRecordsMetrics ensures counters and histograms are incremented from events.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	jobID := progress.UUIDToBytes(uuid.New())
	school := "School of Computing"
	batch := []progress.Event{
		{JobID: jobID, TS: time.Now(), Stage: progress.StageJobStart},
		{
			JobID:  jobID,
			TS:     time.Now().Add(time.Second),
			Stage:  progress.StageStaffFound,
			School: school,
			Count:  24,
		},
		{
			JobID:  jobID,
			TS:     time.Now().Add(2 * time.Second),
			Stage:  progress.StageProfileDone,
			School: school,
		},
		{
			JobID:    jobID,
			TS:       time.Now().Add(3 * time.Second),
			Stage:    progress.StageLecturerDone,
			School:   school,
			Lecturer: "Ada Lovelace",
			AI:       true,
			Dur:      1200 * time.Millisecond,
		},
		{JobID: jobID, TS: time.Now().Add(15 * time.Second), Stage: progress.StageJobDone, Dur: 15 * time.Second},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.jobsStarted))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.jobsCompleted.WithLabelValues("success")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.jobsCompleted.WithLabelValues("error")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.jobsRunning))

	require.InDelta(t, 24.0, testutil.ToFloat64(sink.staffFound.WithLabelValues(school)), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.profilesScraped.WithLabelValues(school)), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.lecturersDone.WithLabelValues(school, "true")), 1e-9)
	require.InDelta(t, 0.0, testutil.ToFloat64(sink.lecturersDone.WithLabelValues(school, "false")), 1e-9)
	require.Equal(
		t,
		1,
		testutil.CollectAndCount(sink.lecturerLatency, "expertfinder_progress_lecturer_duration_seconds"),
	)
}

// TestPrometheusSinkTracksRunningJobs verifies the running gauge follows start/error pairs.
func TestPrometheusSinkTracksRunningJobs(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	jobID := progress.UUIDToBytes(uuid.New())
	start := []progress.Event{{JobID: jobID, TS: time.Now(), Stage: progress.StageJobStart}}
	require.NoError(t, sink.Consume(context.Background(), start))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.jobsRunning))

	// A duplicate start for the same run must not double-count.
	require.NoError(t, sink.Consume(context.Background(), start))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.jobsRunning))

	fail := []progress.Event{{JobID: jobID, TS: time.Now(), Stage: progress.StageJobError, Note: "boom"}}
	require.NoError(t, sink.Consume(context.Background(), fail))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.jobsRunning))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.jobsCompleted.WithLabelValues("error")))
}
