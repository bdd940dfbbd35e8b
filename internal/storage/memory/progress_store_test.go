package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jsv832/UoL-AI-Expert-Finder/internal/store"
)

func TestProgressStoreJobLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewProgressStore()
	jobID := uuid.New()
	started := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)

	if err := s.UpsertJobStart(ctx, jobID, started); err != nil {
		t.Fatalf("UpsertJobStart() error = %v", err)
	}
	run, err := s.GetJob(ctx, jobID)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if run.Status != store.RunRunning {
		t.Fatalf("Status = %q, want %q", run.Status, store.RunRunning)
	}
	if !run.StartedAt.Equal(started) {
		t.Fatalf("StartedAt = %v, want %v", run.StartedAt, started)
	}

	// A second start keeps the original timestamp.
	if err := s.UpsertJobStart(ctx, jobID, started.Add(time.Hour)); err != nil {
		t.Fatalf("UpsertJobStart() again error = %v", err)
	}
	run, _ = s.GetJob(ctx, jobID)
	if !run.StartedAt.Equal(started) {
		t.Fatalf("StartedAt after restart = %v, want %v", run.StartedAt, started)
	}

	msg := "directory unreachable"
	finished := started.Add(10 * time.Minute)
	if err := s.CompleteJob(ctx, jobID, finished, store.RunError, &msg); err != nil {
		t.Fatalf("CompleteJob() error = %v", err)
	}
	run, _ = s.GetJob(ctx, jobID)
	if run.Status != store.RunError {
		t.Fatalf("Status = %q, want %q", run.Status, store.RunError)
	}
	if run.FinishedAt == nil || !run.FinishedAt.Equal(finished) {
		t.Fatalf("FinishedAt = %v, want %v", run.FinishedAt, finished)
	}
	if run.ErrorMessage == nil || *run.ErrorMessage != msg {
		t.Fatalf("ErrorMessage = %v, want %q", run.ErrorMessage, msg)
	}
}

func TestProgressStoreCompleteUnknownRunIsNoop(t *testing.T) {
	t.Parallel()

	s := NewProgressStore()
	if err := s.CompleteJob(context.Background(), uuid.New(), time.Now(), store.RunSuccess, nil); err != nil {
		t.Fatalf("CompleteJob() error = %v", err)
	}
}

func TestProgressStoreGetJobNotFound(t *testing.T) {
	t.Parallel()

	s := NewProgressStore()
	_, err := s.GetJob(context.Background(), uuid.New())
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("GetJob() error = %v, want store.ErrNotFound", err)
	}
}

func TestProgressStoreListJobsFiltersAndPaginates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewProgressStore()
	base := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)

	ids := make([]uuid.UUID, 3)
	for i := range ids {
		ids[i] = uuid.New()
		if err := s.UpsertJobStart(ctx, ids[i], base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("UpsertJobStart() error = %v", err)
		}
	}
	if err := s.CompleteJob(ctx, ids[0], base.Add(time.Hour), store.RunSuccess, nil); err != nil {
		t.Fatalf("CompleteJob() error = %v", err)
	}

	running := store.RunRunning
	runs, err := s.ListJobs(ctx, &running, 10, 0)
	if err != nil {
		t.Fatalf("ListJobs() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("running runs = %d, want 2", len(runs))
	}
	// Newest first.
	if runs[0].ID != ids[2] || runs[1].ID != ids[1] {
		t.Fatalf("unexpected order: %v, %v", runs[0].ID, runs[1].ID)
	}

	page, err := s.ListJobs(ctx, nil, 1, 1)
	if err != nil {
		t.Fatalf("ListJobs() page error = %v", err)
	}
	if len(page) != 1 || page[0].ID != ids[1] {
		t.Fatalf("page = %v, want single run %v", page, ids[1])
	}
}

func TestProgressStoreSchoolStatsAccumulate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewProgressStore()
	jobID := uuid.New()
	at := time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)

	writes := []struct {
		school  string
		counter string
		delta   int64
	}{
		{"School of Computer Science", store.CounterStaff, 40},
		{"School of Computer Science", store.CounterProfiles, 12},
		{"School of Computer Science", store.CounterProfiles, 3},
		{"School of Chemistry", store.CounterStaff, 25},
	}
	for _, wr := range writes {
		if err := s.UpsertSchoolStats(ctx, jobID, wr.school, wr.counter, wr.delta, at); err != nil {
			t.Fatalf("UpsertSchoolStats(%s, %s) error = %v", wr.school, wr.counter, err)
		}
	}

	stats, err := s.ListJobSchools(ctx, jobID, 10, 0)
	if err != nil {
		t.Fatalf("ListJobSchools() error = %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("schools = %d, want 2", len(stats))
	}
	if stats[0].School != "School of Chemistry" {
		t.Fatalf("first school = %q, want alphabetical order", stats[0].School)
	}
	cs := stats[1]
	if cs.StaffFound != 40 || cs.ProfilesScraped != 15 {
		t.Fatalf("computer science stats = %+v, want staff 40, profiles 15", cs)
	}
	if !cs.LastUpdate.Equal(at) {
		t.Fatalf("LastUpdate = %v, want %v", cs.LastUpdate, at)
	}
}

func TestProgressStoreRejectsUnknownCounter(t *testing.T) {
	t.Parallel()

	s := NewProgressStore()
	err := s.UpsertSchoolStats(context.Background(), uuid.New(), "School of Law", "visits", 1, time.Now())
	if err == nil {
		t.Fatal("UpsertSchoolStats() error = nil, want unknown counter error")
	}
}
