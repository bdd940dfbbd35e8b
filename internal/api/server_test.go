package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jsv832/UoL-AI-Expert-Finder/internal/config"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/directory"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/dispatcher"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/lecturer"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/pipeline"
	queuemem "github.com/jsv832/UoL-AI-Expert-Finder/internal/queue/memory"
	storagemem "github.com/jsv832/UoL-AI-Expert-Finder/internal/storage/memory"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/store"
)

func TestServerSubmitScrapeSucceeds(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	body := []byte(`{"schools":["School of Computer Science"],"mode":"directory","force":true}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scrapes", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	env.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, env.jobID.String(), resp["job_id"])
	require.Equal(t, "pending", resp["status"])

	queued, err := env.queue.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, env.jobID, queued)

	job, err := env.jobs.GetJob(context.Background(), env.jobID)
	require.NoError(t, err)
	require.Equal(t, pipeline.ModeDirectory, job.Mode)
	require.True(t, job.Force)
	require.Len(t, job.Schools, 1)
	require.Equal(t, "School of Computer Science", job.Schools[0].Name)
}

func TestServerSubmitScrapeAllSchools(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scrapes", bytes.NewBufferString(`{"schools":"all"}`))
	rec := httptest.NewRecorder()

	env.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	job, err := env.jobs.GetJob(context.Background(), env.jobID)
	require.NoError(t, err)
	require.Len(t, job.Schools, len(directory.Schools()))
	require.Equal(t, pipeline.ModeFull, job.Mode)
}

func TestServerSubmitScrapeRejectsBadInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"invalid JSON", `{invalid`, "invalid JSON"},
		{"unknown school", `{"schools":["School of Wizardry"]}`, "unknown school"},
		{"empty school list", `{"schools":[]}`, "at least one school"},
		{"bad mode", `{"schools":"all","mode":"warp"}`, "unknown mode"},
		{"bad schools shape", `{"schools":42}`, "schools must be"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/scrapes", bytes.NewBufferString(tc.body))
			rec := httptest.NewRecorder()

			env.server.Handler().ServeHTTP(rec, req)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Contains(t, rec.Body.String(), tc.wantMsg)
		})
	}
}

func TestServerGetScrapeReturnsJob(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	jobID := uuid.New()
	require.NoError(t, env.jobs.CreateJob(context.Background(), pipeline.Job{
		ID:      jobID,
		Schools: []directory.School{{Name: "School of Chemistry"}},
		Mode:    pipeline.ModeFull,
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/scrapes/"+jobID.String(), nil)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), jobID.String())
	require.Contains(t, rec.Body.String(), string(pipeline.StatusPending))
}

func TestServerGetScrapeFallsBackToRunHistory(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	jobID := uuid.New()
	started := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)
	require.NoError(t, env.progress.UpsertJobStart(context.Background(), jobID, started))
	require.NoError(t, env.progress.CompleteJob(
		context.Background(), jobID, started.Add(time.Hour), store.RunSuccess, nil,
	))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/scrapes/"+jobID.String(), nil)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), string(store.RunSuccess))
}

func TestServerGetScrapeNotFound(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/scrapes/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerGetScrapeInvalidID(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/scrapes/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "invalid job_id")
}

func TestServerCancelScrape(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	jobID := uuid.New()
	require.NoError(t, env.jobs.CreateJob(context.Background(), pipeline.Job{ID: jobID}))

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/scrapes/"+jobID.String(), nil)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), string(pipeline.StatusCanceled))

	job, err := env.jobs.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	require.Equal(t, pipeline.StatusCanceled, job.Status)

	// A second cancel hits the terminal status.
	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/scrapes/"+jobID.String(), nil))
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestServerListLecturersFilters(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	seedAPILecturers(t, env.lecturers)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/lecturers?ai=true&skills=machine+learning", nil)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Lecturers []lecturer.Record `json:"lecturers"`
		Count     int               `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	require.Equal(t, "Ada Lovelace", resp.Lecturers[0].Name)
}

func TestServerListLecturersRejectsBadFilters(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/lecturers?ai=perhaps", nil)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/lecturers?match=some", nil)
	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServerLecturerStats(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	seedAPILecturers(t, env.lecturers)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/lecturers/stats", nil)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Schools []struct {
			School      string `json:"school"`
			Lecturers   int    `json:"lecturers"`
			AILecturers int    `json:"ai_lecturers"`
		} `json:"schools"`
		Lecturers   int `json:"lecturers"`
		AILecturers int `json:"ai_lecturers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 3, resp.Lecturers)
	require.Equal(t, 1, resp.AILecturers)
	require.Len(t, resp.Schools, 2)
	require.Equal(t, "School of Chemistry", resp.Schools[0].School)
	require.Equal(t, 1, resp.Schools[0].Lecturers)
	require.Equal(t, "School of Computer Science", resp.Schools[1].School)
	require.Equal(t, 2, resp.Schools[1].Lecturers)
	require.Equal(t, 1, resp.Schools[1].AILecturers)
}

func TestServerListSchools(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/schools", nil)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "School of Computer Science")
}

func TestServerReadyz(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServerReadyzStoreDown(t *testing.T) {
	t.Parallel()

	env := newTestEnvWithLecturers(t, &failingLecturerStore{})
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServerAPIKeyMiddleware(t *testing.T) {
	t.Parallel()

	env := newTestEnvWithConfig(t, config.Config{Server: config.ServerConfig{APIKey: "sesame"}})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-API-Key", "sesame")
	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestIDMiddlewareSetsHeader(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestResponseWriterHijackBehavior(t *testing.T) {
	t.Parallel()

	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}
	if _, _, err := rw.Hijack(); err == nil || err.Error() != "hijacker not supported" {
		t.Fatalf("expected unsupported hijacker error, got %v", err)
	}

	h := &hijackableRecorder{ResponseRecorder: httptest.NewRecorder()}
	rw = &responseWriter{ResponseWriter: h}
	conn, buf, err := rw.Hijack()
	if err != nil {
		t.Fatalf("expected successful hijack, got %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("close hijacked conn: %v", err)
	}
	if err := h.CloseClient(); err != nil {
		t.Fatalf("close hijacked client: %v", err)
	}
	if buf == nil {
		t.Fatal("expected buf to be non-nil")
	}
}

// --- helpers/fakes ---

type testEnv struct {
	server    *Server
	jobs      *pipeline.JobStore
	queue     *queuemem.Queue
	lecturers store.LecturerStore
	progress  store.ProgressRepository
	jobID     uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, storagemem.NewLecturerStore(), config.Config{})
}

func newTestEnvWithLecturers(t *testing.T, lecturers store.LecturerStore) *testEnv {
	t.Helper()
	return newTestEnvWith(t, lecturers, config.Config{})
}

func newTestEnvWithConfig(t *testing.T, cfg config.Config) *testEnv {
	t.Helper()
	return newTestEnvWith(t, storagemem.NewLecturerStore(), cfg)
}

func newTestEnvWith(t *testing.T, lecturers store.LecturerStore, cfg config.Config) *testEnv {
	t.Helper()
	jobID := uuid.New()
	jobs := pipeline.NewJobStore(&fakeClock{now: time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)})
	q := queuemem.NewQueue(10)
	dispatch := dispatcher.New(q, jobs, nil, 1, zap.NewNop())
	progress := storagemem.NewProgressStore()
	server := NewServer(
		jobs,
		dispatch,
		lecturers,
		progress,
		&fakeIDGen{ids: []uuid.UUID{jobID}},
		&fakeClock{now: time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)},
		cfg,
		zap.NewNop(),
	)
	return &testEnv{
		server:    server,
		jobs:      jobs,
		queue:     q,
		lecturers: lecturers,
		progress:  progress,
		jobID:     jobID,
	}
}

func seedAPILecturers(t *testing.T, s store.LecturerStore) {
	t.Helper()
	ctx := context.Background()
	records := []*lecturer.Record{
		{
			ID:           "https://eps.leeds.ac.uk/computing/staff/1/ada",
			Name:         "Ada Lovelace",
			School:       "School of Computer Science",
			AISkills:     []string{"machine learning"},
			IsAILecturer: true,
		},
		{
			ID:     "https://eps.leeds.ac.uk/computing/staff/2/bob",
			Name:   "Bob Kahn",
			School: "School of Computer Science",
		},
		{
			ID:     "https://eps.leeds.ac.uk/chemistry/staff/3/carol",
			Name:   "Carol Shaw",
			School: "School of Chemistry",
		},
	}
	for _, rec := range records {
		require.NoError(t, s.Put(ctx, rec))
	}
}

type fakeIDGen struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (f *fakeIDGen) NewRawID() (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.ids) == 0 {
		return uuid.New(), nil
	}
	id := f.ids[0]
	f.ids = f.ids[1:]
	return id, nil
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

type failingLecturerStore struct{}

func (failingLecturerStore) Put(context.Context, *lecturer.Record) error { return errors.New("down") }

func (failingLecturerStore) Get(context.Context, string) (*lecturer.Record, error) {
	return nil, errors.New("down")
}

func (failingLecturerStore) List(context.Context, store.Query) ([]*lecturer.Record, error) {
	return nil, errors.New("down")
}

func (failingLecturerStore) Names(context.Context) (map[string]store.NameRef, error) {
	return nil, errors.New("down")
}

func (failingLecturerStore) Count(context.Context) (int64, error) { return 0, errors.New("down") }

func (failingLecturerStore) Close() {}

type hijackableRecorder struct {
	*httptest.ResponseRecorder
	client net.Conn
}

func (h *hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	server, client := net.Pipe()
	h.client = client
	return server, bufio.NewReadWriter(bufio.NewReader(client), bufio.NewWriter(client)), nil
}

func (h *hijackableRecorder) CloseClient() error {
	if h.client != nil {
		if err := h.client.Close(); err != nil {
			return fmt.Errorf("close hijacker client: %w", err)
		}
	}
	return nil
}
