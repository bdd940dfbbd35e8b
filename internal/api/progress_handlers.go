package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jsv832/UoL-AI-Expert-Finder/internal/store"
)

const (
	defaultJobLimit    = 50
	maxJobLimit        = 500
	defaultSchoolLimit = 100
	maxSchoolLimit     = 1000
	progressTimeout    = 3 * time.Second
)

// ProgressHandler exposes read-only run history endpoints.
type ProgressHandler struct {
	repo    store.ProgressRepository
	timeout time.Duration
	logger  *zap.Logger
}

// NewProgressHandler wires the repository and logger.
func NewProgressHandler(repo store.ProgressRepository, logger *zap.Logger) *ProgressHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressHandler{
		repo:    repo,
		timeout: progressTimeout,
		logger:  logger,
	}
}

// ListJobs handles GET /api/v1/scrapes?status=&limit=&offset=. It returns a
// JSON object {"jobs": [...]} on success, 400 for invalid filters, 503 when
// the repository is unavailable, or 500 if the repository call fails.
func (h *ProgressHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "progress repository unavailable")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	limit, offset, err := parseLimitOffset(r, defaultJobLimit, maxJobLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	statusParam := strings.TrimSpace(r.URL.Query().Get("status"))
	var status *store.JobRunStatus
	if statusParam != "" {
		statusVal, parseErr := parseStatus(statusParam)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, parseErr.Error())
			return
		}
		status = &statusVal
	}
	runs, err := h.repo.ListJobs(ctx, status, limit, offset)
	if err != nil {
		h.logger.Error("list jobs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"jobs": toRunDTOs(runs),
	})
}

// ListJobSchools handles GET /api/v1/scrapes/{job_id}/schools?limit=&offset=.
// It returns {"schools": [...]} on success, 400 for invalid query parameters,
// 503 when the repository is missing, or 500 for repository errors.
func (h *ProgressHandler) ListJobSchools(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "progress repository unavailable")
		return
	}
	jobID, err := parseJobID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, offset, err := parseLimitOffset(r, defaultSchoolLimit, maxSchoolLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	stats, err := h.repo.ListJobSchools(ctx, jobID, limit, offset)
	if err != nil {
		h.logger.Error("list job schools failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list job schools")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"schools": toSchoolDTOs(stats),
	})
}

// findRun loads one run from the repository for the job detail fallback.
func (h *ProgressHandler) findRun(ctx context.Context, jobID uuid.UUID) (store.JobRun, error) {
	if h.repo == nil {
		return store.JobRun{}, store.ErrNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	return h.repo.GetJob(ctx, jobID)
}

func parseJobID(r *http.Request) (uuid.UUID, error) {
	jobIDStr := chi.URLParam(r, "job_id")
	if jobIDStr == "" {
		return uuid.UUID{}, errors.New("job_id is required")
	}
	jobID, err := uuid.Parse(jobIDStr)
	if err != nil {
		return uuid.UUID{}, errors.New("invalid job_id")
	}
	return jobID, nil
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		if val > maxLimit {
			val = maxLimit
		}
		limit = val
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}

func parseStatus(input string) (store.JobRunStatus, error) {
	switch strings.ToLower(input) {
	case "", "running":
		return store.RunRunning, nil
	case "success":
		return store.RunSuccess, nil
	case "error", "failed", "failure":
		return store.RunError, nil
	default:
		return "", errors.New("invalid status")
	}
}

func toRunDTOs(in []store.JobRun) []runDTO {
	out := make([]runDTO, 0, len(in))
	for _, run := range in {
		out = append(out, toRunDTO(run))
	}
	return out
}

func toRunDTO(run store.JobRun) runDTO {
	return runDTO{
		ID:         run.ID.String(),
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Status:     string(run.Status),
		Error:      run.ErrorMessage,
	}
}

func toSchoolDTOs(in []store.SchoolStats) []schoolProgressDTO {
	out := make([]schoolProgressDTO, 0, len(in))
	for _, s := range in {
		out = append(out, schoolProgressDTO{
			School:          s.School,
			LastUpdate:      s.LastUpdate,
			StaffFound:      s.StaffFound,
			ProfilesScraped: s.ProfilesScraped,
			ScholarHits:     s.ScholarHits,
			AIFlagged:       s.AIFlagged,
			Errors:          s.Errors,
		})
	}
	return out
}

type runDTO struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     string     `json:"status"`
	Error      *string    `json:"error,omitempty"`
}

type schoolProgressDTO struct {
	School          string    `json:"school"`
	LastUpdate      time.Time `json:"last_update"`
	StaffFound      int64     `json:"staff_found"`
	ProfilesScraped int64     `json:"profiles_scraped"`
	ScholarHits     int64     `json:"scholar_hits"`
	AIFlagged       int64     `json:"ai_flagged"`
	Errors          int64     `json:"errors"`
}
