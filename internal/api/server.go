package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jsv832/UoL-AI-Expert-Finder/internal/config"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/directory"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/dispatcher"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/metrics"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/pipeline"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/store"
)

// IDGenerator mints scrape job identifiers.
type IDGenerator interface {
	NewRawID() (uuid.UUID, error)
}

// Server wires HTTP handlers to the dispatcher and stores.
type Server struct {
	router     chi.Router
	jobs       *pipeline.JobStore
	dispatcher *dispatcher.Dispatcher
	lecturers  store.LecturerStore
	progress   *ProgressHandler
	idGen      IDGenerator
	clock      pipeline.Clock
	cfg        config.Config
	logger     *zap.Logger
}

// NewServer constructs a Server with middleware and routes. progressRepo may
// be nil; the run history endpoints then answer 503.
func NewServer(
	jobs *pipeline.JobStore,
	dispatch *dispatcher.Dispatcher,
	lecturers store.LecturerStore,
	progressRepo store.ProgressRepository,
	idGen IDGenerator,
	clock pipeline.Clock,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		jobs:       jobs,
		dispatcher: dispatch,
		lecturers:  lecturers,
		progress:   NewProgressHandler(progressRepo, logger),
		idGen:      idGen,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(60 * time.Second))
	if cfg.Server.APIKey != "" {
		r.Use(apiKeyMiddleware(cfg.Server.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/scrapes", func(r chi.Router) {
			r.Post("/", s.submitScrape)
			r.Get("/", s.progress.ListJobs)
			r.Route("/{job_id}", func(r chi.Router) {
				r.Get("/", s.getScrape)
				r.Delete("/", s.cancelScrape)
				r.Get("/schools", s.progress.ListJobSchools)
			})
		})
		r.Route("/lecturers", func(r chi.Router) {
			r.Get("/", s.listLecturers)
			r.Get("/stats", s.lecturerStats)
		})
		r.Get("/schools", s.listSchools)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if _, err := s.lecturers.Count(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "lecturer store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type scrapeRequest struct {
	// Schools is either a JSON array of school names or the string "all".
	Schools json.RawMessage `json:"schools"`
	Mode    string          `json:"mode"`
	Force   bool            `json:"force"`
}

func (s *Server) submitScrape(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	schools, err := resolveSchools(req.Schools)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	mode, err := pipeline.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	jobID, err := s.enqueueJob(r.Context(), schools, mode, req.Force)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusRequestTimeout
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id": jobID.String(),
		"status": string(pipeline.StatusPending),
	})
}

func (s *Server) getScrape(w http.ResponseWriter, r *http.Request) {
	jobID, err := parseJobID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	job, err := s.jobs.GetJob(r.Context(), jobID)
	if err == nil {
		writeJSON(w, http.StatusOK, map[string]any{"job": job})
		return
	}
	// Runs submitted before the last restart survive only in the progress
	// repository.
	if run, repoErr := s.progress.findRun(r.Context(), jobID); repoErr == nil {
		writeJSON(w, http.StatusOK, map[string]any{"job": toRunDTO(run)})
		return
	}
	writeError(w, http.StatusNotFound, "job not found")
}

func (s *Server) cancelScrape(w http.ResponseWriter, r *http.Request) {
	jobID, err := parseJobID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	switch err := s.jobs.CancelJob(r.Context(), jobID); {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{
			"job_id": jobID.String(),
			"status": string(pipeline.StatusCanceled),
		})
	case errors.Is(err, pipeline.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, pipeline.ErrJobFinished):
		writeError(w, http.StatusConflict, "job already finished")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) listSchools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"schools": directory.Schools()})
}

func (s *Server) enqueueJob(
	ctx context.Context,
	schools []directory.School,
	mode pipeline.Mode,
	force bool,
) (uuid.UUID, error) {
	jobID, err := s.idGen.NewRawID()
	if err != nil {
		return uuid.Nil, fmt.Errorf("generate job id: %w", err)
	}
	job := pipeline.Job{
		ID:        jobID,
		Schools:   schools,
		Mode:      mode,
		Force:     force,
		Submitted: s.clock.Now(),
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return uuid.Nil, fmt.Errorf("create job: %w", err)
	}
	queueCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.dispatcher.Enqueue(queueCtx, jobID); err != nil {
		return uuid.Nil, fmt.Errorf("enqueue job: %w", err)
	}
	return jobID, nil
}

// resolveSchools maps the request's schools value onto registry entries.
// Absent, null, or "all" selects every registered school.
func resolveSchools(raw json.RawMessage) ([]directory.School, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return directory.Schools(), nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if strings.EqualFold(strings.TrimSpace(single), "all") {
			return directory.Schools(), nil
		}
		return lookupSchools([]string{single})
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil, errors.New(`schools must be a list of names or "all"`)
	}
	if len(names) == 0 {
		return nil, errors.New("at least one school required")
	}
	return lookupSchools(names)
}

func lookupSchools(names []string) ([]directory.School, error) {
	schools := make([]directory.School, 0, len(names))
	for _, name := range names {
		school, ok := directory.LookupSchool(strings.TrimSpace(name))
		if !ok {
			return nil, fmt.Errorf("unknown school %q", name)
		}
		schools = append(schools, school)
	}
	return schools, nil
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		duration := time.Since(start)
		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveHTTPRequest(r.Method, route, ww.status, duration)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Duration("duration", duration),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type requestIDKey struct{}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
