package sinks

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jsv832/UoL-AI-Expert-Finder/internal/progress"
)

// PrometheusSink exports scrape progress via Prometheus. It owns the
// collectors for the job lifecycle and the per-school pipeline counters; the
// lower-level fetch and classifier counters live in the metrics package.
type PrometheusSink struct {
	jobsStarted   prometheus.Counter
	jobsCompleted *prometheus.CounterVec
	jobsRunning   prometheus.Gauge
	jobRuntime    *prometheus.HistogramVec

	staffFound       *prometheus.CounterVec
	profilesScraped  *prometheus.CounterVec
	scholarMatches   *prometheus.CounterVec
	lecturersDone    *prometheus.CounterVec
	lecturersSkipped *prometheus.CounterVec
	lecturerErrors   *prometheus.CounterVec
	lecturerLatency  *prometheus.HistogramVec

	tracker *jobTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		jobsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "expertfinder_progress_jobs_started_total",
			Help: "Total scrape runs that have started.",
		}),
		jobsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "expertfinder_progress_jobs_completed_total",
			Help: "Total scrape runs completed partitioned by result.",
		}, []string{"result"}),
		jobsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "expertfinder_progress_jobs_running",
			Help: "Current number of running scrape runs.",
		}),
		jobRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "expertfinder_progress_job_runtime_seconds",
			Help:    "Wall time per completed scrape run.",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 1800, 3600, 7200, 14400},
		}, []string{"result"}),
		staffFound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "expertfinder_progress_staff_found_total",
			Help: "Directory stubs discovered partitioned by school.",
		}, []string{"school"}),
		profilesScraped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "expertfinder_progress_profiles_scraped_total",
			Help: "Staff profile pages scraped partitioned by school.",
		}, []string{"school"}),
		scholarMatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "expertfinder_progress_scholar_matches_total",
			Help: "Lecturers matched to a publication profile partitioned by school.",
		}, []string{"school"}),
		lecturersDone: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "expertfinder_progress_lecturers_total",
			Help: "Lecturers fully processed partitioned by school and AI flag.",
		}, []string{"school", "ai"}),
		lecturersSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "expertfinder_progress_lecturers_skipped_total",
			Help: "Lecturers skipped because a prior run already processed them.",
		}, []string{"school"}),
		lecturerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "expertfinder_progress_lecturer_errors_total",
			Help: "Lecturers whose processing failed partitioned by school.",
		}, []string{"school"}),
		lecturerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "expertfinder_progress_lecturer_duration_seconds",
			Help:    "End-to-end processing time per lecturer partitioned by school.",
			Buckets: []float64{0.05, 0.25, 1, 5, 15, 30, 60, 120},
		}, []string{"school"}),
		tracker: newJobTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.jobsStarted,
		s.jobsCompleted,
		s.jobsRunning,
		s.jobRuntime,
		s.staffFound,
		s.profilesScraped,
		s.scholarMatches,
		s.lecturersDone,
		s.lecturersSkipped,
		s.lecturerErrors,
		s.lecturerLatency,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageJobStart, progress.StageJobDone, progress.StageJobError:
		s.handleJobEvent(evt)
	case progress.StageStaffFound:
		s.staffFound.WithLabelValues(schoolLabel(evt)).Add(float64(evt.Delta()))
	case progress.StageProfileDone:
		s.profilesScraped.WithLabelValues(schoolLabel(evt)).Add(float64(evt.Delta()))
	case progress.StageScholarMatch:
		s.scholarMatches.WithLabelValues(schoolLabel(evt)).Add(float64(evt.Delta()))
	case progress.StageLecturerDone:
		s.lecturersDone.WithLabelValues(schoolLabel(evt), strconv.FormatBool(evt.AI)).Add(float64(evt.Delta()))
		if evt.Dur > 0 {
			s.lecturerLatency.WithLabelValues(schoolLabel(evt)).Observe(evt.Dur.Seconds())
		}
	case progress.StageLecturerSkip:
		s.lecturersSkipped.WithLabelValues(schoolLabel(evt)).Add(float64(evt.Delta()))
	case progress.StageLecturerError:
		s.lecturerErrors.WithLabelValues(schoolLabel(evt)).Add(float64(evt.Delta()))
	}
}

func (s *PrometheusSink) handleJobEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageJobStart:
		s.jobsStarted.Inc()
		if s.tracker.start(evt.JobID) {
			s.jobsRunning.Inc()
		}
	case progress.StageJobDone:
		s.jobsCompleted.WithLabelValues("success").Inc()
		s.observeRuntime(evt, "success")
	case progress.StageJobError:
		s.jobsCompleted.WithLabelValues("error").Inc()
		s.observeRuntime(evt, "error")
	}
	if evt.Stage != progress.StageJobStart && s.tracker.complete(evt.JobID) {
		s.jobsRunning.Dec()
	}
}

func (s *PrometheusSink) observeRuntime(evt progress.Event, label string) {
	if evt.Dur > 0 {
		s.jobRuntime.WithLabelValues(label).Observe(evt.Dur.Seconds())
	}
}

func schoolLabel(evt progress.Event) string {
	if evt.School == "" {
		return "unknown"
	}
	return evt.School
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type jobTracker struct {
	mu      sync.Mutex
	running map[[16]byte]struct{}
}

func newJobTracker() *jobTracker {
	return &jobTracker{running: make(map[[16]byte]struct{})}
}

func (t *jobTracker) start(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *jobTracker) complete(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
