// Package dispatcher manages scrape execution over the job queue.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jsv832/UoL-AI-Expert-Finder/internal/metrics"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/pipeline"
)

// Queue hands job IDs from the API to the dispatcher.
type Queue interface {
	Enqueue(ctx context.Context, jobID uuid.UUID) error
	Dequeue(ctx context.Context) (uuid.UUID, error)
}

// Runner executes one scrape job.
type Runner interface {
	Run(ctx context.Context, job pipeline.Job) (pipeline.Summary, error)
}

// Dispatcher consumes the queue and drives jobs through their lifecycle.
// Jobs run one at a time per consumer; both scraped sites throttle
// aggressively, so a second concurrent job only competes for the same
// per-host budget.
type Dispatcher struct {
	queue     Queue
	jobs      *pipeline.JobStore
	runner    Runner
	consumers int
	logger    *zap.Logger
}

// New creates a Dispatcher with the given number of queue consumers.
func New(queue Queue, jobs *pipeline.JobStore, runner Runner, consumers int, logger *zap.Logger) *Dispatcher {
	if consumers < 1 {
		consumers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		queue:     queue,
		jobs:      jobs,
		runner:    runner,
		consumers: consumers,
		logger:    logger,
	}
}

// Run starts the consumers and blocks until the context finishes.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < d.consumers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.consume(ctx)
		}()
	}
	<-ctx.Done()
	wg.Wait()
}

// Enqueue proxies to the underlying queue.
func (d *Dispatcher) Enqueue(ctx context.Context, jobID uuid.UUID) error {
	if err := d.queue.Enqueue(ctx, jobID); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}

func (d *Dispatcher) consume(ctx context.Context) {
	for {
		jobID, err := d.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		d.logger.Debug("dequeued job", zap.String("job_id", jobID.String()))
		d.processJob(ctx, jobID)
	}
}

func (d *Dispatcher) processJob(ctx context.Context, jobID uuid.UUID) {
	log := d.logger.With(zap.String("job_id", jobID.String()))

	job, err := d.jobs.GetJob(ctx, jobID)
	if err != nil {
		log.Error("job lookup failed", zap.Error(err))
		return
	}
	if job.Status != pipeline.StatusPending {
		// A job canceled while queued still surfaces here once.
		log.Debug("job not runnable", zap.String("status", string(job.Status)))
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	d.jobs.RegisterCancel(job.ID, cancel)

	if err := d.jobs.UpdateJobStatus(ctx, job.ID, pipeline.StatusRunning, "", pipeline.Summary{}); err != nil {
		log.Error("job status update failed", zap.Error(err))
		return
	}

	sum, runErr := d.runner.Run(runCtx, job)

	status := pipeline.StatusSucceeded
	errText := ""
	switch {
	case runCtx.Err() != nil:
		status = pipeline.StatusCanceled
		errText = "job canceled"
	case runErr != nil:
		status = pipeline.StatusFailed
		errText = runErr.Error()
	}

	if err := d.jobs.UpdateJobStatus(ctx, job.ID, status, errText, sum); err != nil {
		log.Error("final job status update failed", zap.Error(err))
	}
	metrics.ObserveJob(string(status))
	log.Info("job finished",
		zap.String("status", string(status)),
		zap.Int("staff_found", sum.StaffFound),
		zap.Int("lecturers_updated", sum.LecturersUpdated),
		zap.Int("errors", sum.Errors))
}
