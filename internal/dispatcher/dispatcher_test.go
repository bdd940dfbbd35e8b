// Package dispatcher contains tests for queue consumption and job lifecycle.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jsv832/UoL-AI-Expert-Finder/internal/pipeline"
	queuemem "github.com/jsv832/UoL-AI-Expert-Finder/internal/queue/memory"
)

// TestDispatcherRunStartsConsumers ensures consumers begin dequeuing and stop on cancel.
func TestDispatcherRunStartsConsumers(t *testing.T) {
	t.Parallel()

	queue := &blockingQueue{started: make(chan struct{}, 1)}
	dispatch := New(queue, nil, nil, 1, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		dispatch.Run(ctx)
		close(done)
	}()

	select {
	case <-queue.started:
	case <-time.After(time.Second):
		t.Fatal("consumer did not begin dequeuing")
	}

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after context cancel")
	}
}

// TestDispatcherEnqueueForwardsErrors verifies queue errors are wrapped for callers.
func TestDispatcherEnqueueForwardsErrors(t *testing.T) {
	t.Parallel()

	queue := &errorQueue{err: errors.New("boom")}
	dispatch := New(queue, nil, nil, 1, zap.NewNop())

	err := dispatch.Enqueue(context.Background(), uuid.New())
	if err == nil || err.Error() != "queue enqueue: boom" {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestDispatcherRunsPendingJob(t *testing.T) {
	t.Parallel()

	jobs := pipeline.NewJobStore(nil)
	queue := queuemem.NewQueue(4)
	runner := &fakeRunner{sum: pipeline.Summary{StaffFound: 3, LecturersUpdated: 2}}
	dispatch := New(queue, jobs, runner, 1, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := startDispatcher(ctx, dispatch)

	job := pipeline.Job{ID: uuid.New(), Mode: pipeline.ModeFull}
	if err := jobs.CreateJob(ctx, job); err != nil {
		t.Fatalf("create job: %v", err)
	}
	if err := dispatch.Enqueue(ctx, job.ID); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	final := waitForStatus(t, jobs, job.ID, pipeline.StatusSucceeded)
	if final.Summary.StaffFound != 3 || final.Summary.LecturersUpdated != 2 {
		t.Fatalf("summary not recorded: %+v", final.Summary)
	}
	if final.Started == nil || final.Finished == nil {
		t.Fatalf("lifecycle timestamps missing: %+v", final)
	}
	if runner.callCount() != 1 {
		t.Fatalf("expected one runner call, got %d", runner.callCount())
	}

	cancel()
	awaitStop(t, done)
}

func TestDispatcherRecordsFailedRun(t *testing.T) {
	t.Parallel()

	jobs := pipeline.NewJobStore(nil)
	queue := queuemem.NewQueue(4)
	runner := &fakeRunner{err: errors.New("no staff discovered")}
	dispatch := New(queue, jobs, runner, 1, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := startDispatcher(ctx, dispatch)

	job := pipeline.Job{ID: uuid.New(), Mode: pipeline.ModeDirectory}
	if err := jobs.CreateJob(ctx, job); err != nil {
		t.Fatalf("create job: %v", err)
	}
	if err := dispatch.Enqueue(ctx, job.ID); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	final := waitForStatus(t, jobs, job.ID, pipeline.StatusFailed)
	if final.ErrorText != "no staff discovered" {
		t.Fatalf("error text not recorded: %q", final.ErrorText)
	}

	cancel()
	awaitStop(t, done)
}

func TestDispatcherCancelStopsRunningJob(t *testing.T) {
	t.Parallel()

	jobs := pipeline.NewJobStore(nil)
	queue := queuemem.NewQueue(4)
	runner := &fakeRunner{block: true}
	dispatch := New(queue, jobs, runner, 1, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := startDispatcher(ctx, dispatch)

	job := pipeline.Job{ID: uuid.New(), Mode: pipeline.ModeFull}
	if err := jobs.CreateJob(ctx, job); err != nil {
		t.Fatalf("create job: %v", err)
	}
	if err := dispatch.Enqueue(ctx, job.ID); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	waitForStatus(t, jobs, job.ID, pipeline.StatusRunning)
	if err := jobs.CancelJob(ctx, job.ID); err != nil {
		t.Fatalf("cancel job: %v", err)
	}

	final := waitForStatus(t, jobs, job.ID, pipeline.StatusCanceled)
	if final.ErrorText != "job canceled" {
		t.Fatalf("error text not recorded: %q", final.ErrorText)
	}

	cancel()
	awaitStop(t, done)
}

func TestDispatcherSkipsCanceledQueuedJob(t *testing.T) {
	t.Parallel()

	jobs := pipeline.NewJobStore(nil)
	queue := queuemem.NewQueue(4)
	runner := &fakeRunner{}
	dispatch := New(queue, jobs, runner, 1, zap.NewNop())

	job := pipeline.Job{ID: uuid.New(), Mode: pipeline.ModeFull}
	if err := jobs.CreateJob(context.Background(), job); err != nil {
		t.Fatalf("create job: %v", err)
	}
	// Canceled while still queued: the dispatcher must drop it on dequeue.
	if err := jobs.CancelJob(context.Background(), job.ID); err != nil {
		t.Fatalf("cancel job: %v", err)
	}
	if err := dispatch.Enqueue(context.Background(), job.ID); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := startDispatcher(ctx, dispatch)

	sentinel := pipeline.Job{ID: uuid.New(), Mode: pipeline.ModeFull}
	if err := jobs.CreateJob(ctx, sentinel); err != nil {
		t.Fatalf("create sentinel job: %v", err)
	}
	if err := dispatch.Enqueue(ctx, sentinel.ID); err != nil {
		t.Fatalf("enqueue sentinel: %v", err)
	}

	// Once the sentinel ran, the canceled job has already been dequeued.
	waitForStatus(t, jobs, sentinel.ID, pipeline.StatusSucceeded)
	if runner.callCount() != 1 {
		t.Fatalf("canceled job reached the runner, calls=%d", runner.callCount())
	}

	final, err := jobs.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if final.Status != pipeline.StatusCanceled {
		t.Fatalf("status changed to %s", final.Status)
	}

	cancel()
	awaitStop(t, done)
}

func startDispatcher(ctx context.Context, dispatch *Dispatcher) chan struct{} {
	done := make(chan struct{})
	go func() {
		dispatch.Run(ctx)
		close(done)
	}()
	return done
}

func awaitStop(t *testing.T, done chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after context cancel")
	}
}

func waitForStatus(t *testing.T, jobs *pipeline.JobStore, jobID uuid.UUID, want pipeline.Status) pipeline.Job {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("job never reached status %s", want)
		case <-time.After(5 * time.Millisecond):
		}
		job, err := jobs.GetJob(context.Background(), jobID)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if job.Status == want {
			return job
		}
	}
}

type fakeRunner struct {
	mu    sync.Mutex
	calls int
	sum   pipeline.Summary
	err   error
	block bool
}

func (f *fakeRunner) Run(ctx context.Context, _ pipeline.Job) (pipeline.Summary, error) {
	f.mu.Lock()
	f.calls++
	sum, err, block := f.sum, f.err, f.block
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return pipeline.Summary{}, ctx.Err()
	}
	return sum, err
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type blockingQueue struct {
	started chan struct{}
}

func (q *blockingQueue) Enqueue(_ context.Context, _ uuid.UUID) error {
	select {
	case q.started <- struct{}{}:
	default:
	}
	return nil
}

func (q *blockingQueue) Dequeue(ctx context.Context) (uuid.UUID, error) {
	select {
	case q.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return uuid.Nil, fmt.Errorf("blocking dequeue canceled: %w", ctx.Err())
}

type errorQueue struct {
	err error
}

func (q *errorQueue) Enqueue(context.Context, uuid.UUID) error {
	return q.err
}

func (q *errorQueue) Dequeue(context.Context) (uuid.UUID, error) {
	return uuid.Nil, nil
}
