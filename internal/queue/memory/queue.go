// Package memory provides the in-process job queue.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Queue is a bounded in-memory job queue with context-aware operations. It
// carries job IDs only; the job store holds the job itself.
type Queue struct {
	ch      chan uuid.UUID
	closeMu sync.Mutex
	closed  bool
}

// NewQueue constructs a queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{
		ch: make(chan uuid.UUID, capacity),
	}
}

// Enqueue pushes a job ID into the queue or returns if the context ends.
func (q *Queue) Enqueue(ctx context.Context, jobID uuid.UUID) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- jobID:
		return nil
	}
}

// Dequeue pops the next job ID, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (uuid.UUID, error) {
	select {
	case <-ctx.Done():
		return uuid.Nil, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case jobID, ok := <-q.ch:
		if !ok {
			return uuid.Nil, errors.New("queue closed")
		}
		return jobID, nil
	}
}

// Close closes the underlying channel for shutdown.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
