// Package memory provides a lane-aware queue for local development, burst
// cycles and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/mediawatch/headlinewatch/internal/watch"
)

// lane buffers jobs in arrival order. The buffer grows without bound:
// handlers enqueue follow-up jobs synchronously, and a burst drain has no
// concurrent consumer to make room, so a blocking enqueue would deadlock
// the one-shot cycle.
type lane struct {
	mu     sync.Mutex
	jobs   []watch.Job
	signal chan struct{}
	closed bool
}

// Queue is an unbounded in-memory queue with one FIFO buffer per lane.
type Queue struct {
	lanes map[watch.Lane]*lane
}

// NewQueue constructs a queue serving every known lane. The capacity is an
// allocation hint for the per-lane buffers, not a limit.
func NewQueue(capacity int) *Queue {
	lanes := make(map[watch.Lane]*lane)
	for _, name := range watch.Lanes() {
		lanes[name] = &lane{
			jobs:   make([]watch.Job, 0, capacity),
			signal: make(chan struct{}, 1),
		}
	}
	return &Queue{lanes: lanes}
}

// Enqueue appends a job to a lane. It never blocks.
func (q *Queue) Enqueue(ctx context.Context, lane watch.Lane, job watch.Job) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("enqueue canceled: %w", err)
	}
	l, ok := q.lanes[lane]
	if !ok {
		return fmt.Errorf("unknown lane %q", lane)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return fmt.Errorf("lane %q closed", lane)
	}
	l.jobs = append(l.jobs, job)
	l.wake()
	return nil
}

// Dequeue pops the next job from a lane, blocking until one arrives, the
// lane closes, or the context ends.
func (q *Queue) Dequeue(ctx context.Context, lane watch.Lane) (watch.Job, error) {
	l, ok := q.lanes[lane]
	if !ok {
		return watch.Job{}, fmt.Errorf("unknown lane %q", lane)
	}
	for {
		l.mu.Lock()
		if len(l.jobs) > 0 {
			job := l.pop()
			l.mu.Unlock()
			return job, nil
		}
		closed := l.closed
		l.mu.Unlock()
		if closed {
			return watch.Job{}, fmt.Errorf("lane %q closed", lane)
		}
		select {
		case <-ctx.Done():
			return watch.Job{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
		case <-l.signal:
		}
	}
}

// TryDequeue pops the next job without blocking. Used by the burst runner.
func (q *Queue) TryDequeue(lane watch.Lane) (watch.Job, bool) {
	l, ok := q.lanes[lane]
	if !ok {
		return watch.Job{}, false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.jobs) == 0 {
		return watch.Job{}, false
	}
	return l.pop(), true
}

// Consume feeds lane jobs to the handler until the context finishes. A
// handler error drops the job; the in-memory transport has no redelivery.
func (q *Queue) Consume(ctx context.Context, lane watch.Lane, handler watch.Handler) error {
	for {
		job, err := q.Dequeue(ctx, lane)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		_ = handler.Handle(ctx, job)
	}
}

// Close marks every lane closed and wakes blocked consumers.
func (q *Queue) Close() {
	for _, l := range q.lanes {
		l.mu.Lock()
		if !l.closed {
			l.closed = true
			close(l.signal)
		}
		l.mu.Unlock()
	}
}

// pop removes the head job. Caller holds the lane mutex. A remaining job
// re-arms the signal so a second blocked consumer is not left sleeping.
func (l *lane) pop() watch.Job {
	job := l.jobs[0]
	l.jobs = l.jobs[1:]
	if len(l.jobs) > 0 {
		l.wake()
	}
	return job
}

// wake nudges one blocked consumer. Caller holds the lane mutex, so the
// signal channel cannot be closed concurrently.
func (l *lane) wake() {
	if l.closed {
		return
	}
	select {
	case l.signal <- struct{}{}:
	default:
	}
}
