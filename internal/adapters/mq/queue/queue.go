// Package queue buffers assignment notices between the batch job and the
// notification workers.
package queue

import (
	"context"
	"sync"

	"github.com/okian/gmassign/internal/domain/model"
	"github.com/okian/gmassign/pkg/metrics"
)

const defaultCapacity = 1024

// Queue accepts notices without blocking and hands them to consumers.
type Queue interface {
	// Enqueue returns ErrFull when no slot is free and ErrClosed after Close.
	Enqueue(ctx context.Context, n model.AssignmentNotice) error
	// Notices is closed once the queue is closed and drained.
	Notices() <-chan model.AssignmentNotice
	Len() int
	Close() error
}

// InMemoryQueue is a bounded channel-backed Queue.
type InMemoryQueue struct {
	notices  chan model.AssignmentNotice
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.notices = make(chan model.AssignmentNotice, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue implements Queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, n model.AssignmentNotice) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueRejection("closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueRejection("context_cancelled")
		return err
	}

	select {
	case q.notices <- n:
		metrics.UpdateQueueSize(len(q.notices))
		return nil
	default:
		metrics.RecordQueueRejection("full")
		return ErrFull
	}
}

// Notices implements Queue.
func (q *InMemoryQueue) Notices() <-chan model.AssignmentNotice {
	return q.notices
}

// Len implements Queue.
func (q *InMemoryQueue) Len() int {
	size := len(q.notices)
	metrics.UpdateQueueSize(size)
	return size
}

// Close stops accepting notices. Queued notices remain readable.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.notices)
	q.closed = true
	return nil
}
