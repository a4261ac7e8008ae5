package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryQueue implements TransmissionQueue in process memory. It backs the
// tests and single-process deployments; semantics mirror the Redis queue.
type MemoryQueue struct {
	mu     sync.Mutex
	ready  []*Job
	dead   []*Job
	locks  map[uint]bool
	closed bool

	retention RetentionPolicy
}

func NewMemoryQueue(retention RetentionPolicy) *MemoryQueue {
	return &MemoryQueue{
		locks:     make(map[uint]bool),
		retention: retention,
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, job *Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	q.ready = append(q.ready, job)
	return nil
}

func (q *MemoryQueue) EnqueueAfter(ctx context.Context, job *Job, delay time.Duration) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.mu.Unlock()

	time.AfterFunc(delay, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		if !q.closed {
			q.ready = append(q.ready, job)
		}
	})
	return nil
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, ErrQueueClosed
	}
	if len(q.ready) == 0 {
		return nil, nil
	}
	job := q.ready[0]
	q.ready = q.ready[1:]
	return job, nil
}

func (q *MemoryQueue) Ack(ctx context.Context, job *Job) error {
	return nil
}

func (q *MemoryQueue) DeadLetter(ctx context.Context, job *Job, reason string) error {
	if !q.retention.KeepFailed {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dead = append(q.dead, job)
	return nil
}

func (q *MemoryQueue) AcquireDocumentLock(ctx context.Context, documentID uint) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.locks[documentID] {
		return false, nil
	}
	q.locks[documentID] = true
	return true, nil
}

func (q *MemoryQueue) ReleaseDocumentLock(ctx context.Context, documentID uint) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.locks, documentID)
	return nil
}

// DeadLetters returns a copy of the dead-letter list, for tests and
// inspection.
func (q *MemoryQueue) DeadLetters() []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*Job, len(q.dead))
	copy(out, q.dead)
	return out
}

// Pending returns the number of ready jobs.
func (q *MemoryQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ready)
}

// Close stops accepting work.
func (q *MemoryQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}
