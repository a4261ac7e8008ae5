package queue

import (
	"context"
	"errors"
	"time"

	"github.com/facturalink/dte-backend/pkg/hacienda"
)

var ErrQueueClosed = errors.New("queue closed")

// Job is the unit carried on the transmission queue. The durable job record
// lives in the database; this is only the delivery envelope.
type Job struct {
	ID               string               `json:"id"`
	TenantID         uint                 `json:"tenant_id"`
	DocumentID       uint                 `json:"document_id"`
	Environment      hacienda.Environment `json:"environment"`
	Attempt          int                  `json:"attempt"`
	MaxAttempts      int                  `json:"max_attempts"`
	IsComplianceTest bool                 `json:"is_compliance_test"`
	ComplianceEvent  string               `json:"compliance_event,omitempty"`
	EnqueuedAt       time.Time            `json:"enqueued_at"`

	// delivered is the raw payload exactly as the backend handed it out.
	// Acking must target that entry even after the worker mutates the
	// envelope (the retry path bumps Attempt before acking).
	delivered []byte
}

// RetryPolicy is the portable retry contract: attempts and exponential
// backoff, independent of the queue backend.
type RetryPolicy struct {
	MaxAttempts       int
	BackoffBase       time.Duration
	BackoffMultiplier int
}

// Delay returns the backoff before the given retry attempt (1-based; the
// first retry waits BackoffBase).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.BackoffBase
	for i := 1; i < attempt; i++ {
		delay *= time.Duration(p.BackoffMultiplier)
	}
	return delay
}

// RetentionPolicy controls whether finished jobs stay visible on the backend.
type RetentionPolicy struct {
	KeepCompleted bool
	KeepFailed    bool
}

// TransmissionQueue is the durable, at-least-once queue feeding the workers.
// Per-document exclusivity is provided through the document lock; a worker
// must hold it for the whole processing of a job.
type TransmissionQueue interface {
	Enqueue(ctx context.Context, job *Job) error
	EnqueueAfter(ctx context.Context, job *Job, delay time.Duration) error

	// Dequeue returns the next ready job, or (nil, nil) when none is ready.
	Dequeue(ctx context.Context) (*Job, error)

	Ack(ctx context.Context, job *Job) error
	DeadLetter(ctx context.Context, job *Job, reason string) error

	AcquireDocumentLock(ctx context.Context, documentID uint) (bool, error)
	ReleaseDocumentLock(ctx context.Context, documentID uint) error
}
