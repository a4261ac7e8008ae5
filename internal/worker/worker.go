package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/facturalink/dte-backend/internal/app/model"
	"github.com/facturalink/dte-backend/internal/app/repository"
	"github.com/facturalink/dte-backend/internal/queue"
	"github.com/facturalink/dte-backend/pkg/hacienda"
	"github.com/facturalink/dte-backend/pkg/logger"
	"github.com/facturalink/dte-backend/pkg/tokenstore"
	"gorm.io/gorm"
)

// ExhaustedReason is the synthetic rejection reason written when the retry
// budget runs out.
const ExhaustedReason = "transmission exhausted: retry attempts consumed"

// lockBusyDelay is how long a job waits when another worker holds its
// document.
const lockBusyDelay = 5 * time.Second

// AuthorityClient is the slice of the Hacienda client the worker drives.
type AuthorityClient interface {
	SubmitDocument(ctx context.Context, env hacienda.Environment, token string, req hacienda.ReceptionRequest) (*hacienda.Result, error)
}

// Notifier tells the tenant about terminal failures. Fire and forget; a
// broken notifier must never block the pipeline.
type Notifier interface {
	NotifyTransmissionFailure(tenantID uint, documentID uint, reason string)
}

// EventSink receives terminal transmission outcomes. Compliance tracking and
// the dashboard event hub hang off of it.
type EventSink interface {
	TransmissionSucceeded(job *queue.Job, doc *model.Document)
	TransmissionFailed(job *queue.Job, doc *model.Document, reason string)
}

// Worker is the bounded pool pulling transmission jobs off the queue and
// driving the document state machine.
type Worker struct {
	queue     queue.TransmissionQueue
	docs      repository.DocumentRepository
	jobs      repository.TransmissionRepository
	tokens    tokenstore.Store
	authority AuthorityClient
	notifier  Notifier
	events    EventSink

	policy       queue.RetryPolicy
	pollInterval time.Duration
	concurrency  int

	wg   sync.WaitGroup
	stop chan struct{}
}

func New(
	q queue.TransmissionQueue,
	docs repository.DocumentRepository,
	jobs repository.TransmissionRepository,
	tokens tokenstore.Store,
	authority AuthorityClient,
	notifier Notifier,
	events EventSink,
	policy queue.RetryPolicy,
	pollInterval time.Duration,
	concurrency int,
) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Worker{
		queue:        q,
		docs:         docs,
		jobs:         jobs,
		tokens:       tokens,
		authority:    authority,
		notifier:     notifier,
		events:       events,
		policy:       policy,
		pollInterval: pollInterval,
		concurrency:  concurrency,
		stop:         make(chan struct{}),
	}
}

// Start launches the worker pool.
func (w *Worker) Start() {
	logger.Info("Starting transmission workers", map[string]interface{}{
		"concurrency":  w.concurrency,
		"max_attempts": w.policy.MaxAttempts,
	})
	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.run()
	}
}

// Stop drains the pool. In-flight jobs finish; queued jobs stay on the queue.
func (w *Worker) Stop() {
	close(w.stop)
	w.wg.Wait()
	logger.Info("Transmission workers stopped")
}

func (w *Worker) run() {
	defer w.wg.Done()
	ctx := context.Background()

	for {
		select {
		case <-w.stop:
			return
		default:
		}

		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrQueueClosed) {
				return
			}
			logger.Error("Failed to dequeue transmission job", err)
			time.Sleep(w.pollInterval)
			continue
		}
		if job == nil {
			time.Sleep(w.pollInterval)
			continue
		}

		w.Process(ctx, job)
	}
}

// Process runs the full per-job algorithm. Exported so tests can drive jobs
// synchronously.
func (w *Worker) Process(ctx context.Context, job *queue.Job) {
	locked, err := w.queue.AcquireDocumentLock(ctx, job.DocumentID)
	if err != nil {
		logger.Error("Failed to acquire document lock", err, map[string]interface{}{
			"job_id": job.ID,
		})
		w.requeue(ctx, job, lockBusyDelay)
		return
	}
	if !locked {
		// Another worker is on this document; try again shortly without
		// consuming an attempt.
		w.requeue(ctx, job, lockBusyDelay)
		return
	}
	defer w.queue.ReleaseDocumentLock(ctx, job.DocumentID)

	doc, err := w.docs.FindByID(job.DocumentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Transmission job references missing document, discarding", map[string]interface{}{
				"job_id":      job.ID,
				"document_id": job.DocumentID,
			})
			w.queue.Ack(ctx, job)
			return
		}
		logger.Error("Failed to load document", err, map[string]interface{}{"job_id": job.ID})
		w.requeue(ctx, job, w.pollInterval)
		return
	}

	// Idempotent replay protection: a terminal document means the job
	// already ran to completion somewhere; no authority call is made.
	if doc.State.Terminal() {
		logger.Info("Document already terminal, discarding replayed job", map[string]interface{}{
			"job_id": job.ID,
			"state":  string(doc.State),
		})
		w.jobs.MarkJobCompleted(job.ID)
		w.queue.Ack(ctx, job)
		return
	}

	if doc.State != model.DocumentStateSigned && doc.State != model.DocumentStateRetryPending {
		logger.Warn("Document not ready for transmission, discarding job", map[string]interface{}{
			"job_id": job.ID,
			"state":  string(doc.State),
		})
		w.queue.Ack(ctx, job)
		return
	}

	attemptNumber := job.Attempt + 1

	token, err := w.tokens.GetToken(ctx, job.TenantID, job.Environment)
	if err != nil {
		w.recordAttempt(job, attemptNumber, model.AttemptOutcomeAuthFailed, "", err.Error())
		w.handleTransient(ctx, job, doc, attemptNumber, fmt.Sprintf("authentication failed: %v", err))
		return
	}

	// Dispatch marks the document SUBMITTED before the wire call so a crash
	// between the two is visible; a state conflict here means another
	// attempt won the race.
	now := time.Now()
	if err := w.docs.Transition(doc, model.DocumentStateSubmitted, map[string]interface{}{
		"submitted_at":  &now,
		"attempt_count": gorm.Expr("attempt_count + 1"),
	}); err != nil {
		if errors.Is(err, repository.ErrStateConflict) || errors.Is(err, repository.ErrInvalidTransition) {
			logger.Warn("Lost dispatch race, discarding job delivery", map[string]interface{}{
				"job_id": job.ID,
			})
			w.queue.Ack(ctx, job)
			return
		}
		logger.Error("Failed to transition document to SUBMITTED", err, map[string]interface{}{"job_id": job.ID})
		w.requeue(ctx, job, w.pollInterval)
		return
	}

	result := w.submitWithTokenRetry(ctx, job, doc, token, attemptNumber)
	if result == nil {
		w.handleTransient(ctx, job, doc, attemptNumber, "submission could not be performed")
		return
	}

	switch result.Outcome {
	case hacienda.OutcomeAccepted:
		w.handleAccepted(ctx, job, doc, attemptNumber, result)
	case hacienda.OutcomeRejected:
		w.handleRejected(ctx, job, doc, attemptNumber, result)
	default:
		w.recordAttempt(job, attemptNumber, model.AttemptOutcomeTransient, result.Code, result.Description)
		w.handleTransient(ctx, job, doc, attemptNumber, result.Description)
	}
}

// submitWithTokenRetry performs the authority call, allowing exactly one
// forced token refresh when the authority says the token is stale. That
// refresh retry does not consume a backoff slot.
func (w *Worker) submitWithTokenRetry(ctx context.Context, job *queue.Job, doc *model.Document, token string, attemptNumber int) *hacienda.Result {
	req := hacienda.ReceptionRequest{
		IDEnvio:   time.Now().UnixMilli(),
		Version:   1,
		TipoDte:   string(doc.Type),
		Documento: doc.Payload,
	}

	forcedRefresh := false
	for {
		result, err := w.authority.SubmitDocument(ctx, job.Environment, token, req)
		if err != nil {
			logger.Error("Authority submission failed before dispatch", err, map[string]interface{}{
				"job_id": job.ID,
			})
			return nil
		}

		if result.Outcome == hacienda.OutcomeTokenExpired && !forcedRefresh {
			forcedRefresh = true
			w.recordAttempt(job, attemptNumber, model.AttemptOutcomeTokenExpired, result.Code, result.Description)
			w.tokens.Invalidate(job.TenantID, job.Environment)

			fresh, err := w.tokens.GetToken(ctx, job.TenantID, job.Environment)
			if err != nil {
				logger.Warn("Forced token refresh failed", map[string]interface{}{
					"job_id": job.ID,
					"error":  err.Error(),
				})
				return result
			}
			token = fresh
			continue
		}

		return result
	}
}

func (w *Worker) handleAccepted(ctx context.Context, job *queue.Job, doc *model.Document, attemptNumber int, result *hacienda.Result) {
	w.recordAttempt(job, attemptNumber, model.AttemptOutcomeAccepted, result.Code, result.Description)

	now := time.Now()
	err := w.docs.Transition(doc, model.DocumentStateAccepted, map[string]interface{}{
		"stamp":       result.Stamp,
		"accepted_at": &now,
	})
	if err != nil {
		// The document left SUBMITTED while we waited on the wire (for
		// example the job was dead-lettered by timeout). A late acceptance
		// must never be applied, only logged.
		logger.Error("Acceptance arrived for document no longer in SUBMITTED, dropping", err, map[string]interface{}{
			"job_id":          job.ID,
			"generation_code": doc.GenerationCode,
			"stamp":           result.Stamp,
		})
		w.queue.Ack(ctx, job)
		return
	}

	w.jobs.MarkJobCompleted(job.ID)
	w.queue.Ack(ctx, job)

	logger.Info("Document accepted by authority", map[string]interface{}{
		"job_id":          job.ID,
		"generation_code": doc.GenerationCode,
		"attempt":         attemptNumber,
	})

	if w.events != nil {
		w.events.TransmissionSucceeded(job, doc)
	}
}

func (w *Worker) handleRejected(ctx context.Context, job *queue.Job, doc *model.Document, attemptNumber int, result *hacienda.Result) {
	w.recordAttempt(job, attemptNumber, model.AttemptOutcomeRejected, result.Code, result.Description)

	reason := result.Description
	if reason == "" {
		reason = "rejected by authority"
	}

	now := time.Now()
	err := w.docs.Transition(doc, model.DocumentStateRejected, map[string]interface{}{
		"rejection_reason": reason,
		"rejected_at":      &now,
	})
	if err != nil {
		logger.Error("Rejection arrived for document no longer in SUBMITTED, dropping", err, map[string]interface{}{
			"job_id": job.ID,
		})
		w.queue.Ack(ctx, job)
		return
	}

	// Business rejection is terminal for this cycle; it is never retried.
	w.jobs.MarkJobCompleted(job.ID)
	w.queue.Ack(ctx, job)

	logger.Warn("Document rejected by authority", map[string]interface{}{
		"job_id":          job.ID,
		"generation_code": doc.GenerationCode,
		"reason":          reason,
	})

	if w.events != nil {
		w.events.TransmissionFailed(job, doc, reason)
	}
}

func (w *Worker) handleTransient(ctx context.Context, job *queue.Job, doc *model.Document, attemptNumber int, reason string) {
	if doc.State == model.DocumentStateSubmitted {
		if err := w.docs.Transition(doc, model.DocumentStateRetryPending, nil); err != nil {
			logger.Error("Failed to park document for retry", err, map[string]interface{}{
				"job_id": job.ID,
			})
		}
	}

	w.jobs.IncrementJobAttempt(job.ID, reason)
	job.Attempt = attemptNumber

	if job.Attempt < job.MaxAttempts {
		delay := w.policy.Delay(job.Attempt)
		logger.Warn("Transient transmission failure, rescheduling", map[string]interface{}{
			"job_id":  job.ID,
			"attempt": job.Attempt,
			"delay":   delay.String(),
			"reason":  reason,
		})
		w.queue.Ack(ctx, job)
		if err := w.queue.EnqueueAfter(ctx, job, delay); err != nil {
			logger.Error("Failed to reschedule job", err, map[string]interface{}{"job_id": job.ID})
		}
		return
	}

	// Retry budget consumed: synthetic terminal rejection, dead-letter,
	// notify.
	w.recordAttempt(job, job.Attempt, model.AttemptOutcomeExhausted, "", ExhaustedReason)

	now := time.Now()
	err := w.docs.Transition(doc, model.DocumentStateRejected, map[string]interface{}{
		"rejection_reason": ExhaustedReason,
		"rejected_at":      &now,
	})
	if err != nil {
		logger.Error("Failed to mark exhausted document rejected", err, map[string]interface{}{
			"job_id": job.ID,
		})
	}

	w.jobs.MarkJobDeadLettered(job.ID, reason)
	w.queue.DeadLetter(ctx, job, ExhaustedReason)

	logger.Error("Transmission exhausted, job dead-lettered", errors.New(reason), map[string]interface{}{
		"job_id":          job.ID,
		"generation_code": doc.GenerationCode,
		"attempts":        job.Attempt,
	})

	if w.notifier != nil {
		w.notifier.NotifyTransmissionFailure(job.TenantID, job.DocumentID, ExhaustedReason)
	}
	if w.events != nil {
		w.events.TransmissionFailed(job, doc, ExhaustedReason)
	}
}

func (w *Worker) requeue(ctx context.Context, job *queue.Job, delay time.Duration) {
	w.queue.Ack(ctx, job)
	if err := w.queue.EnqueueAfter(ctx, job, delay); err != nil {
		logger.Error("Failed to requeue job", err, map[string]interface{}{"job_id": job.ID})
	}
}

// recordAttempt appends one immutable audit row. Audit failures are logged
// and swallowed; the pipeline never stops for them.
func (w *Worker) recordAttempt(job *queue.Job, attemptNumber int, outcome model.AttemptOutcome, code, message string) {
	attempt := &model.TransmissionAttempt{
		JobID:            job.ID,
		TenantID:         job.TenantID,
		DocumentID:       job.DocumentID,
		AttemptNumber:    attemptNumber,
		Outcome:          outcome,
		AuthorityCode:    code,
		AuthorityMessage: message,
	}
	if err := w.jobs.RecordAttempt(attempt); err != nil {
		logger.Error("Failed to record transmission attempt", err, map[string]interface{}{
			"job_id": job.ID,
		})
	}
}
