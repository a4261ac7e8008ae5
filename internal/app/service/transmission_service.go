package service

import (
	"context"
	"errors"
	"time"

	"github.com/facturalink/dte-backend/internal/app/model"
	"github.com/facturalink/dte-backend/internal/app/repository"
	"github.com/facturalink/dte-backend/internal/queue"
	"github.com/facturalink/dte-backend/pkg/hacienda"
	"github.com/facturalink/dte-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrDocumentNotTransmittable = errors.New("document is not in a transmittable state")
	ErrProductionNotAuthorized  = errors.New("tenant is not authorized for production transmission")
	ErrJobNotFound              = errors.New("transmission job not found")
)

// TransmissionService is the enqueue boundary. It validates the request,
// creates the durable job record and hands the envelope to the queue;
// processing is entirely asynchronous from here.
type TransmissionService interface {
	Enqueue(ctx context.Context, tenantID, documentID uint, env hacienda.Environment, isComplianceTest bool, event model.ComplianceEventType) (string, error)
	GetJob(tenantID uint, jobID string) (*model.TransmissionJob, error)
	ListAttempts(tenantID uint, jobID string) ([]model.TransmissionAttempt, error)
}

type transmissionService struct {
	docs    repository.DocumentRepository
	jobs    repository.TransmissionRepository
	tenants repository.TenantRepository
	queue   queue.TransmissionQueue
	policy  queue.RetryPolicy
}

func NewTransmissionService(
	docs repository.DocumentRepository,
	jobs repository.TransmissionRepository,
	tenants repository.TenantRepository,
	q queue.TransmissionQueue,
	policy queue.RetryPolicy,
) TransmissionService {
	return &transmissionService{
		docs:    docs,
		jobs:    jobs,
		tenants: tenants,
		queue:   q,
		policy:  policy,
	}
}

func (s *transmissionService) Enqueue(ctx context.Context, tenantID, documentID uint, env hacienda.Environment, isComplianceTest bool, event model.ComplianceEventType) (string, error) {
	if !env.Valid() {
		return "", ErrInvalidEnvironment
	}

	doc, err := s.docs.FindByID(documentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrDocumentNotFound
		}
		return "", err
	}
	if doc.TenantID != tenantID {
		return "", ErrDocumentNotOwned
	}
	if doc.State != model.DocumentStateSigned {
		return "", ErrDocumentNotTransmittable
	}

	// Production transmission is gated by compliance: only authorized
	// tenants pass.
	if env == hacienda.EnvironmentProduction {
		tenant, err := s.tenants.FindByID(tenantID)
		if err != nil {
			return "", err
		}
		if !tenant.ProductionAuthorized {
			return "", ErrProductionNotAuthorized
		}
	}

	if isComplianceTest && event == "" {
		event = model.EventEmission
	}
	if !isComplianceTest {
		event = ""
	}

	now := time.Now()
	job := &model.TransmissionJob{
		ID:               uuid.NewString(),
		TenantID:         tenantID,
		DocumentID:       documentID,
		Environment:      env,
		MaxAttempts:      s.policy.MaxAttempts,
		IsComplianceTest: isComplianceTest,
		ComplianceEvent:  event,
		Status:           model.JobStatusQueued,
		EnqueuedAt:       now,
	}
	if err := s.jobs.CreateJob(job); err != nil {
		return "", err
	}

	err = s.queue.Enqueue(ctx, &queue.Job{
		ID:               job.ID,
		TenantID:         tenantID,
		DocumentID:       documentID,
		Environment:      env,
		MaxAttempts:      s.policy.MaxAttempts,
		IsComplianceTest: isComplianceTest,
		ComplianceEvent:  string(event),
		EnqueuedAt:       now,
	})
	if err != nil {
		return "", err
	}

	logger.Info("Transmission job enqueued", map[string]interface{}{
		"job_id":          job.ID,
		"tenant_id":       tenantID,
		"document_id":     documentID,
		"environment":     string(env),
		"compliance_test": isComplianceTest,
	})
	return job.ID, nil
}

func (s *transmissionService) GetJob(tenantID uint, jobID string) (*model.TransmissionJob, error) {
	job, err := s.jobs.FindJobByID(jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	if job.TenantID != tenantID {
		return nil, ErrJobNotFound
	}
	return job, nil
}

func (s *transmissionService) ListAttempts(tenantID uint, jobID string) ([]model.TransmissionAttempt, error) {
	if _, err := s.GetJob(tenantID, jobID); err != nil {
		return nil, err
	}
	return s.jobs.ListAttempts(jobID)
}
