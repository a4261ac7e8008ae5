package service

import (
	"context"
	"errors"
	"time"

	"github.com/facturalink/dte-backend/internal/app/model"
	"github.com/facturalink/dte-backend/internal/app/repository"
	"github.com/facturalink/dte-backend/pkg/logger"
	"gorm.io/gorm"
)

var ErrTemplateNotFound = errors.New("recurring template not found")

// RecurrenceService materializes documents from due recurring templates and
// feeds them into the transmission pipeline. The cron scheduler is its only
// production caller.
type RecurrenceService interface {
	CreateTemplate(template *model.RecurringTemplate) error
	ListTemplates(tenantID uint) ([]model.RecurringTemplate, error)
	DeactivateTemplate(tenantID, templateID uint) error
	RunDue(ctx context.Context, now time.Time) (int, error)
}

type recurrenceService struct {
	templates    repository.RecurrenceRepository
	documents    DocumentService
	transmission TransmissionService
}

func NewRecurrenceService(
	templates repository.RecurrenceRepository,
	documents DocumentService,
	transmission TransmissionService,
) RecurrenceService {
	return &recurrenceService{
		templates:    templates,
		documents:    documents,
		transmission: transmission,
	}
}

func (s *recurrenceService) CreateTemplate(template *model.RecurringTemplate) error {
	if template.NextRunAt.IsZero() {
		template.NextRunAt = template.Interval.NextAfter(time.Now())
	}
	template.Active = true
	return s.templates.Create(template)
}

func (s *recurrenceService) ListTemplates(tenantID uint) ([]model.RecurringTemplate, error) {
	return s.templates.ListByTenant(tenantID)
}

func (s *recurrenceService) DeactivateTemplate(tenantID, templateID uint) error {
	template, err := s.templates.FindByID(templateID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTemplateNotFound
		}
		return err
	}
	if template.TenantID != tenantID {
		return ErrTemplateNotFound
	}
	return s.templates.Deactivate(templateID)
}

// RunDue processes every template whose NextRunAt has passed: issue a signed
// document from the template payload and enqueue its transmission. A failing
// template is logged and skipped; the others still run.
func (s *recurrenceService) RunDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.templates.FindDue(now, 100)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for i := range due {
		template := &due[i]
		if err := s.runTemplate(ctx, template, now); err != nil {
			logger.Error("Failed to run recurring template", err, map[string]interface{}{
				"template_id": template.ID,
				"tenant_id":   template.TenantID,
			})
			continue
		}
		enqueued++
	}

	if enqueued > 0 {
		logger.Info("Recurring templates processed", map[string]interface{}{
			"due":      len(due),
			"enqueued": enqueued,
		})
	}
	return enqueued, nil
}

func (s *recurrenceService) runTemplate(ctx context.Context, template *model.RecurringTemplate, now time.Time) error {
	doc, err := s.documents.Issue(IssueDocumentInput{
		TenantID:      template.TenantID,
		Type:          template.DocumentType,
		Establishment: template.Establishment,
		PointOfSale:   template.PointOfSale,
		Environment:   template.Environment,
		Payload:       template.Payload,
		Ready:         true,
	})
	if err != nil {
		return err
	}

	if _, err := s.documents.MarkSigned(template.TenantID, doc.ID, ""); err != nil {
		return err
	}

	if _, err := s.transmission.Enqueue(ctx, template.TenantID, doc.ID, template.Environment, false, ""); err != nil {
		return err
	}

	// Advance the schedule only after the job is safely on the queue, so a
	// failed run is retried on the next tick.
	template.NextRunAt = template.Interval.NextAfter(template.NextRunAt)
	if !template.NextRunAt.After(now) {
		template.NextRunAt = template.Interval.NextAfter(now)
	}
	template.LastEnqueuedAt = &now
	return s.templates.Save(template)
}
