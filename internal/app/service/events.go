package service

import (
	"context"
	"errors"
	"time"

	"github.com/facturalink/dte-backend/internal/app/model"
	"github.com/facturalink/dte-backend/internal/queue"
	"github.com/facturalink/dte-backend/internal/storage"
	"github.com/facturalink/dte-backend/pkg/logger"
)

// EventBroadcaster pushes a transmission event to whatever is watching the
// tenant's dashboard. The websocket hub satisfies it.
type EventBroadcaster interface {
	BroadcastTransmission(tenantID uint, event interface{})
}

// TransmissionEvent is the outward-facing shape of a terminal outcome.
type TransmissionEvent struct {
	JobID          string              `json:"job_id"`
	DocumentID     uint                `json:"document_id"`
	GenerationCode string              `json:"generation_code"`
	State          model.DocumentState `json:"state"`
	Stamp          string              `json:"stamp,omitempty"`
	Reason         string              `json:"reason,omitempty"`
}

// TransmissionEvents fans terminal worker outcomes out to the compliance
// tracker, the dashboard hub and the long-term archive. It is the worker's
// EventSink.
type TransmissionEvents struct {
	compliance ComplianceService
	hub        EventBroadcaster
	archive    storage.DocumentArchive
}

func NewTransmissionEvents(compliance ComplianceService, hub EventBroadcaster, archive storage.DocumentArchive) *TransmissionEvents {
	return &TransmissionEvents{compliance: compliance, hub: hub, archive: archive}
}

func (e *TransmissionEvents) TransmissionSucceeded(job *queue.Job, doc *model.Document) {
	e.recordCompliance(job, doc, true)
	e.broadcast(job, doc, "")
	e.archiveAccepted(job, doc)
}

func (e *TransmissionEvents) TransmissionFailed(job *queue.Job, doc *model.Document, reason string) {
	e.recordCompliance(job, doc, false)
	e.broadcast(job, doc, reason)
}

func (e *TransmissionEvents) recordCompliance(job *queue.Job, doc *model.Document, success bool) {
	if !job.IsComplianceTest || e.compliance == nil {
		return
	}

	event := model.ComplianceEventType(job.ComplianceEvent)
	if event == "" {
		event = model.EventEmission
	}

	_, err := e.compliance.RecordTestResult(job.TenantID, doc.Type, event, success)
	if err != nil && !errors.Is(err, ErrCancellationBeforeEmission) {
		logger.Error("Failed to record compliance test result", err, map[string]interface{}{
			"job_id":    job.ID,
			"tenant_id": job.TenantID,
		})
	}
}

// archiveAccepted ships the fiscal record in the background. Archiving is
// best effort and never delays the worker.
func (e *TransmissionEvents) archiveAccepted(job *queue.Job, doc *model.Document) {
	if e.archive == nil {
		return
	}

	snapshot := *doc
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		key, err := e.archive.ArchiveAccepted(ctx, &snapshot)
		if err != nil {
			logger.Error("Failed to archive accepted document", err, map[string]interface{}{
				"job_id":      job.ID,
				"document_id": snapshot.ID,
			})
			return
		}
		logger.Info("Accepted document archived", map[string]interface{}{
			"document_id": snapshot.ID,
			"key":         key,
		})
	}()
}

func (e *TransmissionEvents) broadcast(job *queue.Job, doc *model.Document, reason string) {
	if e.hub == nil {
		return
	}
	e.hub.BroadcastTransmission(job.TenantID, TransmissionEvent{
		JobID:          job.ID,
		DocumentID:     doc.ID,
		GenerationCode: doc.GenerationCode,
		State:          doc.State,
		Stamp:          doc.Stamp,
		Reason:         reason,
	})
}
