package controller

import (
	"errors"
	"net/http"

	"github.com/facturalink/dte-backend/internal/app/model"
	"github.com/facturalink/dte-backend/internal/app/service"
	apierrors "github.com/facturalink/dte-backend/internal/errors"
	"github.com/facturalink/dte-backend/internal/middleware"
	"github.com/facturalink/dte-backend/pkg/hacienda"
	"github.com/gin-gonic/gin"
)

type TransmissionController struct {
	transmissionService service.TransmissionService
}

func NewTransmissionController(transmissionService service.TransmissionService) *TransmissionController {
	return &TransmissionController{
		transmissionService: transmissionService,
	}
}

type EnqueueTransmissionRequest struct {
	DocumentID       uint   `json:"document_id" binding:"required"`
	Environment      string `json:"environment" binding:"required"`
	IsComplianceTest bool   `json:"is_compliance_test"`
	ComplianceEvent  string `json:"compliance_event"`
}

// Enqueue accepts a signed document for asynchronous transmission
// POST /api/v1/transmissions
func (ctrl *TransmissionController) Enqueue(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	tenantID, exists := middleware.GetTenantID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	var req EnqueueTransmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, apierrors.ValidationInvalidInput, err.Error())
		return
	}

	jobID, err := ctrl.transmissionService.Enqueue(
		c.Request.Context(),
		tenantID,
		req.DocumentID,
		hacienda.Environment(req.Environment),
		req.IsComplianceTest,
		model.ComplianceEventType(req.ComplianceEvent),
	)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidEnvironment):
			apierrors.BadRequest(c, apierrors.ValidationInvalidEnvironment, "environment must be test or production")
		case errors.Is(err, service.ErrDocumentNotFound), errors.Is(err, service.ErrDocumentNotOwned):
			apierrors.NotFound(c, apierrors.DocumentNotFound, "document not found")
		case errors.Is(err, service.ErrDocumentNotTransmittable):
			apierrors.Conflict(c, apierrors.TransmissionNotTransmittable, "document must be in SIGNED state")
		case errors.Is(err, service.ErrProductionNotAuthorized):
			apierrors.RespondWithError(c, http.StatusForbidden, apierrors.AuthzProductionNotAuthorized, "tenant is not authorized for production")
		default:
			log.Error("Failed to enqueue transmission", err, map[string]interface{}{
				"tenant_id":   tenantID,
				"document_id": req.DocumentID,
			})
			apierrors.InternalError(c, "")
		}
		return
	}

	// 202: the job is queued, transmission happens asynchronously.
	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID})
}

// GetJob returns the durable job record
// GET /api/v1/transmissions/:id
func (ctrl *TransmissionController) GetJob(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	tenantID, exists := middleware.GetTenantID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	jobID := c.Param("id")
	job, err := ctrl.transmissionService.GetJob(tenantID, jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			apierrors.NotFound(c, apierrors.TransmissionJobNotFound, "transmission job not found")
			return
		}
		log.Error("Failed to fetch transmission job", err, map[string]interface{}{
			"tenant_id": tenantID,
			"job_id":    jobID,
		})
		apierrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"job": job})
}

// ListAttempts returns the immutable audit trail of a job
// GET /api/v1/transmissions/:id/attempts
func (ctrl *TransmissionController) ListAttempts(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	tenantID, exists := middleware.GetTenantID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	jobID := c.Param("id")
	attempts, err := ctrl.transmissionService.ListAttempts(tenantID, jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			apierrors.NotFound(c, apierrors.TransmissionJobNotFound, "transmission job not found")
			return
		}
		log.Error("Failed to list transmission attempts", err, map[string]interface{}{
			"tenant_id": tenantID,
			"job_id":    jobID,
		})
		apierrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"attempts": attempts,
		"count":    len(attempts),
	})
}
