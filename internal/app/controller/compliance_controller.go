package controller

import (
	"errors"
	"net/http"

	"github.com/facturalink/dte-backend/internal/app/model"
	"github.com/facturalink/dte-backend/internal/app/service"
	apierrors "github.com/facturalink/dte-backend/internal/errors"
	"github.com/facturalink/dte-backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

type ComplianceController struct {
	complianceService service.ComplianceService
}

func NewComplianceController(complianceService service.ComplianceService) *ComplianceController {
	return &ComplianceController{
		complianceService: complianceService,
	}
}

type RecordTestResultRequest struct {
	DocumentType string `json:"document_type" binding:"required"`
	EventType    string `json:"event_type" binding:"required"`
	Success      *bool  `json:"success" binding:"required"`
}

// GetProgress returns the tenant's compliance snapshot
// GET /api/v1/compliance/progress
func (ctrl *ComplianceController) GetProgress(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	tenantID, exists := middleware.GetTenantID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	snapshot, err := ctrl.complianceService.GetProgress(tenantID)
	if err != nil {
		log.Error("Failed to fetch compliance progress", err, map[string]interface{}{
			"tenant_id": tenantID,
		})
		apierrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"progress": snapshot})
}

// RecordTestResult records a manually reported conformance test outcome.
// Results from queued compliance transmissions are recorded by the worker;
// this endpoint covers tests run outside the transmission pipeline.
// POST /api/v1/compliance/results
func (ctrl *ComplianceController) RecordTestResult(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	tenantID, exists := middleware.GetTenantID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	var req RecordTestResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, apierrors.ValidationInvalidInput, err.Error())
		return
	}

	snapshot, err := ctrl.complianceService.RecordTestResult(
		tenantID,
		model.DocumentType(req.DocumentType),
		model.ComplianceEventType(req.EventType),
		*req.Success,
	)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownCompliancePair):
			apierrors.NotFound(c, apierrors.ComplianceUnknownPair, "no requirement for this document type and event")
		case errors.Is(err, service.ErrCancellationBeforeEmission):
			apierrors.UnprocessableEntity(c, apierrors.ComplianceEmissionRequired, "a successful emission test is required first")
		default:
			log.Error("Failed to record compliance result", err, map[string]interface{}{
				"tenant_id": tenantID,
			})
			apierrors.InternalError(c, "")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"progress": snapshot})
}
