package controller

import (
	"errors"
	"net/http"

	"github.com/facturalink/dte-backend/internal/app/model"
	"github.com/facturalink/dte-backend/internal/app/service"
	apierrors "github.com/facturalink/dte-backend/internal/errors"
	"github.com/facturalink/dte-backend/internal/middleware"
	"github.com/facturalink/dte-backend/pkg/logger"
	"github.com/gin-gonic/gin"
)

type OnboardingController struct {
	onboardingService service.OnboardingService
}

func NewOnboardingController(onboardingService service.OnboardingService) *OnboardingController {
	return &OnboardingController{
		onboardingService: onboardingService,
	}
}

type SelectDocumentTypesRequest struct {
	DocumentTypes []string `json:"document_types" binding:"required,min=1"`
}

type CompleteStepRequest struct {
	Step string `json:"step" binding:"required"`
}

// Start begins (or resumes) the certification walkthrough
// POST /api/v1/onboarding/start
func (ctrl *OnboardingController) Start(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	tenantID, exists := middleware.GetTenantID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	state, err := ctrl.onboardingService.Start(tenantID)
	if err != nil {
		log.Error("Failed to start onboarding", err, map[string]interface{}{
			"tenant_id": tenantID,
		})
		apierrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"onboarding": state})
}

// GetState returns the tenant's current onboarding state
// GET /api/v1/onboarding
func (ctrl *OnboardingController) GetState(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	tenantID, exists := middleware.GetTenantID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	state, err := ctrl.onboardingService.GetState(tenantID)
	if err != nil {
		if errors.Is(err, service.ErrOnboardingNotFound) {
			apierrors.NotFound(c, apierrors.OnboardingNotFound, "onboarding has not been started")
			return
		}
		log.Error("Failed to fetch onboarding state", err, map[string]interface{}{
			"tenant_id": tenantID,
		})
		apierrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"onboarding": state})
}

// SelectDocumentTypes completes the DOCUMENT_TYPES step
// POST /api/v1/onboarding/document-types
func (ctrl *OnboardingController) SelectDocumentTypes(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	tenantID, exists := middleware.GetTenantID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	var req SelectDocumentTypesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, apierrors.ValidationInvalidInput, err.Error())
		return
	}

	types := make([]model.DocumentType, 0, len(req.DocumentTypes))
	for _, t := range req.DocumentTypes {
		types = append(types, model.DocumentType(t))
	}

	state, err := ctrl.onboardingService.SelectDocumentTypes(tenantID, types)
	if err != nil {
		ctrl.respondOnboardingError(c, log, err, tenantID)
		return
	}

	c.JSON(http.StatusOK, gin.H{"onboarding": state})
}

// CompleteStep advances the tenant past its current step
// POST /api/v1/onboarding/steps/complete
func (ctrl *OnboardingController) CompleteStep(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	tenantID, exists := middleware.GetTenantID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	var req CompleteStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, apierrors.ValidationInvalidInput, err.Error())
		return
	}

	state, err := ctrl.onboardingService.CompleteStep(tenantID, model.OnboardingStep(req.Step))
	if err != nil {
		ctrl.respondOnboardingError(c, log, err, tenantID)
		return
	}

	c.JSON(http.StatusOK, gin.H{"onboarding": state})
}

func (ctrl *OnboardingController) respondOnboardingError(c *gin.Context, log *logger.Logger, err error, tenantID uint) {
	switch {
	case errors.Is(err, service.ErrOnboardingNotFound):
		apierrors.NotFound(c, apierrors.OnboardingNotFound, "onboarding has not been started")
	case errors.Is(err, service.ErrOnboardingCompleted):
		apierrors.Conflict(c, apierrors.OnboardingAlreadyCompleted, "onboarding is already completed")
	case errors.Is(err, service.ErrStepOutOfOrder):
		apierrors.Conflict(c, apierrors.OnboardingStepOutOfOrder, "step is not the current step")
	case errors.Is(err, service.ErrTestsNotComplete):
		apierrors.UnprocessableEntity(c, apierrors.ComplianceTestsNotComplete, "compliance tests are not complete")
	case errors.Is(err, service.ErrNoDocumentTypes):
		apierrors.BadRequest(c, apierrors.OnboardingNoDocumentTypes, "at least one document type is required")
	default:
		log.Error("Onboarding operation failed", err, map[string]interface{}{
			"tenant_id": tenantID,
		})
		apierrors.InternalError(c, "")
	}
}
