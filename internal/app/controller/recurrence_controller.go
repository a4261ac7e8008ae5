package controller

import (
	"errors"
	"net/http"
	"time"

	"github.com/facturalink/dte-backend/internal/app/model"
	"github.com/facturalink/dte-backend/internal/app/service"
	apierrors "github.com/facturalink/dte-backend/internal/errors"
	"github.com/facturalink/dte-backend/internal/middleware"
	"github.com/facturalink/dte-backend/pkg/hacienda"
	"github.com/gin-gonic/gin"
)

type RecurrenceController struct {
	recurrenceService service.RecurrenceService
}

func NewRecurrenceController(recurrenceService service.RecurrenceService) *RecurrenceController {
	return &RecurrenceController{
		recurrenceService: recurrenceService,
	}
}

type CreateTemplateRequest struct {
	DocumentType  string     `json:"document_type" binding:"required"`
	Establishment string     `json:"establishment" binding:"required,len=4"`
	PointOfSale   string     `json:"point_of_sale" binding:"required,len=4"`
	Environment   string     `json:"environment" binding:"required"`
	Payload       string     `json:"payload" binding:"required"`
	Interval      string     `json:"interval" binding:"required,oneof=daily weekly monthly"`
	FirstRunAt    *time.Time `json:"first_run_at"`
}

// CreateTemplate registers a recurring document template
// POST /api/v1/recurrences
func (ctrl *RecurrenceController) CreateTemplate(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	tenantID, exists := middleware.GetTenantID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	var req CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, apierrors.ValidationInvalidInput, err.Error())
		return
	}

	env := hacienda.Environment(req.Environment)
	if !env.Valid() {
		apierrors.BadRequest(c, apierrors.ValidationInvalidEnvironment, "environment must be test or production")
		return
	}

	template := &model.RecurringTemplate{
		TenantID:      tenantID,
		DocumentType:  model.DocumentType(req.DocumentType),
		Establishment: req.Establishment,
		PointOfSale:   req.PointOfSale,
		Environment:   env,
		Payload:       req.Payload,
		Interval:      model.RecurrenceInterval(req.Interval),
	}
	if req.FirstRunAt != nil {
		template.NextRunAt = *req.FirstRunAt
	}

	if err := ctrl.recurrenceService.CreateTemplate(template); err != nil {
		log.Error("Failed to create recurring template", err, map[string]interface{}{
			"tenant_id": tenantID,
		})
		apierrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"template": template})
}

// ListTemplates returns the tenant's templates
// GET /api/v1/recurrences
func (ctrl *RecurrenceController) ListTemplates(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	tenantID, exists := middleware.GetTenantID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	templates, err := ctrl.recurrenceService.ListTemplates(tenantID)
	if err != nil {
		log.Error("Failed to list recurring templates", err, map[string]interface{}{
			"tenant_id": tenantID,
		})
		apierrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"templates": templates,
		"count":     len(templates),
	})
}

// DeactivateTemplate stops future runs of a template
// DELETE /api/v1/recurrences/:id
func (ctrl *RecurrenceController) DeactivateTemplate(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	tenantID, exists := middleware.GetTenantID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	templateID, ok := parseIDParam(c)
	if !ok {
		return
	}

	if err := ctrl.recurrenceService.DeactivateTemplate(tenantID, templateID); err != nil {
		if errors.Is(err, service.ErrTemplateNotFound) {
			apierrors.NotFound(c, apierrors.RecurrenceTemplateNotFound, "recurring template not found")
			return
		}
		log.Error("Failed to deactivate recurring template", err, map[string]interface{}{
			"tenant_id":   tenantID,
			"template_id": templateID,
		})
		apierrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "template deactivated"})
}
