package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/facturalink/dte-backend/internal/app/model"
	"github.com/facturalink/dte-backend/internal/app/service"
	apierrors "github.com/facturalink/dte-backend/internal/errors"
	"github.com/facturalink/dte-backend/internal/middleware"
	"github.com/facturalink/dte-backend/pkg/hacienda"
	"github.com/facturalink/dte-backend/pkg/logger"
	"github.com/gin-gonic/gin"
)

type DocumentController struct {
	documentService service.DocumentService
}

func NewDocumentController(documentService service.DocumentService) *DocumentController {
	return &DocumentController{
		documentService: documentService,
	}
}

type IssueDocumentRequest struct {
	Type          string `json:"type" binding:"required"`
	Establishment string `json:"establishment" binding:"required,len=4"`
	PointOfSale   string `json:"point_of_sale" binding:"required,len=4"`
	Environment   string `json:"environment" binding:"required"`
	Payload       string `json:"payload"`
	IsCompliance  bool   `json:"is_compliance_test"`
}

type SignDocumentRequest struct {
	Payload string `json:"payload"`
}

// Issue opens a new document with a fresh generation code and control number
// POST /api/v1/documents
func (ctrl *DocumentController) Issue(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	tenantID, exists := middleware.GetTenantID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	var req IssueDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, apierrors.ValidationInvalidInput, err.Error())
		return
	}

	doc, err := ctrl.documentService.Issue(service.IssueDocumentInput{
		TenantID:      tenantID,
		Type:          model.DocumentType(req.Type),
		Establishment: req.Establishment,
		PointOfSale:   req.PointOfSale,
		Environment:   hacienda.Environment(req.Environment),
		Payload:       req.Payload,
		Ready:         req.Payload != "",
		IsCompliance:  req.IsCompliance,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidEnvironment) {
			apierrors.BadRequest(c, apierrors.ValidationInvalidEnvironment, "environment must be test or production")
			return
		}
		log.Error("Failed to issue document", err, map[string]interface{}{
			"tenant_id": tenantID,
		})
		apierrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"document": doc})
}

// Sign marks a pending document as signed
// POST /api/v1/documents/:id/sign
func (ctrl *DocumentController) Sign(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	tenantID, exists := middleware.GetTenantID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	documentID, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req SignDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		apierrors.BadRequest(c, apierrors.ValidationInvalidInput, err.Error())
		return
	}

	doc, err := ctrl.documentService.MarkSigned(tenantID, documentID, req.Payload)
	if err != nil {
		ctrl.respondDocumentError(c, log, err, tenantID, documentID)
		return
	}

	c.JSON(http.StatusOK, gin.H{"document": doc})
}

// Resubmit reopens a rejected document with a corrected payload
// POST /api/v1/documents/:id/resubmit
func (ctrl *DocumentController) Resubmit(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	tenantID, exists := middleware.GetTenantID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	documentID, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req SignDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		apierrors.BadRequest(c, apierrors.ValidationInvalidInput, err.Error())
		return
	}

	doc, err := ctrl.documentService.Resubmit(tenantID, documentID, req.Payload)
	if err != nil {
		ctrl.respondDocumentError(c, log, err, tenantID, documentID)
		return
	}

	c.JSON(http.StatusOK, gin.H{"document": doc})
}

// GetDocument returns one document
// GET /api/v1/documents/:id
func (ctrl *DocumentController) GetDocument(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	tenantID, exists := middleware.GetTenantID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	documentID, ok := parseIDParam(c)
	if !ok {
		return
	}

	doc, err := ctrl.documentService.GetDocument(tenantID, documentID)
	if err != nil {
		ctrl.respondDocumentError(c, log, err, tenantID, documentID)
		return
	}

	c.JSON(http.StatusOK, gin.H{"document": doc})
}

// ListDocuments returns the tenant's documents, newest first
// GET /api/v1/documents
func (ctrl *DocumentController) ListDocuments(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	tenantID, exists := middleware.GetTenantID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	docs, total, err := ctrl.documentService.ListDocuments(tenantID, limit, offset)
	if err != nil {
		log.Error("Failed to list documents", err, map[string]interface{}{
			"tenant_id": tenantID,
		})
		apierrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"documents": docs,
		"total":     total,
		"limit":     limit,
		"offset":    offset,
	})
}

func (ctrl *DocumentController) respondDocumentError(c *gin.Context, log *logger.Logger, err error, tenantID, documentID uint) {
	switch {
	case errors.Is(err, service.ErrDocumentNotFound), errors.Is(err, service.ErrDocumentNotOwned):
		apierrors.NotFound(c, apierrors.DocumentNotFound, "document not found")
	case errors.Is(err, service.ErrDocumentNotReady):
		apierrors.UnprocessableEntity(c, apierrors.DocumentNotReady, "document payload is not ready")
	case errors.Is(err, service.ErrNotResubmittable):
		apierrors.Conflict(c, apierrors.DocumentNotResubmittable, "only rejected documents can be resubmitted")
	default:
		log.Error("Document operation failed", err, map[string]interface{}{
			"tenant_id":   tenantID,
			"document_id": documentID,
		})
		apierrors.InternalError(c, "")
	}
}

func parseIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		apierrors.BadRequest(c, apierrors.ValidationInvalidID, "invalid id")
		return 0, false
	}
	return uint(id), true
}
