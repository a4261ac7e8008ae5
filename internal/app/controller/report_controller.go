package controller

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/facturalink/dte-backend/internal/app/service"
	apierrors "github.com/facturalink/dte-backend/internal/errors"
	"github.com/facturalink/dte-backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

type ReportController struct {
	reportService service.ReportService
}

func NewReportController(reportService service.ReportService) *ReportController {
	return &ReportController{
		reportService: reportService,
	}
}

// MonthlyDocumentBook streams the monthly accepted-document book as XLSX
// GET /api/v1/reports/document-book?year=2026&month=8
func (ctrl *ReportController) MonthlyDocumentBook(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	tenantID, exists := middleware.GetTenantID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	now := time.Now()
	year, _ := strconv.Atoi(c.DefaultQuery("year", strconv.Itoa(now.Year())))
	month, _ := strconv.Atoi(c.DefaultQuery("month", strconv.Itoa(int(now.Month()))))

	data, filename, err := ctrl.reportService.MonthlyDocumentBook(tenantID, year, month)
	if err != nil {
		if errors.Is(err, service.ErrInvalidReportPeriod) {
			apierrors.BadRequest(c, apierrors.ValidationInvalidPeriod, "invalid year or month")
			return
		}
		log.Error("Failed to build monthly document book", err, map[string]interface{}{
			"tenant_id": tenantID,
			"year":      year,
			"month":     month,
		})
		apierrors.InternalError(c, "")
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}
