package service

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/facturalink/dte-backend/internal/app/repository"
	"github.com/facturalink/dte-backend/pkg/logger"
	"github.com/xuri/excelize/v2"
)

var ErrInvalidReportPeriod = errors.New("invalid report period")

// ReportService builds the monthly issued-document book: one XLSX workbook
// listing every accepted document of a tenant for a given month.
type ReportService interface {
	MonthlyDocumentBook(tenantID uint, year, month int) ([]byte, string, error)
}

type reportService struct {
	docs repository.DocumentRepository
}

func NewReportService(docs repository.DocumentRepository) ReportService {
	return &reportService{docs: docs}
}

var bookHeaders = []string{
	"Generation Code",
	"Control Number",
	"Type",
	"Environment",
	"Reception Stamp",
	"Accepted At",
	"Attempts",
}

func (s *reportService) MonthlyDocumentBook(tenantID uint, year, month int) ([]byte, string, error) {
	if year < 2000 || month < 1 || month > 12 {
		return nil, "", ErrInvalidReportPeriod
	}

	docs, err := s.docs.ListAcceptedInMonth(tenantID, year, month)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for col, header := range bookHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, "", err
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return nil, "", err
		}
	}

	for i, doc := range docs {
		acceptedAt := ""
		if doc.AcceptedAt != nil {
			acceptedAt = doc.AcceptedAt.Format(time.RFC3339)
		}
		values := []interface{}{
			doc.GenerationCode,
			doc.ControlNumber,
			string(doc.Type),
			string(doc.Environment),
			doc.Stamp,
			acceptedAt,
			doc.AttemptCount,
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, "", err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, "", err
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, "", err
	}

	logger.Info("Monthly document book generated", map[string]interface{}{
		"tenant_id": tenantID,
		"year":      year,
		"month":     month,
		"documents": len(docs),
	})

	filename := fmt.Sprintf("document-book-%04d-%02d.xlsx", year, month)
	return buf.Bytes(), filename, nil
}
