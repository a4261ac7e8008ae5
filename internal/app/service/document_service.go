package service

import (
	"errors"
	"time"

	"github.com/facturalink/dte-backend/internal/app/model"
	"github.com/facturalink/dte-backend/internal/app/repository"
	"github.com/facturalink/dte-backend/pkg/hacienda"
	"github.com/facturalink/dte-backend/pkg/logger"
	"github.com/facturalink/dte-backend/pkg/util"
	"gorm.io/gorm"
)

var (
	ErrDocumentNotFound   = errors.New("document not found")
	ErrDocumentNotReady   = errors.New("document payload is not ready")
	ErrDocumentNotOwned   = errors.New("document does not belong to tenant")
	ErrNotResubmittable   = errors.New("document is not in a resubmittable state")
	ErrInvalidEnvironment = errors.New("invalid environment")
)

// IssueDocumentInput carries everything needed to open a new document.
type IssueDocumentInput struct {
	TenantID      uint
	Type          model.DocumentType
	Establishment string
	PointOfSale   string
	Environment   hacienda.Environment
	Payload       string
	Ready         bool
	IsCompliance  bool
}

// DocumentService owns issuance (generation code + control number
// allocation) and the manual state-machine operations. The transmission
// worker drives the rest of the machine.
type DocumentService interface {
	Issue(input IssueDocumentInput) (*model.Document, error)
	MarkSigned(tenantID, documentID uint, payload string) (*model.Document, error)
	Resubmit(tenantID, documentID uint, payload string) (*model.Document, error)
	GetDocument(tenantID, documentID uint) (*model.Document, error)
	GetState(documentID uint) (model.DocumentState, error)
	ListDocuments(tenantID uint, limit, offset int) ([]model.Document, int64, error)
}

type documentService struct {
	docs repository.DocumentRepository
}

func NewDocumentService(docs repository.DocumentRepository) DocumentService {
	return &documentService{docs: docs}
}

func (s *documentService) Issue(input IssueDocumentInput) (*model.Document, error) {
	if !input.Environment.Valid() {
		return nil, ErrInvalidEnvironment
	}

	// Control numbers are monotonic per (tenant, type, establishment, POS).
	// The unique index on (tenant_id, control_number) backstops a racing
	// issuance; the loser retries with the next sequence.
	var doc *model.Document
	for attempt := 0; attempt < 3; attempt++ {
		seq, err := s.docs.CountByScope(input.TenantID, input.Type, input.Establishment, input.PointOfSale)
		if err != nil {
			return nil, err
		}

		doc = &model.Document{
			TenantID:         input.TenantID,
			GenerationCode:   util.NewGenerationCode(),
			ControlNumber:    util.FormatControlNumber(string(input.Type), input.Establishment, input.PointOfSale, seq+1+int64(attempt)),
			Type:             input.Type,
			Establishment:    input.Establishment,
			PointOfSale:      input.PointOfSale,
			Environment:      input.Environment,
			State:            model.DocumentStatePending,
			Payload:          input.Payload,
			Ready:            input.Ready,
			IsComplianceTest: input.IsCompliance,
		}

		err = s.docs.Create(doc)
		if err == nil {
			break
		}
		if attempt == 2 {
			return nil, err
		}
		logger.Warn("Control number collision, retrying issuance", map[string]interface{}{
			"tenant_id":      input.TenantID,
			"control_number": doc.ControlNumber,
		})
	}

	logger.Info("Document issued", map[string]interface{}{
		"tenant_id":       doc.TenantID,
		"generation_code": doc.GenerationCode,
		"control_number":  doc.ControlNumber,
		"type":            string(doc.Type),
	})
	return doc, nil
}

// MarkSigned moves PENDING -> SIGNED once the upstream collaborator reports
// a complete, schema-valid payload.
func (s *documentService) MarkSigned(tenantID, documentID uint, payload string) (*model.Document, error) {
	doc, err := s.ownedDocument(tenantID, documentID)
	if err != nil {
		return nil, err
	}
	if !doc.Ready && payload == "" {
		return nil, ErrDocumentNotReady
	}

	now := time.Now()
	updates := map[string]interface{}{
		"signed_at": &now,
		"ready":     true,
	}
	if payload != "" {
		updates["payload"] = payload
	}
	if err := s.docs.Transition(doc, model.DocumentStateSigned, updates); err != nil {
		return nil, err
	}
	return doc, nil
}

// Resubmit opens a new submission cycle for a rejected document. The
// generation code never changes; only the corrected payload does.
func (s *documentService) Resubmit(tenantID, documentID uint, payload string) (*model.Document, error) {
	doc, err := s.ownedDocument(tenantID, documentID)
	if err != nil {
		return nil, err
	}
	if doc.State != model.DocumentStateRejected {
		return nil, ErrNotResubmittable
	}

	now := time.Now()
	updates := map[string]interface{}{
		"signed_at":        &now,
		"rejection_reason": "",
		"ready":            true,
	}
	if payload != "" {
		updates["payload"] = payload
	}
	if err := s.docs.Transition(doc, model.DocumentStateSigned, updates); err != nil {
		return nil, err
	}

	logger.Info("Document reopened for resubmission", map[string]interface{}{
		"tenant_id":       tenantID,
		"generation_code": doc.GenerationCode,
	})
	return doc, nil
}

func (s *documentService) GetDocument(tenantID, documentID uint) (*model.Document, error) {
	return s.ownedDocument(tenantID, documentID)
}

func (s *documentService) GetState(documentID uint) (model.DocumentState, error) {
	doc, err := s.docs.FindByID(documentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrDocumentNotFound
		}
		return "", err
	}
	return doc.State, nil
}

func (s *documentService) ListDocuments(tenantID uint, limit, offset int) ([]model.Document, int64, error) {
	return s.docs.ListByTenant(tenantID, limit, offset)
}

func (s *documentService) ownedDocument(tenantID, documentID uint) (*model.Document, error) {
	doc, err := s.docs.FindByID(documentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	if doc.TenantID != tenantID {
		return nil, ErrDocumentNotOwned
	}
	return doc, nil
}
