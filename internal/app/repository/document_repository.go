package repository

import (
	"errors"
	"time"

	"github.com/facturalink/dte-backend/internal/app/model"
	"gorm.io/gorm"
)

var (
	// ErrInvalidTransition means the requested move is not in the state machine
	ErrInvalidTransition = errors.New("invalid document state transition")

	// ErrStateConflict means another writer moved the document first; the
	// caller must re-read and decide again
	ErrStateConflict = errors.New("document state changed concurrently")
)

// DocumentRepository persists documents. Transition is the single way state
// changes; it is version-guarded so racing attempts cannot both move a
// document out of the same state.
type DocumentRepository interface {
	Create(doc *model.Document) error
	FindByID(id uint) (*model.Document, error)
	FindByGenerationCode(code string) (*model.Document, error)
	CountByScope(tenantID uint, docType model.DocumentType, establishment, pointOfSale string) (int64, error)
	ListByTenant(tenantID uint, limit, offset int) ([]model.Document, int64, error)
	ListAcceptedInMonth(tenantID uint, year int, month int) ([]model.Document, error)
	Transition(doc *model.Document, to model.DocumentState, updates map[string]interface{}) error
}

type documentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) Create(doc *model.Document) error {
	return r.db.Create(doc).Error
}

func (r *documentRepository) FindByID(id uint) (*model.Document, error) {
	var doc model.Document
	if err := r.db.First(&doc, id).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepository) FindByGenerationCode(code string) (*model.Document, error) {
	var doc model.Document
	if err := r.db.Where("generation_code = ?", code).First(&doc).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

// CountByScope counts issued documents in one numbering scope. The issuance
// service derives the next control number from it; the unique index on
// (tenant_id, control_number) backstops races.
func (r *documentRepository) CountByScope(tenantID uint, docType model.DocumentType, establishment, pointOfSale string) (int64, error) {
	var count int64
	err := r.db.Model(&model.Document{}).
		Where("tenant_id = ? AND type = ? AND establishment = ? AND point_of_sale = ?",
			tenantID, docType, establishment, pointOfSale).
		Count(&count).Error
	return count, err
}

func (r *documentRepository) ListByTenant(tenantID uint, limit, offset int) ([]model.Document, int64, error) {
	var docs []model.Document
	var total int64

	query := r.db.Model(&model.Document{}).Where("tenant_id = ?", tenantID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	if err := query.Find(&docs).Error; err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

func (r *documentRepository) ListAcceptedInMonth(tenantID uint, year int, month int) ([]model.Document, error) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	var docs []model.Document
	err := r.db.
		Where("tenant_id = ? AND state = ?", tenantID, model.DocumentStateAccepted).
		Where("accepted_at >= ? AND accepted_at < ?", start, end).
		Order("accepted_at ASC").
		Find(&docs).Error
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// Transition performs the optimistic read-modify-write. The update only
// lands when the row is still in the state/version the caller read; zero
// rows affected means someone else won the race.
func (r *documentRepository) Transition(doc *model.Document, to model.DocumentState, updates map[string]interface{}) error {
	if !model.CanTransition(doc.State, to) {
		return ErrInvalidTransition
	}

	values := map[string]interface{}{
		"state":   to,
		"version": gorm.Expr("version + 1"),
	}
	for k, v := range updates {
		values[k] = v
	}

	res := r.db.Model(&model.Document{}).
		Where("id = ? AND state = ? AND version = ?", doc.ID, doc.State, doc.Version).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStateConflict
	}

	doc.State = to
	doc.Version++
	return nil
}
