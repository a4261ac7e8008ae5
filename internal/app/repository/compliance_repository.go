package repository

import (
	"time"

	"github.com/facturalink/dte-backend/internal/app/model"
	"gorm.io/gorm"
)

// ComplianceRepository persists per-tenant conformance-test counters.
type ComplianceRepository interface {
	Create(req *model.ComplianceRequirement) error
	FindByTenant(tenantID uint) ([]model.ComplianceRequirement, error)
	FindPair(tenantID uint, docType model.DocumentType, event model.ComplianceEventType) (*model.ComplianceRequirement, error)
	IncrementCompleted(id uint, testedAt time.Time) error
	RecordFailure(id uint, testedAt time.Time) error
	HasSuccessfulEmission(tenantID uint, docType model.DocumentType) (bool, error)
}

type complianceRepository struct {
	db *gorm.DB
}

func NewComplianceRepository(db *gorm.DB) ComplianceRepository {
	return &complianceRepository{db: db}
}

func (r *complianceRepository) Create(req *model.ComplianceRequirement) error {
	return r.db.Create(req).Error
}

func (r *complianceRepository) FindByTenant(tenantID uint) ([]model.ComplianceRequirement, error) {
	var reqs []model.ComplianceRequirement
	err := r.db.Where("tenant_id = ?", tenantID).
		Order("document_type ASC, event_type ASC").
		Find(&reqs).Error
	return reqs, err
}

func (r *complianceRepository) FindPair(tenantID uint, docType model.DocumentType, event model.ComplianceEventType) (*model.ComplianceRequirement, error) {
	var req model.ComplianceRequirement
	err := r.db.Where("tenant_id = ? AND document_type = ? AND event_type = ?",
		tenantID, docType, event).First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// IncrementCompleted bumps the counter atomically. The counter only ever
// grows; there is no path that decreases it.
func (r *complianceRepository) IncrementCompleted(id uint, testedAt time.Time) error {
	success := true
	return r.db.Model(&model.ComplianceRequirement{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"completed_count": gorm.Expr("completed_count + 1"),
			"last_result":     &success,
			"last_tested_at":  &testedAt,
		}).Error
}

// RecordFailure notes a failed test without touching the completed counter.
func (r *complianceRepository) RecordFailure(id uint, testedAt time.Time) error {
	failure := false
	return r.db.Model(&model.ComplianceRequirement{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_result":    &failure,
			"last_tested_at": &testedAt,
		}).Error
}

func (r *complianceRepository) HasSuccessfulEmission(tenantID uint, docType model.DocumentType) (bool, error) {
	var count int64
	err := r.db.Model(&model.ComplianceRequirement{}).
		Where("tenant_id = ? AND document_type = ? AND event_type = ? AND completed_count > 0",
			tenantID, docType, model.EventEmission).
		Count(&count).Error
	return count > 0, err
}
