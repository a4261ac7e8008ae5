package repository

import (
	"time"

	"github.com/facturalink/dte-backend/internal/app/model"
	"gorm.io/gorm"
)

type RecurrenceRepository interface {
	Create(template *model.RecurringTemplate) error
	FindByID(id uint) (*model.RecurringTemplate, error)
	ListByTenant(tenantID uint) ([]model.RecurringTemplate, error)
	FindDue(now time.Time, limit int) ([]model.RecurringTemplate, error)
	Save(template *model.RecurringTemplate) error
	Deactivate(id uint) error
}

type recurrenceRepository struct {
	db *gorm.DB
}

func NewRecurrenceRepository(db *gorm.DB) RecurrenceRepository {
	return &recurrenceRepository{db: db}
}

func (r *recurrenceRepository) Create(template *model.RecurringTemplate) error {
	return r.db.Create(template).Error
}

func (r *recurrenceRepository) FindByID(id uint) (*model.RecurringTemplate, error) {
	var template model.RecurringTemplate
	if err := r.db.First(&template, id).Error; err != nil {
		return nil, err
	}
	return &template, nil
}

func (r *recurrenceRepository) ListByTenant(tenantID uint) ([]model.RecurringTemplate, error) {
	var templates []model.RecurringTemplate
	err := r.db.Where("tenant_id = ?", tenantID).Order("id ASC").Find(&templates).Error
	return templates, err
}

func (r *recurrenceRepository) FindDue(now time.Time, limit int) ([]model.RecurringTemplate, error) {
	var templates []model.RecurringTemplate
	query := r.db.Where("active = ? AND next_run_at <= ?", true, now).Order("next_run_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&templates).Error
	return templates, err
}

func (r *recurrenceRepository) Save(template *model.RecurringTemplate) error {
	return r.db.Save(template).Error
}

func (r *recurrenceRepository) Deactivate(id uint) error {
	return r.db.Model(&model.RecurringTemplate{}).
		Where("id = ?", id).
		Update("active", false).Error
}
