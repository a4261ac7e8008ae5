package repository

import (
	"github.com/facturalink/dte-backend/internal/app/model"
	"gorm.io/gorm"
)

type OnboardingRepository interface {
	Create(state *model.OnboardingState) error
	FindByTenant(tenantID uint) (*model.OnboardingState, error)
	Save(state *model.OnboardingState) error
}

type onboardingRepository struct {
	db *gorm.DB
}

func NewOnboardingRepository(db *gorm.DB) OnboardingRepository {
	return &onboardingRepository{db: db}
}

func (r *onboardingRepository) Create(state *model.OnboardingState) error {
	return r.db.Create(state).Error
}

func (r *onboardingRepository) FindByTenant(tenantID uint) (*model.OnboardingState, error) {
	var state model.OnboardingState
	if err := r.db.Where("tenant_id = ?", tenantID).First(&state).Error; err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *onboardingRepository) Save(state *model.OnboardingState) error {
	return r.db.Save(state).Error
}
