package service

import (
	"errors"
	"time"

	"github.com/facturalink/dte-backend/internal/app/model"
	"github.com/facturalink/dte-backend/internal/app/repository"
	"github.com/facturalink/dte-backend/pkg/logger"
	"gorm.io/gorm"
)

var (
	ErrOnboardingNotFound  = errors.New("onboarding state not found")
	ErrOnboardingCompleted = errors.New("onboarding already completed")
	ErrStepOutOfOrder      = errors.New("step is not the tenant's current step")
	ErrTestsNotComplete    = errors.New("compliance tests are not complete")
	ErrNoDocumentTypes     = errors.New("at least one document type must be selected")
)

// OnboardingService walks a tenant through the fixed certification step
// sequence. Steps advance strictly in order; EXECUTE_TESTS is completed by
// the compliance tracker, never by hand, unless readiness already holds.
type OnboardingService interface {
	Start(tenantID uint) (*model.OnboardingState, error)
	GetState(tenantID uint) (*model.OnboardingState, error)
	SelectDocumentTypes(tenantID uint, types []model.DocumentType) (*model.OnboardingState, error)
	CompleteStep(tenantID uint, step model.OnboardingStep) (*model.OnboardingState, error)
}

type onboardingService struct {
	onboarding repository.OnboardingRepository
	tenants    repository.TenantRepository
	compliance ComplianceService
}

func NewOnboardingService(
	onboarding repository.OnboardingRepository,
	tenants repository.TenantRepository,
	compliance ComplianceService,
) OnboardingService {
	return &onboardingService{
		onboarding: onboarding,
		tenants:    tenants,
		compliance: compliance,
	}
}

// Start creates the onboarding row on the tenant's first onboarding action.
// Idempotent: an existing row is returned as-is.
func (s *onboardingService) Start(tenantID uint) (*model.OnboardingState, error) {
	state, err := s.onboarding.FindByTenant(tenantID)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	state = &model.OnboardingState{
		TenantID:    tenantID,
		CurrentStep: model.StepCompanyInfo,
		Status:      model.OnboardingInProgress,
	}
	if err := s.onboarding.Create(state); err != nil {
		return nil, err
	}

	logger.Info("Onboarding started", map[string]interface{}{"tenant_id": tenantID})
	return state, nil
}

func (s *onboardingService) GetState(tenantID uint) (*model.OnboardingState, error) {
	state, err := s.onboarding.FindByTenant(tenantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOnboardingNotFound
		}
		return nil, err
	}
	return state, nil
}

// SelectDocumentTypes completes the DOCUMENT_TYPES step: stores the
// selection and seeds the compliance counters from the catalog.
func (s *onboardingService) SelectDocumentTypes(tenantID uint, types []model.DocumentType) (*model.OnboardingState, error) {
	if len(types) == 0 {
		return nil, ErrNoDocumentTypes
	}

	state, err := s.GetState(tenantID)
	if err != nil {
		return nil, err
	}
	if state.Status == model.OnboardingCompleted {
		return nil, ErrOnboardingCompleted
	}
	if state.CurrentStep != model.StepDocumentTypes {
		return nil, ErrStepOutOfOrder
	}

	selected := make([]string, 0, len(types))
	for _, t := range types {
		selected = append(selected, string(t))
	}
	state.SelectedDocumentTypes = selected

	if err := s.compliance.InitializeRequirements(tenantID, types); err != nil {
		return nil, err
	}

	state.CurrentStep = state.CurrentStep.Next()
	if err := s.onboarding.Save(state); err != nil {
		return nil, err
	}
	return state, nil
}

func (s *onboardingService) CompleteStep(tenantID uint, step model.OnboardingStep) (*model.OnboardingState, error) {
	state, err := s.GetState(tenantID)
	if err != nil {
		return nil, err
	}
	if state.Status == model.OnboardingCompleted {
		return nil, ErrOnboardingCompleted
	}
	if state.CurrentStep != step {
		return nil, ErrStepOutOfOrder
	}

	// The tests step has exactly one gate: every selected pair satisfied.
	if step == model.StepExecuteTests {
		snapshot, err := s.compliance.GetProgress(tenantID)
		if err != nil {
			return nil, err
		}
		if !snapshot.CanRequestAuthorization {
			return nil, ErrTestsNotComplete
		}
	}

	state.CurrentStep = step.Next()

	if state.CurrentStep == model.StepCompleted {
		now := time.Now()
		state.Status = model.OnboardingCompleted
		state.CompletedAt = &now

		// Completing FINAL_VALIDATION is what authorizes production
		// transmission.
		tenant, err := s.tenants.FindByID(tenantID)
		if err != nil {
			return nil, err
		}
		tenant.ProductionAuthorized = true
		tenant.ProductionAuthorizedAt = &now
		if err := s.tenants.Save(tenant); err != nil {
			return nil, err
		}

		logger.Info("Onboarding completed, production authorized", map[string]interface{}{
			"tenant_id": tenantID,
		})
	}

	if err := s.onboarding.Save(state); err != nil {
		return nil, err
	}
	return state, nil
}
