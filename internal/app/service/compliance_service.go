package service

import (
	"errors"
	"math"
	"time"

	"github.com/facturalink/dte-backend/internal/app/model"
	"github.com/facturalink/dte-backend/internal/app/repository"
	"github.com/facturalink/dte-backend/pkg/logger"
	"gorm.io/gorm"
)

var (
	ErrUnknownCompliancePair = errors.New("no compliance requirement for this document type and event")

	// ErrCancellationBeforeEmission enforces the certification ordering: a
	// cancellation test for a type only counts once at least one emission
	// test for that type has passed.
	ErrCancellationBeforeEmission = errors.New("cancellation test requires a prior successful emission test")
)

// ComplianceService tracks conformance-test progress per tenant and decides
// production-authorization readiness.
type ComplianceService interface {
	InitializeRequirements(tenantID uint, types []model.DocumentType) error
	RecordTestResult(tenantID uint, docType model.DocumentType, event model.ComplianceEventType, success bool) (*model.ProgressSnapshot, error)
	GetProgress(tenantID uint) (*model.ProgressSnapshot, error)
}

type complianceService struct {
	compliance repository.ComplianceRepository
	onboarding repository.OnboardingRepository
}

func NewComplianceService(compliance repository.ComplianceRepository, onboarding repository.OnboardingRepository) ComplianceService {
	return &complianceService{
		compliance: compliance,
		onboarding: onboarding,
	}
}

// InitializeRequirements seeds one counter row per (type, event) pair the
// tenant selected, using the authority's fixed catalog. Already-seeded pairs
// keep their progress.
func (s *complianceService) InitializeRequirements(tenantID uint, types []model.DocumentType) error {
	for _, docType := range types {
		for _, event := range []model.ComplianceEventType{model.EventEmission, model.EventCancellation} {
			required := model.RequiredTests(docType, event)
			if required == 0 {
				continue
			}

			_, err := s.compliance.FindPair(tenantID, docType, event)
			if err == nil {
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}

			req := &model.ComplianceRequirement{
				TenantID:      tenantID,
				DocumentType:  docType,
				EventType:     event,
				RequiredCount: required,
			}
			if err := s.compliance.Create(req); err != nil {
				return err
			}
		}
	}

	logger.Info("Compliance requirements initialized", map[string]interface{}{
		"tenant_id": tenantID,
		"types":     len(types),
	})
	return nil
}

func (s *complianceService) RecordTestResult(tenantID uint, docType model.DocumentType, event model.ComplianceEventType, success bool) (*model.ProgressSnapshot, error) {
	pair, err := s.compliance.FindPair(tenantID, docType, event)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownCompliancePair
		}
		return nil, err
	}

	// Cancellation cannot outpace emission, for every document type.
	if event == model.EventCancellation && success {
		hasEmission, err := s.compliance.HasSuccessfulEmission(tenantID, docType)
		if err != nil {
			return nil, err
		}
		if !hasEmission {
			return nil, ErrCancellationBeforeEmission
		}
	}

	now := time.Now()
	if success {
		// Extra passes beyond the requirement are still recorded; the
		// snapshot caps them for readiness purposes.
		if err := s.compliance.IncrementCompleted(pair.ID, now); err != nil {
			return nil, err
		}
	} else {
		// A failed test never decreases the completed counter.
		if err := s.compliance.RecordFailure(pair.ID, now); err != nil {
			return nil, err
		}
	}

	snapshot, err := s.GetProgress(tenantID)
	if err != nil {
		return nil, err
	}

	logger.Info("Compliance test recorded", map[string]interface{}{
		"tenant_id":        tenantID,
		"document_type":    string(docType),
		"event_type":       string(event),
		"success":          success,
		"percent_complete": snapshot.PercentComplete,
	})

	if snapshot.CanRequestAuthorization {
		s.completeExecuteTestsStep(tenantID)
	}
	return snapshot, nil
}

func (s *complianceService) GetProgress(tenantID uint) (*model.ProgressSnapshot, error) {
	pairs, err := s.compliance.FindByTenant(tenantID)
	if err != nil {
		return nil, err
	}

	snapshot := &model.ProgressSnapshot{TenantID: tenantID}
	var required, completed int
	allSatisfied := len(pairs) > 0

	for _, pair := range pairs {
		capped := pair.CompletedCount
		if capped > pair.RequiredCount {
			capped = pair.RequiredCount
		}
		satisfied := capped >= pair.RequiredCount

		snapshot.Pairs = append(snapshot.Pairs, model.PairProgress{
			DocumentType: pair.DocumentType,
			EventType:    pair.EventType,
			Required:     pair.RequiredCount,
			Completed:    pair.CompletedCount,
			Satisfied:    satisfied,
		})

		required += pair.RequiredCount
		completed += capped
		if !satisfied {
			allSatisfied = false
		}
	}

	if required > 0 {
		snapshot.PercentComplete = int(math.Round(float64(completed) / float64(required) * 100))
	}
	snapshot.CanRequestAuthorization = allSatisfied
	return snapshot, nil
}

// completeExecuteTestsStep advances the onboarding row the moment readiness
// flips true. This is the single gate that unlocks REQUEST_AUTHORIZATION.
func (s *complianceService) completeExecuteTestsStep(tenantID uint) {
	state, err := s.onboarding.FindByTenant(tenantID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Error("Failed to load onboarding state", err, map[string]interface{}{
				"tenant_id": tenantID,
			})
		}
		return
	}
	if state.Status == model.OnboardingCompleted || state.CurrentStep != model.StepExecuteTests {
		return
	}

	state.CurrentStep = model.StepRequestAuthorization
	if err := s.onboarding.Save(state); err != nil {
		logger.Error("Failed to advance onboarding past EXECUTE_TESTS", err, map[string]interface{}{
			"tenant_id": tenantID,
		})
		return
	}

	logger.Info("All compliance tests passed, authorization request unlocked", map[string]interface{}{
		"tenant_id": tenantID,
	})
}
