package service

import (
	"testing"

	"github.com/facturalink/dte-backend/internal/app/model"
	"github.com/facturalink/dte-backend/internal/app/repository"
	"github.com/facturalink/dte-backend/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type onboardingFixture struct {
	service    OnboardingService
	compliance ComplianceService
	tenants    repository.TenantRepository
	tenantID   uint
}

func setupOnboarding(t *testing.T) *onboardingFixture {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	complianceRepo := repository.NewComplianceRepository(testDB)
	onboardingRepo := repository.NewOnboardingRepository(testDB)
	tenantRepo := repository.NewTenantRepository(testDB)

	tenant := &model.Tenant{
		Name:   "Comercial El Progreso",
		NIT:    "0614-290986-102-3",
		Email:  "facturacion@elprogreso.sv",
		Active: true,
	}
	require.NoError(t, tenantRepo.Create(tenant))

	complianceService := NewComplianceService(complianceRepo, onboardingRepo)
	return &onboardingFixture{
		service:    NewOnboardingService(onboardingRepo, tenantRepo, complianceService),
		compliance: complianceService,
		tenants:    tenantRepo,
		tenantID:   tenant.ID,
	}
}

func TestStart_IsIdempotent(t *testing.T) {
	f := setupOnboarding(t)

	first, err := f.service.Start(f.tenantID)
	require.NoError(t, err)
	assert.Equal(t, model.StepCompanyInfo, first.CurrentStep)
	assert.Equal(t, model.OnboardingInProgress, first.Status)

	again, err := f.service.Start(f.tenantID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
}

func TestGetState_NotStarted(t *testing.T) {
	f := setupOnboarding(t)

	_, err := f.service.GetState(f.tenantID)
	assert.ErrorIs(t, err, ErrOnboardingNotFound)
}

func TestCompleteStep_StrictOrder(t *testing.T) {
	f := setupOnboarding(t)
	_, err := f.service.Start(f.tenantID)
	require.NoError(t, err)

	// Skipping ahead is rejected.
	_, err = f.service.CompleteStep(f.tenantID, model.StepTestCertificate)
	assert.ErrorIs(t, err, ErrStepOutOfOrder)

	state, err := f.service.CompleteStep(f.tenantID, model.StepCompanyInfo)
	require.NoError(t, err)
	assert.Equal(t, model.StepCredentials, state.CurrentStep)

	// Replaying the step just completed is also out of order.
	_, err = f.service.CompleteStep(f.tenantID, model.StepCompanyInfo)
	assert.ErrorIs(t, err, ErrStepOutOfOrder)
}

func TestSelectDocumentTypes(t *testing.T) {
	f := setupOnboarding(t)
	_, err := f.service.Start(f.tenantID)
	require.NoError(t, err)

	// Not at DOCUMENT_TYPES yet.
	_, err = f.service.SelectDocumentTypes(f.tenantID, []model.DocumentType{model.TypeFactura})
	assert.ErrorIs(t, err, ErrStepOutOfOrder)

	_, err = f.service.CompleteStep(f.tenantID, model.StepCompanyInfo)
	require.NoError(t, err)
	_, err = f.service.CompleteStep(f.tenantID, model.StepCredentials)
	require.NoError(t, err)

	_, err = f.service.SelectDocumentTypes(f.tenantID, nil)
	assert.ErrorIs(t, err, ErrNoDocumentTypes)

	state, err := f.service.SelectDocumentTypes(f.tenantID, []model.DocumentType{model.TypeFactura})
	require.NoError(t, err)
	assert.Equal(t, model.StepTestEnvironmentRequest, state.CurrentStep)
	assert.Equal(t, []string{"01"}, []string(state.SelectedDocumentTypes))

	// Selection seeds the compliance counters.
	snapshot, err := f.compliance.GetProgress(f.tenantID)
	require.NoError(t, err)
	assert.Len(t, snapshot.Pairs, 2)
}

func TestCompleteStep_ExecuteTestsIsGated(t *testing.T) {
	f := setupOnboarding(t)
	_, err := f.service.Start(f.tenantID)
	require.NoError(t, err)

	_, err = f.service.CompleteStep(f.tenantID, model.StepCompanyInfo)
	require.NoError(t, err)
	_, err = f.service.CompleteStep(f.tenantID, model.StepCredentials)
	require.NoError(t, err)
	_, err = f.service.SelectDocumentTypes(f.tenantID, []model.DocumentType{model.TypeNotaCredito})
	require.NoError(t, err)
	_, err = f.service.CompleteStep(f.tenantID, model.StepTestEnvironmentRequest)
	require.NoError(t, err)
	_, err = f.service.CompleteStep(f.tenantID, model.StepTestCertificate)
	require.NoError(t, err)
	_, err = f.service.CompleteStep(f.tenantID, model.StepTestAPICredentials)
	require.NoError(t, err)

	// Tests incomplete: the step cannot be completed by hand.
	_, err = f.service.CompleteStep(f.tenantID, model.StepExecuteTests)
	assert.ErrorIs(t, err, ErrTestsNotComplete)

	// Satisfy every pair; the tracker advances the step on its own.
	for i := 0; i < 3; i++ {
		_, err = f.compliance.RecordTestResult(f.tenantID, model.TypeNotaCredito, model.EventEmission, true)
		require.NoError(t, err)
	}
	_, err = f.compliance.RecordTestResult(f.tenantID, model.TypeNotaCredito, model.EventCancellation, true)
	require.NoError(t, err)

	state, err := f.service.GetState(f.tenantID)
	require.NoError(t, err)
	assert.Equal(t, model.StepRequestAuthorization, state.CurrentStep)
}

func TestCompleteStep_FinalValidationAuthorizesProduction(t *testing.T) {
	f := setupOnboarding(t)
	_, err := f.service.Start(f.tenantID)
	require.NoError(t, err)

	_, err = f.service.CompleteStep(f.tenantID, model.StepCompanyInfo)
	require.NoError(t, err)
	_, err = f.service.CompleteStep(f.tenantID, model.StepCredentials)
	require.NoError(t, err)
	_, err = f.service.SelectDocumentTypes(f.tenantID, []model.DocumentType{model.TypeNotaCredito})
	require.NoError(t, err)
	_, err = f.service.CompleteStep(f.tenantID, model.StepTestEnvironmentRequest)
	require.NoError(t, err)
	_, err = f.service.CompleteStep(f.tenantID, model.StepTestCertificate)
	require.NoError(t, err)
	_, err = f.service.CompleteStep(f.tenantID, model.StepTestAPICredentials)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = f.compliance.RecordTestResult(f.tenantID, model.TypeNotaCredito, model.EventEmission, true)
		require.NoError(t, err)
	}
	_, err = f.compliance.RecordTestResult(f.tenantID, model.TypeNotaCredito, model.EventCancellation, true)
	require.NoError(t, err)

	_, err = f.service.CompleteStep(f.tenantID, model.StepRequestAuthorization)
	require.NoError(t, err)
	_, err = f.service.CompleteStep(f.tenantID, model.StepProductionCertificate)
	require.NoError(t, err)
	_, err = f.service.CompleteStep(f.tenantID, model.StepProductionAPICredentials)
	require.NoError(t, err)

	state, err := f.service.CompleteStep(f.tenantID, model.StepFinalValidation)
	require.NoError(t, err)
	assert.Equal(t, model.StepCompleted, state.CurrentStep)
	assert.Equal(t, model.OnboardingCompleted, state.Status)
	require.NotNil(t, state.CompletedAt)

	tenant, err := f.tenants.FindByID(f.tenantID)
	require.NoError(t, err)
	assert.True(t, tenant.ProductionAuthorized)
	require.NotNil(t, tenant.ProductionAuthorizedAt)

	// Completed onboarding is immutable.
	_, err = f.service.CompleteStep(f.tenantID, model.StepFinalValidation)
	assert.ErrorIs(t, err, ErrOnboardingCompleted)
}
