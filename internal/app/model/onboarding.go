package model

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

type OnboardingStep string

const (
	StepCompanyInfo              OnboardingStep = "COMPANY_INFO"
	StepCredentials              OnboardingStep = "CREDENTIALS"
	StepDocumentTypes            OnboardingStep = "DOCUMENT_TYPES"
	StepTestEnvironmentRequest   OnboardingStep = "TEST_ENVIRONMENT_REQUEST"
	StepTestCertificate          OnboardingStep = "TEST_CERTIFICATE"
	StepTestAPICredentials       OnboardingStep = "TEST_API_CREDENTIALS"
	StepExecuteTests             OnboardingStep = "EXECUTE_TESTS"
	StepRequestAuthorization     OnboardingStep = "REQUEST_AUTHORIZATION"
	StepProductionCertificate    OnboardingStep = "PRODUCTION_CERTIFICATE"
	StepProductionAPICredentials OnboardingStep = "PRODUCTION_API_CREDENTIALS"
	StepFinalValidation          OnboardingStep = "FINAL_VALIDATION"
	StepCompleted                OnboardingStep = "COMPLETED"
)

// OnboardingSteps is the fixed order tenants move through. Steps only
// advance, one at a time.
var OnboardingSteps = []OnboardingStep{
	StepCompanyInfo,
	StepCredentials,
	StepDocumentTypes,
	StepTestEnvironmentRequest,
	StepTestCertificate,
	StepTestAPICredentials,
	StepExecuteTests,
	StepRequestAuthorization,
	StepProductionCertificate,
	StepProductionAPICredentials,
	StepFinalValidation,
	StepCompleted,
}

// Index returns the step's position in the sequence, or -1 for an unknown
// step.
func (s OnboardingStep) Index() int {
	for i, step := range OnboardingSteps {
		if step == s {
			return i
		}
	}
	return -1
}

// Next returns the following step; COMPLETED follows itself.
func (s OnboardingStep) Next() OnboardingStep {
	i := s.Index()
	if i < 0 || i >= len(OnboardingSteps)-1 {
		return StepCompleted
	}
	return OnboardingSteps[i+1]
}

type OnboardingStatus string

const (
	OnboardingInProgress OnboardingStatus = "IN_PROGRESS"
	OnboardingCompleted  OnboardingStatus = "COMPLETED"
)

// OnboardingState is one row per tenant, created on the first onboarding
// action and immutable once completed.
type OnboardingState struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	TenantID uint    `gorm:"uniqueIndex;not null" json:"tenant_id"`
	Tenant   *Tenant `gorm:"foreignKey:TenantID" json:"tenant,omitempty"`

	CurrentStep OnboardingStep   `gorm:"type:varchar(40);not null;default:'COMPANY_INFO'" json:"current_step"`
	Status      OnboardingStatus `gorm:"type:varchar(20);not null;default:'IN_PROGRESS'" json:"status"`

	// SelectedDocumentTypes are the DTE type codes the tenant will certify
	// (e.g. ["01", "03"]).
	SelectedDocumentTypes pq.StringArray `gorm:"type:text;default:'{}';not null" json:"selected_document_types"`

	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (OnboardingState) TableName() string {
	return "onboarding_states"
}
