package errors

// Error code constants, CATEGORY_SPECIFIC_DETAIL. API consumers map these
// codes to their own messages; the message field is a human-readable default.

const (
	// ==================== Authentication (AUTH_) ====================
	AuthUnauthorized       = "AUTH_UNAUTHORIZED"
	AuthInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	AuthTokenExpired       = "AUTH_TOKEN_EXPIRED"
	AuthTokenInvalid       = "AUTH_TOKEN_INVALID"
	AuthTokenRevoked       = "AUTH_TOKEN_REVOKED"
	AuthNITAlreadyExists   = "AUTH_NIT_EXISTS"

	// ==================== Authorization (AUTHZ_) ====================
	AuthzForbidden               = "AUTHZ_FORBIDDEN"
	AuthzProductionNotAuthorized = "AUTHZ_PRODUCTION_NOT_AUTHORIZED"

	// ==================== Validation (VALIDATION_) ====================
	ValidationInvalidInput       = "VALIDATION_INVALID_INPUT"
	ValidationInvalidID          = "VALIDATION_INVALID_ID"
	ValidationInvalidEnvironment = "VALIDATION_INVALID_ENVIRONMENT"
	ValidationInvalidPeriod      = "VALIDATION_INVALID_PERIOD"

	// ==================== Resources (RESOURCE_) ====================
	ResourceNotFound      = "RESOURCE_NOT_FOUND"
	ResourceAlreadyExists = "RESOURCE_ALREADY_EXISTS"
	ResourceConflict      = "RESOURCE_CONFLICT"

	// ==================== Documents (DOCUMENT_) ====================
	DocumentNotFound          = "DOCUMENT_NOT_FOUND"
	DocumentNotReady          = "DOCUMENT_NOT_READY"
	DocumentInvalidTransition = "DOCUMENT_INVALID_TRANSITION"
	DocumentNotResubmittable  = "DOCUMENT_NOT_RESUBMITTABLE"
	DocumentStateConflict     = "DOCUMENT_STATE_CONFLICT"

	// ==================== Transmission (TRANSMISSION_) ====================
	TransmissionNotTransmittable = "TRANSMISSION_NOT_TRANSMITTABLE"
	TransmissionJobNotFound      = "TRANSMISSION_JOB_NOT_FOUND"

	// ==================== Compliance (COMPLIANCE_) ====================
	ComplianceUnknownPair         = "COMPLIANCE_UNKNOWN_PAIR"
	ComplianceEmissionRequired    = "COMPLIANCE_EMISSION_REQUIRED"
	ComplianceTestsNotComplete    = "COMPLIANCE_TESTS_NOT_COMPLETE"

	// ==================== Onboarding (ONBOARDING_) ====================
	OnboardingNotFound         = "ONBOARDING_NOT_FOUND"
	OnboardingAlreadyCompleted = "ONBOARDING_ALREADY_COMPLETED"
	OnboardingStepOutOfOrder   = "ONBOARDING_STEP_OUT_OF_ORDER"
	OnboardingNoDocumentTypes  = "ONBOARDING_NO_DOCUMENT_TYPES"

	// ==================== Credentials (CREDENTIAL_) ====================
	CredentialNotConfigured = "CREDENTIAL_NOT_CONFIGURED"

	// ==================== Recurrence (RECURRENCE_) ====================
	RecurrenceTemplateNotFound = "RECURRENCE_TEMPLATE_NOT_FOUND"

	// ==================== Internal (INTERNAL_) ====================
	InternalServerError   = "INTERNAL_SERVER_ERROR"
	InternalDatabaseError = "INTERNAL_DATABASE_ERROR"
	InternalExternalAPI   = "INTERNAL_EXTERNAL_API"
	InternalConfigError   = "INTERNAL_CONFIG_ERROR"
)
