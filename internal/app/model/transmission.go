package model

import (
	"time"

	"github.com/facturalink/dte-backend/pkg/hacienda"
)

type JobStatus string

const (
	JobStatusQueued       JobStatus = "QUEUED"
	JobStatusCompleted    JobStatus = "COMPLETED"
	JobStatusDeadLettered JobStatus = "DEAD_LETTERED"
)

// TransmissionJob is one unit of work on the durable queue. At-least-once
// delivery; the worker's terminal-state check makes replays harmless.
type TransmissionJob struct {
	ID        string    `gorm:"type:varchar(36);primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	TenantID   uint      `gorm:"not null;index" json:"tenant_id"`
	DocumentID uint      `gorm:"not null;index" json:"document_id"`
	Document   *Document `gorm:"foreignKey:DocumentID" json:"document,omitempty"`

	Environment hacienda.Environment `gorm:"type:varchar(10);not null" json:"environment"`

	AttemptCount int `gorm:"default:0" json:"attempt_count"`
	MaxAttempts  int `gorm:"not null" json:"max_attempts"`

	IsComplianceTest bool                `gorm:"default:false" json:"is_compliance_test"`
	ComplianceEvent  ComplianceEventType `gorm:"type:varchar(20)" json:"compliance_event,omitempty"`

	Status    JobStatus `gorm:"type:varchar(20);not null;index;default:'QUEUED'" json:"status"`
	LastError string    `gorm:"type:text" json:"last_error,omitempty"`

	EnqueuedAt  time.Time  `gorm:"not null" json:"enqueued_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (TransmissionJob) TableName() string {
	return "transmission_jobs"
}

type AttemptOutcome string

const (
	AttemptOutcomeAccepted     AttemptOutcome = "accepted"
	AttemptOutcomeRejected     AttemptOutcome = "rejected"
	AttemptOutcomeTransient    AttemptOutcome = "transient"
	AttemptOutcomeTokenExpired AttemptOutcome = "token_expired"
	AttemptOutcomeAuthFailed   AttemptOutcome = "auth_failed"
	AttemptOutcomeExhausted    AttemptOutcome = "exhausted"
)

// TransmissionAttempt is one immutable audit row per attempt. Support and
// logging consume these; they are never updated or deleted.
type TransmissionAttempt struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	JobID      string `gorm:"type:varchar(36);not null;index" json:"job_id"`
	TenantID   uint   `gorm:"not null;index" json:"tenant_id"`
	DocumentID uint   `gorm:"not null;index" json:"document_id"`

	AttemptNumber    int            `gorm:"not null" json:"attempt_number"`
	Outcome          AttemptOutcome `gorm:"type:varchar(20);not null" json:"outcome"`
	AuthorityCode    string         `gorm:"type:varchar(10)" json:"authority_code,omitempty"`
	AuthorityMessage string         `gorm:"type:text" json:"authority_message,omitempty"`
}

func (TransmissionAttempt) TableName() string {
	return "transmission_attempts"
}
