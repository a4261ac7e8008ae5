package model

import (
	"time"

	"gorm.io/gorm"
)

type ComplianceEventType string

const (
	EventEmission     ComplianceEventType = "emission"
	EventCancellation ComplianceEventType = "cancellation"
)

// ComplianceRequirement tracks required vs completed conformance tests for
// one (tenant, document type, event type) pair. CompletedCount never
// decreases.
type ComplianceRequirement struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	TenantID     uint                `gorm:"not null;uniqueIndex:idx_compliance_pair" json:"tenant_id"`
	DocumentType DocumentType        `gorm:"type:varchar(2);not null;uniqueIndex:idx_compliance_pair" json:"document_type"`
	EventType    ComplianceEventType `gorm:"type:varchar(20);not null;uniqueIndex:idx_compliance_pair" json:"event_type"`

	RequiredCount  int `gorm:"not null" json:"required_count"`
	CompletedCount int `gorm:"default:0" json:"completed_count"`

	LastResult   *bool      `json:"last_result,omitempty"`
	LastTestedAt *time.Time `json:"last_tested_at,omitempty"`
}

func (ComplianceRequirement) TableName() string {
	return "compliance_requirements"
}

// PairProgress is the per-pair view inside a progress snapshot.
type PairProgress struct {
	DocumentType DocumentType        `json:"document_type"`
	EventType    ComplianceEventType `json:"event_type"`
	Required     int                 `json:"required"`
	Completed    int                 `json:"completed"`
	Satisfied    bool                `json:"satisfied"`
}

// ProgressSnapshot summarizes a tenant's conformance-test progress. Extra
// passes beyond the required count are recorded but capped here, so the
// percentage never overshoots.
type ProgressSnapshot struct {
	TenantID                uint           `json:"tenant_id"`
	Pairs                   []PairProgress `json:"pairs"`
	PercentComplete         int            `json:"percent_complete"`
	CanRequestAuthorization bool           `json:"can_request_authorization"`
}

// RequirementCatalog is the authority's fixed table of how many conformance
// tests each document type needs per event.
var RequirementCatalog = map[DocumentType]map[ComplianceEventType]int{
	TypeFactura:            {EventEmission: 5, EventCancellation: 2},
	TypeCreditoFiscal:      {EventEmission: 5, EventCancellation: 2},
	TypeNotaRemision:       {EventEmission: 3, EventCancellation: 1},
	TypeNotaCredito:        {EventEmission: 3, EventCancellation: 1},
	TypeNotaDebito:         {EventEmission: 3, EventCancellation: 1},
	TypeRetencion:          {EventEmission: 3, EventCancellation: 1},
	TypeLiquidacion:        {EventEmission: 3, EventCancellation: 1},
	TypeFacturaExportacion: {EventEmission: 3, EventCancellation: 1},
	TypeSujetoExcluido:     {EventEmission: 3, EventCancellation: 1},
	TypeDonacion:           {EventEmission: 3, EventCancellation: 1},
}

// RequiredTests returns the catalog count for a pair, zero when the pair is
// not certified.
func RequiredTests(docType DocumentType, event ComplianceEventType) int {
	if byEvent, ok := RequirementCatalog[docType]; ok {
		return byEvent[event]
	}
	return 0
}
