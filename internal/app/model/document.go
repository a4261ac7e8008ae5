package model

import (
	"time"

	"github.com/facturalink/dte-backend/pkg/hacienda"
	"gorm.io/gorm"
)

// DocumentType holds the authority's two-digit DTE type codes.
type DocumentType string

const (
	TypeFactura            DocumentType = "01"
	TypeCreditoFiscal      DocumentType = "03"
	TypeNotaRemision       DocumentType = "04"
	TypeNotaCredito        DocumentType = "05"
	TypeNotaDebito         DocumentType = "06"
	TypeRetencion          DocumentType = "07"
	TypeLiquidacion        DocumentType = "08"
	TypeFacturaExportacion DocumentType = "11"
	TypeSujetoExcluido     DocumentType = "14"
	TypeDonacion           DocumentType = "15"
)

type DocumentState string

const (
	DocumentStatePending      DocumentState = "PENDING"
	DocumentStateSigned       DocumentState = "SIGNED"
	DocumentStateSubmitted    DocumentState = "SUBMITTED"
	DocumentStateRetryPending DocumentState = "RETRY_PENDING"
	DocumentStateAccepted     DocumentState = "ACCEPTED"
	DocumentStateRejected     DocumentState = "REJECTED"
)

// Terminal reports whether no further submission activity is allowed for the
// current cycle. A rejected document may still start a new cycle via
// REJECTED -> SIGNED.
func (s DocumentState) Terminal() bool {
	return s == DocumentStateAccepted || s == DocumentStateRejected
}

// validTransitions is the whole state machine. State only moves forward
// within a submission cycle; REJECTED -> SIGNED opens a new cycle that keeps
// the generation code. SIGNED -> REJECTED is the synthetic exhaustion path
// for documents whose retry budget ran out before a dispatch ever succeeded.
var validTransitions = map[DocumentState][]DocumentState{
	DocumentStatePending:      {DocumentStateSigned},
	DocumentStateSigned:       {DocumentStateSubmitted, DocumentStateRejected},
	DocumentStateSubmitted:    {DocumentStateAccepted, DocumentStateRejected, DocumentStateRetryPending},
	DocumentStateRetryPending: {DocumentStateSubmitted, DocumentStateRejected},
	DocumentStateAccepted:     {},
	DocumentStateRejected:     {DocumentStateSigned},
}

// CanTransition reports whether from -> to is a legal state-machine move.
func CanTransition(from, to DocumentState) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Document is one DTE. The generation code is globally unique and stable
// across resubmission cycles; the control number is unique per tenant.
type Document struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	TenantID uint    `gorm:"not null;index;uniqueIndex:idx_documents_tenant_control" json:"tenant_id"`
	Tenant   *Tenant `gorm:"foreignKey:TenantID" json:"tenant,omitempty"`

	GenerationCode string       `gorm:"type:varchar(36);not null;uniqueIndex" json:"generation_code"`
	ControlNumber  string       `gorm:"type:varchar(31);not null;uniqueIndex:idx_documents_tenant_control" json:"control_number"`
	Type           DocumentType `gorm:"type:varchar(2);not null;index" json:"type"`

	Establishment string `gorm:"type:varchar(4);not null" json:"establishment"`
	PointOfSale   string `gorm:"type:varchar(4);not null" json:"point_of_sale"`

	Environment hacienda.Environment `gorm:"type:varchar(10);not null;index" json:"environment"`
	State       DocumentState        `gorm:"type:varchar(20);not null;index;default:'PENDING'" json:"state"`

	// Payload is the signed document body submitted to the authority.
	// Ready reports the upstream collaborator finished building it.
	Payload string `gorm:"type:text" json:"-"`
	Ready   bool   `gorm:"default:false" json:"ready"`

	// Stamp is the authority's acknowledgment (selloRecibido); written
	// exactly once, when the document is accepted.
	Stamp           string `gorm:"type:varchar(64)" json:"stamp,omitempty"`
	RejectionReason string `gorm:"type:text" json:"rejection_reason,omitempty"`

	AttemptCount     int  `gorm:"default:0" json:"attempt_count"`
	IsComplianceTest bool `gorm:"default:false" json:"is_compliance_test"`

	// Version guards read-modify-write transitions against racing workers.
	Version int `gorm:"default:0" json:"-"`

	SignedAt    *time.Time `json:"signed_at,omitempty"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	RejectedAt  *time.Time `json:"rejected_at,omitempty"`
}

func (Document) TableName() string {
	return "documents"
}
