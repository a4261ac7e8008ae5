package model

import (
	"time"

	"github.com/facturalink/dte-backend/pkg/hacienda"
	"gorm.io/gorm"
)

type RecurrenceInterval string

const (
	IntervalDaily   RecurrenceInterval = "daily"
	IntervalWeekly  RecurrenceInterval = "weekly"
	IntervalMonthly RecurrenceInterval = "monthly"
)

// NextAfter advances from the given time by one interval.
func (i RecurrenceInterval) NextAfter(t time.Time) time.Time {
	switch i {
	case IntervalWeekly:
		return t.AddDate(0, 0, 7)
	case IntervalMonthly:
		return t.AddDate(0, 1, 0)
	default:
		return t.AddDate(0, 0, 1)
	}
}

// RecurringTemplate periodically materializes a document and enqueues its
// transmission. The scheduler is the only writer of NextRunAt.
type RecurringTemplate struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	TenantID uint    `gorm:"not null;index" json:"tenant_id"`
	Tenant   *Tenant `gorm:"foreignKey:TenantID" json:"tenant,omitempty"`

	DocumentType  DocumentType         `gorm:"type:varchar(2);not null" json:"document_type"`
	Establishment string               `gorm:"type:varchar(4);not null" json:"establishment"`
	PointOfSale   string               `gorm:"type:varchar(4);not null" json:"point_of_sale"`
	Environment   hacienda.Environment `gorm:"type:varchar(10);not null" json:"environment"`

	// Payload is the document body template the issuance service signs and
	// submits on each run.
	Payload string `gorm:"type:text;not null" json:"-"`

	Interval  RecurrenceInterval `gorm:"type:varchar(10);not null" json:"interval"`
	NextRunAt time.Time          `gorm:"not null;index" json:"next_run_at"`
	Active    bool               `gorm:"default:true;index" json:"active"`

	LastEnqueuedAt *time.Time `json:"last_enqueued_at,omitempty"`
}

func (RecurringTemplate) TableName() string {
	return "recurring_templates"
}
