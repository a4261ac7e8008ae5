package model

import (
	"time"

	"github.com/facturalink/dte-backend/pkg/hacienda"
	"gorm.io/gorm"
)

// Tenant is one issuing company. End-user CRUD lives elsewhere; the core
// only needs identity, authority credentials and the production flag.
type Tenant struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name  string `gorm:"type:varchar(200);not null" json:"name"`
	NIT   string `gorm:"type:varchar(17);not null;uniqueIndex" json:"nit"`
	NRC   string `gorm:"type:varchar(10)" json:"nrc"`
	Email string `gorm:"type:varchar(255);not null" json:"email"`

	// APISecretHash is the bcrypt hash of the tenant's API secret for this
	// backend, not the authority credentials.
	APISecretHash string `gorm:"type:varchar(100)" json:"-"`

	Active                  bool       `gorm:"default:true" json:"active"`
	ProductionAuthorized    bool       `gorm:"default:false" json:"production_authorized"`
	ProductionAuthorizedAt  *time.Time `json:"production_authorized_at,omitempty"`
}

func (Tenant) TableName() string {
	return "tenants"
}

// AuthorityCredential stores a tenant's Hacienda API user per environment.
type AuthorityCredential struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	TenantID    uint                 `gorm:"not null;uniqueIndex:idx_credentials_tenant_env" json:"tenant_id"`
	Environment hacienda.Environment `gorm:"type:varchar(10);not null;uniqueIndex:idx_credentials_tenant_env" json:"environment"`

	APIUser     string `gorm:"type:varchar(100);not null" json:"api_user"`
	APIPassword string `gorm:"type:varchar(200);not null" json:"-"`
}

func (AuthorityCredential) TableName() string {
	return "authority_credentials"
}
