package repository

import (
	"github.com/facturalink/dte-backend/internal/app/model"
	"github.com/facturalink/dte-backend/pkg/hacienda"
	"gorm.io/gorm"
)

type TenantRepository interface {
	Create(tenant *model.Tenant) error
	FindByID(id uint) (*model.Tenant, error)
	FindByNIT(nit string) (*model.Tenant, error)
	Save(tenant *model.Tenant) error

	UpsertCredential(cred *model.AuthorityCredential) error
	FindCredential(tenantID uint, env hacienda.Environment) (*model.AuthorityCredential, error)
}

type tenantRepository struct {
	db *gorm.DB
}

func NewTenantRepository(db *gorm.DB) TenantRepository {
	return &tenantRepository{db: db}
}

func (r *tenantRepository) Create(tenant *model.Tenant) error {
	return r.db.Create(tenant).Error
}

func (r *tenantRepository) FindByID(id uint) (*model.Tenant, error) {
	var tenant model.Tenant
	if err := r.db.First(&tenant, id).Error; err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (r *tenantRepository) FindByNIT(nit string) (*model.Tenant, error) {
	var tenant model.Tenant
	if err := r.db.Where("nit = ?", nit).First(&tenant).Error; err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (r *tenantRepository) Save(tenant *model.Tenant) error {
	return r.db.Save(tenant).Error
}

func (r *tenantRepository) UpsertCredential(cred *model.AuthorityCredential) error {
	existing, err := r.FindCredential(cred.TenantID, cred.Environment)
	if err == gorm.ErrRecordNotFound {
		return r.db.Create(cred).Error
	}
	if err != nil {
		return err
	}
	cred.ID = existing.ID
	return r.db.Save(cred).Error
}

func (r *tenantRepository) FindCredential(tenantID uint, env hacienda.Environment) (*model.AuthorityCredential, error) {
	var cred model.AuthorityCredential
	err := r.db.Where("tenant_id = ? AND environment = ?", tenantID, env).First(&cred).Error
	if err != nil {
		return nil, err
	}
	return &cred, nil
}
