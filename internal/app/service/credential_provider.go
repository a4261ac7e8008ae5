package service

import (
	"context"
	"errors"

	"github.com/facturalink/dte-backend/internal/app/repository"
	"github.com/facturalink/dte-backend/pkg/hacienda"
	"gorm.io/gorm"
)

var ErrCredentialsNotFound = errors.New("authority credentials not configured for environment")

// AuthorityCredentialProvider feeds the token store from the tenant's stored
// authority credentials.
type AuthorityCredentialProvider struct {
	tenants repository.TenantRepository
}

func NewAuthorityCredentialProvider(tenants repository.TenantRepository) *AuthorityCredentialProvider {
	return &AuthorityCredentialProvider{tenants: tenants}
}

func (p *AuthorityCredentialProvider) AuthorityCredentials(ctx context.Context, tenantID uint, env hacienda.Environment) (hacienda.Credentials, error) {
	cred, err := p.tenants.FindCredential(tenantID, env)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return hacienda.Credentials{}, ErrCredentialsNotFound
		}
		return hacienda.Credentials{}, err
	}
	return hacienda.Credentials{
		User:     cred.APIUser,
		Password: cred.APIPassword,
	}, nil
}
