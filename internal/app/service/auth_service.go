package service

import (
	"context"
	"errors"
	"time"

	"github.com/facturalink/dte-backend/config"
	"github.com/facturalink/dte-backend/internal/app/model"
	"github.com/facturalink/dte-backend/internal/app/repository"
	"github.com/facturalink/dte-backend/pkg/hacienda"
	"github.com/facturalink/dte-backend/pkg/logger"
	"github.com/facturalink/dte-backend/pkg/redis"
	"github.com/facturalink/dte-backend/pkg/util"
	"gorm.io/gorm"
)

var (
	ErrInvalidTenantCredentials = errors.New("invalid NIT or API secret")
	ErrNITAlreadyRegistered     = errors.New("NIT is already registered")
	ErrTenantNotFound           = errors.New("tenant not found")
)

type RegisterTenantInput struct {
	Name      string `json:"name" binding:"required"`
	NIT       string `json:"nit" binding:"required"`
	NRC       string `json:"nrc"`
	Email     string `json:"email" binding:"required,email"`
	APISecret string `json:"api_secret" binding:"required,min=12"`
}

// AuthService registers tenants and issues their API tokens.
type AuthService interface {
	Register(input RegisterTenantInput) (*model.Tenant, error)
	Login(nit, apiSecret string) (*util.TokenPair, *model.Tenant, error)
	Refresh(refreshToken string) (*util.TokenPair, error)
	Logout(ctx context.Context, token string) error
	SetAuthorityCredentials(tenantID uint, env hacienda.Environment, apiUser, apiPassword string) error
}

type authService struct {
	tenants repository.TenantRepository
	jwtCfg  config.JWTConfig
}

func NewAuthService(tenants repository.TenantRepository, jwtCfg config.JWTConfig) AuthService {
	return &authService{
		tenants: tenants,
		jwtCfg:  jwtCfg,
	}
}

func (s *authService) Register(input RegisterTenantInput) (*model.Tenant, error) {
	if _, err := s.tenants.FindByNIT(input.NIT); err == nil {
		return nil, ErrNITAlreadyRegistered
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := util.HashPassword(input.APISecret)
	if err != nil {
		return nil, err
	}

	tenant := &model.Tenant{
		Name:          input.Name,
		NIT:           input.NIT,
		NRC:           input.NRC,
		Email:         input.Email,
		APISecretHash: hash,
		Active:        true,
	}
	if err := s.tenants.Create(tenant); err != nil {
		return nil, err
	}

	logger.Info("Tenant registered", map[string]interface{}{
		"tenant_id": tenant.ID,
		"nit":       tenant.NIT,
	})
	return tenant, nil
}

func (s *authService) Login(nit, apiSecret string) (*util.TokenPair, *model.Tenant, error) {
	tenant, err := s.tenants.FindByNIT(nit)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrInvalidTenantCredentials
		}
		return nil, nil, err
	}
	if !tenant.Active || !util.VerifyPassword(tenant.APISecretHash, apiSecret) {
		return nil, nil, ErrInvalidTenantCredentials
	}

	tokens, err := util.GenerateTokenPair(
		tenant.ID,
		tenant.NIT,
		s.jwtCfg.Secret,
		s.jwtCfg.AccessTokenExpiry,
		s.jwtCfg.RefreshTokenExpiry,
	)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("Tenant logged in", map[string]interface{}{"tenant_id": tenant.ID})
	return tokens, tenant, nil
}

func (s *authService) Refresh(refreshToken string) (*util.TokenPair, error) {
	claims, err := util.ValidateToken(refreshToken, s.jwtCfg.Secret)
	if err != nil {
		return nil, ErrInvalidTenantCredentials
	}

	tenant, err := s.tenants.FindByID(claims.TenantID)
	if err != nil || !tenant.Active {
		return nil, ErrInvalidTenantCredentials
	}

	return util.GenerateTokenPair(
		tenant.ID,
		tenant.NIT,
		s.jwtCfg.Secret,
		s.jwtCfg.AccessTokenExpiry,
		s.jwtCfg.RefreshTokenExpiry,
	)
}

// Logout blacklists the presented access token for the rest of its lifetime.
func (s *authService) Logout(ctx context.Context, token string) error {
	claims, err := util.ValidateToken(token, s.jwtCfg.Secret)
	if err != nil {
		return nil
	}

	remaining := time.Until(claims.ExpiresAt.Time)
	if remaining <= 0 {
		return nil
	}
	return redis.BlacklistToken(ctx, token, remaining)
}

func (s *authService) SetAuthorityCredentials(tenantID uint, env hacienda.Environment, apiUser, apiPassword string) error {
	if !env.Valid() {
		return ErrInvalidEnvironment
	}
	if _, err := s.tenants.FindByID(tenantID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTenantNotFound
		}
		return err
	}

	return s.tenants.UpsertCredential(&model.AuthorityCredential{
		TenantID:    tenantID,
		Environment: env,
		APIUser:     apiUser,
		APIPassword: apiPassword,
	})
}
