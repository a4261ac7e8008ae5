package controller

import (
	"errors"
	"net/http"
	"strings"

	"github.com/facturalink/dte-backend/internal/app/service"
	apierrors "github.com/facturalink/dte-backend/internal/errors"
	"github.com/facturalink/dte-backend/internal/middleware"
	"github.com/facturalink/dte-backend/pkg/hacienda"
	"github.com/gin-gonic/gin"
)

type AuthController struct {
	authService service.AuthService
}

func NewAuthController(authService service.AuthService) *AuthController {
	return &AuthController{
		authService: authService,
	}
}

type LoginRequest struct {
	NIT       string `json:"nit" binding:"required"`
	APISecret string `json:"api_secret" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type AuthorityCredentialsRequest struct {
	Environment string `json:"environment" binding:"required"`
	APIUser     string `json:"api_user" binding:"required"`
	APIPassword string `json:"api_password" binding:"required"`
}

// Register creates a tenant account
// POST /api/v1/auth/register
func (ctrl *AuthController) Register(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req service.RegisterTenantInput
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, apierrors.ValidationInvalidInput, err.Error())
		return
	}

	tenant, err := ctrl.authService.Register(req)
	if err != nil {
		if errors.Is(err, service.ErrNITAlreadyRegistered) {
			apierrors.Conflict(c, apierrors.AuthNITAlreadyExists, "NIT is already registered")
			return
		}
		log.Error("Failed to register tenant", err, map[string]interface{}{
			"nit": req.NIT,
		})
		apierrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"tenant": tenant})
}

// Login exchanges the tenant API secret for a token pair
// POST /api/v1/auth/login
func (ctrl *AuthController) Login(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, apierrors.ValidationInvalidInput, err.Error())
		return
	}

	tokens, tenant, err := ctrl.authService.Login(req.NIT, req.APISecret)
	if err != nil {
		if errors.Is(err, service.ErrInvalidTenantCredentials) {
			apierrors.RespondWithError(c, http.StatusUnauthorized, apierrors.AuthInvalidCredentials, "invalid NIT or API secret")
			return
		}
		log.Error("Failed to log tenant in", err, map[string]interface{}{
			"nit": req.NIT,
		})
		apierrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tokens": tokens,
		"tenant": tenant,
	})
}

// Refresh rotates the token pair
// POST /api/v1/auth/refresh
func (ctrl *AuthController) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, apierrors.ValidationInvalidInput, err.Error())
		return
	}

	tokens, err := ctrl.authService.Refresh(req.RefreshToken)
	if err != nil {
		apierrors.RespondWithError(c, http.StatusUnauthorized, apierrors.AuthTokenInvalid, "invalid refresh token")
		return
	}

	c.JSON(http.StatusOK, gin.H{"tokens": tokens})
}

// Logout revokes the presented access token
// POST /api/v1/auth/logout
func (ctrl *AuthController) Logout(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	authHeader := c.GetHeader("Authorization")
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		apierrors.Unauthorized(c, "")
		return
	}

	if err := ctrl.authService.Logout(c.Request.Context(), parts[1]); err != nil {
		log.Error("Failed to revoke token", err, nil)
		apierrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// SetAuthorityCredentials stores the tenant's Hacienda credentials per environment
// PUT /api/v1/credentials
func (ctrl *AuthController) SetAuthorityCredentials(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	tenantID, exists := middleware.GetTenantID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	var req AuthorityCredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, apierrors.ValidationInvalidInput, err.Error())
		return
	}

	err := ctrl.authService.SetAuthorityCredentials(tenantID, hacienda.Environment(req.Environment), req.APIUser, req.APIPassword)
	if err != nil {
		if errors.Is(err, service.ErrInvalidEnvironment) {
			apierrors.BadRequest(c, apierrors.ValidationInvalidEnvironment, "environment must be test or production")
			return
		}
		log.Error("Failed to store authority credentials", err, map[string]interface{}{
			"tenant_id": tenantID,
		})
		apierrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "credentials stored"})
}
