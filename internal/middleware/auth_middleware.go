package middleware

import (
	"net/http"
	"strings"

	"github.com/facturalink/dte-backend/internal/errors"
	"github.com/facturalink/dte-backend/pkg/redis"
	"github.com/facturalink/dte-backend/pkg/util"
	"github.com/gin-gonic/gin"
)

// Context keys for the authenticated tenant.
const (
	TenantIDKey  = "tenant_id"
	TenantNITKey = "tenant_nit"
)

type AuthMiddleware struct {
	jwtSecret string
}

func NewAuthMiddleware(jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{
		jwtSecret: jwtSecret,
	}
}

// Authenticate validates the tenant API token (required).
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := GetLoggerFromContext(c)

		var token string

		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				log.Warn("Invalid authorization header format", map[string]interface{}{
					"path": c.Request.URL.Path,
				})
				errors.RespondWithError(c, http.StatusUnauthorized, errors.AuthTokenInvalid, "invalid authorization header format")
				c.Abort()
				return
			}
			token = parts[1]
		} else {
			// WebSocket clients cannot set headers, they pass the token as a
			// query parameter.
			token = c.Query("token")
			if token == "" {
				log.Warn("Missing authorization header", map[string]interface{}{
					"path": c.Request.URL.Path,
				})
				errors.Unauthorized(c, "authentication required")
				c.Abort()
				return
			}
		}

		claims, err := util.ValidateToken(token, m.jwtSecret)
		if err != nil {
			log.Warn("Token validation failed", map[string]interface{}{
				"path":  c.Request.URL.Path,
				"error": err.Error(),
			})

			if err == util.ErrExpiredToken {
				errors.RespondWithError(c, http.StatusUnauthorized, errors.AuthTokenExpired, "token has expired")
			} else {
				errors.RespondWithError(c, http.StatusUnauthorized, errors.AuthTokenInvalid, "invalid token")
			}
			c.Abort()
			return
		}

		// Tokens revoked by logout stay invalid until their natural expiry.
		revoked, err := redis.IsTokenBlacklisted(c.Request.Context(), token)
		if err != nil {
			log.Warn("Token blacklist check failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
		if revoked {
			errors.RespondWithError(c, http.StatusUnauthorized, errors.AuthTokenRevoked, "token has been revoked")
			c.Abort()
			return
		}

		c.Set(TenantIDKey, claims.TenantID)
		c.Set(TenantNITKey, claims.NIT)

		log.Debug("Tenant authenticated successfully", map[string]interface{}{
			"tenant_id": claims.TenantID,
		})

		c.Next()
	}
}

// GetTenantID extracts the authenticated tenant ID from context.
func GetTenantID(c *gin.Context) (uint, bool) {
	tenantID, exists := c.Get(TenantIDKey)
	if !exists {
		return 0, false
	}
	return tenantID.(uint), true
}

// GetTenantNIT extracts the authenticated tenant NIT from context.
func GetTenantNIT(c *gin.Context) (string, bool) {
	nit, exists := c.Get(TenantNITKey)
	if !exists {
		return "", false
	}
	return nit.(string), true
}
