package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/vertragio/clm-api/internal/middleware"
	"github.com/vertragio/clm-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// scopeFromContext derives the tenant scope for the request. Tenant
// users are pinned to their own tenant; admins without a tenant may
// select one via the tenant_id query parameter or act globally.
func scopeFromContext(c *gin.Context) models.Scope {
	claims := claimsFromContext(c)
	if claims != nil && claims.TenantID != nil {
		return models.ForTenant(*claims.TenantID)
	}
	if tenantID := c.Query("tenant_id"); tenantID != "" {
		return models.ForTenant(tenantID)
	}
	return models.GlobalScope()
}

func actorFromContext(c *gin.Context) string {
	if claims := claimsFromContext(c); claims != nil {
		return claims.UserID
	}
	return ""
}
