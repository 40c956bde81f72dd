package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	"github.com/noah-isme/lms-api/pkg/response"
)

// MaintenanceChecker reports whether maintenance mode is enabled.
type MaintenanceChecker interface {
	Maintenance(ctx context.Context) (bool, string)
}

// Maintenance answers 503 to everyone but admins while maintenance mode is on.
// Unauthenticated auth routes are identified by their :role path parameter.
func Maintenance(settings MaintenanceChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		enabled, message := settings.Maintenance(c.Request.Context())
		if !enabled || requestRole(c) == models.RoleAdmin {
			c.Next()
			return
		}
		if message == "" {
			message = appErrors.ErrMaintenance.Message
		}
		response.Error(c, appErrors.Clone(appErrors.ErrMaintenance, message))
		c.Abort()
	}
}

func requestRole(c *gin.Context) models.UserRole {
	if claims, ok := Claims(c); ok {
		return claims.Role
	}
	role, _ := models.ParseRole(c.Param("role"))
	return role
}
