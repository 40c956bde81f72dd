package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	"github.com/noah-isme/lms-api/pkg/response"
)

type roles map[models.UserRole]struct{}

func roleSet(list []models.UserRole) roles {
	set := make(roles, len(list))
	for _, r := range list {
		set[r] = struct{}{}
	}
	return set
}

// permits reports whether role is allowed. An empty set allows every role.
func (r roles) permits(role models.UserRole) bool {
	if len(r) == 0 {
		return true
	}
	_, ok := r[role]
	return ok
}

// RequireRoles narrows an authenticated group to the given roles.
func RequireRoles(allowed ...models.UserRole) gin.HandlerFunc {
	set := roleSet(allowed)
	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !set.permits(claims.Role) {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
