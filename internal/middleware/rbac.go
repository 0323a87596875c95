package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-enroll-api/internal/models"
	appErrors "github.com/noah-isme/course-enroll-api/pkg/errors"
	"github.com/noah-isme/course-enroll-api/pkg/response"
)

// RequireRoles enforces role-based access control for routes. Roles form a
// closed enumeration; an unknown role is always rejected.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		userValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		user := userValue.(*models.User)

		if !user.Role.Valid() {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "not enough permissions"))
			c.Abort()
			return
		}

		if _, ok := allowed[user.Role]; !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "not enough permissions"))
			c.Abort()
			return
		}

		c.Next()
	}
}
