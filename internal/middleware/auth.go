package middleware

import (
	"strings"

	"botfleet/backend/internal/util"
	"botfleet/backend/pkg/jwt"

	"github.com/gin-gonic/gin"
)

// Auth validates the bearer token and stores the acting identity in the
// request context. Token issuance lives in the external auth layer; only
// validation happens here.
func Auth(tokens *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			util.AbortWithCustomError(c, 401, util.ErrCodeUnauthorized, "Missing authorization header")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			util.AbortWithCustomError(c, 401, util.ErrCodeUnauthorized, "Invalid authorization header format")
			return
		}

		claims, err := tokens.Validate(parts[1])
		if err != nil {
			util.AbortWithCustomError(c, 401, util.ErrCodeUnauthorized, "Invalid or expired token")
			return
		}

		c.Set("actor_id", claims.ActorID)
		c.Set("actor_role", claims.Role)
		c.Set("actor", claims)

		c.Next()
	}
}

// RequireOperator restricts a route to the operator role.
func RequireOperator() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get("actor_role")
		if !exists {
			util.AbortWithCustomError(c, 401, util.ErrCodeUnauthorized, "Authentication required")
			return
		}

		if role != jwt.RoleOperator {
			util.AbortWithCustomError(c, 403, util.ErrCodeForbidden, "Operator access required")
			return
		}

		c.Next()
	}
}

// Actor extracts the validated claims from the request context.
func Actor(c *gin.Context) (*jwt.Claims, bool) {
	v, exists := c.Get("actor")
	if !exists {
		return nil, false
	}
	claims, ok := v.(*jwt.Claims)
	return claims, ok
}
