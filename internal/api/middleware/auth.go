package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/auth"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/models"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/utils"
)

const (
	// ContextKeyUserID holds the key for the authenticated user ID in Gin context.
	ContextKeyUserID = "userID"
	// ContextKeyRole holds the key for the authenticated user's role.
	ContextKeyRole = "role"
)

// AuthMiddleware creates a Gin middleware for JWT authentication. Websocket
// upgrades cannot set headers from browsers, so a token query parameter is
// accepted as a fallback.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}"})
				return
			}
			tokenString = parts[1]
		} else {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization required"})
			return
		}

		claims, err := auth.ValidateJWT(tokenString, jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		userID, err := utils.ParseSixID(claims.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token subject"})
			return
		}

		c.Set(ContextKeyUserID, userID)
		c.Set(ContextKeyRole, models.Role(claims.Role))
		c.Next()
	}
}

// RequireRole gates a route group to one role. Assumes AuthMiddleware ran.
func RequireRole(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetRole(c) != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient privileges"})
			return
		}
		c.Next()
	}
}

// GetUserID returns the authenticated user ID from the Gin context.
func GetUserID(c *gin.Context) utils.SixID {
	if v, ok := c.Get(ContextKeyUserID); ok {
		if id, ok := v.(utils.SixID); ok {
			return id
		}
	}
	return utils.SixID{}
}

// GetRole returns the authenticated user's role from the Gin context.
func GetRole(c *gin.Context) models.Role {
	if v, ok := c.Get(ContextKeyRole); ok {
		if role, ok := v.(models.Role); ok {
			return role
		}
	}
	return ""
}
