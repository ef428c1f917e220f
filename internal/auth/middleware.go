// Package auth verifies bearer tokens from the identity provider and puts
// the caller's user ID in the gin context under "userID".
package auth

import (
	"net/http"
	"strings"

	"fitbuddy/backend/pkg/jwt"

	"github.com/gin-gonic/gin"
)

// ContextKey is where the authenticated user ID is stored.
const ContextKey = "userID"

// AuthMiddleware rejects requests without a valid bearer token.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			return
		}

		userID, err := jwt.ParseToken(secret, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(ContextKey, userID)
		c.Next()
	}
}

// UserID returns the authenticated user ID, if any.
func UserID(c *gin.Context) (uint, bool) {
	value, exists := c.Get(ContextKey)
	if !exists {
		return 0, false
	}
	userID, ok := value.(uint)
	return userID, ok
}

func bearerToken(c *gin.Context) (string, bool) {
	parts := strings.Split(c.GetHeader("Authorization"), " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
