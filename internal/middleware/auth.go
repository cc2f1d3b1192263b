package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ownerIDKey is the gin context key the authenticated user ID is stored
// under.
const ownerIDKey = "ownerID"

// TokenValidator validates a bearer token and returns the user ID it
// was issued for.
type TokenValidator interface {
	ValidateToken(token string) (string, error)
}

// AuthMiddleware rejects requests without a valid bearer token and
// stashes the authenticated user ID in the request context.
func AuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		userID, err := validator.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(ownerIDKey, userID)
		c.Next()
	}
}

// OwnerID returns the authenticated user ID set by AuthMiddleware, or
// empty for unauthenticated requests.
func OwnerID(c *gin.Context) string {
	return c.GetString(ownerIDKey)
}
