package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"folio/internal/auth"
)

const (
	ContextKeyClient = "client"
	ContextKeyClaims = "claims"
)

// TokenValidator checks a bearer token.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// AuthMiddleware returns Gin middleware that validates bearer tokens and
// injects the calling client. A nil validator lets every request through.
func AuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if validator == nil {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   gin.H{"code": "UNAUTHORIZED", "message": "missing or invalid authorization header"},
			})
			return
		}

		claims, err := validator.Validate(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   gin.H{"code": "UNAUTHORIZED", "message": "invalid or expired token"},
			})
			return
		}

		c.Set(ContextKeyClient, claims.Client)
		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// GetClient returns the authenticated client name, or "" when auth is off.
func GetClient(c *gin.Context) string {
	v, _ := c.Get(ContextKeyClient)
	s, _ := v.(string)
	return s
}
