package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"taskhive/api/internal/apperr"
	"taskhive/api/internal/service"
)

const (
	ContextIdentity = "identity"
)

// Auth validates bearer access tokens through the session validity cache.
func Auth(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_token"})
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

		identity, err := auth.ValidateAccess(c.Request.Context(), tokenStr)
		if err != nil {
			code := apperr.CodeOf(err)
			if code == "" {
				code = "ACCESS_TOKEN_INVALID"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": code})
			return
		}

		c.Set(ContextIdentity, identity)
		c.Next()
	}
}

// Identity extracts the authenticated identity stashed by Auth.
func Identity(c *gin.Context) (service.AccessIdentity, bool) {
	value, exists := c.Get(ContextIdentity)
	if !exists {
		return service.AccessIdentity{}, false
	}
	identity, ok := value.(service.AccessIdentity)
	return identity, ok
}
