package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const emailKey = "auth.email"

// Authenticate enforces bearer JWT tokens signed with HS256 and records the
// caller's e-mail in the gin context.
func Authenticate(signingKey, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := Parse(tokenStr, signingKey, issuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(emailKey, claims.Email)
		c.Next()
	}
}

// Email returns the authenticated e-mail, or "" when the request carried none.
func Email(c *gin.Context) string {
	return c.GetString(emailKey)
}
