// README: Firebase auth middleware; resolves caller UID and role claims.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"bistro/internal/infra"
)

const (
	ctxUID  = "auth_uid"
	ctxRole = "auth_role"
)

// Auth rejects requests without a valid Bearer token. Use on routes that
// require an authenticated caller (drivers, staff).
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := verify(c, verifier)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "unauthorized"})
			return
		}
		setCaller(c, token)
		c.Next()
	}
}

// OptionalAuth resolves the caller when a token is present but lets guests
// through; cart and tracking flows accept session-keyed guests.
func OptionalAuth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") != "" {
			if token, ok := verify(c, verifier); ok {
				setCaller(c, token)
			}
		}
		c.Next()
	}
}

func verify(c *gin.Context, verifier infra.TokenVerifier) (*infra.FirebaseToken, bool) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, false
	}
	raw := strings.TrimPrefix(header, "Bearer ")
	token, err := verifier.VerifyIDToken(c.Request.Context(), raw)
	if err != nil || token == nil {
		return nil, false
	}
	return token, true
}

func setCaller(c *gin.Context, token *infra.FirebaseToken) {
	c.Set(ctxUID, token.UID)
	if role, ok := token.Claims["role"].(string); ok {
		c.Set(ctxRole, role)
	}
}

// CallerUID returns the authenticated caller's UID, or "" for guests.
func CallerUID(c *gin.Context) string {
	return c.GetString(ctxUID)
}

// CallerRole returns the caller's role claim ("staff", "driver", or "").
func CallerRole(c *gin.Context) string {
	return c.GetString(ctxRole)
}
