package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const sessionKey = "session"

// Middleware verifies the bearer token and stores the Session on the context.
func Middleware(v *Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "missing bearer token"})
			return
		}

		session, err := v.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid token"})
			return
		}

		c.Set(sessionKey, session)
		c.Next()
	}
}

// RequireCapability aborts with 403 unless the session holds cap.
func RequireCapability(capability Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !GetSession(c).Can(capability) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": "forbidden"})
			return
		}
		c.Next()
	}
}

// GetSession returns the request session, or an anonymous one.
func GetSession(c *gin.Context) Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return Anonymous()
	}
	s, ok := v.(Session)
	if !ok {
		return Anonymous()
	}
	return s
}
