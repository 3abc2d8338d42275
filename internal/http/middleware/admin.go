package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const AdminKeyHeader = "X-Admin-Key"

// AdminKey guards a route group. The key is read from X-Admin-Key or from an
// "Authorization: Bearer" header. An empty key leaves the group open, which is
// only meant for local development.
func AdminKey(required string, l zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if required == "" {
			c.Next()
			return
		}
		if subtle.ConstantTimeCompare([]byte(presentedKey(c)), []byte(required)) != 1 {
			l.Warn().
				Str("request_id", c.GetString(RequestIDHeader)).
				Str("path", c.FullPath()).
				Msg("admin key rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "UNAUTHORIZED",
					"message": "Invalid admin key",
				},
			})
			return
		}
		c.Next()
	}
}

func presentedKey(c *gin.Context) string {
	if key := c.GetHeader(AdminKeyHeader); key != "" {
		return key
	}
	auth := c.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
