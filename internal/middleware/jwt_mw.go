package middleware

import (
	"net/http"
	"strings"

	"petvet/internal/metrics"
	"petvet/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	AuthUserKey  = "authUser"
	AuthEmailKey = "authEmail"
)

// JWTAuthMiddleware creates a middleware for JWT authentication. Every rejection gets
// the same response; the reason is only logged and counted.
func JWTAuthMiddleware(jwtUtil *utils.JWTUtil, log logrus.FieldLogger) gin.HandlerFunc {
	reject := func(c *gin.Context, reason string, err error) {
		metrics.RecordAuthFailure(reason)
		entry := log.WithFields(logrus.Fields{
			"reason": reason,
			"path":   c.Request.URL.Path,
			"ip":     c.ClientIP(),
		})
		if err != nil {
			entry = entry.WithError(err)
		}
		entry.Warn("authentication rejected")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
	}

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			reject(c, "missing_header", nil)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || strings.TrimSpace(parts[1]) == "" {
			reject(c, "malformed_header", nil)
			return
		}

		claims, err := jwtUtil.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			reject(c, utils.FailureReason(err), err)
			return
		}

		// Set user information in context
		c.Set(AuthUserKey, claims.UserID)
		c.Set(AuthEmailKey, claims.Email)

		c.Next()
	}
}

// AuthUserID returns the identifier stored by JWTAuthMiddleware, or "".
func AuthUserID(c *gin.Context) string {
	return c.GetString(AuthUserKey)
}
