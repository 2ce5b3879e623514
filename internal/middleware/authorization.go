package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/smesochoritis-afk/streetkiosk-loyalty/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
)

const adminTokenHeader = "X-Admin-Token"

type Authorization struct {
	adminToken string
}

func NewAuthorization(adminToken string) *Authorization {
	return &Authorization{
		adminToken: adminToken,
	}
}

// AdminOnly guards administrative routes with a shared token. When no token
// is configured the admin surface is disabled entirely.
func (a *Authorization) AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.Logger()

		if a.adminToken == "" {
			log.Warn("admin endpoint called but no admin token is configured")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access disabled"})
			return
		}

		token := c.GetHeader(adminTokenHeader)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(a.adminToken)) != 1 {
			log.Info("unauthorized access attempt to admin endpoint",
				zap.String("path", c.FullPath()))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}

		c.Set("is_admin", true)
		c.Next()
	}
}
