package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/askbook/internal/api/response"
	"github.com/liliang-cn/askbook/internal/domain"
)

// Auth returns an API key authentication middleware for admin routes
func Auth(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Admin routes are closed when no key is configured
		if apiKey == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "admin api key not configured"})
			return
		}

		key := c.GetHeader("X-API-Key")
		if key == "" {
			if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				key = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
			response.Error(c, domain.ErrUnauthorized)
			return
		}

		c.Next()
	}
}
