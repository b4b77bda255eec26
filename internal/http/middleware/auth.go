// README: API-key middleware guarding the terminal's HTTP surface.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIKey checks the X-API-Key header against the configured key. An empty
// configured key disables the check (trusted local UI process).
func APIKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}
		if c.GetHeader("X-API-Key") != key {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing API key"})
			return
		}
		c.Next()
	}
}
