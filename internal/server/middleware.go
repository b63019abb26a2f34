package server

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/neversayno/match-backend/internal/config"
)

// Header names match the static credential pair the mobile client sends
// with every request.
const (
	headerAppID  = "X-App-Id"
	headerAppKey = "X-App-Key"
)

// CredentialAuth verifies the static app credentials. An empty configured
// app id disables the check entirely (local dev, tests).
func CredentialAuth(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.App.ID == "" {
			c.Next()
			return
		}

		id := c.GetHeader(headerAppID)
		key := c.GetHeader(headerAppKey)
		if subtle.ConstantTimeCompare([]byte(id), []byte(cfg.App.ID)) != 1 ||
			subtle.ConstantTimeCompare([]byte(key), []byte(cfg.App.Key)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid app credentials"})
			return
		}
		c.Next()
	}
}
