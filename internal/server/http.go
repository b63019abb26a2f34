package server

import (
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/neversayno/match-backend/internal/config"
)

// Registrar is a common interface for all HTTP service registrars.
type Registrar interface {
	Register(r gin.IRouter)
}

// NewRouter builds the gin engine with shared middleware and mounts all
// provided services.
func NewRouter(cfg *config.Config, registrars ...Registrar) *gin.Engine {
	if cfg.App.ENV != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/v1", CredentialAuth(cfg))
	for _, reg := range registrars {
		reg.Register(api)
	}

	return r
}

// StartHTTPServer boots the HTTP server and blocks until it exits.
func StartHTTPServer(cfg *config.Config, registrars ...Registrar) error {
	addr := fmt.Sprintf("%s:%s", cfg.HTTP.Host, cfg.HTTP.Port)
	router := NewRouter(cfg, registrars...)
	if err := router.Run(addr); err != nil {
		return fmt.Errorf("http server exited: %w", err)
	}
	return nil
}
