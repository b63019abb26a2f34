package main

import (
	"context"

	"github.com/joho/godotenv"

	"github.com/neversayno/match-backend/internal/app"
	"github.com/neversayno/match-backend/internal/cache"
	"github.com/neversayno/match-backend/internal/config"
	"github.com/neversayno/match-backend/internal/db"
	"github.com/neversayno/match-backend/internal/logger"
	"github.com/neversayno/match-backend/internal/server"
	"github.com/neversayno/match-backend/internal/service/match"
)

func main() {
	// Optional .env for local development; real deployments use the
	// environment directly.
	_ = godotenv.Load()

	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		return
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(context.Background()); err != nil {
		log.Error("failed to connect to redis", "err", err)
		return
	}

	appCtx := app.New(cfg, database, redisCache, log)

	registrars := []server.Registrar{
		match.NewService(appCtx),
	}

	if cfg.App.ENV == "development" {
		if err := db.SeedTestData(database); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	addr := cfg.HTTP.Host + ":" + cfg.HTTP.Port
	log.Info("starting HTTP server", "addr", addr)

	if err := server.StartHTTPServer(cfg, registrars...); err != nil {
		log.Error("http server failed", "err", err)
	}
}
