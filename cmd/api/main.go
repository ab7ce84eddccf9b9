package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gkintu/hukasa-staging-sub001/internal/cache"
	"github.com/gkintu/hukasa-staging-sub001/internal/config"
	"github.com/gkintu/hukasa-staging-sub001/internal/database"
	"github.com/gkintu/hukasa-staging-sub001/internal/handlers"
	"github.com/gkintu/hukasa-staging-sub001/internal/jobs"
	"github.com/gkintu/hukasa-staging-sub001/internal/log"
	"github.com/gkintu/hukasa-staging-sub001/internal/ratelimit"
	"github.com/gkintu/hukasa-staging-sub001/internal/server"
	"github.com/gkintu/hukasa-staging-sub001/internal/staging"
	"github.com/gkintu/hukasa-staging-sub001/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment)

	ctx := context.Background()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	fileStore, err := storage.NewFileStore(cfg.Storage.Root)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init file store")
	}

	dispatcher, err := staging.NewDispatcher(cfg.Render, redisClient, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init render dispatcher")
	}
	if err := dispatcher.EnsureBucket(ctx); err != nil {
		logger.Warn().Err(err).Msg("ensure render bucket failed")
	}

	limiter := ratelimit.NewFixedWindow(cfg.RateLimit.Window, cfg.RateLimit.Ceiling)

	handlerSet := handlers.NewHandlerSet(logger, dbPool, redisClient, fileStore, dispatcher, limiter, cfg)
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	scheduler := jobs.NewScheduler(redisClient, limiter, cfg.Render.Stream, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, dbPool, redisClient)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	scheduler.Stop()

	db.Close()
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}

	logger.Info().Msg("server exited cleanly")
}
