package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/AlouiLouai/educ/internal/cache"
	"github.com/AlouiLouai/educ/internal/config"
	"github.com/AlouiLouai/educ/internal/database"
	"github.com/AlouiLouai/educ/internal/handlers"
	"github.com/AlouiLouai/educ/internal/identity"
	"github.com/AlouiLouai/educ/internal/jobs"
	"github.com/AlouiLouai/educ/internal/log"
	"github.com/AlouiLouai/educ/internal/repository"
	"github.com/AlouiLouai/educ/internal/server"
	"github.com/AlouiLouai/educ/internal/service"
	"github.com/AlouiLouai/educ/internal/storage"
	"github.com/AlouiLouai/educ/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, "api")

	ctx := context.Background()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	if cfg.Postgres.AutoMigrate {
		if err := database.Migrate(ctx, dbPool); err != nil {
			logger.Fatal().Err(err).Msg("schema migration failed")
		}
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}
	if err := objectStore.EnsureBuckets(ctx); err != nil {
		logger.Warn().Err(err).Msg("ensure buckets failed")
	}

	identities := repository.NewIdentityRepository(dbPool)
	profiles := repository.NewProfileRepository(dbPool)
	documents := repository.NewDocumentRepository(dbPool)

	identitySvc := identity.NewService(
		identity.NewOAuthProvider(cfg.OAuth),
		identities,
		identity.NewSessionStore(redisClient, cfg.Session.JWTSecret, cfg.Session.TTL),
		identity.NewStateStore(redisClient, cfg.OAuth.StateTTL),
		logger,
	)
	roles := cache.NewRoleCache(redisClient, cfg.Session.TTL)
	queue := tasks.NewQueue(redisClient, cfg.Worker.Stream)

	authSvc := service.NewAuthService(identitySvc, profiles, roles, queue, service.AuthOptions{
		RequireState: cfg.OAuth.RequireState,
		OrphanWindow: cfg.Session.OrphanWindow,
	}, logger)
	documentSvc := service.NewDocumentService(documents, objectStore, queue, service.DocumentOptions{
		MaxFileSize: cfg.Upload.MaxFileSize,
		Concurrency: cfg.Upload.Concurrency,
	}, logger)
	adminSvc := service.NewAdminService(profiles, documents, identitySvc, roles, logger)

	handlerSet := handlers.NewHandlerSet(logger, cfg, handlers.Dependencies{
		Identity:  identitySvc,
		Auth:      authSvc,
		Documents: documentSvc,
		Admin:     adminSvc,
		Profiles:  profiles,
		Roles:     roles,
		Database:  dbPool.Ping,
		Cache: func(ctx context.Context) error {
			return cache.Ping(ctx, redisClient)
		},
	})
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	scheduler := jobs.NewScheduler(queue, logger)
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
