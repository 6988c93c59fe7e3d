package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/AlouiLouai/educ/internal/cache"
	"github.com/AlouiLouai/educ/internal/config"
	"github.com/AlouiLouai/educ/internal/database"
	"github.com/AlouiLouai/educ/internal/identity"
	"github.com/AlouiLouai/educ/internal/log"
	"github.com/AlouiLouai/educ/internal/queue"
	"github.com/AlouiLouai/educ/internal/repository"
	"github.com/AlouiLouai/educ/internal/service"
	"github.com/AlouiLouai/educ/internal/storage"
	"github.com/AlouiLouai/educ/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, "worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	defer dbPool.Close()

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}

	identities := repository.NewIdentityRepository(dbPool)
	identitySvc := identity.NewService(
		identity.NewOAuthProvider(cfg.OAuth),
		identities,
		identity.NewSessionStore(client, cfg.Session.JWTSecret, cfg.Session.TTL),
		identity.NewStateStore(client, cfg.OAuth.StateTTL),
		logger,
	)
	sweeper := service.NewSweeper(identities, identitySvc, cfg.Worker.OrphanAge, logger)

	processor := tasks.NewProcessor(objectStore, sweeper, logger)
	consumer := queue.NewConsumer(
		client,
		cfg.Worker.Stream,
		cfg.Worker.Group,
		cfg.Worker.Consumer,
		cfg.Worker.ClaimInterval,
		logger,
		processor,
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Fatal().Err(err).Msg("consumer stopped unexpectedly")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Warn().Msg("consumer did not stop in time")
	}
}
