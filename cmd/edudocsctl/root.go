package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/AlouiLouai/educ/internal/cache"
	"github.com/AlouiLouai/educ/internal/config"
	"github.com/AlouiLouai/educ/internal/database"
	"github.com/AlouiLouai/educ/internal/identity"
	"github.com/AlouiLouai/educ/internal/log"
	"github.com/AlouiLouai/educ/internal/repository"
)

var (
	cfg    *config.AppConfig
	logger zerolog.Logger
)

var RootCmd = cobra.Command{
	Use:           "edudocsctl",
	Short:         "Operate an EduDocs deployment",
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		logger = log.New(cfg.Environment, "ctl")
		return nil
	},
}

// backend holds the connections a command needs. Close releases all of them.
type backend struct {
	pool       *pgxpool.Pool
	redis      *redis.Client
	identities *repository.IdentityRepository
	profiles   *repository.ProfileRepository
	documents  *repository.DocumentRepository
	identity   *identity.Service
	roles      *cache.RoleCache
}

func openBackend(ctx context.Context) (*backend, error) {
	pool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	identities := repository.NewIdentityRepository(pool)
	return &backend{
		pool:       pool,
		redis:      client,
		identities: identities,
		profiles:   repository.NewProfileRepository(pool),
		documents:  repository.NewDocumentRepository(pool),
		identity: identity.NewService(
			identity.NewOAuthProvider(cfg.OAuth),
			identities,
			identity.NewSessionStore(client, cfg.Session.JWTSecret, cfg.Session.TTL),
			identity.NewStateStore(client, cfg.OAuth.StateTTL),
			logger,
		),
		roles: cache.NewRoleCache(client, cfg.Session.TTL),
	}, nil
}

func (b *backend) Close() {
	b.pool.Close()
	if err := b.redis.Close(); err != nil {
		logger.Warn().Err(err).Msg("redis close error")
	}
}
