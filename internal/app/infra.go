package app

import (
	"context"

	"dreamscale-auth/internal/config"
	"dreamscale-auth/internal/db"
	"dreamscale-auth/internal/redis"

	"github.com/rs/zerolog"
)

type Infra struct {
	DB    *db.DB
	Redis *redis.Client
}

func setupInfra(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Infra, error) {
	database, err := db.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	if err := db.RunProfileMigration(ctx, database); err != nil {
		return nil, err
	}

	log.Info().Msg("database ready")

	redisClient, err := redis.New(cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		return nil, err
	}

	log.Info().Msg("redis ready")

	return &Infra{
		DB:    database,
		Redis: redisClient,
	}, nil
}
