package repository

import (
	"context"
	"fmt"

	"github.com/liliang-cn/askbook/internal/config"
	"github.com/liliang-cn/askbook/internal/domain"
	"github.com/redis/go-redis/v9"
)

// NewRedisClient creates a client from config and checks connectivity
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// NewSessionStore builds the store named by session.store. It is chosen once
// at startup; a backend that cannot be reached is an error, not a silent fallback.
func NewSessionStore(ctx context.Context, cfg *config.Config) (domain.SessionStore, error) {
	switch cfg.Session.Store {
	case "", "memory":
		return NewMemorySessionStore(), nil

	case DriverSQLite:
		db, err := NewDB(DriverSQLite, cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		return NewSQLSessionStore(db), nil

	case DriverPostgres:
		db, err := NewDB(DriverPostgres, cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		return NewSQLSessionStore(db), nil

	case "redis":
		client, err := NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return NewRedisSessionStore(client, cfg.Redis.KeyPrefix), nil

	default:
		return nil, fmt.Errorf("%w: unknown session store %q", domain.ErrNotConfigured, cfg.Session.Store)
	}
}
