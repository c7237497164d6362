package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"console/cmd/internal/auth/credential"
	"console/cmd/internal/metrics"

	"github.com/redis/go-redis/v9"
)

// tokenBackend is the pair of credential stores plus the resources behind them.
type tokenBackend struct {
	name    string
	access  credential.Store
	refresh credential.Store

	ping  func(ctx context.Context) error
	close func()
}

func (b *tokenBackend) stores() map[credential.Kind]credential.Store {
	return map[credential.Kind]credential.Store{
		credential.KindAccess:  b.access,
		credential.KindRefresh: b.refresh,
	}
}

// openBackend builds the stores selected by cfg.TokenStore.
func openBackend(ctx context.Context, cfg Config, grace time.Duration, log *slog.Logger, m *metrics.Metrics) (*tokenBackend, error) {
	opts := []credential.Option{
		credential.WithLogger(log),
		credential.WithMetrics(m),
		credential.WithCompactGrace(grace),
	}

	switch strings.ToLower(strings.TrimSpace(cfg.TokenStore)) {
	case "", StoreFile:
		return openFileBackend(cfg, opts)
	case StorePostgres:
		return openPostgresBackend(ctx, cfg, log, opts)
	case StoreRedis:
		return openRedisBackend(ctx, cfg, opts)
	default:
		return nil, fmt.Errorf("app: unknown token store %q", cfg.TokenStore)
	}
}

func openFileBackend(cfg Config, opts []credential.Option) (*tokenBackend, error) {
	access, err := credential.NewFileStore(cfg.TokenDataDir, credential.KindAccess, opts...)
	if err != nil {
		return nil, err
	}
	refresh, err := credential.NewFileStore(cfg.TokenDataDir, credential.KindRefresh, opts...)
	if err != nil {
		return nil, err
	}

	dir := cfg.TokenDataDir
	return &tokenBackend{
		name:    StoreFile,
		access:  access,
		refresh: refresh,
		ping: func(context.Context) error {
			_, err := os.Stat(dir)
			return err
		},
		close: func() {},
	}, nil
}

func openPostgresBackend(ctx context.Context, cfg Config, log *slog.Logger, opts []credential.Option) (*tokenBackend, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("app: CONSOLE_TOKEN_STORE=postgres requires CONSOLE_DATABASE_URL")
	}

	pool, err := openPostgresPool(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	if cfg.DBMigrate {
		if err := credential.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("app: migrate: %w", err)
		}
		log.Info("db.migrated")
	}

	access, err := credential.NewPostgresStore(pool, credential.KindAccess, opts...)
	if err != nil {
		pool.Close()
		return nil, err
	}
	refresh, err := credential.NewPostgresStore(pool, credential.KindRefresh, opts...)
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &tokenBackend{
		name:    StorePostgres,
		access:  access,
		refresh: refresh,
		ping: func(ctx context.Context) error {
			return pingPool(ctx, pool, dbReadyTimeout)
		},
		close: pool.Close,
	}, nil
}

func openRedisBackend(ctx context.Context, cfg Config, opts []credential.Option) (*tokenBackend, error) {
	if cfg.RedisURL == "" {
		return nil, errors.New("app: CONSOLE_TOKEN_STORE=redis requires CONSOLE_REDIS_URL")
	}

	ropts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("app: redis url: %w", err)
	}
	rdb := redis.NewClient(ropts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("app: redis ping: %w", err)
	}

	return newRedisBackend(rdb, cfg.RedisPrefix, opts)
}

func newRedisBackend(rdb *redis.Client, prefix string, opts []credential.Option) (*tokenBackend, error) {
	access, err := credential.NewRedisStore(rdb, prefix, credential.KindAccess, opts...)
	if err != nil {
		_ = rdb.Close()
		return nil, err
	}
	refresh, err := credential.NewRedisStore(rdb, prefix, credential.KindRefresh, opts...)
	if err != nil {
		_ = rdb.Close()
		return nil, err
	}

	return &tokenBackend{
		name:    StoreRedis,
		access:  access,
		refresh: refresh,
		ping: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		},
		close: func() { _ = rdb.Close() },
	}, nil
}
