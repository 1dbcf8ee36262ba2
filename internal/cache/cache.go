package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/eugenenazirov/storeconf/internal/settings"
)

// NewOptions maps cache settings onto go-redis options.
func NewOptions(cfg settings.CacheConnectionSettings) (*redis.Options, error) {
	opts := &redis.Options{
		Network:  "tcp",
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DBIndex,
	}
	if cfg.Scheme() == settings.SchemeUnix {
		opts.Network = "unix"
	}

	if cfg.Timeout > 0 {
		opts.DialTimeout = cfg.Timeout
		opts.ReadTimeout = cfg.Timeout
		opts.WriteTimeout = cfg.Timeout
	}

	if cfg.Secure() {
		tlsConfig, err := NewTLSConfig(cfg)
		if err != nil {
			return nil, err
		}
		opts.TLSConfig = tlsConfig
	}

	return opts, nil
}

// NewClient creates a go-redis client for the settings. No connection is
// attempted until the first command.
func NewClient(cfg settings.CacheConnectionSettings, logger *zap.Logger) (*redis.Client, error) {
	opts, err := NewOptions(cfg)
	if err != nil {
		return nil, fmt.Errorf("build redis options: %w", err)
	}

	logger.Debug("redis client configured",
		zap.String("network", opts.Network),
		zap.String("addr", opts.Addr),
		zap.Bool("tls", opts.TLSConfig != nil),
		zap.Int("db", opts.DB),
	)
	return redis.NewClient(opts), nil
}

// Ping checks that the server is reachable with the configured credentials.
func Ping(ctx context.Context, client *redis.Client) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis %s: %w", client.Options().Addr, err)
	}
	return nil
}
