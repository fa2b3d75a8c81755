// internal/db/redis.go
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisClientName = "rental-agents"

type RedisConfig struct {
	ClusterMode bool
	Addresses   []string
	Password    string
	DB          int
	PoolSize    int
}

func (c RedisConfig) options() *redis.UniversalOptions {
	return &redis.UniversalOptions{
		Addrs:         c.Addresses,
		Password:      c.Password,
		DB:            c.DB,
		PoolSize:      c.PoolSize,
		ClientName:    redisClientName,
		IsClusterMode: c.ClusterMode,
		DialTimeout:   5 * time.Second,
		ReadTimeout:   3 * time.Second,
		WriteTimeout:  3 * time.Second,
	}
}

// NewRedis connects and pings. The rate limiter, the revocation list and
// the event publisher share the returned client.
func NewRedis(ctx context.Context, cfg RedisConfig) (redis.UniversalClient, error) {
	if len(cfg.Addresses) == 0 {
		return nil, fmt.Errorf("no Redis address provided")
	}
	if cfg.ClusterMode && cfg.DB != 0 {
		return nil, fmt.Errorf("redis cluster does not support DB %d", cfg.DB)
	}

	client := redis.NewUniversalClient(cfg.options())

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis at %v: %w", cfg.Addresses, err)
	}

	return client, nil
}
