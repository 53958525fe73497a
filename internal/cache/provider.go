package cache

// Package cache provides the store backing short-lived upstream credentials,
// primarily the Nivoda auth token.

import (
	"context"
	"fmt"
	"time"
)

// Provider defines the interface for cached string values with a TTL.
type Provider interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

type Config struct {
	Provider              string
	RedisConnectionString string
}

func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "memory", "":
		return NewMemoryProvider()
	case "redis":
		return NewRedisProvider(cfg.RedisConnectionString)
	default:
		return nil, fmt.Errorf("unsupported cache provider: %s", cfg.Provider)
	}
}

// TokenKey namespaces cached upstream auth tokens by provider name.
func TokenKey(provider string) string {
	return fmt.Sprintf("token:%s", provider)
}
