package cache

// Package cache backs the pricing context lookups (customer groups,
// currencies, region tax rates) with a shared or in-process store.

import (
	"context"
	"fmt"
	"time"
)

// Provider is a string cache with per-entry TTLs. Get returns ErrNotFound
// for missing or expired keys.
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

func CustomerGroupKey(key string) string {
	return fmt.Sprintf("pricing:group:%s", key)
}

func CurrencyKey(code string) string {
	return fmt.Sprintf("pricing:currency:%s", code)
}

func TaxRatesKey(groupKey, countryISO, stateCode string) string {
	return fmt.Sprintf("pricing:taxes:%s:%s:%s", groupKey, countryISO, stateCode)
}
