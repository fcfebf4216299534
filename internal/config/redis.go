package config

import (
	"fmt"
	"os"
	"time"
)

const (
	// EnvRedisURL overrides the Redis connection URL.
	EnvRedisURL = "REDIS_URL"

	// EnvRedisCacheTTL overrides the agent cache entry lifetime.
	EnvRedisCacheTTL = "REDIS_CACHE_TTL"
)

// RedisConfig contains Redis cache configuration. The cache is optional:
// an empty URL disables it and lookups go straight to the database.
type RedisConfig struct {
	URL      string `toml:"url"`
	CacheTTL string `toml:"cache_ttl"`
}

// Enabled reports whether a Redis cache has been configured.
func (c *RedisConfig) Enabled() bool {
	return c.URL != ""
}

// CacheTTLDuration parses and returns the cache TTL as a time.Duration.
func (c *RedisConfig) CacheTTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.CacheTTL)
	return d
}

// Finalize applies defaults, loads environment overrides, and validates the Redis configuration.
func (c *RedisConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge applies values from overlay configuration that differ from zero values.
func (c *RedisConfig) Merge(overlay *RedisConfig) {
	if overlay.URL != "" {
		c.URL = overlay.URL
	}
	if overlay.CacheTTL != "" {
		c.CacheTTL = overlay.CacheTTL
	}
}

func (c *RedisConfig) loadDefaults() {
	if c.CacheTTL == "" {
		c.CacheTTL = "5m"
	}
}

func (c *RedisConfig) loadEnv() {
	if v := os.Getenv(EnvRedisURL); v != "" {
		c.URL = v
	}
	if v := os.Getenv(EnvRedisCacheTTL); v != "" {
		c.CacheTTL = v
	}
}

func (c *RedisConfig) validate() error {
	if _, err := time.ParseDuration(c.CacheTTL); err != nil {
		return fmt.Errorf("invalid cache_ttl: %w", err)
	}
	return nil
}
