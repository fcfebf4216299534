package streams

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/contractmind/backend/internal/config"
)

// redisTransport hands events to the stream relay over Redis pub/sub. The
// relay owns the signing key and writes to the streams contract; the backend
// itself never holds keys.
type redisTransport struct {
	client   *redis.Client
	contract string
}

// NewRedisTransport creates the relay transport. Returns nil when Redis is
// not configured.
func NewRedisTransport(cfg *config.RedisConfig, streamsCfg *config.StreamsConfig) (Transport, error) {
	if !cfg.Enabled() || !streamsCfg.Enabled {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	return &redisTransport{
		client:   redis.NewClient(opts),
		contract: streamsCfg.ContractAddress,
	}, nil
}

func (t *redisTransport) Write(ctx context.Context, schemaID [32]byte, payload map[string]any) error {
	envelope, err := json.Marshal(map[string]any{
		"schema_id": "0x" + hex.EncodeToString(schemaID[:]),
		"contract":  t.contract,
		"payload":   payload,
	})
	if err != nil {
		return fmt.Errorf("marshal stream event: %w", err)
	}

	return t.client.Publish(ctx, "streams:events", envelope).Err()
}

// NewSink builds the configured Sink: an asynchronous publisher when streams
// and Redis are both configured, otherwise the disabled sink.
func NewSink(cfg *config.RedisConfig, streamsCfg *config.StreamsConfig, logger *slog.Logger) (Sink, error) {
	transport, err := NewRedisTransport(cfg, streamsCfg)
	if err != nil {
		return nil, err
	}
	if transport == nil {
		return Disabled{}, nil
	}
	return NewPublisher(transport, logger), nil
}
