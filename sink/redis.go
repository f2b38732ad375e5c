package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/stitchwork/stitch/reassembly"
)

// DefaultRedisPrefix is the default pub/sub channel prefix.
const DefaultRedisPrefix = "stitch"

// DefaultRedisTimeout is the default per-publish timeout.
const DefaultRedisTimeout = 5 * time.Second

// DefaultRedisRetries is the default number of retry attempts.
const DefaultRedisRetries = 3

// RedisConfig configures the Redis pub/sub sink.
type RedisConfig struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// Prefix is the pub/sub channel prefix (default: stitch).
	// Emits publish to "<prefix>:<channel>".
	Prefix string
	// Timeout is the per-publish timeout (default 5s).
	Timeout time.Duration
	// Retries is the number of retry attempts on failure (default 3).
	Retries int
}

// RedisEmit is the JSON message published for each emit.
type RedisEmit struct {
	Channel string `json:"channel"`
	Kind    string `json:"kind"` // "partial" or "final"
	Content string `json:"content"`
}

// RedisSink publishes emits via Redis PUBLISH.
type RedisSink struct {
	config RedisConfig
	client *goredis.Client
}

// NewRedisSink creates a Redis pub/sub sink from the given config.
// Returns an error if the URL is empty or invalid.
func NewRedisSink(cfg RedisConfig) (*RedisSink, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis sink requires a URL")
	}

	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis sink: invalid URL: %w", err)
	}

	if cfg.Prefix == "" {
		cfg.Prefix = DefaultRedisPrefix
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRedisTimeout
	}
	if cfg.Retries == 0 {
		cfg.Retries = DefaultRedisRetries
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}

	return &RedisSink{
		config: cfg,
		client: goredis.NewClient(opts),
	}, nil
}

// EmitPartial publishes an incremental payload slice.
func (s *RedisSink) EmitPartial(ctx context.Context, channel, content string) error {
	return s.publish(ctx, RedisEmit{Channel: channel, Kind: "partial", Content: content})
}

// EmitFinal publishes the end-of-payload signal.
func (s *RedisSink) EmitFinal(ctx context.Context, channel, content string) error {
	return s.publish(ctx, RedisEmit{Channel: channel, Kind: "final", Content: content})
}

// publish sends the emit as a JSON PUBLISH to "<prefix>:<channel>".
// Retries with exponential backoff on failures.
func (s *RedisSink) publish(ctx context.Context, emit RedisEmit) error {
	body, err := json.Marshal(emit)
	if err != nil {
		return fmt.Errorf("redis: marshal emit: %w", err)
	}

	target := s.config.Prefix + ":" + emit.Channel

	var lastErr error
	// attempts = 1 initial + retries
	attempts := 1 + s.config.Retries

	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("redis: context canceled: %w", err)
		}

		// Exponential backoff before retries (not before first attempt)
		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return fmt.Errorf("redis: context canceled during backoff: %w", ctx.Err())
			case <-time.After(backoff):
			}
		}

		publishCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
		lastErr = s.client.Publish(publishCtx, target, body).Err()
		cancel()

		if lastErr == nil {
			return nil
		}
	}

	return fmt.Errorf("redis: failed after %d attempts: %w", attempts, lastErr)
}

// Close releases sink resources.
func (s *RedisSink) Close() error {
	return s.client.Close()
}

// Verify RedisSink implements reassembly.Sink.
var _ reassembly.Sink = (*RedisSink)(nil)
