package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/gema-training-api/internal/utils"
)

const (
	rateLimitPrefix  = "ratelimit:"
	storageOpTimeout = 2 * time.Second
)

// RateLimitConfig describes one throttled operation.
type RateLimitConfig struct {
	Identifier string
	Max        int
	Window     time.Duration
	// Storage shares counters between replicas; nil keeps them in process memory.
	Storage fiber.Storage
}

// RateLimit creates a per-user rate limiter kept in process memory.
func RateLimit(identifier string, max int, window time.Duration) fiber.Handler {
	return NewRateLimiter(RateLimitConfig{Identifier: identifier, Max: max, Window: window})
}

// NewRateLimiter throttles requests per authenticated user, falling back to the client IP.
func NewRateLimiter(cfg RateLimitConfig) fiber.Handler {
	if cfg.Max <= 0 {
		cfg.Max = 10
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Second
	}

	return limiter.New(limiter.Config{
		Max:        cfg.Max,
		Expiration: cfg.Window,
		Storage:    cfg.Storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			subject := c.IP()
			if userID, ok := c.Locals("user_id").(uint); ok && userID != 0 {
				subject = fmt.Sprintf("user:%d", userID)
			}
			return fmt.Sprintf("%s:%s", cfg.Identifier, subject)
		},
		LimitReached: func(c *fiber.Ctx) error {
			return utils.SendErrorCode(c, fiber.StatusTooManyRequests, "rate_limited", cfg.Identifier+" rate limit exceeded")
		},
	})
}

// RedisStorage adapts a go-redis client to fiber.Storage for limiter counters.
type RedisStorage struct {
	client *redis.Client
}

// NewRedisStorage wraps client; keys are namespaced under "ratelimit:".
func NewRedisStorage(client *redis.Client) *RedisStorage {
	return &RedisStorage{client: client}
}

// Get returns nil without error for missing keys.
func (s *RedisStorage) Get(key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), storageOpTimeout)
	defer cancel()

	value, err := s.client.Get(ctx, rateLimitPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return value, err
}

// Set stores val with the given expiry; zero means no expiry.
func (s *RedisStorage) Set(key string, val []byte, exp time.Duration) error {
	if key == "" || len(val) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), storageOpTimeout)
	defer cancel()
	return s.client.Set(ctx, rateLimitPrefix+key, val, exp).Err()
}

// Delete removes a single key.
func (s *RedisStorage) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), storageOpTimeout)
	defer cancel()
	return s.client.Del(ctx, rateLimitPrefix+key).Err()
}

// Reset removes every limiter key.
func (s *RedisStorage) Reset() error {
	ctx, cancel := context.WithTimeout(context.Background(), storageOpTimeout)
	defer cancel()

	iter := s.client.Scan(ctx, 0, rateLimitPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Close is a no-op; the client is owned by the caller.
func (s *RedisStorage) Close() error {
	return nil
}
