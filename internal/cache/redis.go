package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimiter is the interface the middleware programs against.
type RateLimiter interface {
	Close() error
	CheckRateLimit(ctx context.Context, subject string, limit int, window time.Duration) (bool, error)
}

// Cache handles Redis operations
type Cache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewCache creates a new cache instance
func NewCache(redisURL string, logger *zap.Logger) (*Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)

	// Test the connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Cache{
		client: client,
		logger: logger,
	}, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// CheckRateLimit checks if the subject has exceeded its request rate limit
func (c *Cache) CheckRateLimit(ctx context.Context, subject string, limit int, window time.Duration) (bool, error) {
	key := "rate_limit:" + subject
	count, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		c.logger.Error("Failed to increment rate limit counter", zap.String("subject", subject), zap.Error(err))
		return false, err
	}

	// Set expiration on first request
	if count == 1 {
		if err := c.client.Expire(ctx, key, window).Err(); err != nil {
			c.logger.Error("Failed to set rate limit expiration", zap.Error(err))
		}
	}

	return count > int64(limit), nil
}
