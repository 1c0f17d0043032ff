package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/frenetico9/Navalha.Digital/internal/config"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements slot locks and rate counters on Redis.
type RedisLocker struct {
	client *redis.Client
	prefix string
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client, prefix: "navalha:"}
}

func (r *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if r.client == nil {
		return "", false, fmt.Errorf("redis client is nil")
	}
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, r.prefix+"lock:"+key, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (r *RedisLocker) Release(ctx context.Context, key, token string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	err := releaseScript.Run(ctx, r.client, []string{r.prefix + "lock:" + key}, token).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	return nil
}

func (r *RedisLocker) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	fullKey := r.prefix + "rate_limit:" + key
	count, err := r.client.Incr(ctx, fullKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	if count == 1 {
		if err := r.client.Expire(ctx, fullKey, window).Err(); err != nil {
			return false, fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}

	return count <= int64(limit), nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
