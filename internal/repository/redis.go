package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"agendum/internal/config"
	"agendum/internal/interval"

	"github.com/redis/go-redis/v9"
)

// RedisSlotCache stores generated slots in Redis so several API instances
// share one cache and one rate-limit window.
type RedisSlotCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisSlotCache(client *redis.Client, ttl time.Duration) *RedisSlotCache {
	return &RedisSlotCache{
		client: client,
		ttl:    ttl,
	}
}

func redisSlotKey(professionalID string, gen uint64, date time.Time) string {
	return fmt.Sprintf("slots:%s:%d:%s", professionalID, gen, date.UTC().Format("2006-01-02"))
}

func redisGenKey(professionalID string) string {
	return "slots_gen:" + professionalID
}

func (r *RedisSlotCache) generation(ctx context.Context, professionalID string) (uint64, error) {
	val, err := r.client.Get(ctx, redisGenKey(professionalID)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get slot generation: %w", err)
	}
	gen, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse slot generation: %w", err)
	}
	return gen, nil
}

func (r *RedisSlotCache) GetSlots(ctx context.Context, professionalID string, date time.Time) ([]interval.Interval, bool, uint64, error) {
	if r.client == nil {
		return nil, false, 0, fmt.Errorf("redis client is nil")
	}
	gen, err := r.generation(ctx, professionalID)
	if err != nil {
		return nil, false, 0, err
	}
	val, err := r.client.Get(ctx, redisSlotKey(professionalID, gen, date)).Result()
	if err == redis.Nil {
		return nil, false, gen, nil
	}
	if err != nil {
		return nil, false, gen, fmt.Errorf("failed to get slots from redis: %w", err)
	}

	var slots []interval.Interval
	if err := json.Unmarshal([]byte(val), &slots); err != nil {
		return nil, false, gen, fmt.Errorf("failed to unmarshal slots: %w", err)
	}

	return slots, true, gen, nil
}

// SetSlots writes under the generation the caller observed at read time.
// After an invalidation the write lands on a superseded key and expires
// unread.
func (r *RedisSlotCache) SetSlots(ctx context.Context, professionalID string, date time.Time, gen uint64, slots []interval.Interval) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("failed to marshal slots: %w", err)
	}

	if err := r.client.Set(ctx, redisSlotKey(professionalID, gen, date), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set slots in redis: %w", err)
	}

	return nil
}

// InvalidateSlots bumps the professional's generation. Superseded slot keys
// fall out through their TTL.
func (r *RedisSlotCache) InvalidateSlots(ctx context.Context, professionalID string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Incr(ctx, redisGenKey(professionalID)).Err(); err != nil {
		return fmt.Errorf("failed to bump slot generation: %w", err)
	}
	return nil
}

func (r *RedisSlotCache) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	rateKey := "rate_limit:" + key
	count, err := r.client.Incr(ctx, rateKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	if count == 1 {
		r.client.Expire(ctx, rateKey, window)
	}

	return count <= int64(limit), nil
}

// Ping checks the Redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
