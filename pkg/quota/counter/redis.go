package counter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyTTL is how long a day-bucket key lives past its creation. Two days
// covers the full day plus a grace period for late flushes of queued records.
const keyTTL = 48 * time.Hour

// RedisBackend implements Backend using Redis.
// Counts live under day-scoped keys (ganymede:queries:<day>:<user>) with a
// TTL, so expired buckets clean themselves up. Suitable for multi-instance
// deployments where all instances must see one authoritative count.
type RedisBackend struct {
	client *redis.Client
	loc    *time.Location

	// now is swappable for tests.
	now func() time.Time
}

// RedisBackendConfig configures the Redis backend.
type RedisBackendConfig struct {
	// Address is the Redis server address (host:port).
	Address string

	// Password is the Redis password. Empty for no auth.
	Password string

	// DB is the Redis database number.
	DB int

	// Location is the reference timezone for day bucketing.
	// Default: UTC
	Location *time.Location
}

// NewRedisBackend creates a Redis counter backend and verifies connectivity.
func NewRedisBackend(cfg RedisBackendConfig) (*RedisBackend, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	return &RedisBackend{
		client: client,
		loc:    cfg.Location,
		now:    time.Now,
	}, nil
}

// CountForToday returns the count recorded for userID today.
func (r *RedisBackend) CountForToday(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, fmt.Errorf("user id cannot be empty")
	}

	count, err := r.client.Get(ctx, r.key(userID)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	return count, nil
}

// Record appends one query for userID to today's bucket.
func (r *RedisBackend) Record(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("user id cannot be empty")
	}

	key := r.key(userID)

	pipe := r.client.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, keyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	return nil
}

// Close releases the Redis connection.
func (r *RedisBackend) Close() error {
	return r.client.Close()
}

func (r *RedisBackend) key(userID string) string {
	return fmt.Sprintf("ganymede:queries:%s:%s", dayKey(r.now(), r.loc), userID)
}
