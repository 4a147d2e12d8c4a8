package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/transitwatch/verifier/config"
)

// RedisStorage is the hot-path cache in front of Postgres. It keeps the
// per-user last-report timestamp so the submission fast path can answer
// cooldown probes without a database round trip.
type RedisStorage struct {
	client *redis.Client
}

func NewRedisStorage(cfg config.RedisConfig) (*RedisStorage, error) {
	opts := &redis.Options{
		Addr:     cfg.Host + ":" + cfg.Port,
		Username: cfg.User,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.URI != "" {
		parsed, err := redis.ParseURL(cfg.URI)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis uri: %w", err)
		}
		opts = parsed
	}

	client := redis.NewClient(opts)
	status := client.Ping(context.Background())
	if status.Err() != nil {
		return nil, status.Err()
	}
	return &RedisStorage{
		client: client,
	}, nil
}

func (r *RedisStorage) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return r.client.Get(ctx, key).Result()
}

func (r *RedisStorage) Set(ctx context.Context, key string, value string, expiry time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.client.Set(ctx, key, value, expiry).Err()
}

func (r *RedisStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.client.Del(ctx, key).Err()
}

func (r *RedisStorage) Close() error {
	return r.client.Close()
}

func lastReportKey(userID string) string {
	return fmt.Sprintf("report:last:%s", userID)
}

// SetLastReport caches the submission timestamp for the cooldown fast
// path. The entry expires on its own once it is older than any cooldown
// window could care about.
func (r *RedisStorage) SetLastReport(ctx context.Context, userID string, at time.Time, ttl time.Duration) error {
	return r.Set(ctx, lastReportKey(userID), at.UTC().Format(time.RFC3339Nano), ttl)
}

// GetLastReport returns the cached submission timestamp, or the zero time
// when nothing is cached. A cache miss is not an error.
func (r *RedisStorage) GetLastReport(ctx context.Context, userID string) (time.Time, error) {
	val, err := r.Get(ctx, lastReportKey(userID))
	if err != nil {
		if err == redis.Nil {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("failed to read last report cache: %w", err)
	}
	at, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse cached timestamp: %w", err)
	}
	return at, nil
}
