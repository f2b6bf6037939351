package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/deusflow/desinews/internal/news"
)

// KeyPrefix namespaces every key the Redis store writes.
const KeyPrefix = "desinews:cache:"

type envelope struct {
	StoredAt time.Time      `json:"storedAt"`
	Articles []news.Article `json:"articles"`
}

// Redis is a Store shared between replicas. Keys carry a TTL so Redis evicts
// them on its own; the stored timestamp is still checked on read.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, ttl time.Duration, opts ...Option) *Redis {
	o := buildOptions(opts)
	return &Redis{client: client, ttl: ttl, now: o.now}
}

// Dial parses a redis:// URL (or a bare host:port) and pings the server.
func Dial(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		opt = &redis.Options{Addr: rawURL}
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]news.Article, bool, error) {
	raw, err := r.client.Get(ctx, KeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	if r.now().Sub(env.StoredAt) >= r.ttl {
		return nil, false, nil
	}
	return env.Articles, true, nil
}

func (r *Redis) Put(ctx context.Context, key string, articles []news.Article) error {
	raw, err := json.Marshal(envelope{StoredAt: r.now().UTC(), Articles: articles})
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	if err := r.client.Set(ctx, KeyPrefix+key, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, KeyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete cache keys: %w", err)
	}
	return nil
}
