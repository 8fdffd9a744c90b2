package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"staysync/internal/metrics"
)

// Redis is a Cache backed by a redis instance. Values are stored as JSON.
type Redis struct{ c *redis.Client }

// NewRedis connects to the given redis instance.
func NewRedis(addr, pass string, db int) *Redis {
	return &Redis{c: redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db})}
}

func (r *Redis) Get(ctx context.Context, key string, dst any) (bool, error) {
	v, err := r.c.Get(ctx, key).Bytes()
	if err == redis.Nil {
		metrics.CacheOps.WithLabelValues("redis", "miss").Inc()
		return false, nil
	}
	if err != nil {
		return false, err
	}
	metrics.CacheOps.WithLabelValues("redis", "hit").Inc()
	return true, json.Unmarshal(v, dst)
}

func (r *Redis) Set(ctx context.Context, key string, v any, ttlSec int) error {
	b, _ := json.Marshal(v)
	metrics.CacheOps.WithLabelValues("redis", "set").Inc()
	return r.c.Set(ctx, key, b, time.Duration(ttlSec)*time.Second).Err()
}

func (r *Redis) Del(ctx context.Context, key string) error {
	metrics.CacheOps.WithLabelValues("redis", "del").Inc()
	return r.c.Del(ctx, key).Err()
}
