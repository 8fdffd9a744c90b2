// Package cache provides the read-path cache used for verified property
// views.
package cache

import "context"

// Cache is the minimal caching contract the API and sync engine depend
// on.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// Noop satisfies Cache without storing anything. Used when no redis
// address is configured.
type Noop struct{}

func (Noop) Get(ctx context.Context, key string, dst any) (bool, error) { return false, nil }
func (Noop) Set(ctx context.Context, key string, v any, ttlSec int) error {
	return nil
}
func (Noop) Del(ctx context.Context, key string) error { return nil }
