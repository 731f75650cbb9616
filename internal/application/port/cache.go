package port

import (
	"context"
	"time"
)

// Cache byte cache with per-entry TTL. Get reports a miss with ok=false.
type Cache interface {
	Get(ctx context.Context, key string) (val []byte, ok bool, err error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Flush(ctx context.Context) error
}
