package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"cashcarry/internal/application/port"
)

// janitorInterval how often expired entries are swept out of memory
const janitorInterval = time.Minute

// Memory process-local TTL cache
type Memory struct {
	store *gocache.Cache
}

var _ port.Cache = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{store: gocache.New(gocache.NoExpiration, janitorInterval)}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok := m.store.Get(key)
	if !ok {
		return nil, false, nil
	}
	return v.([]byte), true, nil
}

// Set stores a copy of val; ttl <= 0 keeps it until Flush.
func (m *Memory) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	m.store.Set(key, append([]byte(nil), val...), ttl)
	return nil
}

func (m *Memory) Flush(ctx context.Context) error {
	m.store.Flush()
	return nil
}
