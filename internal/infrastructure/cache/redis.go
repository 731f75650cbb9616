package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"cashcarry/internal/application/port"
)

// Redis cache shared between processes, keys live under prefix
type Redis struct {
	rdb    *redis.Client
	prefix string
}

var _ port.Cache = (*Redis)(nil)

func NewRedis(rdb *redis.Client, prefix string) *Redis {
	return &Redis{rdb: rdb, prefix: prefix + ":cache:"}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return r.rdb.Set(ctx, r.prefix+key, val, ttl).Err()
}

// Flush deletes only this cache's keys, never the whole database.
func (r *Redis) Flush(ctx context.Context) error {
	iter := r.rdb.Scan(ctx, 0, r.prefix+"*", 200).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= 200 {
			if err := r.rdb.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return r.rdb.Del(ctx, batch...).Err()
	}
	return nil
}
