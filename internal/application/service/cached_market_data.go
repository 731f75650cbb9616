package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"cashcarry/internal/application/port"
	"cashcarry/internal/domain/model"
)

// CacheTTL lifetime per kind of market data
type CacheTTL struct {
	Price          time.Duration
	Funding        time.Duration // latest events
	FundingHistory time.Duration // events since a given time
	LotMetadata    time.Duration
	QuarterSymbols time.Duration
}

// DefaultCacheTTL stock lifetimes
func DefaultCacheTTL() CacheTTL {
	return CacheTTL{
		Price:          30 * time.Second,
		Funding:        60 * time.Second,
		FundingHistory: 300 * time.Second,
		LotMetadata:    300 * time.Second,
		QuarterSymbols: 60 * time.Second,
	}
}

// CachedMarketData port.MarketData decorator backed by a port.Cache.
// Cache failures fall through to the wrapped source.
type CachedMarketData struct {
	next  port.MarketData
	cache port.Cache
	ttl   CacheTTL
}

var _ port.MarketData = (*CachedMarketData)(nil)

func NewCachedMarketData(next port.MarketData, cache port.Cache, ttl CacheTTL) *CachedMarketData {
	return &CachedMarketData{next: next, cache: cache, ttl: ttl}
}

func (c *CachedMarketData) Price(ctx context.Context, symbol string) (float64, error) {
	var price float64
	err := c.through(ctx, priceKey(symbol), c.ttl.Price, &price, func() (any, error) {
		return c.next.Price(ctx, symbol)
	})
	return price, err
}

func (c *CachedMarketData) FundingHistory(ctx context.Context, symbol string, since time.Time, limit int) ([]model.FundingEvent, error) {
	key := fmt.Sprintf("funding:%s:%d", strings.ToUpper(symbol), limit)
	ttl := c.ttl.Funding
	if !since.IsZero() {
		key = fmt.Sprintf("history:%s:%d:%d", strings.ToUpper(symbol), since.UnixMilli(), limit)
		ttl = c.ttl.FundingHistory
	}

	var events []model.FundingEvent
	err := c.through(ctx, key, ttl, &events, func() (any, error) {
		return c.next.FundingHistory(ctx, symbol, since, limit)
	})
	return events, err
}

func (c *CachedMarketData) LotMetadata(ctx context.Context, symbol string) (model.LotMetadata, error) {
	var meta model.LotMetadata
	err := c.through(ctx, "lot:"+strings.ToUpper(symbol), c.ttl.LotMetadata, &meta, func() (any, error) {
		return c.next.LotMetadata(ctx, symbol)
	})
	return meta, err
}

func (c *CachedMarketData) QuarterSymbols(ctx context.Context) (map[string]string, error) {
	var quarters map[string]string
	err := c.through(ctx, "quarters", c.ttl.QuarterSymbols, &quarters, func() (any, error) {
		return c.next.QuarterSymbols(ctx)
	})
	return quarters, err
}

// Prime stores a price pushed by a stream.
func (c *CachedMarketData) Prime(ctx context.Context, symbol string, price float64) {
	if price <= 0 {
		return
	}
	c.store(ctx, priceKey(symbol), price, c.ttl.Price)
}

// Flush drops every cached entry.
func (c *CachedMarketData) Flush(ctx context.Context) error {
	return c.cache.Flush(ctx)
}

func (c *CachedMarketData) through(ctx context.Context, key string, ttl time.Duration, dst any, load func() (any, error)) error {
	if ttl > 0 {
		raw, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			log.Debug().Err(err).Str("key", key).Msg("cache get failed")
		} else if ok {
			if err := json.Unmarshal(raw, dst); err == nil {
				return nil
			}
		}
	}

	v, err := load()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return err
	}
	if ttl > 0 {
		c.storeRaw(ctx, key, raw, ttl)
	}
	return nil
}

func (c *CachedMarketData) store(ctx context.Context, key string, v any, ttl time.Duration) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.storeRaw(ctx, key, raw, ttl)
}

func (c *CachedMarketData) storeRaw(ctx context.Context, key string, raw []byte, ttl time.Duration) {
	if err := c.cache.Set(ctx, key, raw, ttl); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("cache set failed")
	}
}

func priceKey(symbol string) string {
	return "price:" + strings.ToUpper(symbol)
}
