package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"cashcarry/internal/application/port"
)

// PriceService keeps the market data cache warm from a streaming feed
type PriceService struct {
	feed  port.PriceFeed
	cache *CachedMarketData
}

func NewPriceService(feed port.PriceFeed, cache *CachedMarketData) *PriceService {
	return &PriceService{feed: feed, cache: cache}
}

// Run streams both legs of every perpetual and consumes ticks until ctx is done or the
// feed closes.
func (s *PriceService) Run(ctx context.Context, perps []string) error {
	symbols := s.Streams(ctx, perps)
	ticks, err := s.feed.Subscribe(ctx, symbols)
	if err != nil {
		return err
	}
	log.Info().Str("feed", s.feed.Name()).Strs("symbols", symbols).Msg("price feed subscribed")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t, ok := <-ticks:
			if !ok {
				return nil
			}
			s.UpdatePrice(ctx, t)
		}
	}
}

// Streams perps followed by their current quarter contracts. When quarter discovery
// fails only the perps are streamed and futures prices fall back to REST.
func (s *PriceService) Streams(ctx context.Context, perps []string) []string {
	out := make([]string, 0, 2*len(perps))
	seen := make(map[string]struct{}, 2*len(perps))
	add := func(sym string) {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if _, ok := seen[sym]; ok || sym == "" {
			return
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	for _, p := range perps {
		add(p)
	}

	quarters, err := s.cache.QuarterSymbols(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("quarter discovery failed, streaming perpetuals only")
		return out
	}
	for _, p := range perps {
		add(quarters[strings.ToUpper(strings.TrimSpace(p))])
	}
	return out
}

// UpdatePrice writes one tick through to the cache.
func (s *PriceService) UpdatePrice(ctx context.Context, t port.Tick) {
	if t.PriceNum <= 0 {
		return
	}
	s.cache.Prime(ctx, t.Symbol, t.PriceNum)
}
