package service

import (
	"context"

	"cashcarry/internal/application/port"
	"cashcarry/internal/domain/model"
)

// LiveGateway gateway for position transitions: prices and funding come straight from
// the exchange, contract metadata (lot filters, quarter listing) through the cache.
type LiveGateway struct {
	port.Gateway
	meta *CachedMarketData
}

var _ port.Gateway = (*LiveGateway)(nil)

func NewLiveGateway(raw port.Gateway, meta *CachedMarketData) *LiveGateway {
	return &LiveGateway{Gateway: raw, meta: meta}
}

func (g *LiveGateway) LotMetadata(ctx context.Context, symbol string) (model.LotMetadata, error) {
	return g.meta.LotMetadata(ctx, symbol)
}

func (g *LiveGateway) QuarterSymbols(ctx context.Context) (map[string]string, error) {
	return g.meta.QuarterSymbols(ctx)
}
