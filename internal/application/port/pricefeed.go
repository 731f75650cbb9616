package port

import "context"

// Tick one mark price update from a stream
type Tick struct {
	Symbol      string  // "BTCUSDT"
	PriceStr    string  // raw string
	PriceNum    float64 // parsed float64 (best-effort)
	FundingRate float64 // current period estimate
	Ts          int64   // unix ms
}

type PriceFeed interface {
	Name() string
	Subscribe(ctx context.Context, symbols []string) (<-chan Tick, error)
}
