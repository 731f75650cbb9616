package port

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"cashcarry/internal/domain/model"
)

// MarketData public exchange data, no credentials needed
type MarketData interface {
	Price(ctx context.Context, symbol string) (float64, error)
	// FundingHistory funding events of a perpetual in ascending time.
	// A zero since returns the latest limit events.
	FundingHistory(ctx context.Context, symbol string, since time.Time, limit int) ([]model.FundingEvent, error)
	LotMetadata(ctx context.Context, symbol string) (model.LotMetadata, error)
	// QuarterSymbols maps each perpetual to its current-quarter dated contract
	QuarterSymbols(ctx context.Context) (map[string]string, error)
}

// Trading signed account operations. A non-nil error from SubmitMarketOrder means the
// exchange did not accept the order.
type Trading interface {
	Balances(ctx context.Context, creds *model.Credentials) (map[string]model.Balance, error)
	SubmitMarketOrder(ctx context.Context, creds *model.Credentials, symbol string, side model.OrderSide, qty decimal.Decimal) (model.OrderResult, error)
}

// Gateway the whole exchange surface used by the engine
type Gateway interface {
	MarketData
	Trading
}
