package model

import "github.com/shopspring/decimal"

// OrderSide market order direction
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// LotMetadata exchange sizing constraints for a symbol
type LotMetadata struct {
	Symbol       string          `json:"symbol"`
	StepSize     decimal.Decimal `json:"step_size"`
	MinNotional  decimal.Decimal `json:"min_notional"`
	FromExchange bool            `json:"from_exchange"` // false when built from fallback heuristics
}

// Balance futures wallet balance of one asset
type Balance struct {
	Asset     string  `json:"asset"`
	Total     float64 `json:"total"`
	Available float64 `json:"available"`
}

// OrderResult accepted order, owned by the exchange
type OrderResult struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// Credentials exchange API key pair, plaintext only in memory
type Credentials struct {
	APIKey    string
	APISecret string
}

// Valid reports whether both halves are present.
func (c *Credentials) Valid() bool {
	return c != nil && c.APIKey != "" && c.APISecret != ""
}

// Session explicit per-request caller context. The engine keeps nothing of it between calls.
type Session struct {
	User        string
	Credentials *Credentials
}
