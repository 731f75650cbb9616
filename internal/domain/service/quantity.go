package service

import (
	"strings"

	"github.com/shopspring/decimal"
)

// quantityPrecision decimal places kept after lot flooring
const quantityPrecision = 8

var (
	// FallbackMinNotional exchange minimum order value assumed without metadata
	FallbackMinNotional = decimal.NewFromInt(100)

	stepBTC     = decimal.RequireFromString("0.001")
	stepETH     = decimal.RequireFromString("0.01")
	stepDefault = decimal.RequireFromString("0.1")
)

// NormalizeQuantity converts a USD notional into an exchange-compliant contract quantity.
// The minimum notional is enforced first, then the quantity is floored to a multiple of
// lotStep. A zero result means sizing failed.
func NormalizeQuantity(notional, price, lotStep, minNotional decimal.Decimal) decimal.Decimal {
	if !notional.IsPositive() || !price.IsPositive() || !lotStep.IsPositive() {
		return decimal.Zero
	}

	raw := notional.Div(price)
	if raw.Mul(price).LessThan(minNotional) {
		raw = minNotional.Div(price)
	}

	raw = raw.Sub(raw.Mod(lotStep)).Round(quantityPrecision)
	if !raw.IsPositive() {
		return decimal.Zero
	}
	return raw
}

// FallbackStepSize conservative lot step by symbol prefix, for when exchange metadata is
// unavailable.
func FallbackStepSize(symbol string) decimal.Decimal {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	switch {
	case strings.HasPrefix(s, "BTC"):
		return stepBTC
	case strings.HasPrefix(s, "ETH"):
		return stepETH
	default:
		return stepDefault
	}
}
