package binance

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"cashcarry/internal/domain/model"
)

const (
	quoteSuffix        = "USDT"
	contractCurrentQtr = "CURRENT_QUARTER"
)

type contract struct {
	Symbol       string
	ContractType string
}

// quarterSymbols maps BTCUSDT -> BTCUSDT_250328 for every current-quarter USDT contract
func quarterSymbols(contracts []contract) map[string]string {
	out := make(map[string]string)
	for _, c := range contracts {
		if c.ContractType != contractCurrentQtr {
			continue
		}
		idx := strings.Index(c.Symbol, quoteSuffix+"_")
		if idx <= 0 {
			continue
		}
		out[c.Symbol[:idx]+quoteSuffix] = c.Symbol
	}
	return out
}

// Symbol2Coin BTCUSDT -> BTC, BTCUSDT_250328 -> BTC
func Symbol2Coin(symbol string) string {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if i := strings.Index(sym, "_"); i >= 0 {
		sym = sym[:i]
	}
	return strings.TrimSuffix(sym, quoteSuffix)
}

// Coin2Symbol BTC -> BTCUSDT, BTCUSDT -> BTCUSDT
func Coin2Symbol(coin string) string {
	coin = strings.ToUpper(strings.TrimSpace(coin))
	if coin == "" {
		return ""
	}
	if strings.HasSuffix(coin, quoteSuffix) || strings.Contains(coin, "_") {
		return coin
	}
	return coin + quoteSuffix
}

func lotFromStrings(symbol, step, minNotional string) (model.LotMetadata, error) {
	st, err := decimal.NewFromString(strings.TrimSpace(step))
	if err != nil || !st.IsPositive() {
		return model.LotMetadata{}, fmt.Errorf("binance lot %s: bad step size %q", symbol, step)
	}
	meta := model.LotMetadata{Symbol: symbol, StepSize: st, FromExchange: true}
	if mn, err := decimal.NewFromString(strings.TrimSpace(minNotional)); err == nil && mn.IsPositive() {
		meta.MinNotional = mn
	}
	return meta, nil
}

func parsePositive(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, fmt.Errorf("non-positive price %q", s)
	}
	return v, nil
}

func sortEvents(events []model.FundingEvent) []model.FundingEvent {
	sort.SliceStable(events, func(i, j int) bool { return events[i].Time.Before(events[j].Time) })
	return events
}
