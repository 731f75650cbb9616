package binance

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	futures "github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"cashcarry/internal/application/port"
	"cashcarry/internal/domain/model"
)

// Options REST connection settings
type Options struct {
	RestURL           string // e.g. https://fapi.binance.com
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
}

// Gateway Binance USDⓈ-M futures implementation of port.Gateway.
// Every request waits on a shared limiter; nothing is retried.
type Gateway struct {
	restURL    string
	httpClient *http.Client
	public     *futures.Client
	limiter    *rate.Limiter
}

var _ port.Gateway = (*Gateway)(nil)

func NewGateway(opts Options) *Gateway {
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	g := &Gateway{
		restURL:    strings.TrimRight(strings.TrimSpace(opts.RestURL), "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
	}
	g.public = g.client("", "")
	return g
}

func (g *Gateway) client(apiKey, apiSecret string) *futures.Client {
	c := futures.NewClient(apiKey, apiSecret)
	c.HTTPClient = g.httpClient
	if g.restURL != "" {
		c.SetApiEndpoint(g.restURL)
	}
	return c
}

func (g *Gateway) wait(ctx context.Context) error {
	return g.limiter.Wait(ctx)
}

// ========== MarketData ==========

func (g *Gateway) Price(ctx context.Context, symbol string) (float64, error) {
	if err := g.wait(ctx); err != nil {
		return 0, err
	}
	prices, err := g.public.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("binance price %s: %w", symbol, err)
	}
	for _, p := range prices {
		if strings.EqualFold(p.Symbol, symbol) {
			return parsePositive(p.Price)
		}
	}
	return 0, fmt.Errorf("binance price %s: symbol not in response", symbol)
}

func (g *Gateway) FundingHistory(ctx context.Context, symbol string, since time.Time, limit int) ([]model.FundingEvent, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	svc := g.public.NewFundingRateService().Symbol(symbol)
	if limit > 0 {
		svc = svc.Limit(limit)
	}
	if !since.IsZero() {
		svc = svc.StartTime(since.UnixMilli())
	}
	rates, err := svc.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance funding %s: %w", symbol, err)
	}

	events := make([]model.FundingEvent, 0, len(rates))
	for _, r := range rates {
		v, err := strconv.ParseFloat(r.FundingRate, 64)
		if err != nil {
			continue
		}
		events = append(events, model.FundingEvent{Rate: v, Time: time.UnixMilli(r.FundingTime).UTC()})
	}
	return sortEvents(events), nil
}

func (g *Gateway) LotMetadata(ctx context.Context, symbol string) (model.LotMetadata, error) {
	info, err := g.exchangeInfo(ctx)
	if err != nil {
		return model.LotMetadata{}, err
	}
	for _, s := range info.Symbols {
		if !strings.EqualFold(s.Symbol, symbol) {
			continue
		}
		var step, minNotional string
		if f := s.LotSizeFilter(); f != nil {
			step = f.StepSize
		}
		if f := s.MinNotionalFilter(); f != nil {
			minNotional = f.Notional
		}
		return lotFromStrings(s.Symbol, step, minNotional)
	}
	return model.LotMetadata{}, fmt.Errorf("binance lot %s: symbol not listed", symbol)
}

func (g *Gateway) QuarterSymbols(ctx context.Context) (map[string]string, error) {
	info, err := g.exchangeInfo(ctx)
	if err != nil {
		return nil, err
	}
	contracts := make([]contract, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		contracts = append(contracts, contract{Symbol: s.Symbol, ContractType: string(s.ContractType)})
	}
	return quarterSymbols(contracts), nil
}

func (g *Gateway) exchangeInfo(ctx context.Context) (*futures.ExchangeInfo, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	info, err := g.public.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance exchange info: %w", err)
	}
	return info, nil
}

// ========== Trading ==========

func (g *Gateway) Balances(ctx context.Context, creds *model.Credentials) (map[string]model.Balance, error) {
	if !creds.Valid() {
		return nil, model.ErrNoCredentials
	}
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	res, err := g.client(creds.APIKey, creds.APISecret).NewGetBalanceService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance balance: %w", err)
	}

	out := make(map[string]model.Balance, len(res))
	for _, b := range res {
		total, _ := strconv.ParseFloat(b.Balance, 64)
		avail, _ := strconv.ParseFloat(b.AvailableBalance, 64)
		out[b.Asset] = model.Balance{Asset: b.Asset, Total: total, Available: avail}
	}
	return out, nil
}

func (g *Gateway) SubmitMarketOrder(ctx context.Context, creds *model.Credentials, symbol string, side model.OrderSide, qty decimal.Decimal) (model.OrderResult, error) {
	if !creds.Valid() {
		return model.OrderResult{}, model.ErrNoCredentials
	}
	if !qty.IsPositive() {
		return model.OrderResult{}, model.ErrInvalidQuantity
	}
	if err := g.wait(ctx); err != nil {
		return model.OrderResult{}, err
	}

	res, err := g.client(creds.APIKey, creds.APISecret).NewCreateOrderService().
		Symbol(symbol).
		Side(sideType(side)).
		Type(futures.OrderTypeMarket).
		Quantity(qty.String()).
		Do(ctx)
	if err != nil {
		return model.OrderResult{}, fmt.Errorf("binance order %s %s %s: %w", side, qty, symbol, err)
	}
	return model.OrderResult{
		OrderID: strconv.FormatInt(res.OrderID, 10),
		Status:  string(res.Status),
	}, nil
}

func sideType(s model.OrderSide) futures.SideType {
	if s == model.SideBuy {
		return futures.SideTypeBuy
	}
	return futures.SideTypeSell
}
