package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"cashcarry/internal/application/port"
	"cashcarry/internal/domain/model"
)

var errExchangeDown = errors.New("exchange unavailable")

type submittedOrder struct {
	Symbol string
	Side   model.OrderSide
	Qty    decimal.Decimal
}

// fakeGateway scripted exchange
type fakeGateway struct {
	mu sync.Mutex

	prices     map[string]float64
	priceErr   map[string]error
	funding    []model.FundingEvent
	fundingErr error
	lots       map[string]model.LotMetadata
	quarters   map[string]string
	quarterErr error
	balances   map[string]model.Balance
	failOrder  map[string]error // by symbol

	orders     []submittedOrder
	priceCalls int
	lotCalls   int
	nextID     int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		prices: map[string]float64{
			"BTCUSDT":        50000,
			"BTCUSDT_250328": 50500,
		},
		priceErr: map[string]error{},
		lots: map[string]model.LotMetadata{
			"BTCUSDT":        {Symbol: "BTCUSDT", StepSize: decimal.RequireFromString("0.001"), MinNotional: decimal.NewFromInt(5), FromExchange: true},
			"BTCUSDT_250328": {Symbol: "BTCUSDT_250328", StepSize: decimal.RequireFromString("0.001"), MinNotional: decimal.NewFromInt(5), FromExchange: true},
		},
		quarters:  map[string]string{"BTCUSDT": "BTCUSDT_250328"},
		balances:  map[string]model.Balance{"USDT": {Asset: "USDT", Total: 1000, Available: 1000}},
		failOrder: map[string]error{},
	}
}

func (g *fakeGateway) Price(ctx context.Context, symbol string) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.priceCalls++
	if err := g.priceErr[symbol]; err != nil {
		return 0, err
	}
	p, ok := g.prices[symbol]
	if !ok {
		return 0, fmt.Errorf("unknown symbol %s", symbol)
	}
	return p, nil
}

func (g *fakeGateway) FundingHistory(ctx context.Context, symbol string, since time.Time, limit int) ([]model.FundingEvent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fundingErr != nil {
		return nil, g.fundingErr
	}
	var out []model.FundingEvent
	for _, e := range g.funding {
		if !since.IsZero() && e.Time.Before(since) {
			continue
		}
		out = append(out, e)
	}
	if since.IsZero() && limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (g *fakeGateway) LotMetadata(ctx context.Context, symbol string) (model.LotMetadata, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lotCalls++
	m, ok := g.lots[symbol]
	if !ok {
		return model.LotMetadata{}, errExchangeDown
	}
	return m, nil
}

func (g *fakeGateway) QuarterSymbols(ctx context.Context) (map[string]string, error) {
	if g.quarterErr != nil {
		return nil, g.quarterErr
	}
	return g.quarters, nil
}

func (g *fakeGateway) Balances(ctx context.Context, creds *model.Credentials) (map[string]model.Balance, error) {
	return g.balances, nil
}

func (g *fakeGateway) SubmitMarketOrder(ctx context.Context, creds *model.Credentials, symbol string, side model.OrderSide, qty decimal.Decimal) (model.OrderResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.failOrder[symbol]; err != nil {
		return model.OrderResult{}, err
	}
	g.nextID++
	g.orders = append(g.orders, submittedOrder{Symbol: symbol, Side: side, Qty: qty})
	return model.OrderResult{OrderID: fmt.Sprintf("%d", g.nextID), Status: "NEW"}, nil
}

// memLedger in-memory port.PositionLedger
type memLedger struct {
	mu   sync.Mutex
	docs map[string][]model.Position
	err  error
}

func newMemLedger() *memLedger {
	return &memLedger{docs: make(map[string][]model.Position)}
}

func (l *memLedger) Append(ctx context.Context, user string, pos model.Position) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.docs[user] = append(l.docs[user], pos)
	return nil
}

func (l *memLedger) LoadAll(ctx context.Context, user string) ([]model.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]model.Position{}, l.docs[user]...), nil
}

func (l *memLedger) ReplaceAll(ctx context.Context, user string, positions []model.Position) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.docs[user] = append([]model.Position{}, positions...)
	return nil
}

type recordingAlerts struct {
	mu     sync.Mutex
	alerts []port.Alert
}

func (r *recordingAlerts) RaiseAlert(ctx context.Context, a port.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return nil
}

type recordingSignals struct {
	got []*model.Opportunity
}

func (r *recordingSignals) PublishSignal(ctx context.Context, opp *model.Opportunity) error {
	r.got = append(r.got, opp)
	return nil
}

// mapCache in-memory port.Cache without expiry
type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMapCache() *mapCache { return &mapCache{data: map[string][]byte{}} }

func (c *mapCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mapCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = val
	return nil
}

func (c *mapCache) Flush(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = map[string][]byte{}
	return nil
}

func testSession() model.Session {
	return model.Session{User: "alice", Credentials: &model.Credentials{APIKey: "k", APISecret: "s"}}
}
