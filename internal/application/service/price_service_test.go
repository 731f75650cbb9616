package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashcarry/internal/application/port"
)

// chanFeed replays scripted ticks, then closes
type chanFeed struct {
	ticks      []port.Tick
	subscribed []string
}

func (f *chanFeed) Name() string { return "test" }

func (f *chanFeed) Subscribe(ctx context.Context, symbols []string) (<-chan port.Tick, error) {
	f.subscribed = symbols
	ch := make(chan port.Tick, len(f.ticks))
	for _, t := range f.ticks {
		ch <- t
	}
	close(ch)
	return ch, nil
}

func TestPriceServiceStreamsBothLegs(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway()
	gw.quarters["ETHUSDT"] = "ETHUSDT_250328"
	md := NewCachedMarketData(gw, newMapCache(), DefaultCacheTTL())
	feed := &chanFeed{ticks: []port.Tick{
		{Symbol: "BTCUSDT", PriceNum: 49900},
		{Symbol: "BTCUSDT_250328", PriceNum: 50400},
		{Symbol: "ETHUSDT", PriceNum: 0},
	}}

	require.NoError(t, NewPriceService(feed, md).Run(ctx, []string{"BTCUSDT", "ethusdt", "SOLUSDT", "BTCUSDT"}))
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "BTCUSDT_250328", "ETHUSDT_250328"}, feed.subscribed)

	// both legs served from the stream
	perp, err := md.Price(ctx, "BTCUSDT")
	require.NoError(t, err)
	fut, err := md.Price(ctx, "BTCUSDT_250328")
	require.NoError(t, err)
	assert.Equal(t, 49900.0, perp)
	assert.Equal(t, 50400.0, fut)
	assert.Zero(t, gw.priceCalls)
}

func TestPriceServiceStreamsPerpsWhenDiscoveryFails(t *testing.T) {
	gw := newFakeGateway()
	gw.quarterErr = errExchangeDown
	svc := NewPriceService(&chanFeed{}, NewCachedMarketData(gw, newMapCache(), DefaultCacheTTL()))

	assert.Equal(t, []string{"BTCUSDT"}, svc.Streams(context.Background(), []string{"btcusdt"}))
}
