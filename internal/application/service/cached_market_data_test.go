package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashcarry/internal/application/port"
)

func TestCachedPrice(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway()
	md := NewCachedMarketData(gw, newMapCache(), DefaultCacheTTL())

	for i := 0; i < 3; i++ {
		p, err := md.Price(ctx, "BTCUSDT")
		require.NoError(t, err)
		assert.Equal(t, 50000.0, p)
	}
	assert.Equal(t, 1, gw.priceCalls)

	require.NoError(t, md.Flush(ctx))
	_, err := md.Price(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 2, gw.priceCalls)
}

func TestCachedPricePrime(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway()
	md := NewCachedMarketData(gw, newMapCache(), DefaultCacheTTL())

	md.Prime(ctx, "btcusdt", 49000)
	p, err := md.Price(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 49000.0, p)
	assert.Zero(t, gw.priceCalls)
}

func TestCachedErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway()
	gw.priceErr["BTCUSDT"] = errExchangeDown
	md := NewCachedMarketData(gw, newMapCache(), DefaultCacheTTL())

	_, err := md.Price(ctx, "BTCUSDT")
	require.ErrorIs(t, err, errExchangeDown)

	delete(gw.priceErr, "BTCUSDT")
	p, err := md.Price(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 50000.0, p)
}

func TestCachedLotMetadataKeepsDecimals(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway()
	md := NewCachedMarketData(gw, newMapCache(), DefaultCacheTTL())

	first, err := md.LotMetadata(ctx, "BTCUSDT")
	require.NoError(t, err)
	second, err := md.LotMetadata(ctx, "BTCUSDT")
	require.NoError(t, err)

	assert.Equal(t, 1, gw.lotCalls)
	assert.True(t, first.StepSize.Equal(second.StepSize))
	assert.Equal(t, "0.001", second.StepSize.String())
	assert.True(t, second.FromExchange)
}

func TestCachedZeroTTLBypasses(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway()
	md := NewCachedMarketData(gw, newMapCache(), CacheTTL{})

	_, _ = md.Price(ctx, "BTCUSDT")
	_, _ = md.Price(ctx, "BTCUSDT")
	assert.Equal(t, 2, gw.priceCalls)
}

func TestPriceServicePrimesFromTicks(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway()
	md := NewCachedMarketData(gw, newMapCache(), DefaultCacheTTL())
	ps := NewPriceService(nil, md)

	ps.UpdatePrice(ctx, port.Tick{Symbol: "BTCUSDT", PriceNum: 48000, Ts: time.Now().UnixMilli()})
	ps.UpdatePrice(ctx, port.Tick{Symbol: "BTCUSDT", PriceNum: 0})

	p, err := md.Price(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 48000.0, p)
}
