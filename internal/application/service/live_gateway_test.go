package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashcarry/internal/domain/model"
)

// wired like the container: one cache shared by the market data reader and the
// position service's gateway
func TestCloseReadsLivePricesAndFunding(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway()
	md := NewCachedMarketData(gw, newMapCache(), DefaultCacheTTL())
	svc := NewPositionService(NewLiveGateway(gw, md), newMemLedger(), &recordingAlerts{}, nil, PositionOptions{TradingFee: 0.0004})
	entry := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return entry }

	pos, err := svc.Open(ctx, testSession(), OpenRequest{PerpSymbol: "BTCUSDT", NotionalUSD: 100})
	require.NoError(t, err)

	// warm every cache entry the way evaluate/pnl calls would
	_, err = md.Price(ctx, "BTCUSDT")
	require.NoError(t, err)
	_, err = md.Price(ctx, "BTCUSDT_250328")
	require.NoError(t, err)
	_, err = md.FundingHistory(ctx, "BTCUSDT", pos.EntryTime, fundingHistoryLimit)
	require.NoError(t, err)
	require.True(t, svc.PnL(ctx, *pos).Available)

	gw.mu.Lock()
	gw.prices["BTCUSDT"] = 51000
	gw.prices["BTCUSDT_250328"] = 51300
	gw.funding = append(gw.funding, model.FundingEvent{Rate: 0.001, Time: entry.Add(8 * time.Hour)})
	gw.mu.Unlock()
	svc.now = func() time.Time { return entry.Add(24 * time.Hour) }

	live := svc.PnL(ctx, *pos)
	assert.InDelta(t, 0.1, live.FundingPnL, 1e-9)

	closed, err := svc.Close(ctx, testSession(), pos.ID)
	require.NoError(t, err)
	assert.Equal(t, 51000.0, closed.ExitPerpPrice)
	assert.Equal(t, 51300.0, closed.ExitFuturesPrice)
	assert.InDelta(t, 0.1, closed.FundingPnL, 1e-9)

	// the cached reader still serves the stale price
	cached, err := md.Price(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 50000.0, cached)
}

func TestLiveGatewayCachesContractMetadata(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway()
	live := NewLiveGateway(gw, NewCachedMarketData(gw, newMapCache(), DefaultCacheTTL()))

	for i := 0; i < 3; i++ {
		meta, err := live.LotMetadata(ctx, "BTCUSDT")
		require.NoError(t, err)
		assert.Equal(t, "0.001", meta.StepSize.String())

		_, err = live.Price(ctx, "BTCUSDT")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, gw.lotCalls)
	assert.Equal(t, 3, gw.priceCalls)
}
