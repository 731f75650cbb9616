package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashcarry/internal/domain/model"
)

func TestEvaluateScenario(t *testing.T) {
	snap := model.MarketSnapshot{
		PerpPrice:        50000,
		FuturesPrice:     50500,
		DailyFundingRate: 0.0004,
		DaysToExpiry:     30,
	}

	sig := Evaluate(snap, model.DefaultThresholds())

	assert.InDelta(t, 0.01, sig.BasisPct, 1e-12)
	assert.InDelta(t, 0.000333333, sig.BasisPerDay, 1e-8)
	assert.InDelta(t, 1.2, sig.FundingToBasisRatio, 1e-9)
	assert.True(t, sig.FundingAboveThreshold)
	// 0.0004 < 1.5 * 0.000333
	assert.False(t, sig.FundingAboveBasisRatio)
	assert.True(t, sig.Triggered)
}

func TestEvaluateFundingAboveThresholdAlwaysTriggers(t *testing.T) {
	th := model.DefaultThresholds()
	for _, fut := range []float64{90000, 100000, 150000, 250000} {
		for _, rate := range []float64{0.00031, 0.001, 0.05} {
			sig := Evaluate(model.MarketSnapshot{
				PerpPrice:        100000,
				FuturesPrice:     fut,
				DailyFundingRate: rate,
				DaysToExpiry:     10,
			}, th)
			assert.Truef(t, sig.Triggered, "fut=%v rate=%v", fut, rate)
		}
	}
}

func TestEvaluateZeroBasisHasZeroRatio(t *testing.T) {
	sig := Evaluate(model.MarketSnapshot{
		PerpPrice:        2000,
		FuturesPrice:     2000,
		DailyFundingRate: 0.0002,
		DaysToExpiry:     45,
	}, model.DefaultThresholds())

	assert.Zero(t, sig.BasisPerDay)
	assert.Zero(t, sig.FundingToBasisRatio)
	assert.False(t, sig.FundingAboveThreshold)
	// any positive funding beats a flat basis
	assert.True(t, sig.FundingAboveBasisRatio)
	assert.True(t, sig.Triggered)
}

func TestEvaluateRatioTriggerOnly(t *testing.T) {
	// basis 0.1% over 100 days -> 0.00001/day, funding 0.0001 is 10x that
	sig := Evaluate(model.MarketSnapshot{
		PerpPrice:        1000,
		FuturesPrice:     1001,
		DailyFundingRate: 0.0001,
		DaysToExpiry:     100,
	}, model.DefaultThresholds())

	assert.False(t, sig.FundingAboveThreshold)
	assert.True(t, sig.FundingAboveBasisRatio)
	assert.InDelta(t, 10, sig.FundingToBasisRatio, 1e-6)
	assert.True(t, sig.Triggered)
}

func TestEvaluateNoTrigger(t *testing.T) {
	sig := Evaluate(model.MarketSnapshot{
		PerpPrice:        1000,
		FuturesPrice:     1030,
		DailyFundingRate: 0.0001,
		DaysToExpiry:     60,
	}, model.DefaultThresholds())
	assert.False(t, sig.Triggered)
}

func TestEvaluateClampsDays(t *testing.T) {
	sig := Evaluate(model.MarketSnapshot{PerpPrice: 100, FuturesPrice: 101, DaysToExpiry: 0}, model.DefaultThresholds())
	assert.InDelta(t, 0.01, sig.BasisPerDay, 1e-12)
}

func TestDaysToExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		symbol string
		want   int
	}{
		{"BTCUSDT_250328", 85},
		{"ETHUSDT_250102", 1},
		{"BTCUSDT_241227", 1},
		{"BTCUSDT", DefaultDaysToExpiry},
		{"BTCUSDT_", DefaultDaysToExpiry},
		{"BTCUSDT_2503", DefaultDaysToExpiry},
		{"BTCUSDT_25AB28", DefaultDaysToExpiry},
		{"BTCUSDT_251399", DefaultDaysToExpiry},
	}
	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysToExpiry(tt.symbol, now))
		})
	}
}

func TestDailyFundingRate(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	events := []model.FundingEvent{
		{Rate: 0.0001, Time: t0},
		{Rate: 0.0002, Time: t0.Add(8 * time.Hour)},
		{Rate: 0.0003, Time: t0.Add(16 * time.Hour)},
	}

	rate, latest := DailyFundingRate(events, FundingEventsPerDay)
	assert.InDelta(t, 0.0006, rate, 1e-12)
	require.NotNil(t, latest)
	assert.Equal(t, t0.Add(16*time.Hour), *latest)

	rate, latest = DailyFundingRate(nil, FundingEventsPerDay)
	assert.Zero(t, rate)
	assert.Nil(t, latest)
}

func TestDaysToExpiryOrFallback(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 30, DaysToExpiryOr("BTCUSDT_PERP", now, 30))
	assert.Equal(t, DefaultDaysToExpiry, DaysToExpiryOr("BTCUSDT_PERP", now, 0))
}
