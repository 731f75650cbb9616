package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashcarry/internal/domain/model"
)

func TestEvaluateOpportunity(t *testing.T) {
	gw := newFakeGateway()
	now := time.Date(2025, 2, 26, 0, 0, 0, 0, time.UTC)
	gw.funding = []model.FundingEvent{
		{Rate: 0.0001, Time: now.Add(-16 * time.Hour)},
		{Rate: 0.0002, Time: now.Add(-8 * time.Hour)},
		{Rate: 0.0003, Time: now},
	}
	sink := &recordingSignals{}
	svc := NewOpportunityService(gw, NewSignalService(sink), nil, OpportunityOptions{})
	svc.now = func() time.Time { return now }

	opp, err := svc.Evaluate(context.Background(), "btcusdt")
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT_250328", opp.Snapshot.FuturesSymbol)
	assert.Equal(t, 30, opp.Snapshot.DaysToExpiry)
	assert.InDelta(t, 0.0006, opp.Snapshot.DailyFundingRate, 1e-12)
	assert.InDelta(t, 0.01, opp.Signal.BasisPct, 1e-12)
	assert.True(t, opp.Signal.FundingAboveThreshold)
	assert.True(t, opp.Signal.FundingAboveBasisRatio)
	assert.True(t, opp.Signal.Triggered)
	assert.Equal(t, model.DefaultThresholds(), opp.Thresholds)
	assert.Len(t, opp.Reasons(), 2)

	require.Len(t, sink.got, 1)
	assert.Same(t, opp, sink.got[0])
}

func TestEvaluateNotTriggeredIsNotPublished(t *testing.T) {
	gw := newFakeGateway()
	sink := &recordingSignals{}
	svc := NewOpportunityService(gw, NewSignalService(sink), nil, OpportunityOptions{})

	opp, err := svc.EvaluatePair(context.Background(), "BTCUSDT", "BTCUSDT_250328")
	require.NoError(t, err)
	assert.False(t, opp.Signal.Triggered)
	assert.Zero(t, opp.Snapshot.DailyFundingRate)
	assert.Nil(t, opp.Snapshot.FundingEventTime)
	assert.Empty(t, sink.got)
}

func TestEvaluateFundingFailureDegrades(t *testing.T) {
	gw := newFakeGateway()
	gw.fundingErr = errExchangeDown
	svc := NewOpportunityService(gw, nil, nil, OpportunityOptions{})

	opp, err := svc.EvaluatePair(context.Background(), "BTCUSDT", "BTCUSDT_250328")
	require.NoError(t, err)
	assert.Zero(t, opp.Snapshot.DailyFundingRate)
}

func TestEvaluatePriceFailure(t *testing.T) {
	gw := newFakeGateway()
	gw.priceErr["BTCUSDT"] = errExchangeDown
	svc := NewOpportunityService(gw, nil, nil, OpportunityOptions{})

	_, err := svc.EvaluatePair(context.Background(), "BTCUSDT", "BTCUSDT_250328")
	require.ErrorIs(t, err, errExchangeDown)
}

func TestEvaluateAllSkipsFailures(t *testing.T) {
	gw := newFakeGateway()
	gw.quarters["ETHUSDT"] = "ETHUSDT_250328"
	gw.prices["ETHUSDT"] = 3000
	gw.priceErr["ETHUSDT_250328"] = errExchangeDown
	svc := NewOpportunityService(gw, nil, nil, OpportunityOptions{})

	opps, err := svc.EvaluateAll(context.Background(), []string{"BTCUSDT", "ETHUSDT", "XRPUSDT"})
	require.NoError(t, err)
	require.Len(t, opps, 1)
	assert.Equal(t, "BTCUSDT", opps[0].Snapshot.PerpSymbol)
}

func TestEvaluateCustomThresholds(t *testing.T) {
	gw := newFakeGateway()
	gw.funding = []model.FundingEvent{{Rate: 0.0001, Time: time.Now()}}
	svc := NewOpportunityService(gw, nil, nil, OpportunityOptions{
		Thresholds: model.Thresholds{FundingThreshold: 0.01, FundingBasisRatio: 100},
	})

	opp, err := svc.EvaluatePair(context.Background(), "BTCUSDT", "BTCUSDT_250328")
	require.NoError(t, err)
	assert.False(t, opp.Signal.Triggered)
	assert.Equal(t, 0.01, svc.Thresholds().FundingThreshold)
}
