package service

import (
	"math"
	"time"

	"cashcarry/internal/domain/model"
)

// fundingPeriodsPerYear three settlements a day, every day
const fundingPeriodsPerYear = FundingEventsPerDay * 365

// TradingFee round-trip fee for both legs, rounded to cents.
func TradingFee(notional, feeRate float64) float64 {
	return math.Round(notional*2*feeRate*100) / 100
}

// FundingPnL sums every funding event in [from, to] once, times the notional.
// Events are discrete; nothing is interpolated between settlements.
func FundingPnL(notional float64, events []model.FundingEvent, from, to time.Time) (float64, []model.FundingEvent) {
	var (
		sum  float64
		used []model.FundingEvent
	)
	for _, e := range events {
		if e.Time.Before(from) || e.Time.After(to) {
			continue
		}
		sum += e.Rate
		used = append(used, e)
	}
	return notional * sum, used
}

// BasisLegs PnL of each leg on notional-implied quantity (notional / entry price),
// not on the lot-rounded executed quantity.
func BasisLegs(p *model.Position, perpPrice, futuresPrice float64) (futuresLeg, perpLeg float64) {
	if p.EntryFuturesPrice > 0 {
		futuresLeg = (futuresPrice - p.EntryFuturesPrice) * (p.NotionalUSD / p.EntryFuturesPrice)
	}
	if p.EntryPerpPrice > 0 {
		perpLeg = (p.EntryPerpPrice - perpPrice) * (p.NotionalUSD / p.EntryPerpPrice)
	}
	return futuresLeg, perpLeg
}

// APR compounds the mean funding rate at three settlements a day for a year.
func APR(events []model.FundingEvent) float64 {
	if len(events) == 0 {
		return 0
	}
	var sum float64
	for _, e := range events {
		sum += e.Rate
	}
	mean := sum / float64(len(events))
	return math.Pow(1+mean, fundingPeriodsPerYear) - 1
}

// UnrealizedTotal total PnL of an open position.
func UnrealizedTotal(fundingPnL, basisPnL, openFee float64) float64 {
	return fundingPnL + basisPnL - openFee
}

// RealizedTotal total PnL booked at close.
func RealizedTotal(fundingPnL, basisPnL, openFee, closeFee float64) float64 {
	return fundingPnL + basisPnL - openFee - closeFee
}

// ComputePnL attributes PnL of p at the given prices and funding history as of asOf.
// closeFee is zero for the unrealized view.
func ComputePnL(p *model.Position, perpPrice, futuresPrice float64, history []model.FundingEvent, asOf time.Time, closeFee float64) model.PnLBreakdown {
	funding, used := FundingPnL(p.NotionalUSD, history, p.EntryTime, asOf)
	futuresLeg, perpLeg := BasisLegs(p, perpPrice, futuresPrice)
	basis := futuresLeg + perpLeg

	total := UnrealizedTotal(funding, basis, p.OpenFee)
	if closeFee != 0 {
		total = RealizedTotal(funding, basis, p.OpenFee, closeFee)
	}

	return model.PnLBreakdown{
		FundingPnL:    funding,
		BasisPnL:      basis,
		FuturesLegPnL: futuresLeg,
		PerpLegPnL:    perpLeg,
		TotalPnL:      total,
		APR:           APR(used),
		FundingEvents: used,
		Available:     true,
	}
}
