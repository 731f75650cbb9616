package service

import (
	"math"
	"strings"
	"time"

	"cashcarry/internal/domain/model"
)

const (
	// DefaultDaysToExpiry used when the contract symbol carries no parsable expiry
	DefaultDaysToExpiry = 90
	// FundingEventsPerDay Binance settles funding every 8 hours
	FundingEventsPerDay = 3
)

// Evaluate turns a market snapshot into a signal. Pure: no I/O, thresholds untouched.
func Evaluate(s model.MarketSnapshot, th model.Thresholds) model.OpportunitySignal {
	days := s.DaysToExpiry
	if days < 1 {
		days = 1
	}

	var sig model.OpportunitySignal
	if s.PerpPrice > 0 {
		sig.BasisPct = (s.FuturesPrice - s.PerpPrice) / s.PerpPrice
	}
	sig.BasisPerDay = sig.BasisPct / float64(days)
	if sig.BasisPerDay != 0 {
		sig.FundingToBasisRatio = s.DailyFundingRate / sig.BasisPerDay
	}

	// both conditions are always computed, callers display each reason
	sig.FundingAboveThreshold = s.DailyFundingRate > th.FundingThreshold
	sig.FundingAboveBasisRatio = s.DailyFundingRate > th.FundingBasisRatio*sig.BasisPerDay
	sig.Triggered = sig.FundingAboveThreshold || sig.FundingAboveBasisRatio
	return sig
}

// DaysToExpiry estimates whole days until the dated contract expires.
// The expiry is the YYMMDD suffix after the last underscore (BTCUSDT_250328), UTC.
// Anything unparsable falls back to DefaultDaysToExpiry; the estimate only affects display
// and the trigger, never order sizes.
func DaysToExpiry(futuresSymbol string, now time.Time) int {
	return DaysToExpiryOr(futuresSymbol, now, DefaultDaysToExpiry)
}

// DaysToExpiryOr DaysToExpiry with a caller-chosen fallback.
func DaysToExpiryOr(futuresSymbol string, now time.Time, fallback int) int {
	if fallback < 1 {
		fallback = DefaultDaysToExpiry
	}
	idx := strings.LastIndex(futuresSymbol, "_")
	if idx < 0 || idx == len(futuresSymbol)-1 {
		return fallback
	}
	part := futuresSymbol[idx+1:]
	if len(part) != 6 {
		return fallback
	}
	expiry, err := time.ParseInLocation("20060102", "20"+part, time.UTC)
	if err != nil {
		return fallback
	}

	days := int(math.Floor(expiry.Sub(now.UTC()).Hours() / 24))
	if days < 1 {
		return 1
	}
	return days
}

// DailyFundingRate scales the mean of the given recent funding events to a daily rate.
// With the last three 8h events this is their sum. Also returns the newest event time.
func DailyFundingRate(events []model.FundingEvent, perDay int) (float64, *time.Time) {
	if len(events) == 0 {
		return 0, nil
	}
	if perDay <= 0 {
		perDay = FundingEventsPerDay
	}

	var sum float64
	latest := events[0].Time
	for _, e := range events {
		sum += e.Rate
		if e.Time.After(latest) {
			latest = e.Time
		}
	}
	mean := sum / float64(len(events))
	return mean * float64(perDay), &latest
}
