package model

import "time"

// ========== Opportunity Models ==========

// Thresholds entry trigger configuration
type Thresholds struct {
	FundingThreshold  float64 `json:"funding_threshold"`   // absolute daily funding rate
	FundingBasisRatio float64 `json:"funding_basis_ratio"` // funding must exceed ratio x daily basis
}

// DefaultThresholds returns the stock trigger thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		FundingThreshold:  0.0003,
		FundingBasisRatio: 1.5,
	}
}

// FundingEvent one settled funding payment on the perpetual
type FundingEvent struct {
	Rate float64   `json:"rate"`
	Time time.Time `json:"time"`
}

// MarketSnapshot market inputs for one evaluation, never persisted
type MarketSnapshot struct {
	PerpSymbol       string     `json:"perp_symbol"`
	FuturesSymbol    string     `json:"futures_symbol"`
	PerpPrice        float64    `json:"perp_price"`
	FuturesPrice     float64    `json:"futures_price"`
	DailyFundingRate float64    `json:"daily_funding_rate"`
	FundingEventTime *time.Time `json:"funding_event_time,omitempty"`
	DaysToExpiry     int        `json:"days_to_expiry"`
	TakenAt          time.Time  `json:"taken_at"`
}

// OpportunitySignal derived trade/no-trade decision
type OpportunitySignal struct {
	BasisPct               float64 `json:"basis_pct"`
	BasisPerDay            float64 `json:"basis_per_day"`
	FundingToBasisRatio    float64 `json:"funding_to_basis_ratio"`
	FundingAboveThreshold  bool    `json:"funding_above_threshold"`
	FundingAboveBasisRatio bool    `json:"funding_above_basis_ratio"`
	Triggered              bool    `json:"triggered"`
}

// Opportunity snapshot plus the signal computed from it
type Opportunity struct {
	Snapshot   MarketSnapshot    `json:"snapshot"`
	Signal     OpportunitySignal `json:"signal"`
	Thresholds Thresholds        `json:"thresholds"`
}

// Reasons human-readable explanation of which trigger fired.
func (o *Opportunity) Reasons() []string {
	var out []string
	if o.Signal.FundingAboveThreshold {
		out = append(out, "daily funding rate above absolute threshold")
	}
	if o.Signal.FundingAboveBasisRatio {
		out = append(out, "daily funding rate above funding/basis ratio")
	}
	return out
}
