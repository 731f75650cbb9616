package model

import (
	"time"
)

// PositionStatus lifecycle state, OPEN -> CLOSED only
type PositionStatus string

const (
	StatusOpen   PositionStatus = "OPEN"
	StatusClosed PositionStatus = "CLOSED"
)

// Position one executed cash-and-carry trade: short perpetual, long dated future.
// Quantities are normalized per leg and need not be equal.
type Position struct {
	ID            string `json:"id"`
	PerpSymbol    string `json:"perp_symbol"`
	FuturesSymbol string `json:"futures_symbol"`

	// entry snapshot, captured at order submission time
	EntryTime             time.Time  `json:"entry_time"`
	EntryPerpPrice        float64    `json:"entry_perp_price"`
	EntryFuturesPrice     float64    `json:"entry_futures_price"`
	NotionalUSD           float64    `json:"notional_usd"`
	EntryDailyFundingRate float64    `json:"entry_daily_funding_rate"`
	EntryFundingEventTime *time.Time `json:"entry_funding_event_time,omitempty"`
	QtyPerp               float64    `json:"qty_perp"`
	QtyFutures            float64    `json:"qty_futures"`
	OpenFee               float64    `json:"open_fee"`

	Status PositionStatus `json:"status"`

	PerpSellOrderID   string `json:"perp_sell_order_id,omitempty"`
	FuturesBuyOrderID string `json:"futures_buy_order_id,omitempty"`

	// exit snapshot, set only when CLOSED
	ExitTime           *time.Time `json:"exit_time,omitempty"`
	ExitPerpPrice      float64    `json:"exit_perp_price,omitempty"`
	ExitFuturesPrice   float64    `json:"exit_futures_price,omitempty"`
	CloseFee           float64    `json:"close_fee,omitempty"`
	FundingPnL         float64    `json:"funding_pnl,omitempty"`
	BasisPnL           float64    `json:"basis_pnl,omitempty"`
	TotalPnL           float64    `json:"total_pnl,omitempty"`
	PerpBuyOrderID     string     `json:"perp_buy_order_id,omitempty"`
	FuturesSellOrderID string     `json:"futures_sell_order_id,omitempty"`
}

// ExitSnapshot everything recorded by the close transition
type ExitSnapshot struct {
	Time               time.Time
	PerpPrice          float64
	FuturesPrice       float64
	CloseFee           float64
	FundingPnL         float64
	BasisPnL           float64
	TotalPnL           float64
	PerpBuyOrderID     string
	FuturesSellOrderID string
}

// IsOpen reports whether the position can still be closed.
func (p *Position) IsOpen() bool {
	return p.Status == StatusOpen
}

// Close applies the one-way OPEN -> CLOSED transition in place.
func (p *Position) Close(exit ExitSnapshot) error {
	if !p.IsOpen() {
		return ErrPositionNotOpen
	}
	t := exit.Time.UTC()
	p.Status = StatusClosed
	p.ExitTime = &t
	p.ExitPerpPrice = exit.PerpPrice
	p.ExitFuturesPrice = exit.FuturesPrice
	p.CloseFee = exit.CloseFee
	p.FundingPnL = exit.FundingPnL
	p.BasisPnL = exit.BasisPnL
	p.TotalPnL = exit.TotalPnL
	p.PerpBuyOrderID = exit.PerpBuyOrderID
	p.FuturesSellOrderID = exit.FuturesSellOrderID
	return nil
}

// PnLBreakdown funding/basis attribution. Available=false means the inputs could not be
// fetched and every figure is zero; callers must not read that as flat.
type PnLBreakdown struct {
	FundingPnL    float64        `json:"funding_pnl"`
	BasisPnL      float64        `json:"basis_pnl"`
	FuturesLegPnL float64        `json:"futures_leg_pnl"`
	PerpLegPnL    float64        `json:"perp_leg_pnl"`
	TotalPnL      float64        `json:"total_pnl"`
	APR           float64        `json:"apr"`
	FundingEvents []FundingEvent `json:"funding_events,omitempty"`
	Available     bool           `json:"available"`
}

// LedgerSummary aggregate view over a user's ledger
type LedgerSummary struct {
	Open          int     `json:"open"`
	Closed        int     `json:"closed"`
	ClosedVolume  float64 `json:"closed_volume"`
	TotalPnL      float64 `json:"total_pnl"`
	FundingPnL    float64 `json:"funding_pnl"`
	BasisPnL      float64 `json:"basis_pnl"`
	Fees          float64 `json:"fees"`
	OpenNotional  float64 `json:"open_notional"`
	OpenFeesTotal float64 `json:"open_fees_total"`
}

// Summarize folds a ledger into a LedgerSummary.
func Summarize(positions []Position) LedgerSummary {
	var s LedgerSummary
	for i := range positions {
		p := &positions[i]
		switch p.Status {
		case StatusOpen:
			s.Open++
			s.OpenNotional += p.NotionalUSD
			s.OpenFeesTotal += p.OpenFee
		case StatusClosed:
			s.Closed++
			s.ClosedVolume += p.NotionalUSD
			s.TotalPnL += p.TotalPnL
			s.FundingPnL += p.FundingPnL
			s.BasisPnL += p.BasisPnL
			s.Fees += p.OpenFee + p.CloseFee
		}
	}
	return s
}

// HistoryRow one closed trade of the export view. Fees are negative.
type HistoryRow struct {
	Seq           int       `json:"seq"`
	ID            string    `json:"id"`
	PerpSymbol    string    `json:"perp_symbol"`
	FuturesSymbol string    `json:"futures_symbol"`
	EntryTime     time.Time `json:"entry_time"`
	ExitTime      time.Time `json:"exit_time"`
	VolumeUSD     float64   `json:"volume_usd"`
	FundingPnL    float64   `json:"funding_pnl"`
	BasisPnL      float64   `json:"basis_pnl"`
	Fees          float64   `json:"fees"`
	TotalPnL      float64   `json:"total_pnl"`
	ROIPct        float64   `json:"roi_pct"`
}

// History closed positions in ledger order, numbered from 1.
func History(positions []Position) []HistoryRow {
	rows := make([]HistoryRow, 0, len(positions))
	for i := range positions {
		p := &positions[i]
		if p.Status != StatusClosed || p.ExitTime == nil {
			continue
		}
		r := HistoryRow{
			Seq:           len(rows) + 1,
			ID:            p.ID,
			PerpSymbol:    p.PerpSymbol,
			FuturesSymbol: p.FuturesSymbol,
			EntryTime:     p.EntryTime,
			ExitTime:      *p.ExitTime,
			VolumeUSD:     p.NotionalUSD,
			FundingPnL:    p.FundingPnL,
			BasisPnL:      p.BasisPnL,
			Fees:          -(p.OpenFee + p.CloseFee),
			TotalPnL:      p.TotalPnL,
		}
		if p.NotionalUSD > 0 {
			r.ROIPct = p.TotalPnL / p.NotionalUSD * 100
		}
		rows = append(rows, r)
	}
	return rows
}
