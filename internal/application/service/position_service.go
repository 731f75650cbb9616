package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"cashcarry/internal/application/port"
	"cashcarry/internal/domain/model"
	domainsvc "cashcarry/internal/domain/service"
)

const (
	quoteAsset = "USDT"
	// fundingHistoryLimit largest page the exchange serves
	fundingHistoryLimit = 1000
)

// PositionOptions trading parameters of the lifecycle manager
type PositionOptions struct {
	TradingFee          float64         // per leg, per side
	FundingLookback     int             // events averaged into the entry funding rate
	FallbackMinNotional decimal.Decimal // used when lot metadata is unavailable
}

// OpenRequest parameters of a new position
type OpenRequest struct {
	PerpSymbol    string
	FuturesSymbol string // empty: current quarter contract of PerpSymbol
	NotionalUSD   float64
}

// PositionService drives positions through NONE -> OPEN -> CLOSED.
// It keeps no per-user state; every call names its user through a Session.
type PositionService struct {
	gw      port.Gateway
	ledger  port.PositionLedger
	alerts  port.AlertSink
	metrics port.Metrics
	opts    PositionOptions
	locks   *userLocks
	now     func() time.Time
}

func NewPositionService(gw port.Gateway, ledger port.PositionLedger, alerts port.AlertSink, metrics port.Metrics, opts PositionOptions) *PositionService {
	if opts.FundingLookback <= 0 {
		opts.FundingLookback = domainsvc.FundingEventsPerDay
	}
	if !opts.FallbackMinNotional.IsPositive() {
		opts.FallbackMinNotional = domainsvc.FallbackMinNotional
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &PositionService{
		gw:      gw,
		ledger:  ledger,
		alerts:  alerts,
		metrics: metrics,
		opts:    opts,
		locks:   newUserLocks(),
		now:     time.Now,
	}
}

// ========== Open ==========

// Open sells the perpetual, buys the dated future and records the position.
// Nothing is persisted unless both legs were accepted.
func (s *PositionService) Open(ctx context.Context, sess model.Session, req OpenRequest) (*model.Position, error) {
	if !sess.Credentials.Valid() {
		return nil, model.ErrNoCredentials
	}
	if req.NotionalUSD <= 0 {
		return nil, model.ErrInvalidNotional
	}
	perp := strings.ToUpper(strings.TrimSpace(req.PerpSymbol))
	fut := strings.ToUpper(strings.TrimSpace(req.FuturesSymbol))
	if fut == "" {
		resolved, err := s.quarterContract(ctx, perp)
		if err != nil {
			return nil, err
		}
		fut = resolved
	}
	if perp == "" || !strings.HasPrefix(fut, perp+"_") {
		return nil, fmt.Errorf("%w: %s / %s", model.ErrInvalidPair, perp, fut)
	}

	unlock := s.locks.lock(sess.User)
	defer unlock()

	balances, err := s.gw.Balances(ctx, sess.Credentials)
	if err != nil {
		return nil, fmt.Errorf("fetch balances: %w", err)
	}
	if avail := balances[quoteAsset].Available; avail < req.NotionalUSD {
		return nil, fmt.Errorf("%w: available %.2f, need %.2f", model.ErrInsufficientBalance, avail, req.NotionalUSD)
	}

	perpPrice, err := s.gw.Price(ctx, perp)
	if err != nil {
		return nil, fmt.Errorf("price %s: %w", perp, err)
	}
	futPrice, err := s.gw.Price(ctx, fut)
	if err != nil {
		return nil, fmt.Errorf("price %s: %w", fut, err)
	}

	notional := decimal.NewFromFloat(req.NotionalUSD)
	qtyPerp := s.quantity(ctx, perp, notional, perpPrice)
	qtyFut := s.quantity(ctx, fut, notional, futPrice)
	if !qtyPerp.IsPositive() || !qtyFut.IsPositive() {
		return nil, fmt.Errorf("%w: %s=%s %s=%s", model.ErrInvalidQuantity, perp, qtyPerp, fut, qtyFut)
	}

	entryTime := s.now().UTC()
	legs, err := s.submitLegs(ctx, sess, "open",
		leg{symbol: perp, side: model.SideSell, qty: qtyPerp},
		leg{symbol: fut, side: model.SideBuy, qty: qtyFut},
	)
	if err != nil {
		return nil, err
	}

	dailyRate, eventTime := s.entryFunding(ctx, perp)
	qp, _ := qtyPerp.Float64()
	qf, _ := qtyFut.Float64()

	pos := model.Position{
		ID:                    uuid.NewString(),
		PerpSymbol:            perp,
		FuturesSymbol:         fut,
		EntryTime:             entryTime,
		EntryPerpPrice:        perpPrice,
		EntryFuturesPrice:     futPrice,
		NotionalUSD:           req.NotionalUSD,
		EntryDailyFundingRate: dailyRate,
		EntryFundingEventTime: eventTime,
		QtyPerp:               qp,
		QtyFutures:            qf,
		OpenFee:               domainsvc.TradingFee(req.NotionalUSD, s.opts.TradingFee),
		Status:                model.StatusOpen,
		PerpSellOrderID:       legs[0].OrderID,
		FuturesBuyOrderID:     legs[1].OrderID,
	}

	if err := s.ledger.Append(ctx, sess.User, pos); err != nil {
		s.raise(ctx, sess.User, "ledger_write_failed",
			fmt.Sprintf("position %s opened on exchange (orders %s/%s) but not recorded: %v",
				pos.ID, pos.PerpSellOrderID, pos.FuturesBuyOrderID, err))
		return nil, fmt.Errorf("record position: %w", err)
	}

	s.metrics.PositionOpened(perp)
	log.Info().
		Str("user", sess.User).
		Str("id", pos.ID).
		Str("perp", perp).
		Str("futures", fut).
		Float64("notional", pos.NotionalUSD).
		Float64("qty_perp", pos.QtyPerp).
		Float64("qty_futures", pos.QtyFutures).
		Msg("position opened")
	return &pos, nil
}

// ========== Close ==========

// Close buys back the perpetual, sells the future and books realized PnL.
func (s *PositionService) Close(ctx context.Context, sess model.Session, positionID string) (*model.Position, error) {
	if !sess.Credentials.Valid() {
		return nil, model.ErrNoCredentials
	}

	unlock := s.locks.lock(sess.User)
	defer unlock()

	positions, err := s.ledger.LoadAll(ctx, sess.User)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	idx := indexOf(positions, positionID)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", model.ErrPositionNotFound, positionID)
	}
	p := &positions[idx]
	if !p.IsOpen() {
		return nil, fmt.Errorf("%w: %s is %s", model.ErrPositionNotOpen, p.ID, p.Status)
	}

	// prices first: no order goes out without an exit snapshot
	perpPrice, err := s.gw.Price(ctx, p.PerpSymbol)
	if err != nil {
		return nil, fmt.Errorf("price %s: %w", p.PerpSymbol, err)
	}
	futPrice, err := s.gw.Price(ctx, p.FuturesSymbol)
	if err != nil {
		return nil, fmt.Errorf("price %s: %w", p.FuturesSymbol, err)
	}

	legs, err := s.submitLegs(ctx, sess, "close",
		leg{symbol: p.PerpSymbol, side: model.SideBuy, qty: decimal.NewFromFloat(p.QtyPerp)},
		leg{symbol: p.FuturesSymbol, side: model.SideSell, qty: decimal.NewFromFloat(p.QtyFutures)},
	)
	if err != nil {
		return nil, err
	}

	exitTime := s.now().UTC()
	history := s.fundingSince(ctx, p.PerpSymbol, p.EntryTime)
	closeFee := domainsvc.TradingFee(p.NotionalUSD, s.opts.TradingFee)
	pnl := domainsvc.ComputePnL(p, perpPrice, futPrice, history, exitTime, closeFee)

	if err := p.Close(model.ExitSnapshot{
		Time:               exitTime,
		PerpPrice:          perpPrice,
		FuturesPrice:       futPrice,
		CloseFee:           closeFee,
		FundingPnL:         pnl.FundingPnL,
		BasisPnL:           pnl.BasisPnL,
		TotalPnL:           domainsvc.RealizedTotal(pnl.FundingPnL, pnl.BasisPnL, p.OpenFee, closeFee),
		PerpBuyOrderID:     legs[0].OrderID,
		FuturesSellOrderID: legs[1].OrderID,
	}); err != nil {
		return nil, err
	}

	if err := s.ledger.ReplaceAll(ctx, sess.User, positions); err != nil {
		s.raise(ctx, sess.User, "ledger_write_failed",
			fmt.Sprintf("position %s closed on exchange (orders %s/%s) but ledger not updated: %v",
				p.ID, p.PerpBuyOrderID, p.FuturesSellOrderID, err))
		return nil, fmt.Errorf("record close: %w", err)
	}

	s.metrics.PositionClosed(p.PerpSymbol)
	log.Info().
		Str("user", sess.User).
		Str("id", p.ID).
		Float64("funding_pnl", p.FundingPnL).
		Float64("basis_pnl", p.BasisPnL).
		Float64("total_pnl", p.TotalPnL).
		Msg("position closed")

	out := *p
	return &out, nil
}

// ========== Queries ==========

// PnL live breakdown of an open position, booked figures of a closed one.
// When prices are unavailable the breakdown is zero-filled with Available=false.
func (s *PositionService) PnL(ctx context.Context, p model.Position) model.PnLBreakdown {
	if !p.IsOpen() {
		return s.realizedPnL(ctx, p)
	}

	perpPrice, err := s.gw.Price(ctx, p.PerpSymbol)
	if err != nil {
		log.Warn().Err(err).Str("symbol", p.PerpSymbol).Msg("pnl unavailable")
		return model.PnLBreakdown{}
	}
	futPrice, err := s.gw.Price(ctx, p.FuturesSymbol)
	if err != nil {
		log.Warn().Err(err).Str("symbol", p.FuturesSymbol).Msg("pnl unavailable")
		return model.PnLBreakdown{}
	}

	history := s.fundingSince(ctx, p.PerpSymbol, p.EntryTime)
	return domainsvc.ComputePnL(&p, perpPrice, futPrice, history, s.now().UTC(), 0)
}

func (s *PositionService) realizedPnL(ctx context.Context, p model.Position) model.PnLBreakdown {
	futLeg, perpLeg := domainsvc.BasisLegs(&p, p.ExitPerpPrice, p.ExitFuturesPrice)
	out := model.PnLBreakdown{
		FundingPnL:    p.FundingPnL,
		BasisPnL:      p.BasisPnL,
		FuturesLegPnL: futLeg,
		PerpLegPnL:    perpLeg,
		TotalPnL:      p.TotalPnL,
		Available:     true,
	}
	if p.ExitTime != nil {
		_, used := domainsvc.FundingPnL(p.NotionalUSD, s.fundingSince(ctx, p.PerpSymbol, p.EntryTime), p.EntryTime, *p.ExitTime)
		out.FundingEvents = used
		out.APR = domainsvc.APR(used)
	}
	return out
}

// List positions of a user, optionally filtered by status.
func (s *PositionService) List(ctx context.Context, user string, status model.PositionStatus) ([]model.Position, error) {
	positions, err := s.ledger.LoadAll(ctx, user)
	if err != nil {
		return nil, err
	}
	if status == "" {
		return positions, nil
	}
	out := make([]model.Position, 0, len(positions))
	for _, p := range positions {
		if p.Status == status {
			out = append(out, p)
		}
	}
	return out, nil
}

// Get one position by ID.
func (s *PositionService) Get(ctx context.Context, user, positionID string) (*model.Position, error) {
	positions, err := s.ledger.LoadAll(ctx, user)
	if err != nil {
		return nil, err
	}
	idx := indexOf(positions, positionID)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", model.ErrPositionNotFound, positionID)
	}
	return &positions[idx], nil
}

// Summary aggregates the user's ledger.
func (s *PositionService) Summary(ctx context.Context, user string) (model.LedgerSummary, error) {
	positions, err := s.ledger.LoadAll(ctx, user)
	if err != nil {
		return model.LedgerSummary{}, err
	}
	return model.Summarize(positions), nil
}

// Reset drops every position of the user. Exchange state is untouched.
func (s *PositionService) Reset(ctx context.Context, user string) error {
	unlock := s.locks.lock(user)
	defer unlock()

	if err := s.ledger.ReplaceAll(ctx, user, nil); err != nil {
		return err
	}
	log.Warn().Str("user", user).Msg("ledger reset")
	return nil
}

// Balances futures wallet of the session's account.
func (s *PositionService) Balances(ctx context.Context, sess model.Session) (map[string]model.Balance, error) {
	if !sess.Credentials.Valid() {
		return nil, model.ErrNoCredentials
	}
	return s.gw.Balances(ctx, sess.Credentials)
}

// ========== helpers ==========

type leg struct {
	symbol string
	side   model.OrderSide
	qty    decimal.Decimal
}

// submitLegs sends first then second, sequentially. A failed second leg leaves the
// first one live and is reported as *PartialLegError plus an alert.
func (s *PositionService) submitLegs(ctx context.Context, sess model.Session, transition string, first, second leg) ([2]model.OrderResult, error) {
	var out [2]model.OrderResult

	res, err := s.gw.SubmitMarketOrder(ctx, sess.Credentials, first.symbol, first.side, first.qty)
	if err != nil {
		s.metrics.OrderFailed(first.symbol, string(first.side))
		return out, fmt.Errorf("%s %s %s: %w", transition, first.side, first.symbol, err)
	}
	out[0] = res

	res, err = s.gw.SubmitMarketOrder(ctx, sess.Credentials, second.symbol, second.side, second.qty)
	if err != nil {
		s.metrics.OrderFailed(second.symbol, string(second.side))
		s.metrics.PartialLeg(transition)
		perr := &model.PartialLegError{
			Transition:   transition,
			FilledSymbol: first.symbol,
			FilledSide:   first.side,
			FilledOrder:  out[0].OrderID,
			FailedSymbol: second.symbol,
			FailedSide:   second.side,
			Err:          err,
		}
		s.raise(ctx, sess.User, "partial_leg", perr.Error())
		return out, perr
	}
	out[1] = res
	return out, nil
}

func (s *PositionService) raise(ctx context.Context, user, kind, msg string) {
	log.Error().Str("user", user).Str("kind", kind).Msg(msg)
	if s.alerts == nil {
		return
	}
	a := port.Alert{
		User:     user,
		Severity: "critical",
		Kind:     kind,
		Message:  msg,
		TS:       s.now().UnixMilli(),
	}
	if err := s.alerts.RaiseAlert(ctx, a); err != nil {
		log.Error().Err(err).Str("kind", kind).Msg("raise alert failed")
	}
}

func (s *PositionService) quantity(ctx context.Context, symbol string, notional decimal.Decimal, price float64) decimal.Decimal {
	step := domainsvc.FallbackStepSize(symbol)
	minNotional := s.opts.FallbackMinNotional

	meta, err := s.gw.LotMetadata(ctx, symbol)
	if err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("lot metadata unavailable, using fallback")
	} else {
		if meta.StepSize.IsPositive() {
			step = meta.StepSize
		}
		if meta.MinNotional.IsPositive() {
			minNotional = meta.MinNotional
		}
	}
	return domainsvc.NormalizeQuantity(notional, decimal.NewFromFloat(price), step, minNotional)
}

func (s *PositionService) quarterContract(ctx context.Context, perp string) (string, error) {
	quarters, err := s.gw.QuarterSymbols(ctx)
	if err != nil {
		return "", fmt.Errorf("quarter contracts: %w", err)
	}
	fut, ok := quarters[perp]
	if !ok {
		return "", fmt.Errorf("%w: no quarter contract for %s", model.ErrInvalidPair, perp)
	}
	return fut, nil
}

func (s *PositionService) entryFunding(ctx context.Context, perp string) (float64, *time.Time) {
	events, err := s.gw.FundingHistory(ctx, perp, time.Time{}, s.opts.FundingLookback)
	if err != nil {
		log.Warn().Err(err).Str("symbol", perp).Msg("entry funding rate unavailable")
		return 0, nil
	}
	return domainsvc.DailyFundingRate(events, domainsvc.FundingEventsPerDay)
}

func (s *PositionService) fundingSince(ctx context.Context, perp string, since time.Time) []model.FundingEvent {
	events, err := s.gw.FundingHistory(ctx, perp, since, fundingHistoryLimit)
	if err != nil {
		log.Warn().Err(err).Str("symbol", perp).Msg("funding history unavailable")
		return nil
	}
	return events
}

func indexOf(positions []model.Position, id string) int {
	for i := range positions {
		if positions[i].ID == id {
			return i
		}
	}
	return -1
}

// IsInputError reports whether err is a caller mistake rather than an exchange or storage failure.
func IsInputError(err error) bool {
	for _, target := range []error{
		model.ErrNoCredentials,
		model.ErrInsufficientBalance,
		model.ErrInvalidQuantity,
		model.ErrInvalidPair,
		model.ErrInvalidNotional,
		model.ErrPositionNotFound,
		model.ErrPositionNotOpen,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// ========== user locks ==========

// userLocks one mutex per user, guarding ledger read-modify-write
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *userLocks) lock(user string) func() {
	l.mu.Lock()
	m, ok := l.locks[user]
	if !ok {
		m = &sync.Mutex{}
		l.locks[user] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
