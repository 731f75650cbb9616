package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"cashcarry/internal/application/port"
	"cashcarry/internal/domain/model"
	domainsvc "cashcarry/internal/domain/service"
)

// OpportunityOptions evaluation parameters
type OpportunityOptions struct {
	Thresholds        model.Thresholds
	FundingLookback   int
	DefaultDaysExpiry int
}

// OpportunityService builds market snapshots and runs the evaluator on them
type OpportunityService struct {
	md      port.MarketData
	signals *SignalService
	metrics port.Metrics
	opts    OpportunityOptions
	now     func() time.Time
}

func NewOpportunityService(md port.MarketData, signals *SignalService, metrics port.Metrics, opts OpportunityOptions) *OpportunityService {
	if opts.FundingLookback <= 0 {
		opts.FundingLookback = domainsvc.FundingEventsPerDay
	}
	if opts.DefaultDaysExpiry <= 0 {
		opts.DefaultDaysExpiry = domainsvc.DefaultDaysToExpiry
	}
	if opts.Thresholds == (model.Thresholds{}) {
		opts.Thresholds = model.DefaultThresholds()
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &OpportunityService{
		md:      md,
		signals: signals,
		metrics: metrics,
		opts:    opts,
		now:     time.Now,
	}
}

// Thresholds in effect
func (s *OpportunityService) Thresholds() model.Thresholds { return s.opts.Thresholds }

// Evaluate resolves the current quarter contract of perp and evaluates the pair.
func (s *OpportunityService) Evaluate(ctx context.Context, perp string) (*model.Opportunity, error) {
	perp = strings.ToUpper(strings.TrimSpace(perp))
	quarters, err := s.md.QuarterSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("quarter contracts: %w", err)
	}
	fut, ok := quarters[perp]
	if !ok {
		return nil, fmt.Errorf("%w: no quarter contract for %s", model.ErrInvalidPair, perp)
	}
	return s.EvaluatePair(ctx, perp, fut)
}

// EvaluatePair evaluates an explicit perpetual / dated future pair.
func (s *OpportunityService) EvaluatePair(ctx context.Context, perp, fut string) (*model.Opportunity, error) {
	perp = strings.ToUpper(strings.TrimSpace(perp))
	fut = strings.ToUpper(strings.TrimSpace(fut))
	snap, err := s.Snapshot(ctx, perp, fut)
	if err != nil {
		return nil, err
	}

	opp := &model.Opportunity{
		Snapshot:   snap,
		Signal:     domainsvc.Evaluate(snap, s.opts.Thresholds),
		Thresholds: s.opts.Thresholds,
	}
	s.metrics.Evaluation(perp, opp.Signal.Triggered)

	log.Debug().
		Str("perp", perp).
		Str("futures", fut).
		Float64("basis_pct", opp.Signal.BasisPct).
		Float64("daily_funding", snap.DailyFundingRate).
		Int("days", snap.DaysToExpiry).
		Bool("triggered", opp.Signal.Triggered).
		Msg("evaluated")

	if opp.Signal.Triggered && s.signals != nil {
		s.signals.Publish(ctx, opp)
	}
	return opp, nil
}

// Snapshot gathers prices, recent funding and days to expiry for a pair.
func (s *OpportunityService) Snapshot(ctx context.Context, perp, fut string) (model.MarketSnapshot, error) {
	if perp == "" || !strings.HasPrefix(fut, perp+"_") {
		return model.MarketSnapshot{}, fmt.Errorf("%w: %s / %s", model.ErrInvalidPair, perp, fut)
	}

	perpPrice, err := s.md.Price(ctx, perp)
	if err != nil {
		return model.MarketSnapshot{}, fmt.Errorf("price %s: %w", perp, err)
	}
	futPrice, err := s.md.Price(ctx, fut)
	if err != nil {
		return model.MarketSnapshot{}, fmt.Errorf("price %s: %w", fut, err)
	}

	var (
		daily     float64
		eventTime *time.Time
	)
	events, err := s.md.FundingHistory(ctx, perp, time.Time{}, s.opts.FundingLookback)
	if err != nil {
		log.Warn().Err(err).Str("symbol", perp).Msg("funding rate unavailable")
	} else {
		daily, eventTime = domainsvc.DailyFundingRate(events, domainsvc.FundingEventsPerDay)
	}

	now := s.now().UTC()
	return model.MarketSnapshot{
		PerpSymbol:       perp,
		FuturesSymbol:    fut,
		PerpPrice:        perpPrice,
		FuturesPrice:     futPrice,
		DailyFundingRate: daily,
		FundingEventTime: eventTime,
		DaysToExpiry:     domainsvc.DaysToExpiryOr(fut, now, s.opts.DefaultDaysExpiry),
		TakenAt:          now,
	}, nil
}

// EvaluateAll evaluates every perpetual that has a quarter contract. Pairs that fail are
// logged and skipped.
func (s *OpportunityService) EvaluateAll(ctx context.Context, perps []string) ([]*model.Opportunity, error) {
	quarters, err := s.md.QuarterSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("quarter contracts: %w", err)
	}

	out := make([]*model.Opportunity, 0, len(perps))
	for _, perp := range perps {
		perp = strings.ToUpper(strings.TrimSpace(perp))
		fut, ok := quarters[perp]
		if !ok {
			log.Warn().Str("symbol", perp).Msg("no quarter contract, skipped")
			continue
		}
		opp, err := s.EvaluatePair(ctx, perp, fut)
		if err != nil {
			log.Warn().Err(err).Str("symbol", perp).Msg("evaluation failed, skipped")
			continue
		}
		out = append(out, opp)
	}
	return out, nil
}
