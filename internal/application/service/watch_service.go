package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"cashcarry/internal/domain/model"
)

// WatchService periodically evaluates the configured symbols
type WatchService struct {
	opps     *OpportunityService
	interval time.Duration
	onResult func([]*model.Opportunity)
}

func NewWatchService(opps *OpportunityService, interval time.Duration, onResult func([]*model.Opportunity)) *WatchService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &WatchService{opps: opps, interval: interval, onResult: onResult}
}

// Run blocks until ctx is done. The first round runs immediately.
func (w *WatchService) Run(ctx context.Context, symbols []string) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.round(ctx, symbols)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.round(ctx, symbols)
		}
	}
}

func (w *WatchService) round(ctx context.Context, symbols []string) {
	opps, err := w.opps.EvaluateAll(ctx, symbols)
	if err != nil {
		log.Warn().Err(err).Msg("evaluation round failed")
		return
	}
	triggered := 0
	for _, o := range opps {
		if o.Signal.Triggered {
			triggered++
		}
	}
	log.Info().Int("evaluated", len(opps)).Int("triggered", triggered).Msg("evaluation round")
	if w.onResult != nil {
		w.onResult(opps)
	}
}
