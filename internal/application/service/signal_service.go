package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"cashcarry/internal/application/port"
	"cashcarry/internal/domain/model"
)

// SignalService hands triggered opportunities to the signal sink
type SignalService struct {
	sink port.SignalSink
}

func NewSignalService(sink port.SignalSink) *SignalService {
	return &SignalService{sink: sink}
}

// Publish never fails the evaluation; sink errors are logged.
func (s *SignalService) Publish(ctx context.Context, opp *model.Opportunity) {
	if s.sink == nil {
		return
	}
	if err := s.sink.PublishSignal(ctx, opp); err != nil {
		log.Error().Err(err).Str("symbol", opp.Snapshot.PerpSymbol).Msg("publish signal failed")
	}
}
