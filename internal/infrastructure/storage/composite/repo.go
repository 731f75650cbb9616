package composite

import (
	"context"

	"cashcarry/internal/application/port"
	"cashcarry/internal/domain/model"
)

// Signals fans a signal out to every sink; the first error wins
type Signals struct {
	sinks []port.SignalSink
}

func NewSignals(sinks ...port.SignalSink) *Signals {
	// nil sinks are skipped
	out := make([]port.SignalSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &Signals{sinks: out}
}

func (c *Signals) PublishSignal(ctx context.Context, opp *model.Opportunity) error {
	var firstErr error
	for _, s := range c.sinks {
		if err := s.PublishSignal(ctx, opp); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Alerts fans an alert out to every sink; the first error wins
type Alerts struct {
	sinks []port.AlertSink
}

func NewAlerts(sinks ...port.AlertSink) *Alerts {
	out := make([]port.AlertSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &Alerts{sinks: out}
}

func (c *Alerts) RaiseAlert(ctx context.Context, a port.Alert) error {
	var firstErr error
	for _, s := range c.sinks {
		if err := s.RaiseAlert(ctx, a); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var (
	_ port.SignalSink = (*Signals)(nil)
	_ port.AlertSink  = (*Alerts)(nil)
)
