package port

import (
	"context"

	"cashcarry/internal/domain/model"
)

// SignalSink receives triggered opportunities
type SignalSink interface {
	PublishSignal(ctx context.Context, opp *model.Opportunity) error
}

// Alert high-severity operator notification
type Alert struct {
	User     string `json:"user"`
	Severity string `json:"severity"`
	Kind     string `json:"kind"`
	Message  string `json:"message"`
	TS       int64  `json:"ts"`
}

// AlertSink delivers operator alerts
type AlertSink interface {
	RaiseAlert(ctx context.Context, a Alert) error
}

// AlertLog read side of persisted alerts, newest first. An empty user means all users.
type AlertLog interface {
	RecentAlerts(ctx context.Context, user string, limit int) ([]Alert, error)
}
