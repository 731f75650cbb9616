package redis

import (
	"context"
	"encoding/json"
	"strings"

	"cashcarry/internal/application/port"
	"cashcarry/internal/domain/model"

	"github.com/redis/go-redis/v9"
)

// Repo publishes signals and alerts to Redis streams and pub/sub channels
type Repo struct {
	rdb          *redis.Client
	prefix       string
	signalStream string
	signalChan   string
	alertStream  string
}

func New(rdb *redis.Client, prefix, signalStream, signalChan, alertStream string) *Repo {
	if strings.TrimSpace(signalStream) == "" {
		signalStream = prefix + ":signals"
	}
	if strings.TrimSpace(signalChan) == "" {
		signalChan = prefix + ":signals:pub"
	}
	if strings.TrimSpace(alertStream) == "" {
		alertStream = prefix + ":alerts"
	}
	return &Repo{
		rdb:          rdb,
		prefix:       prefix,
		signalStream: signalStream,
		signalChan:   signalChan,
		alertStream:  alertStream,
	}
}

func (r *Repo) PublishSignal(ctx context.Context, opp *model.Opportunity) error {
	payload, err := json.Marshal(opp)
	if err != nil {
		return err
	}

	// 1) Stream: XADD <stream> * ts symbol ... payload
	_, err = r.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: r.signalStream,
		Values: map[string]any{
			"ts_ms":         opp.Snapshot.TakenAt.UnixMilli(),
			"symbol":        opp.Snapshot.PerpSymbol,
			"futures":       opp.Snapshot.FuturesSymbol,
			"basis_pct":     opp.Signal.BasisPct,
			"daily_funding": opp.Snapshot.DailyFundingRate,
			"payload":       string(payload),
		},
	}).Result()
	if err != nil {
		return err
	}

	// 2) PubSub: PUBLISH <channel> json
	return r.rdb.Publish(ctx, r.signalChan, payload).Err()
}

func (r *Repo) RaiseAlert(ctx context.Context, a port.Alert) error {
	return r.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: r.alertStream,
		Values: map[string]any{
			"ts_ms":    a.TS,
			"user":     a.User,
			"severity": a.Severity,
			"kind":     a.Kind,
			"message":  a.Message,
		},
	}).Err()
}

var (
	_ port.SignalSink = (*Repo)(nil)
	_ port.AlertSink  = (*Repo)(nil)
)
