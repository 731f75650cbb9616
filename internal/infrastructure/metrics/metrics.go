// Package metrics exposes engine counters to Prometheus:
//
//	carry_evaluations_total{symbol,triggered}
//	carry_positions_opened_total{symbol}
//	carry_positions_closed_total{symbol}
//	carry_order_failures_total{symbol,side}
//	carry_partial_legs_total{transition}
//	go_* and process_* system metrics
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"cashcarry/internal/application/port"
)

type Metrics struct {
	registry        *prometheus.Registry
	evaluations     *prometheus.CounterVec
	positionsOpened *prometheus.CounterVec
	positionsClosed *prometheus.CounterVec
	orderFailures   *prometheus.CounterVec
	partialLegs     *prometheus.CounterVec
}

var _ port.Metrics = (*Metrics)(nil)

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carry_evaluations_total",
			Help: "Opportunity evaluations by outcome",
		}, []string{"symbol", "triggered"}),
		positionsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carry_positions_opened_total",
			Help: "Positions opened with both legs accepted",
		}, []string{"symbol"}),
		positionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carry_positions_closed_total",
			Help: "Positions closed with both legs accepted",
		}, []string{"symbol"}),
		orderFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carry_order_failures_total",
			Help: "Market orders rejected or failed in transport",
		}, []string{"symbol", "side"}),
		partialLegs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carry_partial_legs_total",
			Help: "Transitions left with only one leg filled",
		}, []string{"transition"}),
	}

	m.registry.MustRegister(
		m.evaluations,
		m.positionsOpened,
		m.positionsClosed,
		m.orderFailures,
		m.partialLegs,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Evaluation(symbol string, triggered bool) {
	m.evaluations.WithLabelValues(symbol, strconv.FormatBool(triggered)).Inc()
}

func (m *Metrics) PositionOpened(symbol string) {
	m.positionsOpened.WithLabelValues(symbol).Inc()
}

func (m *Metrics) PositionClosed(symbol string) {
	m.positionsClosed.WithLabelValues(symbol).Inc()
}

func (m *Metrics) OrderFailed(symbol, side string) {
	m.orderFailures.WithLabelValues(symbol, side).Inc()
}

func (m *Metrics) PartialLeg(transition string) {
	m.partialLegs.WithLabelValues(transition).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve blocks until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
