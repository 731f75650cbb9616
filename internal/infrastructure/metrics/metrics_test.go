package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	return rec.Body.String()
}

func TestCounters(t *testing.T) {
	m := New()
	m.Evaluation("BTCUSDT", true)
	m.Evaluation("BTCUSDT", true)
	m.Evaluation("BTCUSDT", false)
	m.PartialLeg("open")
	m.OrderFailed("BTCUSDT_250328", "BUY")

	body := scrape(t, m)
	assert.Contains(t, body, `carry_evaluations_total{symbol="BTCUSDT",triggered="true"} 2`)
	assert.Contains(t, body, `carry_evaluations_total{symbol="BTCUSDT",triggered="false"} 1`)
	assert.Contains(t, body, `carry_partial_legs_total{transition="open"} 1`)
	assert.Contains(t, body, `carry_order_failures_total{side="BUY",symbol="BTCUSDT_250328"} 1`)
}

func TestHandler(t *testing.T) {
	m := New()
	m.PositionOpened("ETHUSDT")

	body := scrape(t, m)
	assert.Contains(t, body, `carry_positions_opened_total{symbol="ETHUSDT"} 1`)
	assert.Contains(t, body, "go_goroutines")
}
