package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func closedPosition(id string, notional float64, exit time.Time) Position {
	p := Position{
		ID:            id,
		PerpSymbol:    "BTCUSDT",
		FuturesSymbol: "BTCUSDT_250328",
		EntryTime:     exit.Add(-48 * time.Hour),
		NotionalUSD:   notional,
		OpenFee:       0.08,
		Status:        StatusOpen,
	}
	_ = p.Close(ExitSnapshot{Time: exit, CloseFee: 0.08, FundingPnL: 0.3, BasisPnL: 1.06, TotalPnL: 1.2})
	return p
}

func TestHistorySkipsOpenPositions(t *testing.T) {
	exit := time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)
	positions := []Position{
		closedPosition("a", 100, exit),
		{ID: "b", Status: StatusOpen, NotionalUSD: 50},
		closedPosition("c", 0, exit),
	}

	rows := History(positions)
	require.Len(t, rows, 2)

	assert.Equal(t, 1, rows[0].Seq)
	assert.Equal(t, "a", rows[0].ID)
	assert.Equal(t, exit, rows[0].ExitTime)
	assert.InDelta(t, -0.16, rows[0].Fees, 1e-9)
	assert.InDelta(t, 1.2, rows[0].ROIPct, 1e-9)

	assert.Equal(t, 2, rows[1].Seq)
	assert.Equal(t, "c", rows[1].ID)
	assert.Zero(t, rows[1].ROIPct)
}

func TestCloseIsOneWay(t *testing.T) {
	p := closedPosition("a", 100, time.Now())
	assert.ErrorIs(t, p.Close(ExitSnapshot{}), ErrPositionNotOpen)
	assert.Equal(t, StatusClosed, p.Status)
}
