package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"cashcarry/internal/domain/model"
)

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func newTable(out io.Writer, header ...string) *tabwriter.Writer {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(header, "\t"))
	return w
}

func row(w io.Writer, cols ...string) {
	fmt.Fprintln(w, strings.Join(cols, "\t"))
}

func money(v float64) string { return fmt.Sprintf("%.2f", v) }

func pct(v float64) string { return fmt.Sprintf("%.4f%%", v*100) }

func ts(t time.Time) string { return t.Local().Format("2006-01-02 15:04:05") }

func printPositions(out io.Writer, positions []model.Position) error {
	w := newTable(out, "ID", "STATUS", "PERP", "FUTURES", "NOTIONAL", "QTY PERP", "QTY FUT", "ENTRY", "TOTAL PNL")
	for _, p := range positions {
		pnl := "-"
		if !p.IsOpen() {
			pnl = money(p.TotalPnL)
		}
		row(w, p.ID, string(p.Status), p.PerpSymbol, p.FuturesSymbol,
			money(p.NotionalUSD),
			fmt.Sprintf("%g", p.QtyPerp), fmt.Sprintf("%g", p.QtyFutures),
			ts(p.EntryTime), pnl)
	}
	return w.Flush()
}

func printPosition(out io.Writer, p *model.Position) {
	fmt.Fprintf(out, "position %s %s\n", p.ID, p.Status)
	fmt.Fprintf(out, "  short %s %g @ %.2f (order %s)\n", p.PerpSymbol, p.QtyPerp, p.EntryPerpPrice, p.PerpSellOrderID)
	fmt.Fprintf(out, "  long  %s %g @ %.2f (order %s)\n", p.FuturesSymbol, p.QtyFutures, p.EntryFuturesPrice, p.FuturesBuyOrderID)
	fmt.Fprintf(out, "  notional %s  open fee %s  entry funding %s/d\n", money(p.NotionalUSD), money(p.OpenFee), pct(p.EntryDailyFundingRate))
	if p.ExitTime != nil {
		fmt.Fprintf(out, "  exit %s perp %.2f fut %.2f close fee %s\n", ts(*p.ExitTime), p.ExitPerpPrice, p.ExitFuturesPrice, money(p.CloseFee))
		fmt.Fprintf(out, "  funding %s  basis %s  total %s\n", money(p.FundingPnL), money(p.BasisPnL), money(p.TotalPnL))
	}
}

func printPnL(out io.Writer, p *model.Position, b model.PnLBreakdown) {
	if !b.Available {
		fmt.Fprintf(out, "%s %s/%s: pnl unavailable (market data fetch failed)\n", p.ID, p.PerpSymbol, p.FuturesSymbol)
		return
	}
	fmt.Fprintf(out, "%s %s/%s %s\n", p.ID, p.PerpSymbol, p.FuturesSymbol, p.Status)
	fmt.Fprintf(out, "  funding %s over %d events  apr %s\n", money(b.FundingPnL), len(b.FundingEvents), pct(b.APR))
	fmt.Fprintf(out, "  basis %s (futures leg %s, perp leg %s)\n", money(b.BasisPnL), money(b.FuturesLegPnL), money(b.PerpLegPnL))
	fmt.Fprintf(out, "  total %s\n", money(b.TotalPnL))
}
