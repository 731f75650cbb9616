package cli

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"cashcarry/internal/domain/model"
	"cashcarry/internal/infrastructure/exchange/binance"
)

var historyHeader = []string{
	"ID", "Coin", "Perp", "Futures", "Entry", "Exit", "Volume USDT",
	"Funding PnL", "Basis PnL", "Fees", "Total PnL", "ROI %", "Position ID",
}

func (a *app) historyCmd() *cobra.Command {
	var user, csvPath string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Closed trades with PnL split and ROI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			positions, err := a.c.Positions().List(ctx(cmd), user, model.StatusClosed)
			if err != nil {
				return err
			}
			rows := model.History(positions)

			switch {
			case csvPath == "-":
				return writeHistoryCSV(a.out, rows)
			case csvPath != "":
				f, err := os.Create(csvPath)
				if err != nil {
					return err
				}
				if err := writeHistoryCSV(f, rows); err != nil {
					_ = f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				a.printf("%d trades written to %s\n", len(rows), csvPath)
				return nil
			case a.jsonOut:
				return a.printJSON(rows)
			}

			if len(rows) == 0 {
				a.printf("no closed positions\n")
				return nil
			}
			w := newTable(a.out, "#", "COIN", "EXIT", "VOLUME", "FUNDING", "BASIS", "FEES", "TOTAL", "ROI")
			for _, r := range rows {
				row(w, itoa(r.Seq), binance.Symbol2Coin(r.PerpSymbol), ts(r.ExitTime), money(r.VolumeUSD),
					money(r.FundingPnL), money(r.BasisPnL), money(r.Fees), money(r.TotalPnL),
					fmt.Sprintf("%.2f%%", r.ROIPct))
			}
			return w.Flush()
		},
	}
	userFlag(cmd, &user)
	cmd.Flags().StringVar(&csvPath, "csv", "", "export to a CSV file (- for stdout)")
	return cmd
}

func writeHistoryCSV(out io.Writer, rows []model.HistoryRow) error {
	w := csv.NewWriter(out)
	if err := w.Write(historyHeader); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			itoa(r.Seq),
			binance.Symbol2Coin(r.PerpSymbol),
			r.PerpSymbol,
			r.FuturesSymbol,
			r.EntryTime.UTC().Format(time.RFC3339),
			r.ExitTime.UTC().Format(time.RFC3339),
			decimalString(r.VolumeUSD),
			decimalString(r.FundingPnL),
			decimalString(r.BasisPnL),
			decimalString(r.Fees),
			decimalString(r.TotalPnL),
			strconv.FormatFloat(r.ROIPct, 'f', 2, 64),
			r.ID,
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func decimalString(v float64) string { return strconv.FormatFloat(v, 'f', 4, 64) }

func (a *app) alertsCmd() *cobra.Command {
	var (
		user  string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Recent operator alerts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}
			alerts, err := a.c.Alerts()
			if err != nil {
				return err
			}
			list, err := alerts.RecentAlerts(ctx(cmd), user, limit)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(list)
			}
			if len(list) == 0 {
				a.printf("no alerts\n")
				return nil
			}
			w := newTable(a.out, "TIME", "USER", "SEVERITY", "KIND", "MESSAGE")
			for _, al := range list {
				row(w, ts(time.UnixMilli(al.TS)), al.User, al.Severity, al.Kind, al.Message)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "only alerts of this user (default: all)")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of alerts")
	return cmd
}

func (a *app) cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Market data cache maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "flush",
		Short: "Drop every cached price, funding and contract entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.c.MarketData().Flush(ctx(cmd)); err != nil {
				return err
			}
			a.printf("market data cache flushed (%s)\n", a.cfg.Cache.Backend)
			return nil
		},
	})
	return cmd
}
