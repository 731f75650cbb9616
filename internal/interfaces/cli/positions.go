package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"cashcarry/internal/application/service"
	"cashcarry/internal/domain/model"
	"cashcarry/internal/infrastructure/exchange/binance"
)

func (a *app) openCmd() *cobra.Command {
	var (
		user    string
		req     service.OpenRequest
		volume  float64
		confirm bool
	)
	cmd := &cobra.Command{
		Use:   "open",
		Short: "Sell the perpetual and buy the dated future",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req.PerpSymbol = binance.Coin2Symbol(req.PerpSymbol)
			req.NotionalUSD = volume
			if !cmd.Flags().Changed("volume") {
				req.NotionalUSD = a.cfg.Trading.DefaultVolume
			}
			if !confirm {
				return fmt.Errorf("refusing to send live orders for %s %.2f USDT without --yes", req.PerpSymbol, req.NotionalUSD)
			}

			sess := a.c.Session(ctx(cmd), user)
			pos, err := a.c.Positions().Open(ctx(cmd), sess, req)
			if err != nil {
				return describe(err)
			}
			if a.jsonOut {
				return a.printJSON(pos)
			}
			printPosition(a.out, pos)
			return nil
		},
	}
	userFlag(cmd, &user)
	cmd.Flags().StringVar(&req.PerpSymbol, "perp", "", "perpetual symbol or coin, e.g. BTCUSDT or btc")
	cmd.Flags().StringVar(&req.FuturesSymbol, "futures", "", "dated future (default: current quarter)")
	cmd.Flags().Float64Var(&volume, "volume", 0, "notional in USDT (default: trading.default_volume)")
	cmd.Flags().BoolVar(&confirm, "yes", false, "confirm live order submission")
	_ = cmd.MarkFlagRequired("perp")
	return cmd
}

func (a *app) closeCmd() *cobra.Command {
	var (
		user    string
		id      string
		confirm bool
	)
	cmd := &cobra.Command{
		Use:   "close",
		Short: "Buy back the perpetual, sell the future and book PnL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return fmt.Errorf("refusing to send live orders closing %s without --yes", id)
			}
			sess := a.c.Session(ctx(cmd), user)
			pos, err := a.c.Positions().Close(ctx(cmd), sess, id)
			if err != nil {
				return describe(err)
			}
			if a.jsonOut {
				return a.printJSON(pos)
			}
			printPosition(a.out, pos)
			return nil
		},
	}
	userFlag(cmd, &user)
	cmd.Flags().StringVar(&id, "id", "", "position id")
	cmd.Flags().BoolVar(&confirm, "yes", false, "confirm live order submission")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func (a *app) positionsCmd() *cobra.Command {
	var user, status string
	cmd := &cobra.Command{
		Use:   "positions",
		Short: "List ledger positions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := parseStatus(status)
			if err != nil {
				return err
			}
			positions, err := a.c.Positions().List(ctx(cmd), user, st)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(positions)
			}
			if len(positions) == 0 {
				a.printf("no positions\n")
				return nil
			}
			return printPositions(a.out, positions)
		},
	}
	userFlag(cmd, &user)
	cmd.Flags().StringVar(&status, "status", "", "open | closed (default: all)")
	return cmd
}

func (a *app) pnlCmd() *cobra.Command {
	var user, id string
	cmd := &cobra.Command{
		Use:   "pnl",
		Short: "Live PnL of open positions, booked PnL of closed ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var positions []model.Position
			if id != "" {
				p, err := a.c.Positions().Get(ctx(cmd), user, id)
				if err != nil {
					return err
				}
				positions = append(positions, *p)
			} else {
				var err error
				if positions, err = a.c.Positions().List(ctx(cmd), user, model.StatusOpen); err != nil {
					return err
				}
			}

			type entry struct {
				Position model.Position     `json:"position"`
				PnL      model.PnLBreakdown `json:"pnl"`
			}
			out := make([]entry, 0, len(positions))
			for _, p := range positions {
				out = append(out, entry{Position: p, PnL: a.c.Positions().PnL(ctx(cmd), p)})
			}

			if a.jsonOut {
				return a.printJSON(out)
			}
			if len(out) == 0 {
				a.printf("no open positions\n")
				return nil
			}
			for i := range out {
				printPnL(a.out, &out[i].Position, out[i].PnL)
			}
			return nil
		},
	}
	userFlag(cmd, &user)
	cmd.Flags().StringVar(&id, "id", "", "single position (default: every open one)")
	return cmd
}

func (a *app) summaryCmd() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Aggregate the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.c.Positions().Summary(ctx(cmd), user)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(s)
			}
			w := newTable(a.out, "OPEN", "CLOSED", "OPEN NOTIONAL", "CLOSED VOLUME", "FUNDING", "BASIS", "FEES", "TOTAL PNL")
			row(w, itoa(s.Open), itoa(s.Closed), money(s.OpenNotional), money(s.ClosedVolume),
				money(s.FundingPnL), money(s.BasisPnL), money(s.Fees), money(s.TotalPnL))
			return w.Flush()
		},
	}
	userFlag(cmd, &user)
	return cmd
}

func (a *app) resetCmd() *cobra.Command {
	var (
		user    string
		confirm bool
	)
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every ledger position of a user (exchange positions are untouched)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return errors.New("reset drops the whole ledger; pass --yes to confirm")
			}
			if err := a.c.Positions().Reset(ctx(cmd), user); err != nil {
				return err
			}
			a.printf("ledger of %s reset\n", user)
			return nil
		},
	}
	userFlag(cmd, &user)
	cmd.Flags().BoolVar(&confirm, "yes", false, "confirm")
	return cmd
}

func parseStatus(s string) (model.PositionStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case string(model.StatusOpen):
		return model.StatusOpen, nil
	case string(model.StatusClosed):
		return model.StatusClosed, nil
	default:
		return "", fmt.Errorf("unknown status %q, want open or closed", s)
	}
}

// describe prefixes errors that need manual action on the exchange
func describe(err error) error {
	var perr *model.PartialLegError
	if errors.As(err, &perr) {
		return fmt.Errorf("CRITICAL, reconcile manually: %w", err)
	}
	if service.IsInputError(err) {
		return fmt.Errorf("rejected: %w", err)
	}
	return err
}

func itoa(n int) string { return strconv.Itoa(n) }
