package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"cashcarry/internal/application/service"
	"cashcarry/internal/domain/model"
	domainsvc "cashcarry/internal/domain/service"
	"cashcarry/internal/infrastructure/exchange/binance"
	"cashcarry/internal/interfaces/console"
)

func (a *app) symbolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "symbols",
		Short: "List perpetuals with a current-quarter USDT contract",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			quarters, err := a.c.MarketData().QuarterSymbols(ctx(cmd))
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(quarters)
			}

			perps := make([]string, 0, len(quarters))
			for p := range quarters {
				perps = append(perps, p)
			}
			sort.Strings(perps)

			now := time.Now()
			w := newTable(a.out, "PERP", "FUTURES", "DAYS")
			for _, p := range perps {
				fut := quarters[p]
				days := domainsvc.DaysToExpiryOr(fut, now, a.cfg.Trading.DefaultDaysToExpiry)
				row(w, p, fut, itoa(days))
			}
			return w.Flush()
		},
	}
}

func (a *app) evaluateCmd() *cobra.Command {
	var futures string
	cmd := &cobra.Command{
		Use:   "evaluate [PERP|COIN...]",
		Short: "Evaluate pairs against the entry thresholds (default: app.symbols)",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := ctx(cmd)
			for i := range args {
				args[i] = binance.Coin2Symbol(args[i])
			}

			var opps []*model.Opportunity
			if futures != "" {
				if len(args) != 1 {
					return errors.New("--futures needs exactly one perpetual")
				}
				opp, err := a.c.Opportunities().EvaluatePair(c, args[0], futures)
				if err != nil {
					return err
				}
				opps = append(opps, opp)
			} else {
				symbols := args
				if len(symbols) == 0 {
					symbols = a.cfg.App.Symbols
				}
				var err error
				if opps, err = a.c.Opportunities().EvaluateAll(c, symbols); err != nil {
					return err
				}
			}

			if a.jsonOut {
				return a.printJSON(opps)
			}
			for _, o := range opps {
				a.printf("%s\n", console.FormatOpportunity(o, false))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&futures, "futures", "", "explicit dated future, skips quarter discovery")
	return cmd
}

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "watch",
		Short:       "Stream mark prices and evaluate app.symbols periodically",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationConsoleSignals: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			c, stop := signal.NotifyContext(ctx(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			symbols := a.cfg.App.Symbols
			var wg sync.WaitGroup

			if a.cfg.Metrics.Enabled {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := a.c.Metrics().Serve(c, a.cfg.Metrics.Addr); err != nil {
						log.Error().Err(err).Str("addr", a.cfg.Metrics.Addr).Msg("metrics server exited")
					}
				}()
			}

			// the stream keeps both legs warm; REST last-trade prices fill in until the first tick
			prices := service.NewPriceService(a.c.PriceFeed(), a.c.MarketData())
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := prices.Run(c, symbols); err != nil && !errors.Is(err, context.Canceled) {
					log.Error().Err(err).Msg("price feed exited")
				}
			}()

			interval := time.Duration(a.cfg.App.WatchIntervalSec) * time.Second
			log.Info().
				Strs("symbols", symbols).
				Dur("interval", interval).
				Float64("funding_threshold", a.c.Opportunities().Thresholds().FundingThreshold).
				Float64("funding_basis_ratio", a.c.Opportunities().Thresholds().FundingBasisRatio).
				Msg("carry watch started")

			err := service.NewWatchService(a.c.Opportunities(), interval, nil).Run(c, symbols)
			stop()
			wg.Wait()
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
