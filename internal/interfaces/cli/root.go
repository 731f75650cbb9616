package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"cashcarry/internal/infrastructure/config"
	"cashcarry/internal/infrastructure/container"
	"cashcarry/internal/infrastructure/logger"
)

// commands carrying this annotation get triggered signals printed to the console
const annotationConsoleSignals = "console-signals"

type app struct {
	cfgFile  string
	logLevel string
	jsonOut  bool

	out io.Writer
	cfg *config.Config
	c   *container.Container
}

// Execute runs the carry command tree with args (nil: os.Args), writing results to out.
// Resources opened for the command are released even when it fails.
func Execute(out io.Writer, args []string) error {
	a := &app{out: out}
	root := a.rootCommand()
	if args != nil {
		root.SetArgs(args)
	}
	defer func() { _ = a.teardown() }()
	return root.Execute()
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "carry",
		Short:         "Cash-and-carry funding arbitrage on Binance USDⓈ-M futures",
		Long:          `Evaluates perpetual / quarterly future pairs and opens, tracks and closes short-perp long-future positions`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.SetOut(a.out)

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "configs/config.toml", "path to config.toml (empty: defaults and environment only)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log.level")
	root.PersistentFlags().BoolVar(&a.jsonOut, "json", false, "print results as JSON")

	root.AddCommand(
		a.symbolsCmd(),
		a.evaluateCmd(),
		a.watchCmd(),
		a.credentialsCmd(),
		a.balanceCmd(),
		a.openCmd(),
		a.closeCmd(),
		a.positionsCmd(),
		a.pnlCmd(),
		a.summaryCmd(),
		a.resetCmd(),
		a.historyCmd(),
		a.alertsCmd(),
		a.cacheCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	if cmd.Name() == "help" || strings.HasPrefix(cmd.CommandPath(), "carry completion") {
		return nil
	}

	// required flags are checked after this hook; fail before opening anything
	if err := cmd.ValidateRequiredFlags(); err != nil {
		return err
	}

	path := a.cfgFile
	if _, err := os.Stat(path); err != nil && !cmd.Flags().Changed("config") {
		// the default location is optional, an explicit one is not
		path = ""
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	logger.Setup(logger.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	a.cfg = cfg

	opts := container.Options{}
	if cmd.Annotations[annotationConsoleSignals] == "true" {
		opts.Out = a.out
		opts.Color = !a.jsonOut
	}
	c, err := container.New(ctx(cmd), cfg, opts)
	if err != nil {
		return err
	}
	a.c = c
	return nil
}

func (a *app) teardown() error {
	if a.c == nil {
		return nil
	}
	return a.c.Close()
}

func ctx(cmd *cobra.Command) context.Context {
	if c := cmd.Context(); c != nil {
		return c
	}
	return context.Background()
}
