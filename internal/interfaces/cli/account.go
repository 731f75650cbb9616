package cli

import (
	"errors"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"cashcarry/internal/domain/model"
)

func userFlag(cmd *cobra.Command, dst *string) {
	cmd.Flags().StringVar(dst, "user", "", "ledger and credential namespace")
	_ = cmd.MarkFlagRequired("user")
}

func (a *app) credentialsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage encrypted exchange credentials",
	}

	var user, apiKey, apiSecret string
	set := &cobra.Command{
		Use:   "set",
		Short: "Encrypt and store an API key pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			apiKey, apiSecret = strings.TrimSpace(apiKey), strings.TrimSpace(apiSecret)
			if apiKey == "" || apiSecret == "" {
				return errors.New("--api-key and --api-secret are required")
			}
			if err := a.c.Vault().Save(ctx(cmd), user, apiKey, apiSecret); err != nil {
				return err
			}
			a.printf("credentials stored for %s\n", user)
			return nil
		},
	}
	userFlag(set, &user)
	set.Flags().StringVar(&apiKey, "api-key", "", "exchange API key")
	set.Flags().StringVar(&apiSecret, "api-secret", "", "exchange API secret")

	cmd.AddCommand(set)
	return cmd
}

func (a *app) balanceCmd() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show the futures wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess := a.c.Session(ctx(cmd), user)
			balances, err := a.c.Positions().Balances(ctx(cmd), sess)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(balances)
			}
			return printBalances(a, balances)
		},
	}
	userFlag(cmd, &user)
	return cmd
}

func printBalances(a *app, balances map[string]model.Balance) error {
	assets := make([]string, 0, len(balances))
	for asset := range balances {
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	w := newTable(a.out, "ASSET", "TOTAL", "AVAILABLE")
	for _, asset := range assets {
		b := balances[asset]
		row(w, asset, money(b.Total), money(b.Available))
	}
	return w.Flush()
}
