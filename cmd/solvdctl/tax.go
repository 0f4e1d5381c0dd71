package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/solvdai/solvd/internal/config"
	"github.com/solvdai/solvd/internal/tax"
)

var taxJSON bool

func init() {
	taxCmd.Flags().BoolVar(&taxJSON, "json", false, "print the result as JSON")
	rootCmd.AddCommand(taxCmd)
}

var taxCmd = &cobra.Command{
	Use:   "tax STATE [PRICE]",
	Short: "Look up a state's sales tax rate",
	Long: `Look up the sales tax rate for a US state. With a price, print the tax
and the total the way an accepted quote is charged.

Examples:
  # Rate only
  solvdctl tax CA

  # Tax on a $300 quote, without a server
  solvdctl tax --local ca 300`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runTax,
}

func runTax(cmd *cobra.Command, args []string) error {
	state := args[0]
	price := -1
	if len(args) == 2 {
		p, err := strconv.Atoi(args[1])
		if err != nil || p < 0 {
			return fmt.Errorf("invalid price %q: must be a non-negative whole number of dollars", args[1])
		}
		price = p
	}

	rate, err := lookupRate(cmd, state)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if price < 0 {
		adj := tax.Apply(0, state, rate)
		if taxJSON {
			return outputJSON(out, map[string]interface{}{"state": adj.State, "rate": adj.Rate})
		}
		fmt.Fprintf(out, "%s sales tax: %s%%\n", adj.State, rate.String())
		return nil
	}

	adj := tax.Apply(price, state, rate)
	if taxJSON {
		return outputJSON(out, adj)
	}
	printAdjustment(out, adj, rate)
	return nil
}

// lookupRate reads the rate from the local table for --local, otherwise from
// the server.
func lookupRate(cmd *cobra.Command, state string) (decimal.Decimal, error) {
	if local {
		cfg, err := config.LoadWithFile(configPath)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to load configuration: %w", err)
		}
		taxes, err := tax.Load(cfg.Tax.RatesFile)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to load tax table: %w", err)
		}
		return taxes.Rate(state), nil
	}

	client, err := newClient(0)
	if err != nil {
		return decimal.Zero, err
	}
	resp, err := client.Tax(cmd.Context(), state)
	if err != nil {
		return decimal.Zero, fmt.Errorf("tax lookup failed: %w", err)
	}
	return decimal.NewFromFloat(resp.Rate), nil
}

func printAdjustment(w io.Writer, adj tax.Adjustment, rate decimal.Decimal) {
	fmt.Fprintf(w, "Price: $%d\n", adj.Price)
	fmt.Fprintf(w, "Tax:   $%d (%s %s%%)\n", adj.Tax, adj.State, rate.String())
	fmt.Fprintf(w, "Total: $%d\n", adj.Total)
}
