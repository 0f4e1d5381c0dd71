package main

import (
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	httpserver "github.com/solvdai/solvd/internal/http"
	"github.com/solvdai/solvd/internal/logging"
	"github.com/solvdai/solvd/internal/wizard"
)

func init() {
	rootCmd.AddCommand(wizardCmd)
}

var wizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Interactive quote wizard",
	Long: `Walk through the quote form in the terminal: project basics, details
and contact, then the priced quote. Accepting a quote from a server returns
the payment link.

Examples:
  # Against the local server
  solvdctl wizard

  # Without a server (quotes cannot be accepted)
  solvdctl wizard --local`,
	Args: cobra.NoArgs,
	RunE: runWizard,
}

func runWizard(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	quoter, client, err := newQuoter(logging.NewNop())
	if err != nil {
		return err
	}

	model := wizard.New(ctx, quoter, wizard.NewPacer(wizard.DefaultFloor))
	final, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil {
		return fmt.Errorf("wizard failed: %w", err)
	}

	m, ok := final.(wizard.Model)
	if !ok {
		return nil
	}
	res, ok := m.Result()
	if !ok {
		return nil
	}
	return finishWizard(cmd, res, client)
}

// finishWizard prints the outcome. An accepted quote is handed to the server
// for payment when there is one.
func finishWizard(cmd *cobra.Command, res wizard.Result, client *httpserver.Client) error {
	out := cmd.OutOrStdout()
	printQuote(out, res.Quote)
	if !res.Accepted {
		return nil
	}
	if client == nil {
		fmt.Fprintln(out, "\nQuote accepted. Run the wizard against a solvd server to continue to payment.")
		return nil
	}

	acc, err := client.Accept(cmd.Context(), res.Intake, res.Quote)
	if err != nil {
		return fmt.Errorf("accept failed: %w", err)
	}
	printAcceptance(out, acc)
	return nil
}

func printAcceptance(w io.Writer, acc httpserver.AcceptResponse) {
	fmt.Fprintf(w, "\nQuote accepted. Total due: $%d\n", acc.Total)
	fmt.Fprintf(w, "Complete payment at:\n  %s\n", acc.PaymentURL)
}
