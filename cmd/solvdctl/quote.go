package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	httpserver "github.com/solvdai/solvd/internal/http"
	"github.com/solvdai/solvd/internal/intake"
	"github.com/solvdai/solvd/internal/logging"
	"github.com/solvdai/solvd/internal/quote"
	"github.com/solvdai/solvd/internal/wizard"
)

var quoteOpts struct {
	projectType  string
	description  string
	complexity   string
	timeline     string
	budget       string
	users        string
	integrations string
	features     string
	name         string
	email        string
	company      string
	state        string
	json         bool
}

func init() {
	f := quoteCmd.Flags()
	f.StringVarP(&quoteOpts.projectType, "type", "t", intake.TypeOther, "project type ("+strings.Join(intake.ProjectTypes, ", ")+")")
	f.StringVarP(&quoteOpts.description, "description", "d", "", "what the app should do (required)")
	f.StringVarP(&quoteOpts.complexity, "complexity", "c", intake.ComplexitySimple, "complexity ("+strings.Join(intake.Complexities, ", ")+")")
	f.StringVar(&quoteOpts.timeline, "timeline", intake.TimelineStandard, "timeline ("+strings.Join(intake.Timelines, ", ")+")")
	f.StringVar(&quoteOpts.budget, "budget", "", "budget range ("+strings.Join(intake.Budgets, ", ")+")")
	f.StringVar(&quoteOpts.users, "users", "", "expected users ("+strings.Join(intake.UserCounts, ", ")+")")
	f.StringVar(&quoteOpts.integrations, "integrations", "", "comma separated integrations")
	f.StringVar(&quoteOpts.features, "features", "", "comma separated extra features")
	f.StringVar(&quoteOpts.name, "name", "", "contact name")
	f.StringVar(&quoteOpts.email, "email", "", "contact email")
	f.StringVar(&quoteOpts.company, "company", "", "contact company")
	f.StringVar(&quoteOpts.state, "state", "", "US state for sales tax, e.g. CA")
	f.BoolVar(&quoteOpts.json, "json", false, "print the quote as JSON")
	rootCmd.AddCommand(quoteCmd)
}

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Price a project",
	Long: `Price a project description and print the quote with sales tax.

With contact details the server also emails the project analysis to the
operator.

Examples:
  # Quote against the local server
  solvdctl quote -t ecommerce -d "Online store for handmade goods" --state CA

  # Quote without a server, using the fallback formula when no model key is set
  solvdctl quote --local -t data -c complex -d "Sales dashboard" --json`,
	Args: cobra.NoArgs,
	RunE: runQuote,
}

func runQuote(cmd *cobra.Command, args []string) error {
	in := quoteIntake()
	if err := in.ValidateProject(); err != nil {
		return fmt.Errorf("invalid project: %w", err)
	}

	q, _, err := newQuoter(logging.NewNop())
	if err != nil {
		return err
	}
	res, err := q.Quote(cmd.Context(), in)
	if err != nil {
		return fmt.Errorf("quote failed: %w", err)
	}

	if quoteOpts.json {
		return outputJSON(cmd.OutOrStdout(), res)
	}
	printQuote(cmd.OutOrStdout(), res)
	return nil
}

func quoteIntake() intake.Intake {
	return intake.Intake{
		ProjectType:   quoteOpts.projectType,
		Description:   quoteOpts.description,
		Complexity:    quoteOpts.complexity,
		Timeline:      quoteOpts.timeline,
		Budget:        quoteOpts.budget,
		UserCount:     quoteOpts.users,
		Integrations:  quoteOpts.integrations,
		OtherFeatures: quoteOpts.features,
		Contact: intake.Contact{
			Name:    quoteOpts.name,
			Email:   quoteOpts.email,
			Company: quoteOpts.company,
			State:   quoteOpts.state,
		},
	}.Normalize()
}

// newQuoter returns the in-process generator for --local, otherwise a client
// for --server. The client is nil in local mode.
func newQuoter(logger *logging.Logger) (wizard.Quoter, *httpserver.Client, error) {
	if local {
		gen, err := localGenerator(logger)
		if err != nil {
			return nil, nil, err
		}
		return gen, nil, nil
	}
	client, err := newClient(0)
	if err != nil {
		return nil, nil, err
	}
	return client, client, nil
}

func printQuote(w io.Writer, res quote.Result) {
	q, adj := res.Quote, res.Tax
	fmt.Fprintf(w, "Quote %s\n", q.ID)
	fmt.Fprintf(w, "  Price:      $%d\n", q.Price)
	if adj.Tax > 0 {
		fmt.Fprintf(w, "  Tax:        $%d (%s %g%%)\n", adj.Tax, adj.State, adj.Rate)
	}
	fmt.Fprintf(w, "  Total:      $%d\n", adj.Total)
	fmt.Fprintf(w, "  Delivery:   %d days\n", q.DeliveryDays)
	fmt.Fprintf(w, "  Confidence: %d%%\n", q.Confidence)
	fmt.Fprintf(w, "  Source:     %s", q.Source)
	if q.Reconciled {
		fmt.Fprint(w, " (price reconciled)")
	}
	fmt.Fprintln(w)
	if len(q.DeterminedFeatures) > 0 {
		fmt.Fprintf(w, "  Features:   %s\n", strings.Join(q.DeterminedFeatures, ", "))
	}
	if len(q.RequiredIntegrations) > 0 {
		fmt.Fprintf(w, "  Integrations: %s\n", strings.Join(q.RequiredIntegrations, ", "))
	}
	if q.Reasoning != "" {
		fmt.Fprintf(w, "\n%s\n", q.Reasoning)
	}
}
