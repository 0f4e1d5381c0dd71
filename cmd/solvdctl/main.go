// Package main implements solvdctl, the command line client for the solvd
// quote service. It talks to a running server by default; --local prices in
// process with the same generator the server uses.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/solvdai/solvd/internal/config"
	httpserver "github.com/solvdai/solvd/internal/http"
	"github.com/solvdai/solvd/internal/llm"
	"github.com/solvdai/solvd/internal/logging"
	"github.com/solvdai/solvd/internal/pricing"
	"github.com/solvdai/solvd/internal/quote"
	"github.com/solvdai/solvd/internal/secrets"
	"github.com/solvdai/solvd/internal/tax"
)

var (
	// serverURL is the base URL of the solvd HTTP server
	serverURL string
	// local prices in process instead of calling the server
	local bool
	// configPath is the config file used in local mode
	configPath string

	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "solvdctl",
	Short: "CLI for the solvd quote service",
	Long: `solvdctl is a command-line interface for the solvd quote service.
It prices projects, looks up sales tax, runs the interactive quote wizard and
serves the quote tools to MCP clients.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "solvd server URL")
	rootCmd.PersistentFlags().BoolVar(&local, "local", false, "price in process instead of calling the server")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file for --local (default ~/.config/solvd/config.yaml)")
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(versionCmd)
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check solvd server health",
	Long: `Check the health status of the solvd HTTP server.

Examples:
  # Check health
  solvdctl health

  # Check health on a different server
  solvdctl health --server http://localhost:9090`,
	Args: cobra.NoArgs,
	RunE: runHealth,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		printVersion(cmd.OutOrStdout())
	},
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "solvdctl\n")
	fmt.Fprintf(w, "Version:    %s\n", version)
	fmt.Fprintf(w, "Commit:     %s\n", gitCommit)
	fmt.Fprintf(w, "Build Date: %s\n", buildDate)
}

func runHealth(cmd *cobra.Command, args []string) error {
	client, err := newClient(5 * time.Second)
	if err != nil {
		return err
	}
	resp, err := client.Health(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", serverURL, err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Server Status: %s\n", resp.Status)
	fmt.Fprintf(out, "Server URL: %s\n", serverURL)
	return nil
}

// newClient returns a client for --server. A zero timeout keeps the client
// default, which leaves room for a model-backed quote.
func newClient(timeout time.Duration) (*httpserver.Client, error) {
	var hc *http.Client
	if timeout > 0 {
		hc = &http.Client{Timeout: timeout}
	}
	return httpserver.NewClient(serverURL, hc)
}

// localGenerator builds the quote generator from the local configuration.
// Without a model key it prices with the fallback formula.
func localGenerator(logger *logging.Logger) (*quote.Generator, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	taxes, err := tax.Load(cfg.Tax.RatesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load tax table: %w", err)
	}
	scrubber, err := secrets.New(cfg.Secrets.Engine)
	if err != nil {
		return nil, fmt.Errorf("failed to create scrubber: %w", err)
	}

	var model llm.Completer
	client, err := llm.New(cfg.LLM,
		llm.WithTimeout(cfg.LLM.Timeout),
		llm.WithRateLimit(cfg.LLM.RateLimit, cfg.LLM.Burst),
		llm.WithLogger(logger),
	)
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
	case err != nil:
		return nil, fmt.Errorf("failed to create model client: %w", err)
	default:
		model = client
	}

	constants, err := pricing.FromConfig(cfg.Pricing)
	if err != nil {
		return nil, fmt.Errorf("invalid pricing config: %w", err)
	}
	return quote.NewGenerator(model, constants,
		quote.WithTaxTable(taxes),
		quote.WithScrubber(scrubber),
		quote.WithLogger(logger),
	), nil
}

func outputJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
