package main

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solvdai/solvd/internal/config"
	"github.com/solvdai/solvd/internal/handoff"
	httpserver "github.com/solvdai/solvd/internal/http"
	"github.com/solvdai/solvd/internal/intake"
	"github.com/solvdai/solvd/internal/logging"
	"github.com/solvdai/solvd/internal/mailer"
	"github.com/solvdai/solvd/internal/pricing"
	"github.com/solvdai/solvd/internal/quote"
	"github.com/solvdai/solvd/internal/services"
	"github.com/solvdai/solvd/internal/tax"
	"github.com/solvdai/solvd/internal/wizard"
)

// execute runs the root command with args and resets flag state afterwards.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		resetFlags(rootCmd)
	})
	err := rootCmd.Execute()
	return buf.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// isolateConfig points local mode at an empty home so only defaults apply.
func isolateConfig(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("TAX_RATES_FILE", "")
}

// startServer runs a solvd HTTP server with fallback pricing and handoff.
func startServer(t *testing.T) string {
	t.Helper()
	taxes := tax.Default()
	gen := quote.NewGenerator(nil, pricing.DefaultConstants(),
		quote.WithTaxTable(taxes),
		quote.WithIDFunc(func() string { return "q-1" }))

	signer, err := handoff.NewSigner(config.PaymentConfig{
		SessionSecret:  "0123456789abcdef0123456789abcdef",
		PaymentPageURL: "https://www.solvdaisolutions.com/payment",
	})
	require.NoError(t, err)

	mail := &mailer.Recorder{}
	reg := services.NewRegistry(services.Options{
		Quotes:   gen,
		Acceptor: handoff.NewAcceptor(signer, taxes, mail, "ops@solvd.ai", nil),
		Sessions: signer,
		Mailer:   mail,
		Taxes:    taxes,
	})
	srv, err := httpserver.NewServer(reg, logging.NewNop(), nil)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

func storefrontArgs() []string {
	return []string{
		"-t", intake.TypeEcommerce,
		"-d", "Online store for handmade goods",
		"--integrations", "Stripe, SendGrid",
		"--state", "ca",
	}
}

func TestRootCmd_Commands(t *testing.T) {
	want := []string{"health", "mcp", "quote", "tax", "version", "wizard"}
	var got []string
	for _, c := range rootCmd.Commands() {
		if c.Name() == "help" || c.Name() == "completion" {
			continue
		}
		got = append(got, c.Name())
		assert.NotEmpty(t, c.Short, c.Name())
	}
	assert.ElementsMatch(t, want, got)

	for _, name := range []string{"server", "local", "config"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), name)
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version:    dev")
}

func TestHealthCmd(t *testing.T) {
	url := startServer(t)
	out, err := execute(t, "health", "--server", url)
	require.NoError(t, err)
	assert.Contains(t, out, "Server Status: ok")
}

func TestHealthCmd_Unreachable(t *testing.T) {
	_, err := execute(t, "health", "--server", "http://127.0.0.1:1")
	assert.Error(t, err)
}

func TestQuoteCmd_Remote(t *testing.T) {
	url := startServer(t)
	out, err := execute(t, append([]string{"quote", "--server", url}, storefrontArgs()...)...)
	require.NoError(t, err)

	assert.Contains(t, out, "Quote q-1")
	assert.Contains(t, out, "Price:      $410")
	assert.Contains(t, out, "Tax:        $30 (CA 7.25%)")
	assert.Contains(t, out, "Total:      $440")
	assert.Contains(t, out, "Source:     fallback")
}

func TestFinishWizard_RejectsTamperedPrice(t *testing.T) {
	url := startServer(t)
	client, err := httpserver.NewClient(url, nil)
	require.NoError(t, err)

	in := intake.Intake{
		ProjectType: intake.TypeEcommerce,
		Description: "Online store for handmade goods",
		Complexity:  intake.ComplexitySimple,
		Timeline:    intake.TimelineStandard,
		Contact:     intake.Contact{Name: "Jane Doe", Email: "jane@example.com", State: "CA"},
	}
	res, err := client.Quote(t.Context(), in)
	require.NoError(t, err)
	res.Quote.Price = 1

	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetContext(t.Context())
	err = finishWizard(cmd, wizard.Result{Intake: in, Quote: res, Accepted: true}, client)
	require.Error(t, err)
	assert.True(t, httpserver.IsStatus(err, 400))
}

func TestQuoteCmd_LocalJSON(t *testing.T) {
	isolateConfig(t)
	out, err := execute(t, append([]string{"quote", "--local", "--json"}, storefrontArgs()...)...)
	require.NoError(t, err)

	var res quote.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 410, res.Quote.Price)
	assert.Equal(t, 440, res.Tax.Total)
	assert.Equal(t, pricing.SourceFallback, res.Quote.Source)
}

func TestQuoteCmd_LocalPricingConfig(t *testing.T) {
	isolateConfig(t)
	t.Setenv("PRICING_BASE_PRICE", "300")

	out, err := execute(t, append([]string{"quote", "--local", "--json"}, storefrontArgs()...)...)
	require.NoError(t, err)
	var res quote.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Greater(t, res.Quote.Price, 410)
	assert.Empty(t, res.QuoteToken)
}

func TestQuoteCmd_InvalidProject(t *testing.T) {
	_, err := execute(t, "quote", "--local", "-t", "spaceship", "-d", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid project")

	_, err = execute(t, "quote", "--local")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "description")
}

func TestTaxCmd_Local(t *testing.T) {
	isolateConfig(t)

	out, err := execute(t, "tax", "--local", "ca")
	require.NoError(t, err)
	assert.Equal(t, "CA sales tax: 7.25%\n", out)

	out, err = execute(t, "tax", "--local", "CA", "300")
	require.NoError(t, err)
	assert.Equal(t, "Price: $300\nTax:   $22 (CA 7.25%)\nTotal: $322\n", out)
}

func TestTaxCmd_RemoteJSON(t *testing.T) {
	url := startServer(t)
	out, err := execute(t, "tax", "--server", url, "--json", "ny", "1000")
	require.NoError(t, err)

	var adj tax.Adjustment
	require.NoError(t, json.Unmarshal([]byte(out), &adj))
	assert.Equal(t, tax.Adjustment{State: "NY", Rate: 8.875, Price: 1000, Tax: 89, Total: 1089}, adj)
}

func TestTaxCmd_BadArgs(t *testing.T) {
	_, err := execute(t, "tax", "--local", "CA", "-5")
	assert.Error(t, err)

	_, err = execute(t, "tax", "--local", "CA", "lots")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid price")

	url := startServer(t)
	_, err = execute(t, "tax", "--server", url, "california")
	require.Error(t, err)
	assert.True(t, httpserver.IsStatus(err, 400))
}

func TestFinishWizard_AcceptsThroughServer(t *testing.T) {
	url := startServer(t)
	client, err := httpserver.NewClient(url, nil)
	require.NoError(t, err)

	in := intake.Intake{
		ProjectType:  intake.TypeEcommerce,
		Description:  "Online store for handmade goods",
		Complexity:   intake.ComplexitySimple,
		Timeline:     intake.TimelineStandard,
		Integrations: "Stripe, SendGrid",
		Contact:      intake.Contact{Name: "Jane Doe", Email: "jane@example.com", State: "CA"},
	}
	res, err := client.Quote(t.Context(), in)
	require.NoError(t, err)

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	cmd.SetContext(t.Context())

	require.NoError(t, finishWizard(cmd, wizard.Result{Intake: in, Quote: res, Accepted: true}, client))
	out := buf.String()
	assert.Contains(t, out, "Total due: $440")
	assert.Contains(t, out, "https://www.solvdaisolutions.com/payment?session=")
}

func TestFinishWizard_LocalAcceptance(t *testing.T) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	res := quote.Result{Quote: pricing.Quote{ID: "q-9", Price: 187}, Tax: tax.Adjustment{Price: 187, Total: 187}}
	require.NoError(t, finishWizard(cmd, wizard.Result{Quote: res, Accepted: true}, nil))
	assert.Contains(t, buf.String(), "Total:      $187")
	assert.True(t, strings.Contains(buf.String(), "continue to payment"))

	buf.Reset()
	require.NoError(t, finishWizard(cmd, wizard.Result{Quote: res}, nil))
	assert.NotContains(t, buf.String(), "accepted")
}
