package main

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/solvdai/solvd/internal/config"
	"github.com/solvdai/solvd/internal/handoff"
	"github.com/solvdai/solvd/internal/intake"
	"github.com/solvdai/solvd/internal/logging"
	"github.com/solvdai/solvd/internal/mailer"
	"github.com/solvdai/solvd/internal/telemetry"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("LLM_API_KEY", "")
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func storefront() intake.Intake {
	return intake.Intake{
		ProjectType:  intake.TypeEcommerce,
		Description:  "Online store for handmade goods",
		Complexity:   intake.ComplexitySimple,
		Timeline:     intake.TimelineStandard,
		Integrations: "Stripe, SendGrid",
		Contact:      intake.Contact{Name: "Jane Doe", Email: "jane@example.com", State: "CA"},
	}
}

func noopTelemetry(t *testing.T) *telemetry.Telemetry {
	t.Helper()
	tel, err := telemetry.New(context.Background(), telemetry.NewDefaultConfig())
	require.NoError(t, err)
	return tel
}

func TestInit_DegradesWithoutSecrets(t *testing.T) {
	cfg := testConfig(t)
	logger := logging.NewTestLogger()

	deps, err := initDependencies(context.Background(), cfg, logger.Logger)
	require.NoError(t, err)
	defer deps.Close()

	assert.Nil(t, deps.model)
	assert.Nil(t, deps.natsConn)
	assert.IsType(t, mailer.Disabled{}, deps.mailer)
	assert.NotNil(t, deps.scrubber)
	logger.AssertLogged(t, zapcore.WarnLevel, "model not configured")

	svc, err := initServices(cfg, deps, noopTelemetry(t), prometheus.NewRegistry(), logger.Logger)
	require.NoError(t, err)

	assert.NotNil(t, svc.quotes)
	assert.NotNil(t, svc.analyzer)
	assert.NotNil(t, svc.async)
	assert.Same(t, svc.async, svc.dispatcher)
	assert.Nil(t, svc.worker)
	assert.Nil(t, svc.acceptor)
	assert.Nil(t, svc.signer)
	assert.Nil(t, svc.payments)
	assert.NotNil(t, svc.webhooks)

	res, err := svc.quotes.Quote(context.Background(), storefront())
	require.NoError(t, err)
	assert.Equal(t, 410, res.Quote.Price)
	assert.Equal(t, 440, res.Tax.Total)
}

func TestInit_WithPaymentSecrets(t *testing.T) {
	cfg := testConfig(t)
	cfg.Payment.SessionSecret = "0123456789abcdef0123456789abcdef"
	cfg.Payment.StripeSecretKey = "sk_test_0123456789abcdef"

	deps, err := initDependencies(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	defer deps.Close()

	svc, err := initServices(cfg, deps, noopTelemetry(t), prometheus.NewRegistry(), logging.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, svc.signer)
	assert.NotNil(t, svc.acceptor)
	assert.NotNil(t, svc.payments)
}

func TestShutdown_WaitsForAnalyses(t *testing.T) {
	cfg := testConfig(t)
	deps, err := initDependencies(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	svc, err := initServices(cfg, deps, noopTelemetry(t), prometheus.NewRegistry(), logging.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, svc.async.Wait(ctx))
}

func TestInitServices_PricingConfig(t *testing.T) {
	cfg := testConfig(t)
	deps, err := initDependencies(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	defer deps.Close()

	cfg.Pricing.BasePrice = 300
	svc, err := initServices(cfg, deps, noopTelemetry(t), prometheus.NewRegistry(), logging.NewNop())
	require.NoError(t, err)
	res, err := svc.quotes.Quote(context.Background(), storefront())
	require.NoError(t, err)
	assert.Greater(t, res.Quote.Price, 410)

	cfg.Pricing.ToleranceMode = "percentage"
	_, err = initServices(cfg, deps, noopTelemetry(t), prometheus.NewRegistry(), logging.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid pricing config")
}

func TestInit_QuoteTokenRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	cfg.Payment.SessionSecret = "0123456789abcdef0123456789abcdef"

	deps, err := initDependencies(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	defer deps.Close()
	svc, err := initServices(cfg, deps, noopTelemetry(t), prometheus.NewRegistry(), logging.NewNop())
	require.NoError(t, err)
	require.NotNil(t, svc.signer)

	res, err := svc.quotes.Quote(context.Background(), storefront())
	require.NoError(t, err)
	token, err := svc.signer.IssueQuote(res.Quote, "CA")
	require.NoError(t, err)

	req := handoff.Request{Intake: storefront(), Quote: res.Quote, QuoteToken: token}
	req.Quote.Price = 1
	_, err = svc.acceptor.Accept(context.Background(), req)
	assert.ErrorIs(t, err, handoff.ErrQuoteMismatch)

	req.Quote.Price = res.Quote.Price
	acc, err := svc.acceptor.Accept(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(44000), acc.Session.AmountCents)
}
