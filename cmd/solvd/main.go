// Solvd is the quote backend daemon.
//
// It serves the quote, acceptance, payment and tax endpoints over HTTP and
// fires the post-quote analysis either in-process or through NATS.
//
// Configuration is loaded from ~/.config/solvd/config.yaml (or -config) and
// environment variables. See internal/config for details.
//
// Usage:
//
//	# Start server with defaults
//	solvd
//
//	# Configure via environment
//	SERVER_PORT=9090 LLM_API_KEY=... MAIL_OPERATOR=ops@example.com solvd
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/solvdai/solvd/internal/analysis"
	"github.com/solvdai/solvd/internal/config"
	"github.com/solvdai/solvd/internal/dispatch"
	"github.com/solvdai/solvd/internal/handoff"
	httpserver "github.com/solvdai/solvd/internal/http"
	"github.com/solvdai/solvd/internal/llm"
	"github.com/solvdai/solvd/internal/logging"
	"github.com/solvdai/solvd/internal/mailer"
	"github.com/solvdai/solvd/internal/payment"
	"github.com/solvdai/solvd/internal/pricing"
	"github.com/solvdai/solvd/internal/quote"
	"github.com/solvdai/solvd/internal/secrets"
	"github.com/solvdai/solvd/internal/services"
	"github.com/solvdai/solvd/internal/tax"
	"github.com/solvdai/solvd/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

const instrumentation = "github.com/solvdai/solvd"

func main() {
	configPath := flag.String("config", "", "path to config file (default ~/.config/solvd/config.yaml)")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  solvd           Start the quote daemon\n")
			fmt.Fprintf(os.Stderr, "  solvd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("solvd\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run wires the daemon and blocks until ctx is cancelled, then shuts down
// in reverse order: HTTP first, then in-flight analyses, the NATS worker and
// finally telemetry.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	tel, err := telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, version))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logger, err := logging.NewLogger(logging.NewDefaultConfig(), nil)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Best-effort sync on shutdown
	}()
	if tel.Err() != nil {
		logger.Warn(ctx, "telemetry degraded", zap.Error(tel.Err()))
	}

	logger.Info(ctx, "starting solvd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("dispatch_mode", cfg.Dispatch.Mode),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout))

	deps, err := initDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close()

	svc, err := initServices(cfg, deps, tel, prometheus.DefaultRegisterer, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	logger.Info(ctx, "services initialized",
		zap.Bool("model_configured", deps.model != nil),
		zap.Bool("mail_enabled", cfg.Mail.Enabled()),
		zap.Bool("payments_enabled", svc.payments != nil),
		zap.Bool("handoff_enabled", svc.acceptor != nil))

	reg := services.NewRegistry(services.Options{
		Quotes:     svc.quotes,
		Analyzer:   svc.analyzer,
		Dispatcher: svc.dispatcher,
		Acceptor:   svc.acceptor,
		Sessions:   svc.signer,
		Payments:   svc.payments,
		Webhooks:   svc.webhooks,
		Mailer:     deps.mailer,
		Taxes:      deps.taxes,
	})

	srv, err := httpserver.NewServer(reg, logger, &httpserver.Config{
		Port:           cfg.Server.Port,
		Operator:       cfg.Mail.Operator,
		MetricsHandler: promhttp.Handler(),
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return shutdown(shutdownCtx, srv, svc, tel)
}

func shutdown(ctx context.Context, srv *httpserver.Server, svc *serviceSet, tel *telemetry.Telemetry) error {
	var errs []error
	if err := srv.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if svc.async != nil {
		if err := svc.async.Wait(ctx); err != nil {
			errs = append(errs, fmt.Errorf("waiting for analyses: %w", err))
		}
	}
	if svc.worker != nil {
		if err := svc.worker.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("analysis worker: %w", err))
		}
	}
	if err := tel.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
	}
	return errors.Join(errs...)
}

// dependencies holds infrastructure shared by the services.
type dependencies struct {
	natsConn *nats.Conn
	model    llm.Completer
	mailer   mailer.Sender
	scrubber secrets.Scrubber
	taxes    *tax.Table
}

// Close releases infrastructure resources.
func (d *dependencies) Close() {
	if d.natsConn != nil {
		d.natsConn.Close()
	}
}

// initDependencies loads the tax table, the model client, the mailer and the
// scrubber, and connects to NATS when analyses are queued there. A missing
// model key or SMTP host degrades the daemon rather than failing it.
func initDependencies(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*dependencies, error) {
	deps := &dependencies{}

	taxes, err := tax.Load(cfg.Tax.RatesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load tax table: %w", err)
	}
	deps.taxes = taxes
	if cfg.Tax.RatesFile != "" {
		go func() {
			if err := taxes.Watch(ctx, cfg.Tax.RatesFile, logger); err != nil {
				logger.Warn(ctx, "tax table watch stopped", zap.Error(err))
			}
		}()
	}

	client, err := llm.New(cfg.LLM,
		llm.WithTimeout(cfg.LLM.Timeout),
		llm.WithRateLimit(cfg.LLM.RateLimit, cfg.LLM.Burst),
		llm.WithLogger(logger),
	)
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		logger.Warn(ctx, "model not configured, quotes use the fallback estimate")
	case err != nil:
		return nil, fmt.Errorf("failed to create model client: %w", err)
	default:
		deps.model = client
	}

	smtp, err := mailer.New(cfg.Mail, logger)
	switch {
	case errors.Is(err, mailer.ErrDisabled):
		logger.Warn(ctx, "mail not configured, emails are dropped")
		deps.mailer = mailer.Disabled{}
	case err != nil:
		return nil, fmt.Errorf("failed to create mailer: %w", err)
	default:
		deps.mailer = smtp
	}

	scrubber, err := secrets.New(cfg.Secrets.Engine)
	if err != nil {
		return nil, fmt.Errorf("failed to create scrubber: %w", err)
	}
	deps.scrubber = scrubber

	if cfg.Dispatch.Mode == config.DispatchNATS {
		nc, err := nats.Connect(cfg.Dispatch.NATSURL,
			nats.Name("solvd"),
			nats.RetryOnFailedConnect(true),
			nats.MaxReconnects(5),
			nats.ReconnectWait(1*time.Second),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.Dispatch.NATSURL, err)
		}
		logger.Info(ctx, "connected to NATS", zap.String("url", cfg.Dispatch.NATSURL))
		deps.natsConn = nc
	}
	return deps, nil
}

// serviceSet holds the quote pipeline.
type serviceSet struct {
	quotes     *quote.Generator
	analyzer   *analysis.Analyzer
	dispatcher dispatch.Dispatcher
	async      *dispatch.Async
	worker     *dispatch.Worker
	signer     *handoff.Signer
	acceptor   *handoff.Acceptor
	payments   payment.Provider
	webhooks   *payment.Webhooks
}

func initServices(cfg *config.Config, deps *dependencies, tel *telemetry.Telemetry, reg prometheus.Registerer, logger *logging.Logger) (*serviceSet, error) {
	ctx := context.Background()
	tracer := tel.Tracer(instrumentation)
	svc := &serviceSet{}

	constants, err := pricing.FromConfig(cfg.Pricing)
	if err != nil {
		return nil, fmt.Errorf("invalid pricing config: %w", err)
	}
	svc.quotes = quote.NewGenerator(deps.model, constants,
		quote.WithTaxTable(deps.taxes),
		quote.WithScrubber(deps.scrubber),
		quote.WithMetrics(quote.NewMetrics(reg)),
		quote.WithLogger(logger),
		quote.WithTracer(tracer),
	)

	svc.analyzer = analysis.NewAnalyzer(deps.model, deps.mailer, cfg.Mail.Operator,
		analysis.WithScrubber(deps.scrubber),
		analysis.WithLogger(logger),
		analysis.WithTracer(tracer),
	)

	dispatchOpts := []dispatch.Option{
		dispatch.WithLogger(logger),
		dispatch.WithMetrics(dispatch.NewMetrics(reg)),
		dispatch.WithTimeout(cfg.Dispatch.Timeout),
	}
	switch cfg.Dispatch.Mode {
	case config.DispatchNATS:
		svc.dispatcher = dispatch.NewPublisher(deps.natsConn, dispatchOpts...)
		svc.worker = dispatch.NewWorker(deps.natsConn, svc.analyzer, dispatchOpts...)
		if err := svc.worker.Start(); err != nil {
			return nil, fmt.Errorf("failed to start analysis worker: %w", err)
		}
	default:
		svc.async = dispatch.NewAsync(svc.analyzer, dispatchOpts...)
		svc.dispatcher = svc.async
	}

	signer, err := handoff.NewSigner(cfg.Payment)
	switch {
	case errors.Is(err, handoff.ErrNoSessionKey):
		logger.Warn(ctx, "payment session secret not configured, acceptance is disabled")
	case err != nil:
		return nil, fmt.Errorf("failed to create session signer: %w", err)
	default:
		svc.signer = signer
		svc.acceptor = handoff.NewAcceptor(signer, deps.taxes, deps.mailer, cfg.Mail.Operator, logger)
	}

	stripe, err := payment.NewStripe(cfg.Payment, payment.WithLogger(logger))
	switch {
	case errors.Is(err, payment.ErrNotConfigured):
		logger.Warn(ctx, "stripe not configured, payment intents are disabled")
	case err != nil:
		return nil, fmt.Errorf("failed to create payment provider: %w", err)
	default:
		svc.payments = stripe
	}
	svc.webhooks = payment.NewWebhooks(cfg.Payment.WebhookSecret, deps.mailer, cfg.Mail.Operator, cfg.Mail.From, logger)

	return svc, nil
}
