// Package quote produces priced quotes for project intakes.
//
// The Generator asks the language model for a draft, reconciles the draft
// against the local pricing formula and applies state tax. Any model
// failure degrades to the rule-based fallback quote, so a valid intake
// always gets a price.
package quote

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/solvdai/solvd/internal/intake"
	"github.com/solvdai/solvd/internal/llm"
	"github.com/solvdai/solvd/internal/logging"
	"github.com/solvdai/solvd/internal/pricing"
	"github.com/solvdai/solvd/internal/secrets"
	"github.com/solvdai/solvd/internal/tax"
)

const instrumentationName = "github.com/solvdai/solvd/internal/quote"

// ErrInvalidModelQuote indicates model JSON that parsed but cannot be priced.
var ErrInvalidModelQuote = errors.New("invalid model quote")

// Result is a quote with tax applied for the prospect's state.
type Result struct {
	Quote pricing.Quote  `json:"quote"`
	Tax   tax.Adjustment `json:"tax"`
	// QuoteToken is set by the HTTP API when the quote can be accepted.
	QuoteToken string `json:"quoteToken,omitempty"`
}

// Generator prices intakes.
type Generator struct {
	model     llm.Completer
	constants pricing.Constants
	taxes     *tax.Table
	scrubber  secrets.Scrubber
	metrics   *Metrics
	logger    *logging.Logger
	tracer    trace.Tracer
	newID     func() string
}

// Option configures a Generator.
type Option func(*Generator)

// WithTaxTable sets the tax table. Defaults to the embedded table.
func WithTaxTable(t *tax.Table) Option {
	return func(g *Generator) { g.taxes = t }
}

// WithScrubber sets the scrubber applied to free text before it reaches the
// model.
func WithScrubber(s secrets.Scrubber) Option {
	return func(g *Generator) { g.scrubber = s }
}

// WithMetrics sets the prometheus counters.
func WithMetrics(m *Metrics) Option {
	return func(g *Generator) { g.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// WithTracer sets the tracer.
func WithTracer(t trace.Tracer) Option {
	return func(g *Generator) { g.tracer = t }
}

// WithIDFunc sets the quote id generator.
func WithIDFunc(f func() string) Option {
	return func(g *Generator) { g.newID = f }
}

// NewGenerator creates a Generator. A nil model prices every intake with the
// fallback rules.
func NewGenerator(model llm.Completer, c pricing.Constants, opts ...Option) *Generator {
	g := &Generator{
		model:     model,
		constants: c,
		scrubber:  secrets.Noop{},
		logger:    logging.NewNop(),
		tracer:    otel.Tracer(instrumentationName),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.taxes == nil {
		g.taxes = tax.Default()
	}
	return g
}

// Constants returns the pricing constants in use.
func (g *Generator) Constants() pricing.Constants {
	return g.constants
}

// Taxes returns the tax table in use.
func (g *Generator) Taxes() *tax.Table {
	return g.taxes
}

// Quote validates the intake, generates a quote and applies state tax.
func (g *Generator) Quote(ctx context.Context, in intake.Intake) (Result, error) {
	q, err := g.Generate(ctx, in)
	if err != nil {
		return Result{}, err
	}
	return Result{Quote: q, Tax: g.taxes.Adjust(q.Price, in.Contact.State)}, nil
}

// Generate validates the intake and prices it. The only error is a
// validation error; model failures fall back to the rule-based quote.
func (g *Generator) Generate(ctx context.Context, in intake.Intake) (pricing.Quote, error) {
	in = in.Normalize()
	if err := in.ValidateProject(); err != nil {
		return pricing.Quote{}, err
	}

	id := g.newID()
	ctx = logging.WithQuoteID(ctx, id)
	ctx, span := g.tracer.Start(ctx, "quote.generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("quote.id", id),
		attribute.String("project.type", in.ProjectType),
		attribute.String("project.complexity", in.Complexity),
		attribute.String("project.timeline", in.Timeline),
	)

	q, err := g.fromModel(ctx, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "model quote unavailable")
		g.logger.Warn(ctx, "model quote unavailable, using fallback pricing", zap.Error(err))
		q = pricing.Fallback(in, g.constants)
	}
	q.ID = id

	span.SetAttributes(
		attribute.String("quote.source", string(q.Source)),
		attribute.Bool("quote.reconciled", q.Reconciled),
		attribute.Int("quote.price", q.Price),
	)
	g.metrics.record(q)
	g.logger.Info(ctx, "quote generated",
		zap.String("source", string(q.Source)),
		zap.Int("price", q.Price),
		zap.Bool("reconciled", q.Reconciled),
		zap.Int("integrations", len(q.RequiredIntegrations)))
	return q, nil
}

func (g *Generator) fromModel(ctx context.Context, in intake.Intake) (pricing.Quote, error) {
	if g.model == nil {
		return pricing.Quote{}, llm.ErrNotConfigured
	}

	scrubbed := in
	scrubbed.Description = g.scrub(ctx, "description", in.Description)
	scrubbed.Integrations = g.scrub(ctx, "integrations", in.Integrations)
	scrubbed.OtherFeatures = g.scrub(ctx, "otherFeatures", in.OtherFeatures)

	raw, err := g.model.Complete(ctx, systemPrompt(g.constants), userPrompt(scrubbed))
	if err != nil {
		return pricing.Quote{}, err
	}
	m, err := ParseModelQuote(raw)
	if err != nil {
		return pricing.Quote{}, err
	}

	q := pricing.Reconcile(m, in, g.constants)
	if q.Reconciled {
		g.logger.Debug(ctx, "model price overridden",
			zap.Float64("model_price", m.Price),
			zap.Int("calculated_price", q.Price))
	}
	return q, nil
}

func (g *Generator) scrub(ctx context.Context, field, s string) string {
	if s == "" {
		return s
	}
	res := g.scrubber.Scrub(s)
	if res.HasFindings() {
		g.logger.Warn(ctx, "secrets removed from intake",
			zap.String("field", field),
			zap.Strings("rules", res.RuleIDs()))
	}
	return res.Scrubbed
}

// ParseModelQuote decodes the model's JSON. Multipliers must be positive and
// finite; anything else is rejected so the caller falls back.
func ParseModelQuote(raw string) (pricing.ModelQuote, error) {
	var m pricing.ModelQuote
	if err := llm.DecodeJSON(raw, &m); err != nil {
		return pricing.ModelQuote{}, err
	}
	for name, v := range map[string]float64{
		"complexityMultiplier": m.Breakdown.ComplexityMultiplier,
		"featuresMultiplier":   m.Breakdown.FeaturesMultiplier,
		"timelineMultiplier":   m.Breakdown.TimelineMultiplier,
	} {
		if v <= 0 || math.IsInf(v, 0) || math.IsNaN(v) {
			return pricing.ModelQuote{}, fmt.Errorf("%w: %s is %v", ErrInvalidModelQuote, name, v)
		}
	}
	if math.IsNaN(m.Price) || math.IsInf(m.Price, 0) {
		return pricing.ModelQuote{}, fmt.Errorf("%w: price is %v", ErrInvalidModelQuote, m.Price)
	}
	return m, nil
}
