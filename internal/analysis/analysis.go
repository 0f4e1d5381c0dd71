// Package analysis produces the operator-facing project analysis that is
// emailed after a quote is generated.
package analysis

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/solvdai/solvd/internal/intake"
	"github.com/solvdai/solvd/internal/llm"
	"github.com/solvdai/solvd/internal/logging"
	"github.com/solvdai/solvd/internal/mailer"
	"github.com/solvdai/solvd/internal/pricing"
	"github.com/solvdai/solvd/internal/secrets"
)

const instrumentationName = "github.com/solvdai/solvd/internal/analysis"

// TimeEstimation splits the work into hours.
type TimeEstimation struct {
	Frontend    float64 `json:"frontend"`
	Backend     float64 `json:"backend"`
	Integration float64 `json:"integration"`
	Testing     float64 `json:"testing"`
	Total       float64 `json:"total"`
}

// BusinessDays converts the total to eight-hour days, rounded down.
func (t TimeEstimation) BusinessDays() int {
	return int(t.Total) / 8
}

// Analysis is the model's assessment of a quoted project.
type Analysis struct {
	Integrations             []string       `json:"integrations"`
	ProjectScope             string         `json:"projectScope"`
	TimeEstimation           TimeEstimation `json:"timeEstimation"`
	Highlights               []string       `json:"highlights"`
	TechnicalRecommendations string         `json:"technicalRecommendations"`
}

// Fallback is used when the model cannot produce an analysis.
func Fallback() Analysis {
	return Analysis{
		Integrations: []string{"Basic API integration", "Database setup"},
		ProjectScope: "Standard development project based on the submitted requirements.",
		TimeEstimation: TimeEstimation{
			Frontend:    20,
			Backend:     30,
			Integration: 10,
			Testing:     15,
			Total:       75,
		},
		Highlights:               []string{"Standard complexity project", "Requires standard integrations"},
		TechnicalRecommendations: "Use a modern web stack with managed hosting and automated tests.",
	}
}

// Request is what a quote analysis needs.
type Request struct {
	Intake  intake.Intake  `json:"intake"`
	Quote   pricing.Quote  `json:"quote"`
	Contact intake.Contact `json:"contact"`
}

// ContactInfo returns Contact, or the intake's contact when Contact is empty.
func (r Request) ContactInfo() intake.Contact {
	if r.Contact.Email != "" || r.Contact.Name != "" {
		return r.Contact
	}
	return r.Intake.Contact
}

// Report is the outcome of a run. Errors are reported in-band; a run never
// fails outright.
type Report struct {
	Analysis      Analysis `json:"analysis"`
	AnalysisError string   `json:"analysisError,omitempty"`
	EmailID       string   `json:"emailId,omitempty"`
	EmailError    string   `json:"emailError,omitempty"`
}

// Analyzer runs the analysis and emails the result to the operator.
type Analyzer struct {
	model    llm.Completer
	sender   mailer.Sender
	operator string
	scrubber secrets.Scrubber
	logger   *logging.Logger
	tracer   trace.Tracer
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithScrubber sets the scrubber applied to prospect free text.
func WithScrubber(s secrets.Scrubber) Option {
	return func(a *Analyzer) { a.scrubber = s }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

// WithTracer sets the tracer.
func WithTracer(t trace.Tracer) Option {
	return func(a *Analyzer) { a.tracer = t }
}

// NewAnalyzer creates an Analyzer. A nil model always uses the fallback
// analysis; a nil sender reports every email as undeliverable.
func NewAnalyzer(model llm.Completer, sender mailer.Sender, operator string, opts ...Option) *Analyzer {
	if sender == nil {
		sender = mailer.Disabled{}
	}
	a := &Analyzer{
		model:    model,
		sender:   sender,
		operator: operator,
		scrubber: secrets.Noop{},
		logger:   logging.NewNop(),
		tracer:   otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run analyzes the quoted project and emails the operator.
func (a *Analyzer) Run(ctx context.Context, req Request) Report {
	if req.Quote.ID != "" {
		ctx = logging.WithQuoteID(ctx, req.Quote.ID)
	}
	ctx, span := a.tracer.Start(ctx, "analysis.run")
	defer span.End()

	req = a.scrubRequest(req)

	var report Report
	analysis, err := a.analyze(ctx, req)
	if err != nil {
		span.RecordError(err)
		a.logger.Warn(ctx, "project analysis unavailable, using fallback", zap.Error(err))
		report.AnalysisError = err.Error()
		analysis = Fallback()
	}
	report.Analysis = analysis

	msg, err := a.compose(req, analysis)
	if err == nil {
		report.EmailID, err = a.sender.Send(ctx, msg)
	}
	if err != nil {
		span.SetStatus(codes.Error, "analysis email failed")
		a.logger.Warn(ctx, "analysis email failed", zap.Error(err))
		report.EmailError = err.Error()
	}

	span.SetAttributes(
		attribute.Bool("analysis.fallback", report.AnalysisError != ""),
		attribute.Bool("analysis.emailed", report.EmailID != ""),
	)
	return report
}

func (a *Analyzer) analyze(ctx context.Context, req Request) (Analysis, error) {
	if a.model == nil {
		return Analysis{}, llm.ErrNotConfigured
	}
	raw, err := a.model.Complete(ctx, systemPrompt, userPrompt(req))
	if err != nil {
		return Analysis{}, err
	}
	var out Analysis
	if err := llm.DecodeJSON(raw, &out); err != nil {
		return Analysis{}, err
	}
	if out.TimeEstimation.Total <= 0 {
		t := &out.TimeEstimation
		t.Total = t.Frontend + t.Backend + t.Integration + t.Testing
	}
	return out, nil
}

func (a *Analyzer) compose(req Request, analysis Analysis) (mailer.Message, error) {
	contact := req.ContactInfo()
	subject, body, err := RenderEmail(req, analysis)
	if err != nil {
		return mailer.Message{}, err
	}
	return mailer.Message{
		To:      []string{a.operator},
		ReplyTo: contact.Email,
		Subject: subject,
		Text:    body,
	}, nil
}

func (a *Analyzer) scrubRequest(req Request) Request {
	scrub := func(s string) string {
		if strings.TrimSpace(s) == "" {
			return s
		}
		return a.scrubber.Scrub(s).Scrubbed
	}
	req.Intake.Description = scrub(req.Intake.Description)
	req.Intake.Integrations = scrub(req.Intake.Integrations)
	req.Intake.OtherFeatures = scrub(req.Intake.OtherFeatures)
	return req
}
