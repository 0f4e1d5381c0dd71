package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/solvdai/solvd/internal/intake"
)

var (
	errInvalidArgument = errors.New("invalid argument")
	errNotAvailable    = errors.New("not available")
)

// registerTools registers all MCP tools with the server.
func (s *Server) registerTools() {
	s.registerQuoteTools()
	s.registerTaxTools()
	s.registerSearchTools()
}

// addTool registers a tool with the SDK and the discovery registry. The
// handler returns the text shown to the client next to its structured
// output; calls are measured and failures logged.
func addTool[In, Out any](s *Server, meta *ToolMetadata, h func(context.Context, In) (string, Out, error)) {
	s.tools.Register(meta)
	name := meta.Name
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        name,
		Description: meta.Description,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args In) (*mcp.CallToolResult, Out, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, name)
		text, out, err := h(ctx, args)
		s.metrics.DecrementActive(ctx, name)
		s.metrics.RecordInvocation(ctx, name, time.Since(start), err)

		if err != nil {
			s.logger.Info(ctx, "tool call failed", zap.String("tool", name), zap.Error(err))
			var zero Out
			return nil, zero, err
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: text}},
		}, out, nil
	})
}

// ===== QUOTE TOOLS =====

type quoteEstimateInput struct {
	ProjectType  string `json:"project_type" jsonschema:"Project type: ecommerce, business, productivity, data, automation or other"`
	Description  string `json:"description" jsonschema:"What the software should do"`
	Complexity   string `json:"complexity" jsonschema:"simple, moderate or complex"`
	Timeline     string `json:"timeline,omitempty" jsonschema:"rush, standard or flexible (default standard)"`
	Integrations string `json:"integrations,omitempty" jsonschema:"Comma-separated third-party services, e.g. Stripe, SendGrid"`
	Features     string `json:"features,omitempty" jsonschema:"Comma-separated extra features"`
	State        string `json:"state,omitempty" jsonschema:"Two-letter US state used for sales tax"`
}

type quoteEstimateOutput struct {
	QuoteID      string   `json:"quote_id" jsonschema:"Quote identifier"`
	Price        int      `json:"price" jsonschema:"Price before tax in whole dollars"`
	TaxRate      float64  `json:"tax_rate" jsonschema:"State sales tax rate in percent"`
	Tax          int      `json:"tax" jsonschema:"Sales tax in whole dollars"`
	Total        int      `json:"total" jsonschema:"Price including tax"`
	DeliveryDays int      `json:"delivery_days" jsonschema:"Estimated delivery in days"`
	Features     []string `json:"features" jsonschema:"Features the estimate covers"`
	Integrations []string `json:"integrations" jsonschema:"Integrations the estimate covers"`
	Confidence   int      `json:"confidence" jsonschema:"Confidence from 0 to 100"`
	Source       string   `json:"source" jsonschema:"model or fallback"`
	Reconciled   bool     `json:"reconciled" jsonschema:"True when the model's price was replaced by the calculated one"`
	Reasoning    string   `json:"reasoning,omitempty" jsonschema:"Short explanation of the price"`
}

func (s *Server) registerQuoteTools() {
	addTool(s, &ToolMetadata{
		Name:        "quote_estimate",
		Description: "Estimate the price and delivery time of a custom software project, including state sales tax",
		Category:    CategoryQuote,
		Keywords:    []string{"price", "cost", "estimate", "project", "delivery"},
	}, s.quoteEstimate)
}

func (s *Server) quoteEstimate(ctx context.Context, args quoteEstimateInput) (string, quoteEstimateOutput, error) {
	in := intake.Intake{
		ProjectType:   args.ProjectType,
		Description:   args.Description,
		Complexity:    args.Complexity,
		Timeline:      args.Timeline,
		Integrations:  args.Integrations,
		OtherFeatures: args.Features,
		Contact:       intake.Contact{State: args.State},
	}.Normalize()
	if in.Timeline == "" {
		in.Timeline = intake.TimelineStandard
	}

	res, err := s.quotes.Quote(ctx, in)
	if err != nil {
		return "", quoteEstimateOutput{}, fmt.Errorf("%w: %v", errInvalidArgument, err)
	}

	q, adj := res.Quote, res.Tax
	out := quoteEstimateOutput{
		QuoteID:      q.ID,
		Price:        q.Price,
		TaxRate:      adj.Rate,
		Tax:          adj.Tax,
		Total:        adj.Total,
		DeliveryDays: q.DeliveryDays,
		Features:     append([]string{}, q.DeterminedFeatures...),
		Integrations: append([]string{}, q.RequiredIntegrations...),
		Confidence:   q.Confidence,
		Source:       string(q.Source),
		Reconciled:   q.Reconciled,
		Reasoning:    s.scrubber.Scrub(q.Reasoning).Scrubbed,
	}

	text := fmt.Sprintf("Estimated $%d, delivered in %d days", out.Price, out.DeliveryDays)
	if out.Tax > 0 {
		text += fmt.Sprintf(" ($%d with %s sales tax)", out.Total, adj.State)
	}
	return text, out, nil
}

// ===== TAX TOOLS =====

type stateTaxInput struct {
	State string `json:"state" jsonschema:"Two-letter US state abbreviation"`
	Price int    `json:"price,omitempty" jsonschema:"Optional price in whole dollars to apply the rate to"`
}

type stateTaxOutput struct {
	State string  `json:"state" jsonschema:"Normalized state abbreviation"`
	Rate  float64 `json:"rate" jsonschema:"Sales tax rate in percent, 0 for unknown states"`
	Price int     `json:"price" jsonschema:"Price before tax"`
	Tax   int     `json:"tax" jsonschema:"Sales tax in whole dollars"`
	Total int     `json:"total" jsonschema:"Price including tax"`
}

func (s *Server) registerTaxTools() {
	addTool(s, &ToolMetadata{
		Name:        "state_tax",
		Description: "Look up the sales tax rate for a US state and optionally apply it to a price",
		Category:    CategoryTax,
		Keywords:    []string{"sales tax", "rate", "state"},
	}, s.stateTax)
}

func (s *Server) stateTax(_ context.Context, args stateTaxInput) (string, stateTaxOutput, error) {
	state := strings.ToUpper(strings.TrimSpace(args.State))
	if len(state) != 2 {
		return "", stateTaxOutput{}, fmt.Errorf("%w: state must be a two-letter abbreviation", errInvalidArgument)
	}
	if args.Price < 0 {
		return "", stateTaxOutput{}, fmt.Errorf("%w: price cannot be negative", errInvalidArgument)
	}
	if s.taxes == nil {
		return "", stateTaxOutput{}, fmt.Errorf("tax table %w", errNotAvailable)
	}

	adj := s.taxes.Adjust(args.Price, state)
	out := stateTaxOutput{
		State: adj.State,
		Rate:  adj.Rate,
		Price: adj.Price,
		Tax:   adj.Tax,
		Total: adj.Total,
	}
	text := fmt.Sprintf("%s sales tax is %s%%", out.State, formatRate(out.Rate))
	if args.Price > 0 {
		text += fmt.Sprintf(": $%d + $%d = $%d", out.Price, out.Tax, out.Total)
	}
	return text, out, nil
}

func formatRate(r float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.3f", r), "0"), ".")
}
