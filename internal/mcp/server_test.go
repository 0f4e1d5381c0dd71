package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/solvdai/solvd/internal/logging"
	"github.com/solvdai/solvd/internal/pricing"
	"github.com/solvdai/solvd/internal/quote"
	"github.com/solvdai/solvd/internal/secrets"
	"github.com/solvdai/solvd/internal/tax"
)

// markScrubber tags everything it scrubs so tests can tell it ran.
type markScrubber struct{}

func (markScrubber) Scrub(content string) secrets.Result {
	return secrets.Result{Scrubbed: "[scrubbed] " + content}
}

func (markScrubber) Enabled() bool { return true }

type harness struct {
	server  *Server
	session *mcp.ClientSession
	logger  *logging.TestLogger
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	gen := quote.NewGenerator(nil, pricing.DefaultConstants(),
		quote.WithIDFunc(func() string { return "q-1" }))
	logger := logging.NewTestLogger()
	m, _ := newTestMetrics(t)

	s, err := NewServer(&Config{
		Logger:   logger.Logger,
		Scrubber: markScrubber{},
		Metrics:  m,
	}, gen, nil)
	require.NoError(t, err)

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	ss, err := s.Connect(ctx, serverTransport)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })

	return &harness{server: s, session: cs, logger: logger}
}

// call invokes a tool and decodes its structured output into out.
func (h *harness) call(t *testing.T, name string, args map[string]any, out any) *mcp.CallToolResult {
	t.Helper()
	res, err := h.session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	if out != nil && !res.IsError {
		raw, err := json.Marshal(res.StructuredContent)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, out))
	}
	return res
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "content is %T", res.Content[0])
	return tc.Text
}

func TestNewServer_RequiresGenerator(t *testing.T) {
	_, err := NewServer(nil, nil, nil)
	assert.Error(t, err)
}

func TestNewServer_Defaults(t *testing.T) {
	gen := quote.NewGenerator(nil, pricing.DefaultConstants())
	s, err := NewServer(nil, gen, nil)
	require.NoError(t, err)

	assert.Same(t, gen.Taxes(), s.taxes)
	assert.Equal(t, 4, s.Tools().Count())
	for _, name := range []string{"quote_estimate", "state_tax", "tool_search", "tool_list"} {
		_, ok := s.Tools().Get(name)
		assert.True(t, ok, name)
	}
}

func TestServer_ListTools(t *testing.T) {
	h := newHarness(t)

	res, err := h.session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description)
		assert.NotNil(t, tool.InputSchema)
	}
	assert.ElementsMatch(t, []string{"quote_estimate", "state_tax", "tool_search", "tool_list"}, names)
}

func TestQuoteEstimate_Fallback(t *testing.T) {
	h := newHarness(t)

	var out quoteEstimateOutput
	res := h.call(t, "quote_estimate", map[string]any{
		"project_type": "ecommerce",
		"description":  "Online store for handmade goods",
		"complexity":   "simple",
		"integrations": "Stripe, SendGrid",
		"state":        "ca",
	}, &out)
	require.False(t, res.IsError, text(t, res))

	assert.Equal(t, "q-1", out.QuoteID)
	assert.Equal(t, 410, out.Price)
	assert.Equal(t, 7.25, out.TaxRate)
	assert.Equal(t, 30, out.Tax)
	assert.Equal(t, 440, out.Total)
	assert.Equal(t, 2, out.DeliveryDays)
	assert.Equal(t, "fallback", out.Source)
	assert.Equal(t, pricing.FallbackConfidence, out.Confidence)
	assert.Equal(t, []string{"Payment Processing", "Inventory Management", "Email Marketing"}, out.Integrations)
	assert.True(t, strings.HasPrefix(out.Reasoning, "[scrubbed] "), out.Reasoning)

	assert.Equal(t, "Estimated $410, delivered in 2 days ($440 with CA sales tax)", text(t, res))
}

func TestQuoteEstimate_NoStateNoTax(t *testing.T) {
	h := newHarness(t)

	var out quoteEstimateOutput
	res := h.call(t, "quote_estimate", map[string]any{
		"project_type": "other",
		"description":  "Something bespoke",
		"complexity":   "simple",
		"timeline":     "flexible",
	}, &out)
	require.False(t, res.IsError, text(t, res))

	// 200 * 1.0 * 1.1 * 0.85, no integrations
	assert.Equal(t, 187, out.Price)
	assert.Equal(t, 0, out.Tax)
	assert.Equal(t, out.Price, out.Total)
	assert.Equal(t, "Estimated $187, delivered in 2 days", text(t, res))
}

func TestQuoteEstimate_InvalidIntake(t *testing.T) {
	h := newHarness(t)

	res := h.call(t, "quote_estimate", map[string]any{
		"project_type": "spaceship",
		"description":  "",
		"complexity":   "simple",
	}, nil)
	assert.True(t, res.IsError)
	h.logger.AssertLogged(t, zapcore.InfoLevel, "tool call failed")
}

func TestStateTax(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name     string
		args     map[string]any
		want     stateTaxOutput
		wantText string
	}{
		{
			name:     "rate only",
			args:     map[string]any{"state": "ca"},
			want:     stateTaxOutput{State: "CA", Rate: 7.25},
			wantText: "CA sales tax is 7.25%",
		},
		{
			name:     "applied to price",
			args:     map[string]any{"state": " ca ", "price": 300},
			want:     stateTaxOutput{State: "CA", Rate: 7.25, Price: 300, Tax: 22, Total: 322},
			wantText: "CA sales tax is 7.25%: $300 + $22 = $322",
		},
		{
			name:     "unknown state",
			args:     map[string]any{"state": "ZZ", "price": 300},
			want:     stateTaxOutput{State: "ZZ", Price: 300, Total: 300},
			wantText: "ZZ sales tax is 0%: $300 + $0 = $300",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out stateTaxOutput
			res := h.call(t, "state_tax", tt.args, &out)
			require.False(t, res.IsError, text(t, res))
			assert.Equal(t, tt.want, out)
			assert.Equal(t, tt.wantText, text(t, res))
		})
	}
}

func TestStateTax_Invalid(t *testing.T) {
	h := newHarness(t)

	for name, args := range map[string]map[string]any{
		"blank state":    {"state": " "},
		"long state":     {"state": "California"},
		"negative price": {"state": "CA", "price": -5},
	} {
		t.Run(name, func(t *testing.T) {
			res := h.call(t, "state_tax", args, nil)
			assert.True(t, res.IsError)
		})
	}
}

func TestToolSearch(t *testing.T) {
	h := newHarness(t)

	var out toolSearchOutput
	res := h.call(t, "tool_search", map[string]any{"query": "tax"}, &out)
	require.False(t, res.IsError, text(t, res))

	require.NotEmpty(t, out.Results)
	assert.Equal(t, "state_tax", out.Results[0].Name)
	assert.Equal(t, 4, out.TotalTools)
	assert.Contains(t, text(t, res), "state_tax")

	res = h.call(t, "tool_search", map[string]any{"query": "invoice"}, &out)
	assert.Equal(t, 0, out.Count)
	assert.Equal(t, "No tools found matching: invoice", text(t, res))

	res = h.call(t, "tool_search", map[string]any{"query": ""}, nil)
	assert.True(t, res.IsError)
}

func TestToolList(t *testing.T) {
	h := newHarness(t)

	var out toolListOutput
	res := h.call(t, "tool_list", map[string]any{"category": "quote"}, &out)
	require.False(t, res.IsError, text(t, res))
	require.Equal(t, 1, out.Count)
	assert.Equal(t, "quote_estimate", out.Tools[0].Name)
}

func TestStateTax_UsesGivenTable(t *testing.T) {
	table, err := tax.Load("")
	require.NoError(t, err)
	gen := quote.NewGenerator(nil, pricing.DefaultConstants())

	s, err := NewServer(nil, gen, table)
	require.NoError(t, err)
	assert.Same(t, table, s.taxes)
}
