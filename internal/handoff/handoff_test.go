package handoff

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/solvdai/solvd/internal/config"
	"github.com/solvdai/solvd/internal/intake"
	"github.com/solvdai/solvd/internal/logging"
	"github.com/solvdai/solvd/internal/mailer"
	"github.com/solvdai/solvd/internal/pricing"
	"github.com/solvdai/solvd/internal/tax"
)

const testKey = "0123456789abcdef0123456789abcdef"

var fixedNow = time.Date(2026, 3, 2, 15, 4, 5, 0, time.UTC)

func testConfig() config.PaymentConfig {
	return config.PaymentConfig{
		SessionSecret:  config.Secret(testKey),
		PaymentPageURL: "https://www.solvdaisolutions.com/payment",
		SessionTTL:     time.Hour,
	}
}

func newTestSigner(t *testing.T, now *time.Time) *Signer {
	t.Helper()
	s, err := NewSigner(testConfig(),
		WithClock(func() time.Time { return *now }),
		WithIDFunc(func() string { return "jti-1" }))
	require.NoError(t, err)
	return s
}

func TestNewSigner_Validation(t *testing.T) {
	tests := map[string]func(*config.PaymentConfig){
		"no secret":    func(c *config.PaymentConfig) { c.SessionSecret = "" },
		"short secret": func(c *config.PaymentConfig) { c.SessionSecret = "short" },
		"no page":      func(c *config.PaymentConfig) { c.PaymentPageURL = "" },
		"relative":     func(c *config.PaymentConfig) { c.PaymentPageURL = "/payment" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig()
			mutate(&cfg)
			_, err := NewSigner(cfg)
			assert.Error(t, err)
		})
	}

	_, err := NewSigner(config.PaymentConfig{})
	assert.ErrorIs(t, err, ErrNoSessionKey)
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	now := fixedNow
	s := newTestSigner(t, &now)

	token, issued, err := s.Issue(Session{
		QuoteID:     "q-1",
		AmountCents: 32200,
		Project:     "Inventory tracker",
		Customer:    "Jane Doe",
		Email:       "jane@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "jti-1", issued.ID)
	assert.Equal(t, fixedNow.Add(time.Hour), issued.ExpiresAt)

	got, err := s.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, issued.ID, got.ID)
	assert.Equal(t, "q-1", got.QuoteID)
	assert.Equal(t, int64(32200), got.AmountCents)
	assert.Equal(t, "322", got.Amount().String())
	assert.Equal(t, "Inventory tracker", got.Project)
	assert.Equal(t, "Jane Doe", got.Customer)
	assert.Equal(t, "jane@example.com", got.Email)
	assert.True(t, issued.ExpiresAt.Equal(got.ExpiresAt))
}

func TestIssue_RejectsNonPositiveAmount(t *testing.T) {
	now := fixedNow
	s := newTestSigner(t, &now)
	_, _, err := s.Issue(Session{AmountCents: 0, Project: "x", Customer: "y"})
	assert.Error(t, err)
}

func TestIssue_TruncatesProject(t *testing.T) {
	now := fixedNow
	s := newTestSigner(t, &now)
	token, sess, err := s.Issue(Session{AmountCents: 100, Project: strings.Repeat("é", 800)})
	require.NoError(t, err)
	assert.Len(t, []rune(sess.Project), 500)

	got, err := s.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, sess.Project, got.Project)
}

func TestVerify_Expired(t *testing.T) {
	now := fixedNow
	s := newTestSigner(t, &now)
	token, _, err := s.Issue(Session{AmountCents: 100, Project: "p", Customer: "c"})
	require.NoError(t, err)

	now = fixedNow.Add(2 * time.Hour)
	_, err = s.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestVerify_Tampered(t *testing.T) {
	now := fixedNow
	s := newTestSigner(t, &now)
	token, _, err := s.Issue(Session{AmountCents: 32200, Project: "p", Customer: "c"})
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	// Re-sign the same claims with a different key and a lower amount.
	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Amount:   100,
		Project:  "p",
		Customer: "c",
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "jti-1",
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(fixedNow.Add(time.Hour)),
		},
	})
	forgedToken, err := forged.SignedString([]byte("another-key-another-key-another-"))
	require.NoError(t, err)

	tests := map[string]string{
		"garbage":        "not-a-token",
		"empty":          "",
		"wrong key":      forgedToken,
		"bad signature":  parts[0] + "." + parts[1] + ".AAAA",
		"swapped claims": parts[0] + "." + strings.Split(forgedToken, ".")[1] + "." + parts[2],
	}
	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := s.Verify(tok)
			assert.ErrorIs(t, err, ErrInvalidSession)
		})
	}
}

func TestVerify_RejectsNoneAlgorithm(t *testing.T) {
	now := fixedNow
	s := newTestSigner(t, &now)

	tok := jwt.NewWithClaims(jwt.SigningMethodNone, claims{
		Amount: 100,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "x",
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(fixedNow.Add(time.Hour)),
		},
	})
	signed, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = s.Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestSigner_URL(t *testing.T) {
	now := fixedNow
	s := newTestSigner(t, &now)

	raw := s.URL("a.b.c")
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "www.solvdaisolutions.com", u.Host)
	assert.Equal(t, "/payment", u.Path)
	assert.Equal(t, "a.b.c", u.Query().Get(SessionParam))
	assert.Empty(t, u.Query().Get("amount"))
}

func acceptRequest() Request {
	return Request{
		Intake: intake.Intake{
			ProjectType: intake.TypeProductivity,
			Description: "Inventory tracker",
			Complexity:  intake.ComplexityModerate,
			Timeline:    intake.TimelineStandard,
		},
		Quote: pricing.Quote{
			ID:    "q-1",
			Price: 300,
			Breakdown: pricing.Breakdown{
				BasePrice: 200, ComplexityMultiplier: 1.3, FeaturesMultiplier: 1, TimelineMultiplier: 1,
				IntegrationCost: 40,
			},
			DeliveryDays: 4,
			Confidence:   85,
		},
		Contact: intake.Contact{Name: "Jane Doe", Email: "jane@example.com", State: "CA"},
	}
}

// signed returns req with a quote token for its current quote and state.
func signed(t *testing.T, s *Signer, req Request) Request {
	t.Helper()
	token, err := s.IssueQuote(req.Quote, req.contact().State)
	require.NoError(t, err)
	req.QuoteToken = token
	return req
}

func TestAccept_CaliforniaScenario(t *testing.T) {
	now := fixedNow
	sender := &mailer.Recorder{}
	s := newTestSigner(t, &now)
	a := NewAcceptor(s, tax.Default(), sender, "ops@solvd.ai", nil)

	out, err := a.Accept(context.Background(), signed(t, s, acceptRequest()))
	require.NoError(t, err)

	assert.Equal(t, 22, out.Tax.Tax)
	assert.Equal(t, 322, out.Tax.Total)
	assert.Equal(t, int64(32200), out.Session.AmountCents)
	assert.Equal(t, "msg-1", out.EmailID)
	assert.Empty(t, out.EmailError)

	u, err := url.Parse(out.PaymentURL)
	require.NoError(t, err)
	assert.NotContains(t, out.PaymentURL, "amount=")
	sess, err := a.signer.Verify(u.Query().Get(SessionParam))
	require.NoError(t, err)
	assert.Equal(t, int64(32200), sess.AmountCents)
	assert.Equal(t, "Jane Doe", sess.Customer)
	assert.Equal(t, "q-1", sess.QuoteID)

	require.Len(t, sender.Sent(), 1)
	msg := sender.Sent()[0]
	assert.Equal(t, []string{"ops@solvd.ai"}, msg.To)
	assert.Equal(t, "jane@example.com", msg.ReplyTo)
	assert.Equal(t, "QUOTE ACCEPTED - Jane Doe - $322", msg.Subject)
	assert.Contains(t, msg.Text, "State tax:         $22 (7.25%)")
	assert.Contains(t, msg.Text, "TOTAL:             $322")
	assert.Contains(t, msg.Text, "Productivity Tool")
}

func TestAccept_EmailFailureIsSoft(t *testing.T) {
	now := fixedNow
	logger := logging.NewTestLogger()
	s := newTestSigner(t, &now)
	a := NewAcceptor(s, nil, &mailer.Recorder{Err: errors.New("smtp down")}, "ops@solvd.ai", logger.Logger)

	out, err := a.Accept(context.Background(), signed(t, s, acceptRequest()))
	require.NoError(t, err)
	assert.NotEmpty(t, out.PaymentURL)
	assert.Equal(t, "smtp down", out.EmailError)
	logger.AssertLogged(t, zapcore.WarnLevel, "acceptance email failed")
}

func TestAccept_UnknownStateHasNoTax(t *testing.T) {
	now := fixedNow
	s := newTestSigner(t, &now)
	a := NewAcceptor(s, nil, nil, "ops@solvd.ai", nil)

	req := acceptRequest()
	req.Contact.State = ""
	out, err := a.Accept(context.Background(), signed(t, s, req))
	require.NoError(t, err)
	assert.Equal(t, 300, out.Tax.Total)
	assert.Equal(t, int64(30000), out.Session.AmountCents)
}

func TestAccept_UsesIntakeContact(t *testing.T) {
	now := fixedNow
	sender := &mailer.Recorder{}
	s := newTestSigner(t, &now)
	a := NewAcceptor(s, nil, sender, "ops@solvd.ai", nil)

	req := acceptRequest()
	req.Intake.Contact = req.Contact
	req.Contact = intake.Contact{}
	out, err := a.Accept(context.Background(), signed(t, s, req))
	require.NoError(t, err)
	assert.Equal(t, 322, out.Tax.Total)
	assert.Equal(t, "Jane Doe", out.Session.Customer)
}

func TestAccept_PriceComesFromQuoteToken(t *testing.T) {
	now := fixedNow
	s := newTestSigner(t, &now)
	a := NewAcceptor(s, nil, &mailer.Recorder{}, "ops@solvd.ai", nil)

	req := signed(t, s, acceptRequest())
	req.Quote.Price = 0
	req.Quote.ID = ""
	out, err := a.Accept(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 322, out.Tax.Total)
	assert.Equal(t, "q-1", out.Session.QuoteID)
}

func TestAccept_RejectsTamperedQuote(t *testing.T) {
	now := fixedNow
	s := newTestSigner(t, &now)
	sender := &mailer.Recorder{}
	a := NewAcceptor(s, nil, sender, "ops@solvd.ai", nil)

	other, err := s.IssueQuote(pricing.Quote{ID: "q-2", Price: 1}, "CA")
	require.NoError(t, err)
	session, _, err := s.Issue(Session{QuoteID: "q-1", AmountCents: 100})
	require.NoError(t, err)

	tests := map[string]struct {
		mutate func(*Request)
		want   error
	}{
		"lower price":      {func(r *Request) { r.Quote.Price = 1 }, ErrQuoteMismatch},
		"other quote id":   {func(r *Request) { r.Quote.ID = "q-real-300" }, ErrQuoteMismatch},
		"untaxed state":    {func(r *Request) { r.Contact.State = "OR" }, ErrQuoteMismatch},
		"token of another": {func(r *Request) { r.QuoteToken = other }, ErrQuoteMismatch},
		"no token":         {func(r *Request) { r.QuoteToken = "" }, ErrInvalidQuote},
		"session token":    {func(r *Request) { r.QuoteToken = session }, ErrInvalidQuote},
		"garbage token":    {func(r *Request) { r.QuoteToken = "a.b.c" }, ErrInvalidQuote},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			req := signed(t, s, acceptRequest())
			tt.mutate(&req)
			_, err := a.Accept(context.Background(), req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, sender.Sent())
}

func TestAccept_ExpiredQuoteToken(t *testing.T) {
	now := fixedNow
	s := newTestSigner(t, &now)
	a := NewAcceptor(s, nil, nil, "ops@solvd.ai", nil)

	req := signed(t, s, acceptRequest())
	now = now.Add(2 * time.Hour)
	_, err := a.Accept(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidQuote)
}

func TestIssueQuote(t *testing.T) {
	now := fixedNow
	s := newTestSigner(t, &now)

	_, err := s.IssueQuote(pricing.Quote{ID: "q-1"}, "CA")
	assert.Error(t, err)
	_, err = s.IssueQuote(pricing.Quote{Price: 300}, "CA")
	assert.Error(t, err)

	token, err := s.IssueQuote(pricing.Quote{ID: "q-1", Price: 300}, " ca ")
	require.NoError(t, err)
	stamp, err := s.VerifyQuote(token)
	require.NoError(t, err)
	assert.Equal(t, Stamp{QuoteID: "q-1", Price: 300, State: "CA"}, stamp)

	_, err = s.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestQuestionsMailto(t *testing.T) {
	link := QuestionsMailto("ops@solvd.ai", "Jane & Co", acceptRequest().Intake, acceptRequest().Quote)

	require.True(t, strings.HasPrefix(link, "mailto:ops@solvd.ai?"))
	u, err := url.Parse(link)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "Quote Questions from Jane & Co", q.Get("subject"))
	assert.Contains(t, q.Get("body"), "Project: Inventory tracker\nQuoted Price: $300\nEstimated Delivery: 4 business days")
	assert.NotContains(t, link, "+")
}

func TestQuestionsMailto_Defaults(t *testing.T) {
	link := QuestionsMailto("ops@solvd.ai", "", intake.Intake{}, pricing.Quote{})
	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "Quote Questions from User", u.Query().Get("subject"))
	assert.Contains(t, u.Query().Get("body"), "Project: Project")
}
