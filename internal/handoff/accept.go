package handoff

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/solvdai/solvd/internal/intake"
	"github.com/solvdai/solvd/internal/logging"
	"github.com/solvdai/solvd/internal/mailer"
	"github.com/solvdai/solvd/internal/pricing"
	"github.com/solvdai/solvd/internal/tax"
)

// Request is an accepted quote as submitted by the wizard. QuoteToken is the
// token returned with the quote; price and tax state are taken from it.
type Request struct {
	Intake     intake.Intake  `json:"intake"`
	Quote      pricing.Quote  `json:"quote"`
	Contact    intake.Contact `json:"contact"`
	QuoteToken string         `json:"quoteToken"`
}

func (r Request) contact() intake.Contact {
	if r.Contact.Email != "" || r.Contact.Name != "" {
		return r.Contact
	}
	return r.Intake.Contact
}

// Acceptance is the result of accepting a quote.
type Acceptance struct {
	PaymentURL string         `json:"paymentUrl"`
	Session    Session        `json:"session"`
	Tax        tax.Adjustment `json:"tax"`
	EmailID    string         `json:"emailId,omitempty"`
	EmailError string         `json:"emailError,omitempty"`
}

// Acceptor records an accepted quote and issues its payment session.
type Acceptor struct {
	signer   *Signer
	taxes    *tax.Table
	sender   mailer.Sender
	operator string
	logger   *logging.Logger
	now      func() time.Time
}

// NewAcceptor wires an Acceptor. A nil sender disables the operator email.
func NewAcceptor(signer *Signer, taxes *tax.Table, sender mailer.Sender, operator string, logger *logging.Logger) *Acceptor {
	if sender == nil {
		sender = mailer.Disabled{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if taxes == nil {
		taxes = tax.Default()
	}
	return &Acceptor{
		signer:   signer,
		taxes:    taxes,
		sender:   sender,
		operator: operator,
		logger:   logger,
		now:      time.Now,
	}
}

// Accept computes the taxed total, notifies the operator and returns the
// payment page URL. The charged price is the one in the quote token; a
// request whose quote disagrees with it fails with ErrQuoteMismatch. A failed
// notification does not fail the acceptance.
func (a *Acceptor) Accept(ctx context.Context, req Request) (Acceptance, error) {
	stamp, err := a.signer.VerifyQuote(req.QuoteToken)
	if err != nil {
		return Acceptance{}, err
	}
	contact := req.contact()
	if err := stamp.Check(req.Quote, contact.State); err != nil {
		return Acceptance{}, err
	}
	req.Quote.ID, req.Quote.Price = stamp.QuoteID, stamp.Price
	state := stamp.State
	if state == "" {
		state = contact.State
	}
	ctx = logging.WithQuoteID(ctx, stamp.QuoteID)

	adj := a.taxes.Adjust(stamp.Price, state)
	token, sess, err := a.signer.Issue(Session{
		QuoteID:     req.Quote.ID,
		AmountCents: int64(adj.Total) * 100,
		Project:     req.Intake.Description,
		Customer:    contact.Name,
		Email:       contact.Email,
	})
	if err != nil {
		return Acceptance{}, fmt.Errorf("issue payment session: %w", err)
	}

	out := Acceptance{
		PaymentURL: a.signer.URL(token),
		Session:    sess,
		Tax:        adj,
	}

	msg, err := a.notification(req, contact, adj)
	if err == nil {
		out.EmailID, err = a.sender.Send(ctx, msg)
	}
	if err != nil {
		out.EmailError = err.Error()
		a.logger.Warn(ctx, "acceptance email failed", zap.Error(err))
	}

	a.logger.Info(ctx, "quote accepted",
		zap.Int("total", adj.Total),
		zap.String("state", adj.State),
		zap.String("session_id", sess.ID))
	return out, nil
}

var acceptTemplate = template.Must(template.New("accept").Funcs(template.FuncMap{
	"default": func(s, def string) string {
		if strings.TrimSpace(s) == "" {
			return def
		}
		return s
	},
	"list": func(items []string) string {
		if len(items) == 0 {
			return "  - none specified"
		}
		return "  - " + strings.Join(items, "\n  - ")
	},
}).Parse(`QUOTE ACCEPTED

Customer
  Name:     {{default .Contact.Name "not provided"}}
  Email:    {{default .Contact.Email "not provided"}}
  Company:  {{default .Contact.Company "not provided"}}
  State:    {{default .Contact.State "not provided"}}

Project
  Type:        {{.Intake.ProjectTypeLabel}}
  Description: {{default .Intake.Description "not provided"}}
  Complexity:  {{default .Intake.Complexity "not specified"}}
  Timeline:    {{default .Intake.Timeline "not specified"}}
  Budget:      {{default .Intake.Budget "not specified"}}
  Users:       {{default .Intake.UserCount "not specified"}}

Quote {{.Quote.ID}}
  Base price:        ${{.Quote.Breakdown.BasePrice}}
  Complexity:        x{{.Quote.Breakdown.ComplexityMultiplier}}
  Features:          x{{.Quote.Breakdown.FeaturesMultiplier}}
  Integration cost:  ${{.Quote.Breakdown.IntegrationCost}}
  Rush cost:         ${{.Quote.Breakdown.RushCost}}
  Price:             ${{.Tax.Price}}
  State tax:         ${{.Tax.Tax}} ({{.Tax.Rate}}%)
  TOTAL:             ${{.Tax.Total}}

Delivery
  Estimated days: {{.Quote.DeliveryDays}} business days
  Confidence:     {{.Quote.Confidence}}%

Features
{{list .Quote.DeterminedFeatures}}

Required integrations
{{list .Quote.RequiredIntegrations}}

Accepted at {{.At}}
`))

func (a *Acceptor) notification(req Request, contact intake.Contact, adj tax.Adjustment) (mailer.Message, error) {
	data := struct {
		Intake  intake.Intake
		Quote   pricing.Quote
		Contact intake.Contact
		Tax     tax.Adjustment
		At      string
	}{req.Intake, req.Quote, contact, adj, a.now().UTC().Format(time.RFC1123)}

	var buf bytes.Buffer
	if err := acceptTemplate.Execute(&buf, data); err != nil {
		return mailer.Message{}, fmt.Errorf("rendering acceptance email: %w", err)
	}
	name := contact.Name
	if name == "" {
		name = "Customer"
	}
	return mailer.Message{
		To:      []string{a.operator},
		ReplyTo: contact.Email,
		Subject: fmt.Sprintf("QUOTE ACCEPTED - %s - $%d", name, adj.Total),
		Text:    buf.String(),
	}, nil
}

// QuestionsMailto builds the "questions about my quote" link offered next to
// the accept button.
func QuestionsMailto(to, name string, in intake.Intake, q pricing.Quote) string {
	if name == "" {
		name = "User"
	}
	project := in.Description
	if project == "" {
		project = "Project"
	}
	body := fmt.Sprintf("Hi! I have questions about the quote I received:\n\n"+
		"Project: %s\nQuoted Price: $%d\nEstimated Delivery: %d business days\n\n"+
		"Questions/Comments:\n", project, q.Price, q.DeliveryDays)

	return "mailto:" + to +
		"?subject=" + mailtoEscape("Quote Questions from "+name) +
		"&body=" + mailtoEscape(body)
}

// mailtoEscape percent-encodes s for a mailto header value. Mail clients do
// not decode "+" as a space.
func mailtoEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
