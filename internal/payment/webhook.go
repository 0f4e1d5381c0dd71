package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"text/template"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"

	"github.com/solvdai/solvd/internal/config"
	"github.com/solvdai/solvd/internal/logging"
	"github.com/solvdai/solvd/internal/mailer"
)

// ErrBadSignature is returned for webhook payloads that fail verification.
var ErrBadSignature = errors.New("webhook signature verification failed")

// Outcome summarizes a handled webhook event.
type Outcome struct {
	EventType     string `json:"eventType"`
	PaymentIntent string `json:"paymentIntent,omitempty"`
	Handled       bool   `json:"handled"`
}

// Webhooks verifies processor events and sends the resulting emails.
type Webhooks struct {
	secret   config.Secret
	sender   mailer.Sender
	operator string
	support  string
	logger   *logging.Logger
	now      func() time.Time
}

// NewWebhooks creates a webhook handler. support is the address printed in
// customer confirmations.
func NewWebhooks(secret config.Secret, sender mailer.Sender, operator, support string, logger *logging.Logger) *Webhooks {
	if sender == nil {
		sender = mailer.Disabled{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Webhooks{
		secret:   secret,
		sender:   sender,
		operator: operator,
		support:  support,
		logger:   logger,
		now:      time.Now,
	}
}

// Handle verifies payload against the Stripe-Signature header and acts on it.
// A failed email is returned as an error so the processor retries delivery.
func (w *Webhooks) Handle(ctx context.Context, payload []byte, signature string) (Outcome, error) {
	if !w.secret.IsSet() {
		return Outcome{}, ErrNotConfigured
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, w.secret.Value(),
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	out := Outcome{EventType: string(event.Type)}
	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		pi, err := decodeIntent(event)
		if err != nil {
			return out, err
		}
		out.PaymentIntent, out.Handled = pi.ID, true
		return out, w.succeeded(ctx, pi)
	case stripe.EventTypePaymentIntentPaymentFailed:
		pi, err := decodeIntent(event)
		if err != nil {
			return out, err
		}
		out.PaymentIntent, out.Handled = pi.ID, true
		return out, w.failed(ctx, pi)
	default:
		w.logger.Info(ctx, "ignoring webhook event", zap.String("type", out.EventType))
		return out, nil
	}
}

func decodeIntent(e stripe.Event) (*stripe.PaymentIntent, error) {
	if e.Data == nil {
		return nil, errors.New("webhook event has no data")
	}
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(e.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("decode payment intent: %w", err)
	}
	return &pi, nil
}

type intentView struct {
	ID       string
	Amount   string
	Project  string
	Customer string
	Email    string
	Reason   string
	Support  string
	At       string
}

func (w *Webhooks) view(pi *stripe.PaymentIntent) intentView {
	v := intentView{
		ID:      pi.ID,
		Amount:  Dollars(pi.Amount),
		Support: w.support,
		At:      w.now().UTC().Format(time.RFC1123),
	}
	if pi.Metadata != nil {
		v.Project = pi.Metadata["project"]
		v.Customer = pi.Metadata["customer"]
		v.Email = pi.Metadata["customerEmail"]
	}
	if pi.LastPaymentError != nil {
		v.Reason = pi.LastPaymentError.Msg
	}
	return v
}

var emailTemplates = template.Must(template.New("payment").Funcs(template.FuncMap{
	"default": func(s, def string) string {
		if s == "" {
			return def
		}
		return s
	},
}).Parse(`
{{define "customer"}}Payment confirmed

Thank you for your payment of ${{.Amount}} for your AI project.

Project:      {{.Project}}
Customer:     {{.Customer}}
Payment ID:   {{.ID}}
Payment date: {{.At}}

What's next
  1. We'll review your project requirements within 24 hours.
  2. You'll receive a project kickoff email with next steps.
  3. Our team will begin development according to your timeline.

Questions? Reply to this email or write to {{.Support}}.
{{end}}
{{define "operator"}}PAYMENT RECEIVED

Amount:         ${{.Amount}}
Customer:       {{.Customer}}
Project:        {{.Project}}
Payment ID:     {{.ID}}
Customer email: {{default .Email "not provided"}}

Next steps
  1. Review project requirements.
  2. Send kickoff email to customer.
  3. Begin project development.

Received at {{.At}}
{{end}}
{{define "failed"}}PAYMENT FAILED

Amount:         ${{.Amount}}
Customer:       {{.Customer}}
Project:        {{.Project}}
Payment ID:     {{.ID}}
Customer email: {{default .Email "not provided"}}
Failure reason: {{default .Reason "unknown"}}

Contact the customer to resolve the payment issue.

Failed at {{.At}}
{{end}}`))

func render(name string, v intentView) (string, error) {
	var buf bytes.Buffer
	if err := emailTemplates.ExecuteTemplate(&buf, name, v); err != nil {
		return "", fmt.Errorf("rendering %s email: %w", name, err)
	}
	return buf.String(), nil
}

func (w *Webhooks) succeeded(ctx context.Context, pi *stripe.PaymentIntent) error {
	v := w.view(pi)
	var errs []error

	if v.Email != "" {
		if err := w.send(ctx, "customer", v, mailer.Message{
			To:      []string{v.Email},
			ReplyTo: w.support,
			Subject: "Payment Confirmed - " + v.Project,
		}); err != nil {
			errs = append(errs, err)
		}
	}
	if err := w.send(ctx, "operator", v, mailer.Message{
		To:      []string{w.operator},
		ReplyTo: v.Email,
		Subject: fmt.Sprintf("PAYMENT RECEIVED - %s - $%s", v.Customer, v.Amount),
	}); err != nil {
		errs = append(errs, err)
	}

	w.logger.Info(ctx, "payment succeeded",
		zap.String("payment_intent", v.ID),
		zap.String("amount", v.Amount))
	return errors.Join(errs...)
}

func (w *Webhooks) failed(ctx context.Context, pi *stripe.PaymentIntent) error {
	v := w.view(pi)
	w.logger.Warn(ctx, "payment failed",
		zap.String("payment_intent", v.ID),
		zap.String("reason", v.Reason))
	return w.send(ctx, "failed", v, mailer.Message{
		To:      []string{w.operator},
		ReplyTo: v.Email,
		Subject: fmt.Sprintf("PAYMENT FAILED - %s - $%s", v.Customer, v.Amount),
	})
}

func (w *Webhooks) send(ctx context.Context, tmpl string, v intentView, msg mailer.Message) error {
	body, err := render(tmpl, v)
	if err != nil {
		return err
	}
	msg.Text = body
	if _, err := w.sender.Send(ctx, msg); err != nil {
		w.logger.Error(ctx, "payment email failed", zap.String("email", tmpl), zap.Error(err))
		return fmt.Errorf("send %s email: %w", tmpl, err)
	}
	return nil
}
