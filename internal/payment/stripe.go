package payment

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"

	"github.com/solvdai/solvd/internal/config"
	"github.com/solvdai/solvd/internal/logging"
)

// Stripe creates payment intents through the Stripe API.
type Stripe struct {
	client *stripe.Client
	logger *logging.Logger
}

// StripeOption configures a Stripe provider.
type StripeOption func(*stripeOptions)

type stripeOptions struct {
	backends *stripe.Backends
	logger   *logging.Logger
}

// WithBackends overrides the API backends, typically to point at a test
// server.
func WithBackends(b *stripe.Backends) StripeOption {
	return func(o *stripeOptions) { o.backends = b }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) StripeOption {
	return func(o *stripeOptions) { o.logger = l }
}

// NewStripe creates a Stripe provider from the payment configuration.
func NewStripe(cfg config.PaymentConfig, opts ...StripeOption) (*Stripe, error) {
	if !cfg.StripeSecretKey.IsSet() {
		return nil, ErrNotConfigured
	}
	o := stripeOptions{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	var clientOpts []stripe.ClientOption
	if o.backends != nil {
		clientOpts = append(clientOpts, stripe.WithBackends(o.backends))
	}
	return &Stripe{
		client: stripe.NewClient(cfg.StripeSecretKey.Value(), clientOpts...),
		logger: o.logger,
	}, nil
}

// CreateIntent creates a USD payment intent with automatic payment methods.
func (s *Stripe) CreateIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	if err := req.Validate(); err != nil {
		return Intent{}, err
	}
	cents := Cents(req.Amount)

	params := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(cents),
		Currency: stripe.String(Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: map[string]string{
			"project":       req.Project,
			"customer":      req.Customer,
			"customerEmail": req.Email,
			"quoteId":       req.QuoteID,
		},
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := s.client.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		return Intent{}, fmt.Errorf("create payment intent: %w", err)
	}
	s.logger.Info(ctx, "payment intent created",
		zap.String("payment_intent", pi.ID),
		zap.Int64("amount_cents", cents))
	return Intent{ID: pi.ID, ClientSecret: pi.ClientSecret, AmountCents: cents}, nil
}

var _ Provider = (*Stripe)(nil)
