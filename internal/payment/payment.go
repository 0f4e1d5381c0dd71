// Package payment takes payment for accepted quotes.
//
// Provider abstracts the processor; Stripe is the only implementation. The
// payment page exchanges a handoff session for a payment intent, and the
// processor reports the outcome through Webhooks.
package payment

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/solvdai/solvd/internal/handoff"
)

// Currency is the only currency quotes are priced in.
const Currency = "usd"

var (
	// ErrMissingFields is returned when an intent request lacks an amount,
	// project or customer.
	ErrMissingFields = errors.New("missing required fields: amount, project, customer")

	// ErrNotConfigured is returned when no processor key is set.
	ErrNotConfigured = errors.New("payment provider not configured")
)

// IntentRequest asks the processor to prepare a payment.
type IntentRequest struct {
	// Amount is in dollars.
	Amount   decimal.Decimal
	Project  string
	Customer string
	Email    string
	QuoteID  string
	// IdempotencyKey makes repeated requests for the same session return the
	// same intent.
	IdempotencyKey string
}

// FromSession builds a request from a verified handoff session.
func FromSession(s handoff.Session) IntentRequest {
	return IntentRequest{
		Amount:         s.Amount(),
		Project:        s.Project,
		Customer:       s.Customer,
		Email:          s.Email,
		QuoteID:        s.QuoteID,
		IdempotencyKey: s.ID,
	}
}

// Validate checks that the required fields are present and the amount is
// positive.
func (r IntentRequest) Validate() error {
	if !r.Amount.IsPositive() || strings.TrimSpace(r.Project) == "" || strings.TrimSpace(r.Customer) == "" {
		return ErrMissingFields
	}
	return nil
}

// Cents converts dollars to cents, rounding half away from zero.
func Cents(dollars decimal.Decimal) int64 {
	return dollars.Shift(2).Round(0).IntPart()
}

// Dollars formats cents as a dollar amount with two decimals.
func Dollars(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// Intent is a prepared payment.
type Intent struct {
	ID           string `json:"paymentIntentId"`
	ClientSecret string `json:"clientSecret"`
	AmountCents  int64  `json:"amountCents"`
}

// Provider creates payment intents.
type Provider interface {
	CreateIntent(ctx context.Context, req IntentRequest) (Intent, error)
}
