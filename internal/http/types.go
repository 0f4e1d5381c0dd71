package http

import (
	"github.com/solvdai/solvd/internal/analysis"
	"github.com/solvdai/solvd/internal/handoff"
	"github.com/solvdai/solvd/internal/intake"
	"github.com/solvdai/solvd/internal/pricing"
	"github.com/solvdai/solvd/internal/tax"
)

// QuoteRequest is the body of POST /api/v1/quotes.
type QuoteRequest = intake.Intake

// QuoteResponse is the response of POST /api/v1/quotes.
type QuoteResponse struct {
	Quote pricing.Quote  `json:"quote"`
	Tax   tax.Adjustment `json:"tax"`
	// QuoteToken must be sent back to accept the quote. Empty when the
	// server does not take payments.
	QuoteToken string `json:"quoteToken,omitempty"`
	// QuestionsMailto is a prefilled "questions about my quote" link.
	QuestionsMailto string `json:"questionsMailto,omitempty"`
}

// ProjectRequest is the body of the analysis and accept endpoints.
type ProjectRequest struct {
	Intake     intake.Intake  `json:"intake"`
	Quote      pricing.Quote  `json:"quote"`
	Contact    intake.Contact `json:"contact"`
	QuoteToken string         `json:"quoteToken,omitempty"`
}

func (r ProjectRequest) contact() intake.Contact {
	if r.Contact.Email != "" || r.Contact.Name != "" {
		return r.Contact
	}
	return r.Intake.Contact
}

func (r ProjectRequest) analysis() analysis.Request {
	return analysis.Request{Intake: r.Intake, Quote: r.Quote, Contact: r.contact()}
}

func (r ProjectRequest) handoff() handoff.Request {
	return handoff.Request{Intake: r.Intake, Quote: r.Quote, Contact: r.contact(), QuoteToken: r.QuoteToken}
}

// AnalysisResponse is the response of POST /api/v1/quotes/analysis. It is
// always returned with 200; failures are reported in the error fields.
type AnalysisResponse = analysis.Report

// AcceptResponse is the response of POST /api/v1/quotes/accept.
type AcceptResponse struct {
	Success    bool   `json:"success"`
	PaymentURL string `json:"paymentUrl,omitempty"`
	Message    string `json:"message,omitempty"`
	Total      int    `json:"total,omitempty"`
}

// SessionResponse is the response of GET /api/v1/handoff/:token.
type SessionResponse struct {
	Amount    string `json:"amount"`
	Project   string `json:"project"`
	Customer  string `json:"customer"`
	Email     string `json:"email,omitempty"`
	QuoteID   string `json:"quoteId,omitempty"`
	ExpiresAt string `json:"expiresAt"`
}

// IntentRequest is the body of POST /api/v1/payments/intent.
type IntentRequest struct {
	Session string `json:"session"`
}

// IntentResponse is the response of POST /api/v1/payments/intent.
type IntentResponse struct {
	Success         bool   `json:"success"`
	ClientSecret    string `json:"clientSecret,omitempty"`
	PaymentIntentID string `json:"paymentIntentId,omitempty"`
	Message         string `json:"message,omitempty"`
}

// WebhookResponse acknowledges a processor event.
type WebhookResponse struct {
	Received bool `json:"received"`
}

// TestEmailResponse is the response of POST /api/v1/email/test.
type TestEmailResponse struct {
	Message string `json:"message"`
	EmailID string `json:"emailId"`
}

// TaxResponse is the response of GET /api/v1/tax/:state.
type TaxResponse struct {
	State string  `json:"state"`
	Rate  float64 `json:"rate"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}
