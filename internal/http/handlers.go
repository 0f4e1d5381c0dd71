package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/solvdai/solvd/internal/analysis"
	"github.com/solvdai/solvd/internal/handoff"
	"github.com/solvdai/solvd/internal/intake"
	"github.com/solvdai/solvd/internal/mailer"
	"github.com/solvdai/solvd/internal/payment"
	"github.com/solvdai/solvd/internal/pricing"
)

// User-facing messages. Details go to the log, not the client.
const (
	msgAcceptFailed  = "We couldn't process your acceptance right now. Please try again or contact us."
	msgPaymentFailed = "We couldn't start your payment. Please try again or contact us."
	msgBadSession    = "This payment link is invalid or has expired. Please accept the quote again."
	msgBadQuote      = "This quote is no longer valid. Please request a new quote."
)

// StripeSignatureHeader carries the webhook signature.
const StripeSignatureHeader = "Stripe-Signature"

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleQuote prices an intake and fires the operator analysis in the
// background when contact details are present.
func (s *Server) handleQuote(c echo.Context) error {
	gen := s.reg.Quotes()
	if gen == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "quote generator not available")
	}

	var in intake.Intake
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	in = in.Normalize()

	ctx := c.Request().Context()
	res, err := gen.Quote(ctx, in)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	s.dispatchAnalysis(ctx, in, res.Quote)

	resp := QuoteResponse{Quote: res.Quote, Tax: res.Tax}
	if signer := s.reg.Sessions(); signer != nil {
		token, err := signer.IssueQuote(res.Quote, in.Contact.State)
		if err != nil {
			s.logger.Error(ctx, "quote token failed", zap.Error(err))
			return echo.NewHTTPError(http.StatusInternalServerError, "quote could not be issued")
		}
		resp.QuoteToken = token
	}
	if s.config.Operator != "" {
		resp.QuestionsMailto = handoff.QuestionsMailto(s.config.Operator, in.Contact.Name, in, res.Quote)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) dispatchAnalysis(ctx context.Context, in intake.Intake, q pricing.Quote) {
	d := s.reg.Dispatcher()
	if d == nil {
		return
	}
	if err := in.Contact.Validate(); err != nil {
		s.logger.Debug(ctx, "skipping analysis without contact details", zap.Error(err))
		return
	}
	d.Dispatch(ctx, analysis.Request{Intake: in, Quote: q, Contact: in.Contact})
}

// handleAnalysis runs the analysis synchronously. Model and email failures
// are reported in the body; the status is 200 for any valid request.
func (s *Server) handleAnalysis(c echo.Context) error {
	a := s.reg.Analyzer()
	if a == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "analysis not available")
	}

	var req ProjectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := req.contact().Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	report := a.Run(c.Request().Context(), req.analysis())
	return c.JSON(http.StatusOK, report)
}

func (s *Server) handleAccept(c echo.Context) error {
	acceptor := s.reg.Acceptor()
	if acceptor == nil {
		return c.JSON(http.StatusServiceUnavailable, AcceptResponse{Message: msgAcceptFailed})
	}

	var req ProjectRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, AcceptResponse{Message: "invalid request body"})
	}
	if err := req.contact().Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, AcceptResponse{Message: err.Error()})
	}

	ctx := c.Request().Context()
	out, err := acceptor.Accept(ctx, req.handoff())
	if errors.Is(err, handoff.ErrInvalidQuote) || errors.Is(err, handoff.ErrQuoteMismatch) {
		s.logger.Warn(ctx, "quote acceptance rejected", zap.Error(err))
		return c.JSON(http.StatusBadRequest, AcceptResponse{Message: msgBadQuote})
	}
	if err != nil {
		s.logger.Error(ctx, "quote acceptance failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, AcceptResponse{Message: msgAcceptFailed})
	}
	return c.JSON(http.StatusOK, AcceptResponse{
		Success:    true,
		PaymentURL: out.PaymentURL,
		Total:      out.Tax.Total,
		Message:    "Quote accepted successfully",
	})
}

// handleSession returns the verified session for the payment page.
func (s *Server) handleSession(c echo.Context) error {
	signer := s.reg.Sessions()
	if signer == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "payments not available")
	}
	sess, err := signer.Verify(c.Param("token"))
	if err != nil {
		s.logger.Info(c.Request().Context(), "rejected payment session", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, msgBadSession)
	}
	return c.JSON(http.StatusOK, SessionResponse{
		Amount:    sess.Amount().StringFixed(2),
		Project:   sess.Project,
		Customer:  sess.Customer,
		Email:     sess.Email,
		QuoteID:   sess.QuoteID,
		ExpiresAt: sess.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleIntent(c echo.Context) error {
	signer, provider := s.reg.Sessions(), s.reg.Payments()
	if signer == nil || provider == nil {
		return c.JSON(http.StatusServiceUnavailable, IntentResponse{Message: msgPaymentFailed})
	}

	var req IntentRequest
	if err := c.Bind(&req); err != nil || req.Session == "" {
		return c.JSON(http.StatusBadRequest, IntentResponse{Message: payment.ErrMissingFields.Error()})
	}

	ctx := c.Request().Context()
	sess, err := signer.Verify(req.Session)
	if err != nil {
		s.logger.Info(ctx, "rejected payment session", zap.Error(err))
		return c.JSON(http.StatusBadRequest, IntentResponse{Message: msgBadSession})
	}

	intent, err := provider.CreateIntent(ctx, payment.FromSession(sess))
	switch {
	case errors.Is(err, payment.ErrMissingFields):
		return c.JSON(http.StatusBadRequest, IntentResponse{Message: err.Error()})
	case err != nil:
		s.logger.Error(ctx, "payment intent failed", zap.Error(err), zap.String("session_id", sess.ID))
		return c.JSON(http.StatusInternalServerError, IntentResponse{Message: msgPaymentFailed})
	}
	return c.JSON(http.StatusOK, IntentResponse{
		Success:         true,
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
	})
}

// handleWebhook verifies and handles a processor event. Errors after
// verification return 500 so the processor retries.
func (s *Server) handleWebhook(c echo.Context) error {
	hooks := s.reg.Webhooks()
	if hooks == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "payments not available")
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}

	ctx := c.Request().Context()
	out, err := hooks.Handle(ctx, body, c.Request().Header.Get(StripeSignatureHeader))
	switch {
	case errors.Is(err, payment.ErrBadSignature):
		s.logger.Warn(ctx, "webhook rejected", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "webhook signature verification failed")
	case errors.Is(err, payment.ErrNotConfigured):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "payments not available")
	case err != nil:
		s.logger.Error(ctx, "webhook processing failed", zap.Error(err), zap.String("type", out.EventType))
		return echo.NewHTTPError(http.StatusInternalServerError, "error processing webhook")
	}
	return c.JSON(http.StatusOK, WebhookResponse{Received: true})
}

func (s *Server) handleTestEmail(c echo.Context) error {
	if s.config.Operator == "" {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "operator address not configured")
	}

	ctx := c.Request().Context()
	id, err := s.reg.Mailer().Send(ctx, mailer.Message{
		To:      []string{s.config.Operator},
		Subject: "Test Email from Solvd",
		Text: "This is a test email to verify that email delivery is working.\n\n" +
			"Sent at " + time.Now().UTC().Format(time.RFC1123) + "\n",
	})
	switch {
	case errors.Is(err, mailer.ErrDisabled):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case err != nil:
		s.logger.Error(ctx, "test email failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to send test email")
	}
	return c.JSON(http.StatusOK, TestEmailResponse{Message: "Test email sent successfully", EmailID: id})
}

func (s *Server) handleTax(c echo.Context) error {
	state := strings.ToUpper(strings.TrimSpace(c.Param("state")))
	if len(state) != 2 {
		return echo.NewHTTPError(http.StatusBadRequest, "state must be a two-letter abbreviation")
	}
	return c.JSON(http.StatusOK, TaxResponse{
		State: state,
		Rate:  s.reg.Taxes().Rate(state).InexactFloat64(),
	})
}
