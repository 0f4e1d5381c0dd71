// Package handoff hands an accepted quote over to the payment page.
//
// The payment page receives a single signed session token instead of the
// amount and customer details as query parameters, so a visitor cannot edit
// the price in the address bar. Tokens are HS256 JWTs carrying the amount in
// cents, the project summary, the customer and the quote id.
package handoff

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/solvdai/solvd/internal/config"
)

// SessionParam is the query parameter carrying the token.
const SessionParam = "session"

const issuer = "solvd"

// minKeyLen is the shortest accepted HMAC key in bytes.
const minKeyLen = 32

var (
	// ErrInvalidSession is returned for tokens that are malformed, expired or
	// not signed with the session key.
	ErrInvalidSession = errors.New("invalid payment session")

	// ErrNoSessionKey is returned when no signing key is configured.
	ErrNoSessionKey = errors.New("payment session secret not configured")
)

// Session is what the payment page needs to take a payment.
type Session struct {
	ID          string    `json:"id"`
	QuoteID     string    `json:"quoteId"`
	AmountCents int64     `json:"amountCents"`
	Project     string    `json:"project"`
	Customer    string    `json:"customer"`
	Email       string    `json:"email,omitempty"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Amount returns the session amount in dollars.
func (s Session) Amount() decimal.Decimal {
	return decimal.New(s.AmountCents, -2)
}

type claims struct {
	Amount   int64  `json:"amt"`
	Project  string `json:"prj"`
	Customer string `json:"cus"`
	Email    string `json:"eml,omitempty"`
	QuoteID  string `json:"qid"`
	jwt.RegisteredClaims
}

// Signer issues and verifies session tokens.
type Signer struct {
	key     []byte
	ttl     time.Duration
	page    *url.URL
	now     func() time.Time
	newID   func() string
	maxProj int
}

// Option configures a Signer.
type Option func(*Signer)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) { s.now = now }
}

// WithIDFunc overrides the token id generator.
func WithIDFunc(f func() string) Option {
	return func(s *Signer) { s.newID = f }
}

// NewSigner builds a Signer from the payment configuration.
func NewSigner(cfg config.PaymentConfig, opts ...Option) (*Signer, error) {
	if !cfg.SessionSecret.IsSet() {
		return nil, ErrNoSessionKey
	}
	key := []byte(cfg.SessionSecret.Value())
	if len(key) < minKeyLen {
		return nil, fmt.Errorf("payment session secret must be at least %d bytes", minKeyLen)
	}
	page, err := url.Parse(cfg.PaymentPageURL)
	if err != nil || page.Scheme == "" || page.Host == "" {
		return nil, fmt.Errorf("invalid payment page url %q", cfg.PaymentPageURL)
	}
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	s := &Signer{
		key:     key,
		ttl:     ttl,
		page:    page,
		now:     time.Now,
		newID:   uuid.NewString,
		maxProj: 500,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue signs a new session. The project summary is truncated to keep the
// token a reasonable URL length.
func (s *Signer) Issue(sess Session) (string, Session, error) {
	if sess.AmountCents <= 0 {
		return "", Session{}, errors.New("session amount must be positive")
	}
	now := s.now()
	sess.ID = s.newID()
	sess.ExpiresAt = now.Add(s.ttl).Truncate(time.Second)
	sess.Project = truncate(sess.Project, s.maxProj)

	c := claims{
		Amount:   sess.AmountCents,
		Project:  sess.Project,
		Customer: sess.Customer,
		Email:    sess.Email,
		QuoteID:  sess.QuoteID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sess.ID,
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audiencePayment},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.key)
	if err != nil {
		return "", Session{}, fmt.Errorf("sign session: %w", err)
	}
	return token, sess, nil
}

// URL returns the payment page address for token.
func (s *Signer) URL(token string) string {
	u := *s.page
	q := u.Query()
	q.Set(SessionParam, token)
	u.RawQuery = q.Encode()
	return u.String()
}

// Verify checks the signature and expiry of token and returns its session.
func (s *Signer) Verify(token string) (Session, error) {
	var c claims
	if err := s.parse(token, &c, audiencePayment); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if c.Amount <= 0 || c.ID == "" {
		return Session{}, fmt.Errorf("%w: missing amount or id", ErrInvalidSession)
	}
	return Session{
		ID:          c.ID,
		QuoteID:     c.QuoteID,
		AmountCents: c.Amount,
		Project:     c.Project,
		Customer:    c.Customer,
		Email:       c.Email,
		ExpiresAt:   c.ExpiresAt.Time,
	}, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
