package handoff

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/solvdai/solvd/internal/pricing"
)

// Token audiences keep quote stamps and payment sessions from standing in
// for each other.
const (
	audienceQuote   = "quote"
	audiencePayment = "payment"
)

var (
	// ErrInvalidQuote is returned for quote tokens that are missing,
	// malformed, expired or not signed with the session key.
	ErrInvalidQuote = errors.New("invalid quote token")

	// ErrQuoteMismatch is returned when an accepted quote disagrees with the
	// quote the server priced.
	ErrQuoteMismatch = errors.New("quote does not match the issued quote")
)

// Stamp is the server-priced part of a quote: what acceptance is allowed to
// charge for.
type Stamp struct {
	QuoteID string `json:"quoteId"`
	Price   int    `json:"price"`
	State   string `json:"state,omitempty"`
}

type stampClaims struct {
	Price int    `json:"prc"`
	State string `json:"st,omitempty"`
	jwt.RegisteredClaims
}

// IssueQuote signs the priced quote for later acceptance. state is the
// customer's state at quote time and fixes the tax jurisdiction.
func (s *Signer) IssueQuote(q pricing.Quote, state string) (string, error) {
	if q.Price <= 0 {
		return "", errors.New("quote price must be positive")
	}
	if q.ID == "" {
		return "", errors.New("quote has no id")
	}
	now := s.now()
	c := stampClaims{
		Price: q.Price,
		State: normalizeState(state),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   q.ID,
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audienceQuote},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl).Truncate(time.Second)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign quote: %w", err)
	}
	return token, nil
}

// VerifyQuote checks a token from IssueQuote and returns its stamp.
func (s *Signer) VerifyQuote(token string) (Stamp, error) {
	if token == "" {
		return Stamp{}, fmt.Errorf("%w: missing", ErrInvalidQuote)
	}
	var c stampClaims
	if err := s.parse(token, &c, audienceQuote); err != nil {
		return Stamp{}, fmt.Errorf("%w: %v", ErrInvalidQuote, err)
	}
	if c.Price <= 0 || c.Subject == "" {
		return Stamp{}, fmt.Errorf("%w: missing price or quote id", ErrInvalidQuote)
	}
	return Stamp{QuoteID: c.Subject, Price: c.Price, State: c.State}, nil
}

// Check reports whether q and state are consistent with the stamp. Empty
// values are taken from the stamp.
func (st Stamp) Check(q pricing.Quote, state string) error {
	if q.ID != "" && q.ID != st.QuoteID {
		return fmt.Errorf("%w: quote id %q", ErrQuoteMismatch, q.ID)
	}
	if q.Price != 0 && q.Price != st.Price {
		return fmt.Errorf("%w: price $%d", ErrQuoteMismatch, q.Price)
	}
	if state = normalizeState(state); state != "" && st.State != "" && state != st.State {
		return fmt.Errorf("%w: state %s", ErrQuoteMismatch, state)
	}
	return nil
}

func (s *Signer) parse(token string, c jwt.Claims, audience string) error {
	_, err := jwt.ParseWithClaims(token, c, func(*jwt.Token) (interface{}, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	return err
}

func normalizeState(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
