package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/solvdai/solvd/internal/intake"
	"github.com/solvdai/solvd/internal/quote"
)

// Client calls a running solvd server. It satisfies the wizard's Quoter.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the server at baseURL. A nil hc gets a
// client with a timeout long enough for a model-backed quote.
func NewClient(baseURL string, hc *http.Client) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server url %q", baseURL)
	}
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}, nil
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Quote requests a quote for in.
func (c *Client) Quote(ctx context.Context, in intake.Intake) (quote.Result, error) {
	var resp QuoteResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/quotes", in, &resp); err != nil {
		return quote.Result{}, err
	}
	return quote.Result{Quote: resp.Quote, Tax: resp.Tax, QuoteToken: resp.QuoteToken}, nil
}

// Accept accepts a quote returned by Quote and returns the payment link.
func (c *Client) Accept(ctx context.Context, in intake.Intake, res quote.Result) (AcceptResponse, error) {
	var resp AcceptResponse
	req := ProjectRequest{Intake: in, Quote: res.Quote, Contact: in.Contact, QuoteToken: res.QuoteToken}
	err := c.do(ctx, http.MethodPost, "/api/v1/quotes/accept", req, &resp)
	return resp, err
}

// Tax looks up a state's rate.
func (c *Client) Tax(ctx context.Context, state string) (TaxResponse, error) {
	var resp TaxResponse
	err := c.do(ctx, http.MethodGet, "/api/v1/tax/"+url.PathEscape(state), nil, &resp)
	return resp, err
}

// Health checks the server.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var resp HealthResponse
	err := c.do(ctx, http.MethodGet, "/health", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(data)}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorMessage extracts the message of an echo error or a failure body.
func errorMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Message != "" {
		return body.Message
	}
	if s := strings.TrimSpace(string(data)); s != "" {
		return s
	}
	return "no response body"
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}
