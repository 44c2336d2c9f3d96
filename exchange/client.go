package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jrsteele09/go-github-auth/oauthmodel"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultTimeout bounds a single exchange request.
const DefaultTimeout = 30 * time.Second

// maxResponseBytes caps how much of a token endpoint response is read.
const maxResponseBytes = 1 << 20

// ErrExchangeFailed is matched by every ExchangeError.
var ErrExchangeFailed = errors.New("token exchange failed")

// ExchangeError is the single failure outcome of an exchange. Status is zero for network failures.
type ExchangeError struct {
	Status int
	Detail string
}

func (e *ExchangeError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("token exchange failed: %s", e.Detail)
	}
	return fmt.Sprintf("token exchange failed (status %d): %s", e.Status, e.Detail)
}

func (e *ExchangeError) Is(target error) bool {
	return target == ErrExchangeFailed
}

// Exchanger redeems an authorization code at a token endpoint.
type Exchanger interface {
	Exchange(ctx context.Context, endpoint string, req oauthmodel.ExchangeRequest) (*oauthmodel.TokenResponse, error)
}

var _ Exchanger = (*Client)(nil)

// Client posts authorization codes as JSON to either the provider's token endpoint or the relay.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	logger     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client. A nil client keeps the default.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithTimeout sets the request timeout. A client passed with WithHTTPClient is copied, not modified.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		cl.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(cl *Client) {
		cl.logger = l
	}
}

// NewClient creates an exchange client with a 30 second timeout.
func NewClient(opts ...Option) *Client {
	c := &Client{logger: log.Logger}
	for _, opt := range opts {
		opt(c)
	}
	switch {
	case c.httpClient == nil:
		timeout := c.timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		c.httpClient = &http.Client{Timeout: timeout}
	case c.timeout > 0:
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}
	c.logger = c.logger.With().Str("component", "exchange").Logger()
	return c
}

// Exchange posts the code and verifier and returns the token response. No retry is attempted:
// codes and verifiers are single use, so the caller restarts the authorization flow on failure.
func (c *Client) Exchange(ctx context.Context, endpoint string, req oauthmodel.ExchangeRequest) (*oauthmodel.TokenResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &ExchangeError{Detail: fmt.Sprintf("encode request: %v", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &ExchangeError{Detail: fmt.Sprintf("build request: %v", err)}
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("token exchange request failed")
		return nil, &ExchangeError{Detail: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &ExchangeError{Status: resp.StatusCode, Detail: fmt.Sprintf("read response: %v", err)}
	}

	var tokenResp oauthmodel.TokenResponse
	decodeErr := json.Unmarshal(raw, &tokenResp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 || decodeErr != nil || !tokenResp.OK() {
		detail := tokenResp.ErrorDetail()
		if decodeErr != nil || detail == "" {
			detail = fmt.Sprintf("no access token returned (status %d)", resp.StatusCode)
		}
		// Provider error codes are safe to log; the response never echoes the code or verifier.
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("endpoint", endpoint).
			Str("client_id", req.ClientID).
			Str("detail", detail).
			Msg("token exchange rejected")
		return nil, &ExchangeError{Status: resp.StatusCode, Detail: detail}
	}

	return &tokenResp, nil
}
