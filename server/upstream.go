package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jrsteele09/go-github-auth/internal/config"
	apperrors "github.com/jrsteele09/go-github-auth/internal/errors"
	"github.com/jrsteele09/go-github-auth/oauthmodel"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"
)

const (
	breakerName         = "github-token"
	maxUpstreamResponse = 1 << 20
)

var errUpstreamServer = errors.New("upstream server error")

type upstreamResponse struct {
	status      int
	contentType string
	body        []byte
}

// upstream posts exchange requests to GitHub's token endpoint behind a circuit breaker.
// A 5xx counts as a breaker failure but is still returned so it can be forwarded.
type upstream struct {
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*upstreamResponse]
}

func newUpstream(url string, timeout time.Duration, cb config.BreakerSettings, m *metrics) *upstream {
	settings := gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: cb.MaxRequests,
		Interval:    cb.Interval,
		Timeout:     cb.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cb.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cb.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
			m.breakerState(to)
		},
	}
	m.breakerState(gobreaker.StateClosed)

	return &upstream{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker[*upstreamResponse](settings),
	}
}

func (u *upstream) state() gobreaker.State {
	return u.breaker.State()
}

// exchange returns GitHub's response, or an error when GitHub could not be reached
// or the breaker is open.
func (u *upstream) exchange(ctx context.Context, req oauthmodel.ExchangeRequest) (*upstreamResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("[upstream.exchange] encode request: %w", err)
	}

	var serverError *upstreamResponse
	resp, err := u.breaker.Execute(func() (*upstreamResponse, error) {
		resp, err := u.post(ctx, payload)
		if err != nil {
			return nil, err
		}
		if resp.status >= http.StatusInternalServerError {
			serverError = resp
			return nil, fmt.Errorf("%w: status %d", errUpstreamServer, resp.status)
		}
		return resp, nil
	})
	if serverError != nil {
		return serverError, nil
	}
	if err != nil {
		return nil, fmt.Errorf("[upstream.exchange] %w: %w", apperrors.ErrUpstreamUnavailable, err)
	}
	return resp, nil
}

func (u *upstream) post(ctx context.Context, payload []byte) (*upstreamResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := u.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxUpstreamResponse))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	contentType := httpResp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = contentTypeJSON
	}
	return &upstreamResponse{status: httpResp.StatusCode, contentType: contentType, body: body}, nil
}
