package pam

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// attempt outcomes drive the bounded retry loop. Classification replaces the
// status-code checks that would otherwise be scattered through control flow.
type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeRetryable
	outcomeAuthExpired
	outcomeFatal
)

// Requester executes a single vault API request with bounded retries,
// exponential backoff, and inline re-authentication on token expiry.
type Requester struct {
	client     *http.Client
	session    *AuthSession
	maxRetries int
	baseDelay  time.Duration
	logger     zerolog.Logger

	// sleep is replaceable so tests do not wait out real backoff delays.
	sleep func(time.Duration)
}

// NewRequester creates a requester bound to an authenticated session.
func NewRequester(session *AuthSession, timeout time.Duration, maxRetries int, baseDelay time.Duration, logger zerolog.Logger) *Requester {
	return &Requester{
		client:     &http.Client{Timeout: timeout},
		session:    session,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		logger:     logger,
		sleep:      time.Sleep,
	}
}

// Execute issues a GET against url, retrying transient failures up to the
// configured cap. Delays follow baseDelay * 2^(attempt-1). A 401 triggers
// exactly one re-authentication per occurrence before the next attempt; any
// other 4xx aborts immediately. A 2xx with an empty or non-JSON body is a
// response-shape failure, never an empty result.
func (r *Requester) Execute(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		body, out, err := r.attempt(ctx, url)

		switch out {
		case outcomeSuccess:
			r.logger.Debug().Str("endpoint", url).Int("attempt", attempt).Msg("request succeeded")
			return body, nil

		case outcomeFatal:
			r.logger.Error().Str("endpoint", url).Int("attempt", attempt).Err(err).Msg("non-retryable failure")
			return nil, err

		case outcomeAuthExpired:
			r.logger.Warn().Str("endpoint", url).Int("attempt", attempt).Msg("token expired, re-authenticating")
			if refreshErr := r.session.Refresh(ctx); refreshErr != nil {
				return nil, fmt.Errorf("re-authentication after 401: %w", refreshErr)
			}
			lastErr = err
			// Retry immediately with the refreshed token; expiry is not a
			// server fault, so no backoff is charged.
			continue

		case outcomeRetryable:
			lastErr = err
			if attempt < r.maxRetries {
				delay := r.baseDelay * (1 << (attempt - 1))
				r.logger.Warn().
					Str("endpoint", url).
					Int("attempt", attempt).
					Dur("backoff", delay).
					Err(err).
					Msg("transient failure, backing off")
				r.sleep(delay)
			}
		}
	}

	r.logger.Error().Str("endpoint", url).Int("max_retries", r.maxRetries).Err(lastErr).Msg("retries exhausted")
	return nil, fmt.Errorf("request failed after %d attempts: %w", r.maxRetries, lastErr)
}

// attempt performs one HTTP call and classifies the result.
func (r *Requester) attempt(ctx context.Context, url string) ([]byte, outcome, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, outcomeFatal, fmt.Errorf("building request for %s: %w", url, err)
	}
	req.Header.Set("Authorization", r.session.Token())
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		// Timeouts and connection failures are transient.
		return nil, outcomeRetryable, fmt.Errorf("transport error for %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, outcomeRetryable, fmt.Errorf("reading response from %s: %w", url, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		if len(body) == 0 || !json.Valid(body) {
			return nil, outcomeFatal, fmt.Errorf("%w from %s", ErrEmptyResponse, url)
		}
		return body, outcomeSuccess, nil

	case resp.StatusCode == http.StatusUnauthorized:
		return nil, outcomeAuthExpired, &APIError{StatusCode: resp.StatusCode, Endpoint: url, Body: string(body)}

	default:
		apiErr := &APIError{StatusCode: resp.StatusCode, Endpoint: url, Body: string(body)}
		if apiErr.Retryable() {
			return nil, outcomeRetryable, apiErr
		}
		return nil, outcomeFatal, apiErr
	}
}
