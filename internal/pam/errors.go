package pam

import (
	"errors"
	"fmt"
)

// ErrAuthFailed marks a logon or re-logon failure. Fatal to the run:
// nothing is attempted without a valid token.
var ErrAuthFailed = errors.New("vault authentication failed")

// ErrPaginationIntegrity marks a duplicated record identifier within one
// fetch sequence. It indicates the offset/limit cursor is unreliable and is
// never papered over by deduplication.
var ErrPaginationIntegrity = errors.New("pagination integrity violation")

// ErrEmptyResponse marks a 2xx response with an empty or non-JSON body.
// Never coerced into an empty result: "no data" must come from a real page.
var ErrEmptyResponse = errors.New("empty or malformed response body")

// APIError is a terminal HTTP-level failure from the vault API.
type APIError struct {
	StatusCode int
	Endpoint   string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vault API %s returned HTTP %d: %s", e.Endpoint, e.StatusCode, snippet(e.Body))
}

// Retryable reports whether the status indicates a transient server or
// throttling condition.
func (e *APIError) Retryable() bool {
	switch e.StatusCode {
	case 500, 502, 503, 504, 408, 429:
		return true
	}
	return false
}

func snippet(body string) string {
	const max = 200
	if len(body) > max {
		return body[:max] + "..."
	}
	return body
}
