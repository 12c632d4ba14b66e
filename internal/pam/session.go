package pam

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vaultscope/vaultscope/internal/secrets"
)

// AuthSession owns the bearer token for the vault API. The token is the one
// piece of mutable shared state in the pipeline; Refresh replaces it
// atomically under the lock.
type AuthSession struct {
	mu        sync.RWMutex
	token     string
	refreshes int

	baseURL  string
	provider string
	store    secrets.Store
	client   *http.Client
	logger   zerolog.Logger
}

// NewAuthSession creates a session against {baseURL}/API/auth/{provider}/Logon/.
func NewAuthSession(baseURL, provider string, store secrets.Store, timeout time.Duration, logger zerolog.Logger) *AuthSession {
	return &AuthSession{
		baseURL:  strings.TrimRight(baseURL, "/"),
		provider: provider,
		store:    store,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Token returns the current bearer token.
func (s *AuthSession) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// RefreshCount returns how many times the session re-authenticated after the
// initial logon.
func (s *AuthSession) RefreshCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshes
}

// Authenticate performs the initial logon. The stored credential is fetched,
// sent once, and discarded; only the returned token is retained.
func (s *AuthSession) Authenticate(ctx context.Context) error {
	token, err := s.logon(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	s.logger.Info().Str("provider", s.provider).Msg("authenticated to vault")
	return nil
}

// Refresh re-authenticates after a token expiry and atomically replaces the
// token. Refresh failure is fatal to the current fetch and is not retried.
func (s *AuthSession) Refresh(ctx context.Context) error {
	token, err := s.logon(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.token = token
	s.refreshes++
	s.mu.Unlock()

	s.logger.Info().Str("provider", s.provider).Msg("refreshed expired vault token")
	return nil
}

func (s *AuthSession) logon(ctx context.Context) (string, error) {
	cred, err := s.store.LogonCredential(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}

	payload, err := json.Marshal(map[string]string{
		"username": cred.Username,
		"password": cred.Password,
	})
	// Drop the secret material as soon as the request body is built.
	cred = secrets.Credential{}
	if err != nil {
		return "", fmt.Errorf("%w: encoding logon body: %v", ErrAuthFailed, err)
	}

	url := fmt.Sprintf("%s/API/auth/%s/Logon/", s.baseURL, s.provider)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: building logon request: %v", ErrAuthFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading logon response: %v", ErrAuthFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.logger.Error().Int("status", resp.StatusCode).Str("endpoint", url).Msg("logon rejected")
		return "", fmt.Errorf("%w: logon returned HTTP %d", ErrAuthFailed, resp.StatusCode)
	}

	token, err := parseToken(body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	return token, nil
}

// parseToken extracts the bearer token from the logon response. The API
// returns the token as a quoted JSON string.
func parseToken(body []byte) (string, error) {
	var token string
	if err := json.Unmarshal(body, &token); err != nil {
		trimmed := strings.TrimSpace(string(body))
		// A structured body on a 2xx logon is an error payload, not a token.
		if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
			return "", fmt.Errorf("logon response is not a token: %s", trimmed)
		}
		// Some gateway deployments return the token unquoted.
		token = strings.TrimSpace(strings.Trim(trimmed, `"`))
	}
	if token == "" {
		return "", fmt.Errorf("logon response contained no token")
	}
	return token, nil
}
