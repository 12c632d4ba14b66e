package pam

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

// Client ties the authenticated session and requester to the vault listing
// endpoints. All calls are sequential; the vault API forbids overlapping
// bulk queries.
type Client struct {
	baseURL   string
	session   *AuthSession
	requester *Requester
	logger    zerolog.Logger
}

// NewClient creates a client for the vault API at baseURL.
func NewClient(baseURL string, session *AuthSession, requester *Requester, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		session:   session,
		requester: requester,
		logger:    logger,
	}
}

// Session returns the auth session backing this client.
func (c *Client) Session() *AuthSession { return c.session }

// StreamSafes pages through the safe listing, handing each page to fn.
func (c *Client) StreamSafes(ctx context.Context, pageSize int, fn func([]Safe) error) (int, error) {
	return FetchAll[Safe](ctx, c.requester, c.baseURL+"/API/Safes/", pageSize, fn)
}

// StreamAccounts pages through the account listing. A non-empty safeName
// scopes the listing to that safe via the search filter; the upstream API
// caps cross-safe listings at 20000 records, so large estates are extracted
// safe by safe.
func (c *Client) StreamAccounts(ctx context.Context, pageSize int, safeName string, fn func([]Account) error) (int, error) {
	accountsURL := c.baseURL + "/API/Accounts/"
	if safeName != "" {
		accountsURL += "?search=" + url.QueryEscape(safeName)
	}
	return FetchAll[Account](ctx, c.requester, accountsURL, pageSize, fn)
}

// FetchUsers retrieves the full user listing in one call; the users endpoint
// is not paginated by this client. The duplicate-identifier invariant is
// still enforced on the single response as a consistency check.
func (c *Client) FetchUsers(ctx context.Context) ([]User, error) {
	usersURL := c.baseURL + "/API/Users?ExtendedDetails=true"

	body, err := c.requester.Execute(ctx, usersURL)
	if err != nil {
		return nil, fmt.Errorf("fetching users: %w", err)
	}

	var page Page[User]
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("%w: parsing users response: %v", ErrEmptyResponse, err)
	}

	seen := make(map[string]struct{}, len(page.Value))
	for _, u := range page.Value {
		id := u.Identifier()
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: user id %s repeated in listing", ErrPaginationIntegrity, id)
		}
		seen[id] = struct{}{}
	}

	return page.Value, nil
}
