package pam

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// FetchAll drives offset/limit pagination over resourceURL, invoking fn once
// per page so consumers can stream records to export without buffering the
// whole collection. Pages are requested strictly in increasing offset order.
//
// Every record identifier is checked against the identifiers already seen in
// this fetch; a repeat means the page cursor cycled or duplicated and the
// fetch aborts with ErrPaginationIntegrity. Pagination terminates cleanly on
// an empty page or a page shorter than pageSize.
//
// Returns the total number of records yielded.
func FetchAll[T Identifiable](ctx context.Context, r *Requester, resourceURL string, pageSize int, fn func(batch []T) error) (int, error) {
	if pageSize <= 0 {
		return 0, fmt.Errorf("page size must be positive, got %d", pageSize)
	}

	seen := make(map[string]struct{})
	offset := 0
	total := 0

	for {
		pageURL, err := withPageParams(resourceURL, offset, pageSize)
		if err != nil {
			return total, err
		}

		body, err := r.Execute(ctx, pageURL)
		if err != nil {
			return total, fmt.Errorf("fetching page at offset %d: %w", offset, err)
		}

		var page Page[T]
		if err := json.Unmarshal(body, &page); err != nil {
			return total, fmt.Errorf("%w: parsing page at offset %d: %v", ErrEmptyResponse, offset, err)
		}

		if len(page.Value) == 0 {
			return total, nil
		}

		for _, rec := range page.Value {
			id := rec.Identifier()
			if _, dup := seen[id]; dup {
				return total, fmt.Errorf("%w: identifier %q repeated at offset %d", ErrPaginationIntegrity, id, offset)
			}
			seen[id] = struct{}{}
		}

		if err := fn(page.Value); err != nil {
			return total, err
		}
		total += len(page.Value)

		if len(page.Value) < pageSize {
			return total, nil
		}
		offset += pageSize
	}
}

// withPageParams appends offset/limit query parameters, preserving any
// filters already on the URL.
func withPageParams(resourceURL string, offset, limit int) (string, error) {
	u, err := url.Parse(resourceURL)
	if err != nil {
		return "", fmt.Errorf("parsing resource URL %q: %w", resourceURL, err)
	}
	q := u.Query()
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
