package pam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// pagedSafes serves a safe listing split into pages of the requested limit.
func pagedSafes(t *testing.T, safes []Safe, calls *int) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		*calls++
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit <= 0 {
			t.Errorf("limit missing from %s", r.URL)
		}

		end := offset + limit
		if offset > len(safes) {
			offset = len(safes)
		}
		if end > len(safes) {
			end = len(safes)
		}
		json.NewEncoder(w).Encode(Page[Safe]{Value: safes[offset:end], Count: len(safes)})
	}
}

func makeSafes(n int) []Safe {
	safes := make([]Safe, n)
	for i := range safes {
		safes[i] = Safe{SafeName: fmt.Sprintf("safe-%03d", i)}
	}
	return safes
}

func fetchSession(t *testing.T, srv *httptest.Server) *Requester {
	t.Helper()
	session := newSession(srv.URL, testStore())
	if err := session.Authenticate(context.Background()); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	r := NewRequester(session, 5*time.Second, 3, time.Millisecond, zerolog.Nop())
	return r
}

func TestFetchAllThreePages(t *testing.T) {
	calls := 0
	srv := authAndResource(t, pagedSafes(t, makeSafes(240), &calls))
	defer srv.Close()

	r := fetchSession(t, srv)

	var got []Safe
	total, err := FetchAll[Safe](context.Background(), r, srv.URL+"/API/Safes/", 100, func(batch []Safe) error {
		got = append(got, batch...)
		return nil
	})
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if total != 240 || len(got) != 240 {
		t.Errorf("total = %d, len = %d, want 240", total, len(got))
	}
	// Short final page ends pagination without a fourth request.
	if calls != 3 {
		t.Errorf("HTTP calls = %d, want 3", calls)
	}
	// Records arrive in offset order.
	for i, s := range got {
		if want := fmt.Sprintf("safe-%03d", i); s.SafeName != want {
			t.Fatalf("record %d = %q, want %q", i, s.SafeName, want)
		}
	}
}

func TestFetchAllExactPageBoundary(t *testing.T) {
	calls := 0
	srv := authAndResource(t, pagedSafes(t, makeSafes(200), &calls))
	defer srv.Close()

	r := fetchSession(t, srv)
	total, err := FetchAll[Safe](context.Background(), r, srv.URL+"/API/Safes/", 100, func([]Safe) error { return nil })
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if total != 200 {
		t.Errorf("total = %d, want 200", total)
	}
	// A full final page forces one extra request that returns empty.
	if calls != 3 {
		t.Errorf("HTTP calls = %d, want 3", calls)
	}
}

func TestFetchAllEmptyCollection(t *testing.T) {
	calls := 0
	srv := authAndResource(t, pagedSafes(t, nil, &calls))
	defer srv.Close()

	r := fetchSession(t, srv)
	total, err := FetchAll[Safe](context.Background(), r, srv.URL+"/API/Safes/", 100, func([]Safe) error {
		t.Fatal("callback should not run for an empty collection")
		return nil
	})
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if total != 0 || calls != 1 {
		t.Errorf("total = %d, calls = %d", total, calls)
	}
}

func TestFetchAllDuplicateAborts(t *testing.T) {
	// A broken cursor keeps serving the same full page forever.
	calls := 0
	srv := authAndResource(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(Page[Safe]{Value: makeSafes(100)})
	})
	defer srv.Close()

	r := fetchSession(t, srv)
	_, err := FetchAll[Safe](context.Background(), r, srv.URL+"/API/Safes/", 100, func([]Safe) error { return nil })
	if !errors.Is(err, ErrPaginationIntegrity) {
		t.Fatalf("Expected ErrPaginationIntegrity, got %v", err)
	}
	// The duplicate is detected on the second page, not after looping.
	if calls != 2 {
		t.Errorf("HTTP calls = %d, want 2", calls)
	}
}

func TestFetchAllDuplicateWithinPageAborts(t *testing.T) {
	srv := authAndResource(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Page[Safe]{Value: []Safe{
			{SafeName: "alpha"}, {SafeName: "beta"}, {SafeName: "alpha"},
		}})
	})
	defer srv.Close()

	r := fetchSession(t, srv)
	_, err := FetchAll[Safe](context.Background(), r, srv.URL+"/API/Safes/", 100, func([]Safe) error { return nil })
	if !errors.Is(err, ErrPaginationIntegrity) {
		t.Fatalf("Expected ErrPaginationIntegrity, got %v", err)
	}
}

func TestFetchAllPropagatesFetchFailure(t *testing.T) {
	srv := authAndResource(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	defer srv.Close()

	r := fetchSession(t, srv)
	_, err := FetchAll[Safe](context.Background(), r, srv.URL+"/API/Safes/", 100, func([]Safe) error { return nil })
	if err == nil {
		t.Fatal("Expected failure to propagate, got nil")
	}
}

func TestFetchAllCallbackErrorStopsFetch(t *testing.T) {
	calls := 0
	srv := authAndResource(t, pagedSafes(t, makeSafes(300), &calls))
	defer srv.Close()

	r := fetchSession(t, srv)
	wantErr := fmt.Errorf("disk full")
	_, err := FetchAll[Safe](context.Background(), r, srv.URL+"/API/Safes/", 100, func([]Safe) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Expected callback error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("HTTP calls = %d, want 1", calls)
	}
}

func TestFetchAllRejectsBadPageSize(t *testing.T) {
	if _, err := FetchAll[Safe](context.Background(), nil, "http://unused.invalid", 0, nil); err == nil {
		t.Fatal("Expected error for zero page size")
	}
}

func TestWithPageParamsPreservesFilters(t *testing.T) {
	got, err := withPageParams("https://pam.example.com/API/Accounts/?search=Prod-Safe", 200, 100)
	if err != nil {
		t.Fatalf("withPageParams: %v", err)
	}
	u, _ := url.Parse(got)
	q := u.Query()
	if q.Get("search") != "Prod-Safe" {
		t.Errorf("search filter lost: %s", got)
	}
	if q.Get("offset") != "200" || q.Get("limit") != "100" {
		t.Errorf("page params wrong: %s", got)
	}
}
