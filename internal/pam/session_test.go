package pam

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vaultscope/vaultscope/internal/secrets"
)

// memStore hands out a fixed credential and counts how often it is read.
type memStore struct {
	cred  secrets.Credential
	err   error
	reads int
}

func (m *memStore) LogonCredential(ctx context.Context) (secrets.Credential, error) {
	m.reads++
	if m.err != nil {
		return secrets.Credential{}, m.err
	}
	return m.cred, nil
}

func testStore() *memStore {
	return &memStore{cred: secrets.Credential{Username: "extract_svc", Password: "pw"}}
}

func newSession(url string, store secrets.Store) *AuthSession {
	return NewAuthSession(url, "Cyberark", store, 5*time.Second, zerolog.Nop())
}

func TestAuthenticateSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/API/auth/Cyberark/Logon/" {
			t.Errorf("Unexpected logon path: %s", r.URL.Path)
		}
		fmt.Fprint(w, `"session-token-abc"`)
	}))
	defer srv.Close()

	s := newSession(srv.URL, testStore())
	if err := s.Authenticate(context.Background()); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got := s.Token(); got != "session-token-abc" {
		t.Errorf("Token = %q, want session-token-abc", got)
	}
	if s.RefreshCount() != 0 {
		t.Errorf("RefreshCount = %d after initial logon", s.RefreshCount())
	}
}

func TestAuthenticateRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credentials", http.StatusForbidden)
	}))
	defer srv.Close()

	s := newSession(srv.URL, testStore())
	err := s.Authenticate(context.Background())
	if !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("Expected ErrAuthFailed, got %v", err)
	}
}

func TestAuthenticateStoreFailure(t *testing.T) {
	store := &memStore{err: fmt.Errorf("store locked")}
	s := newSession("http://unused.invalid", store)

	err := s.Authenticate(context.Background())
	if !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("Expected ErrAuthFailed, got %v", err)
	}
}

func TestAuthenticateEmptyToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `""`)
	}))
	defer srv.Close()

	s := newSession(srv.URL, testStore())
	if err := s.Authenticate(context.Background()); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("Expected ErrAuthFailed for empty token, got %v", err)
	}
}

func TestRefreshReplacesToken(t *testing.T) {
	logons := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logons++
		fmt.Fprintf(w, `"token-%d"`, logons)
	}))
	defer srv.Close()

	store := testStore()
	s := newSession(srv.URL, store)

	if err := s.Authenticate(context.Background()); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if got := s.Token(); got != "token-2" {
		t.Errorf("Token after refresh = %q, want token-2", got)
	}
	if s.RefreshCount() != 1 {
		t.Errorf("RefreshCount = %d, want 1", s.RefreshCount())
	}
	// The credential is re-read per logon, never cached in the session.
	if store.reads != 2 {
		t.Errorf("Credential reads = %d, want 2", store.reads)
	}
}

func TestParseToken(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{"quoted", `"abc123"`, "abc123", false},
		{"unquoted", "abc123", "abc123", false},
		{"trailing newline", "\"abc123\"\n", "abc123", false},
		{"empty", `""`, "", true},
		{"blank", "  ", "", true},
		{"error object body", `{"ErrorCode":"PASWS013E","ErrorMessage":"Authentication failure"}`, "", true},
		{"array body", `["abc123"]`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseToken([]byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseToken(%q) error = %v, wantErr %v", tt.body, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseToken(%q) = %q, want %q", tt.body, got, tt.want)
			}
		})
	}
}
