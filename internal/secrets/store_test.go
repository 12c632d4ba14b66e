package secrets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, StoreFileName)

	s, err := CreateLocal(path, "testpassphrase123")
	if err != nil {
		t.Fatalf("CreateLocal: %v", err)
	}

	cred := Credential{Username: "extract_svc", Password: "P@ssw0rdForVault"}
	if err := s.PutLogonCredential(cred); err != nil {
		t.Fatalf("PutLogonCredential: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopen with correct passphrase
	s2, err := OpenLocal(path, "testpassphrase123")
	if err != nil {
		t.Fatalf("OpenLocal: %v", err)
	}
	defer s2.Close()

	got, err := s2.LogonCredential(context.Background())
	if err != nil {
		t.Fatalf("LogonCredential: %v", err)
	}
	if got != cred {
		t.Fatalf("Got %+v, want %+v", got, cred)
	}
}

func TestLocalStoreWrongPassphrase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, StoreFileName)

	s, err := CreateLocal(path, "correctpassphrase")
	if err != nil {
		t.Fatalf("CreateLocal: %v", err)
	}
	s.PutLogonCredential(Credential{Username: "u", Password: "p"})
	s.Close()

	if _, err := OpenLocal(path, "wrongpassphrase"); err == nil {
		t.Fatal("Expected error with wrong passphrase, got nil")
	}
}

func TestLocalStoreMemoryOnly(t *testing.T) {
	s, err := CreateMemoryOnly("testpass")
	if err != nil {
		t.Fatalf("CreateMemoryOnly: %v", err)
	}
	defer s.Close()

	if err := s.Put("key1", []byte("value1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get("key1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "value1" {
		t.Fatalf("Got %q, want %q", got, "value1")
	}
	if s.path != "" {
		t.Fatal("Memory-only store should have empty path")
	}
}

func TestLocalStoreMissingLogon(t *testing.T) {
	s, _ := CreateMemoryOnly("testpass")
	defer s.Close()

	if _, err := s.LogonCredential(context.Background()); err == nil {
		t.Fatal("Expected error when no logon credential is stored")
	}
}

func TestLocalStoreDelete(t *testing.T) {
	s, _ := CreateMemoryOnly("testpass")
	defer s.Close()

	s.Put("key1", []byte("value1"))
	if !s.Has("key1") {
		t.Fatal("Expected key1 to exist")
	}
	if err := s.Delete("key1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if s.Has("key1") {
		t.Fatal("key1 should be deleted")
	}
}

func TestLocalStoreFilePermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, StoreFileName)

	s, err := CreateLocal(path, "testpassphrase123")
	if err != nil {
		t.Fatalf("CreateLocal: %v", err)
	}
	s.PutLogonCredential(Credential{Username: "u", Password: "p"})
	s.Close()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Fatalf("Expected permissions 0600, got %o", perm)
	}
}

func TestCredentialValidate(t *testing.T) {
	tests := []struct {
		name    string
		cred    Credential
		wantErr bool
	}{
		{"complete", Credential{Username: "u", Password: "p"}, false},
		{"missing username", Credential{Password: "p"}, true},
		{"missing password", Credential{Username: "u"}, true},
		{"empty", Credential{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cred.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// fakeSecretsManager returns a canned secret value.
type fakeSecretsManager struct {
	value string
	err   error
}

func (f *fakeSecretsManager) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(f.value)}, nil
}

func TestAWSStoreLogonCredential(t *testing.T) {
	s := NewAWSStoreWithClient(&fakeSecretsManager{value: `{"username":"svc","password":"pw"}`}, "arn:test")

	cred, err := s.LogonCredential(context.Background())
	if err != nil {
		t.Fatalf("LogonCredential: %v", err)
	}
	if cred.Username != "svc" || cred.Password != "pw" {
		t.Fatalf("Got %+v", cred)
	}
}

func TestAWSStoreErrors(t *testing.T) {
	tests := []struct {
		name string
		fake *fakeSecretsManager
	}{
		{"api error", &fakeSecretsManager{err: fmt.Errorf("access denied")}},
		{"empty value", &fakeSecretsManager{value: ""}},
		{"bad json", &fakeSecretsManager{value: "not-json"}},
		{"missing fields", &fakeSecretsManager{value: `{"username":"only"}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewAWSStoreWithClient(tt.fake, "arn:test")
			if _, err := s.LogonCredential(context.Background()); err == nil {
				t.Fatal("Expected error, got nil")
			}
		})
	}
}
