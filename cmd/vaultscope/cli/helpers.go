package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/term"

	"github.com/vaultscope/vaultscope/internal/config"
	"github.com/vaultscope/vaultscope/internal/secrets"
)

// passphraseEnv lets unattended runs skip the interactive prompt.
const passphraseEnv = "VAULTSCOPE_PASSPHRASE"

func localStorePath() string {
	return filepath.Join(config.Dir(), secrets.StoreFileName)
}

// overrideDuration prefers a flag-supplied duration over the configured one,
// keeping sub-second flag values intact.
func overrideDuration(configured, flag time.Duration) time.Duration {
	if flag > 0 {
		return flag
	}
	return configured
}

// readPassphrase returns the credential-store passphrase from the
// environment or an interactive no-echo prompt.
func readPassphrase() (string, error) {
	if p := os.Getenv(passphraseEnv); p != "" {
		return p, nil
	}

	fmt.Fprint(os.Stderr, "Credential store passphrase: ")
	passBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	fmt.Fprintln(os.Stderr)
	return string(passBytes), nil
}

// openCredentialStore opens the configured credential-store backend for a
// report run. The returned cleanup must be called when done.
func openCredentialStore(cfg config.Config) (secrets.Store, func(), error) {
	switch cfg.SecretMode {
	case config.SecretModeAWS:
		return secrets.NewAWSStore(cfg.AWSRegion, cfg.AWSSecretARN), func() {}, nil

	case config.SecretModeLocal:
		path := localStorePath()
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("no credential store at %s; run 'vaultscope creds set' first", path)
		}
		pass, err := readPassphrase()
		if err != nil {
			return nil, nil, err
		}
		store, err := secrets.OpenLocal(path, pass)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown secret_mode: %q", cfg.SecretMode)
	}
}

// openLocalStoreForEdit opens the local store for credential management,
// creating it on first use.
func openLocalStoreForEdit() (*secrets.LocalStore, error) {
	if err := os.MkdirAll(config.Dir(), 0700); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}
	pass, err := readPassphrase()
	if err != nil {
		return nil, err
	}
	return secrets.OpenOrCreateLocal(localStorePath(), pass)
}
