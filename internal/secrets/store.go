// Package secrets provides the credential store for the vault logon
// credential. Two backends exist: an encrypted local file and AWS Secrets
// Manager. The extraction pipeline only ever sees the Store interface.
package secrets

import (
	"context"
	"encoding/json"
	"fmt"
)

// LogonKey is the store entry holding the vault logon credential.
const LogonKey = "logon"

// Credential is the username/password pair presented to the vault logon
// endpoint. Callers must discard it as soon as the logon request is built.
type Credential struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate rejects credentials that cannot authenticate.
func (c Credential) Validate() error {
	if c.Username == "" {
		return fmt.Errorf("credential has empty username")
	}
	if c.Password == "" {
		return fmt.Errorf("credential has empty password")
	}
	return nil
}

// Store supplies the vault logon credential.
type Store interface {
	LogonCredential(ctx context.Context) (Credential, error)
}

func parseCredential(data []byte) (Credential, error) {
	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return Credential{}, fmt.Errorf("parsing stored credential: %w", err)
	}
	if err := cred.Validate(); err != nil {
		return Credential{}, err
	}
	return cred, nil
}
