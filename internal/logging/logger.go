// Package logging provides structured logging with secret redaction for
// vaultscope. Bearer tokens and logon passwords must never reach log output.
package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Field names whose values must be redacted in all log output.
var secretFieldNames = []string{
	"password",
	"logonpassword",
	"passphrase",
	"token",
	"bearer",
	"secret",
	"credential",
	"authorization",
	"secretaccesskey",
	"sessiontoken",
}

// RedactingWriter wraps an io.Writer feeding log output. Each event is a
// JSON object; string values under secret field names are replaced before
// the event reaches the inner writer.
type RedactingWriter struct {
	inner io.Writer
}

// NewRedactingWriter creates a writer guarding log output against secret leakage.
func NewRedactingWriter(inner io.Writer) *RedactingWriter {
	return &RedactingWriter{inner: inner}
}

func (rw *RedactingWriter) Write(p []byte) (n int, err error) {
	var event map[string]interface{}
	if json.Unmarshal(p, &event) != nil {
		return rw.inner.Write(p)
	}

	changed := false
	for field, value := range event {
		s, ok := value.(string)
		if !ok || !IsSecretField(field) {
			continue
		}
		event[field] = RedactValue(s)
		changed = true
	}
	if !changed {
		return rw.inner.Write(p)
	}

	out, err := json.Marshal(event)
	if err != nil {
		return rw.inner.Write(p)
	}
	if _, err := rw.inner.Write(append(out, '\n')); err != nil {
		return 0, err
	}
	return len(p), nil
}

// NewLogger creates the console logger used by the CLI.
func NewLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	writer := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}

	return zerolog.New(&RedactingWriter{inner: writer}).
		Level(lvl).
		With().
		Timestamp().
		Str("component", "vaultscope").
		Logger()
}

// NewJSONLogger creates a JSON-formatted logger for file output or machine consumption.
func NewJSONLogger(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(&RedactingWriter{inner: w}).
		Level(lvl).
		With().
		Timestamp().
		Str("component", "vaultscope").
		Logger()
}

// IsSecretField checks if a field name is a known secret field that should be redacted.
func IsSecretField(fieldName string) bool {
	lower := strings.ToLower(fieldName)
	for _, secret := range secretFieldNames {
		if strings.Contains(lower, secret) {
			return true
		}
	}
	return false
}

// RedactValue replaces a secret value with a safe placeholder containing a hash prefix.
func RedactValue(value string) string {
	if value == "" {
		return ""
	}
	h := sha256.Sum256([]byte(value))
	return "[REDACTED:sha256:" + hex.EncodeToString(h[:])[:8] + "]"
}
