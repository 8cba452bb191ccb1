// Package auth handles the bot credential: loading it, normalising the
// Authorization scheme, and redacting it for logs.
package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Scheme is the Authorization scheme token for bot credentials.
const Scheme = "Bot"

// redactKeep is how many characters are kept visible at each end of a redacted token.
const redactKeep = 4

// ErrEmptyToken is returned when no credential is configured.
var ErrEmptyToken = errors.New("bot token is required")

// Token is a bot credential as configured, without the scheme prefix.
type Token string

// NewToken strips surrounding whitespace and an optional "Bot " prefix.
func NewToken(raw string) (Token, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, Scheme+" ")
	if raw == "" {
		return "", ErrEmptyToken
	}
	return Token(raw), nil
}

// LoadToken reads a token from a file (e.g. a mounted secret).
func LoadToken(path string) (Token, error) {
	if path == "" {
		return "", fmt.Errorf("token file path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}

	return NewToken(string(data))
}

// Header returns the Authorization header value. Prefixing is idempotent.
func Header(token string) string {
	if strings.HasPrefix(token, Scheme+" ") {
		return token
	}
	return Scheme + " " + token
}

// Header returns the Authorization header value for t.
func (t Token) Header() string {
	return Header(string(t))
}

// Redact masks all but the first and last few characters of token.
func Redact(token string) string {
	if len(token) <= redactKeep*2 {
		return strings.Repeat("*", len(token))
	}
	return token[:redactKeep] + strings.Repeat("*", len(token)-redactKeep*2) + token[len(token)-redactKeep:]
}

// RedactIn replaces every occurrence of token inside s with its redacted form.
func RedactIn(s, token string) string {
	if token == "" {
		return s
	}
	return strings.ReplaceAll(s, token, Redact(token))
}

// String implements fmt.Stringer so tokens never leak through %v.
func (t Token) String() string {
	return Redact(string(t))
}
