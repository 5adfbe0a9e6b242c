package id

import (
	"strings"

	"github.com/google/uuid"
)

const maxRequestIDLen = 128

// New returns a random request ID.
func New() string {
	return uuid.NewString()
}

// FromHeader keeps a client-supplied request ID when it is short and made of
// safe characters, and generates a fresh one otherwise.
func FromHeader(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > maxRequestIDLen {
		return New()
	}
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.', r == ':':
		default:
			return New()
		}
	}
	return raw
}
