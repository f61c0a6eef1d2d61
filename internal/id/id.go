// Package id generates identifiers: prefixed NanoIDs for stored records and
// UUIDs for request correlation.
package id

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes used across the service.
const (
	PrefixUser    = "user"
	PrefixSession = "session"
	PrefixToken   = "token"
	PrefixClient  = "sse"
)

// Generate creates a prefixed NanoID such as "user-V1StGXR8_Z5jdHi6B-myT".
// It fails only when the system cannot supply secure randomness.
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// HasPrefix reports whether id was generated with prefix.
func HasPrefix(id, prefix string) bool {
	return strings.HasPrefix(id, prefix+"-") && len(id) > len(prefix)+1
}

// NewRequestID returns a random UUID for tagging a request in logs.
func NewRequestID() string {
	return uuid.NewString()
}
