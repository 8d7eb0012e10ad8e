// Package uuidutil normalizes UUID values between their text form and the
// RFC 4122 byte order used by BINARY(16) columns.
package uuidutil

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

func canonical(u uuid.UUID) string {
	return strings.ToLower(u.String())
}

// ParseString parses common UUID string formats and returns the value plus
// its canonical lower-case text form.
func ParseString(raw string) (uuid.UUID, string, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("invalid UUID value")
	}
	return parsed, canonical(parsed), nil
}

// ParseBytes parses RFC-order UUID bytes and returns the value plus its
// canonical lower-case text form.
func ParseBytes(raw []byte) (uuid.UUID, string, error) {
	parsed, err := uuid.FromBytes(raw)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("invalid UUID bytes")
	}
	return parsed, canonical(parsed), nil
}

// ToBytes returns a fresh copy of the UUID bytes in RFC order.
func ToBytes(u uuid.UUID) []byte {
	out := make([]byte, len(u))
	copy(out, u[:])
	return out
}

// IsBinaryStorageType reports whether a SQL type stores UUID values as raw bytes.
func IsBinaryStorageType(dataType string) bool {
	switch strings.ToLower(strings.TrimSpace(dataType)) {
	case "binary", "varbinary":
		return true
	}
	return false
}
