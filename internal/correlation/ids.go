package correlation

import (
	"encoding/hex"
	"errors"
	"fmt"
	"github.com/google/uuid"
)

const maxIDLength = 128

var ErrInvalidID = errors.New("invalid correlation identifier")

// NewTraceID returns a 32 character lowercase hex identifier.
func NewTraceID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

// NewSpanID returns a 16 character lowercase hex identifier.
func NewSpanID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:8])
}

func NewRequestID() string {
	return uuid.NewString()
}

// ValidateID accepts hex trace/span ids as well as UUIDs and other opaque tokens made of
// letters, digits, '-' and '_'.
func ValidateID(kind string, id string) error {
	if id == "" {
		return fmt.Errorf("%s is empty: %w", kind, ErrInvalidID)
	}
	if len(id) > maxIDLength {
		return fmt.Errorf("%s exceeds %d characters: %w", kind, maxIDLength, ErrInvalidID)
	}
	for _, r := range id {
		isAlphaNum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !isAlphaNum && r != '-' && r != '_' {
			return fmt.Errorf("%s contains invalid character %q: %w", kind, r, ErrInvalidID)
		}
	}
	return nil
}
