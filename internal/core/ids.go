package core

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewID generates a prefixed ULID, e.g. NewID("tmr") returns "tmr_01G0EZ1XTM37C5X11SQTDNCTM1".
func NewID(prefix string) string {
	AssertInvariant(strings.TrimSpace(prefix) != "", "prefix cannot be empty")

	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		panic(err)
	}
	return strings.ToLower(strings.TrimSpace(prefix)) + "_" + id.String()
}

// IsValidID reports whether id has the prefix_ULID shape produced by NewID.
func IsValidID(id string) bool {
	prefix, rest, ok := strings.Cut(id, "_")
	if !ok || prefix == "" || len(rest) != ulid.EncodedSize {
		return false
	}
	for _, r := range prefix {
		if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	_, err := ulid.ParseStrict(rest)
	return err == nil
}
