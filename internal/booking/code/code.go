// Package code generates and normalizes one-time redemption codes.
package code

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// Prefix is the fixed human-facing prefix on every redemption code.
const Prefix = "MEA-"

// alphabet is collision-resistant for humans: ambiguous characters
// (0/O, 1/I/L, 5/S, 8/B) are excluded so codes survive being read aloud
// or typed from a photo.
const alphabet = "ACDEFGHJKMNPQRTUVWXYZ234679"

// randomLen is the number of random characters after the prefix.
const randomLen = 4

// New returns a fresh redemption code, e.g. "MEA-9Q3K". Uniqueness is the
// store's job; callers regenerate on collision.
func New() (string, error) {
	buf := make([]byte, randomLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate redemption code: %w", err)
	}
	var sb strings.Builder
	sb.WriteString(Prefix)
	for _, b := range buf {
		sb.WriteByte(alphabet[int(b)%len(alphabet)])
	}
	return sb.String(), nil
}

// Normalize canonicalizes a code for lookup. Codes are case-insensitive and
// tolerate surrounding whitespace.
func Normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
