package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// DefaultTokenBytes yields 32 hex characters.
const DefaultTokenBytes = 16

// GenerateToken returns n random bytes hex encoded.
func GenerateToken(n int) (string, error) {
	if n <= 0 {
		n = DefaultTokenBytes
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Expiry is the instant a credential issued at now stops being valid.
func Expiry(now time.Time, ttl time.Duration) time.Time {
	return now.Add(ttl)
}
