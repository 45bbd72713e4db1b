package crypto

import (
	"crypto/rand"
	"fmt"
)

// Alphanumeric is the alphabet state tokens are drawn from.
const Alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// StateLength is the length of the OAuth state parameter issued at login.
const StateLength = 16

// maxUnbiased is the largest multiple of len(Alphanumeric) that fits in a byte.
// Bytes at or above it are rejected so every character is equally likely.
const maxUnbiased = 256 - (256 % len(Alphanumeric))

// RandomString returns n characters drawn uniformly from Alphanumeric using
// crypto/rand.
func RandomString(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("invalid length %d", n)
	}

	out := make([]byte, 0, n)
	buf := make([]byte, n+n/4+1)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= maxUnbiased {
				continue
			}
			out = append(out, Alphanumeric[int(b)%len(Alphanumeric)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}

// GenerateState creates a new login state token.
func GenerateState() (string, error) {
	return RandomString(StateLength)
}
