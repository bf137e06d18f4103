// Package otp generates one-time numeric codes and keeps short-lived pending records keyed by email.
package otp

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"time"
)

const (
	// TTL is how long every code in the system stays valid
	TTL = 10 * time.Minute

	RegistrationDigits = 6
	AccountDigits      = 6
	OrderDigits        = 4
)

// Generate returns a random numeric code of exactly digits characters.
// Leading zeros are kept so the length is stable.
func Generate(digits int) (string, error) {
	if digits < 1 || digits > 9 {
		return "", fmt.Errorf("otp: unsupported length %d", digits)
	}
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("otp: reading random: %w", err)
	}
	return fmt.Sprintf("%0*d", digits, n.Int64()), nil
}

// Match compares a candidate code against the stored one in constant time
func Match(stored, candidate string) bool {
	if stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(candidate)) == 1
}
