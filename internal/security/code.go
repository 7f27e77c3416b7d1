package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"math/big"
)

// GenerateNumericCode returns a uniformly random code of exactly `digits`
// decimal digits, left-padded with zeros.
func GenerateNumericCode(digits int) (string, error) {
	if digits <= 0 {
		digits = 6
	}
	max := big.NewInt(1)
	for i := 0; i < digits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}

// HashCode digests a one-time code for storage; raw codes are never
// persisted.
func HashCode(code string) []byte {
	sum := sha256.Sum256([]byte(code))
	return sum[:]
}

func CodeHashEqual(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// PlaceholderTokenHash returns a non-guessable filler for the refresh hash
// column when a session row must exist before its first token is minted.
func PlaceholderTokenHash() ([]byte, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("placeholder hash: %w", err)
	}
	sum := sha256.Sum256(buf)
	return sum[:], nil
}
