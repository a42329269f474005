package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// CodeAlphabet is the character set invite codes are drawn from.
const CodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var alphabetSize = big.NewInt(int64(len(CodeAlphabet)))

// GenerateCode returns a random code of the requested length drawn uniformly from CodeAlphabet.
func GenerateCode(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("crypto: code length must be positive")
	}

	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", err
		}
		b.WriteByte(CodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// IsCode reports whether value only contains characters from CodeAlphabet.
func IsCode(value string) bool {
	if value == "" {
		return false
	}
	for i := 0; i < len(value); i++ {
		if strings.IndexByte(CodeAlphabet, value[i]) < 0 {
			return false
		}
	}
	return true
}

// DigestPhone returns a stable BLAKE2b-256 hex digest of a phone number so destinations can be
// logged, rate limited and audited without storing the raw number.
func DigestPhone(phone string) string {
	sum := blake2b.Sum256([]byte(strings.TrimSpace(phone)))
	return hex.EncodeToString(sum[:])
}
