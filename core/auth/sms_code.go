package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"strings"
	"time"
)

const (
	SMSCodeDigits = 6
	SMSCodeTTL    = 5 * time.Minute
)

// GenerateSMSCode returns a zero-padded numeric one-time code.
func GenerateSMSCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < SMSCodeDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", SMSCodeDigits, n), nil
}

func VerifySMSCode(candidate, issued string, issuedAt, now time.Time) bool {
	if issued == "" || now.Sub(issuedAt) > SMSCodeTTL {
		return false
	}
	candidate = strings.TrimSpace(candidate)
	if len(candidate) != len(issued) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(issued)) == 1
}
