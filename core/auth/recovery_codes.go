package auth

import (
	"crypto/rand"
	"encoding/base32"
	"errors"
	"strings"
)

const (
	RecoveryCodeCount = 10
	recoveryGroupLen  = 5
)

// GenerateRecoveryCodes returns one-time codes in XXXXX-XXXXX form. Only
// hashes are stored; the plaintext is shown to the user exactly once.
func GenerateRecoveryCodes() ([]string, error) {
	codes := make([]string, 0, RecoveryCodeCount)
	enc := base32.StdEncoding.WithPadding(base32.NoPadding)
	for len(codes) < RecoveryCodeCount {
		raw := make([]byte, 8)
		if _, err := rand.Read(raw); err != nil {
			return nil, err
		}
		s := enc.EncodeToString(raw)
		if len(s) < recoveryGroupLen*2 {
			continue
		}
		codes = append(codes, s[:recoveryGroupLen]+"-"+s[recoveryGroupLen:recoveryGroupLen*2])
	}
	return codes, nil
}

func NormalizeRecoveryCode(raw string) (string, error) {
	val := strings.ToUpper(strings.TrimSpace(raw))
	val = strings.ReplaceAll(val, " ", "")
	if len(val) == recoveryGroupLen*2 && !strings.Contains(val, "-") {
		val = val[:recoveryGroupLen] + "-" + val[recoveryGroupLen:]
	}
	if len(val) != recoveryGroupLen*2+1 || val[recoveryGroupLen] != '-' {
		return "", errors.New("invalid recovery code format")
	}
	return val, nil
}

// HashRecoveryCode reuses the peppered argon2id path so recovery codes
// get the same at-rest treatment as passwords.
func HashRecoveryCode(code, pepper string) (*PasswordHash, error) {
	normalized, err := NormalizeRecoveryCode(code)
	if err != nil {
		return nil, err
	}
	return HashPassword(normalized, pepper)
}

func VerifyRecoveryCode(code, pepper string, stored *PasswordHash) (bool, error) {
	normalized, err := NormalizeRecoveryCode(code)
	if err != nil {
		return false, nil
	}
	return VerifyPassword(normalized, pepper, stored)
}
