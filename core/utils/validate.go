package utils

import (
	"errors"
	"regexp"
	"strings"
)

var (
	emailRe           = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phoneRe           = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
	passwordMaxLength = 128
	passwordMinLength = 12
	upperRe           = regexp.MustCompile(`[A-Z]`)
	lowerRe           = regexp.MustCompile(`[a-z]`)
	digitRe           = regexp.MustCompile(`[0-9]`)
	specialRe         = regexp.MustCompile(`[!@#$%^&*_\-+=]`)
	whitespaceRe      = regexp.MustCompile(`\s`)
)

// NormalizeEmail lowercases and trims an address; identities are keyed by
// the normalized form.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func ValidateEmail(s string) error {
	if len(s) > 254 || !emailRe.MatchString(s) {
		return errors.New("invalid email")
	}
	return nil
}

func ValidatePhone(s string) error {
	if !phoneRe.MatchString(strings.TrimSpace(s)) {
		return errors.New("invalid phone number")
	}
	return nil
}

func ValidatePassword(s string) error {
	if len(s) < passwordMinLength {
		return errors.New("password too short (min 12 chars)")
	}
	if len(s) > passwordMaxLength {
		return errors.New("password too long (max 128 chars)")
	}
	if whitespaceRe.MatchString(s) {
		return errors.New("password must not contain spaces")
	}
	if !upperRe.MatchString(s) {
		return errors.New("password must include at least one uppercase letter")
	}
	if !lowerRe.MatchString(s) {
		return errors.New("password must include at least one lowercase letter")
	}
	if !digitRe.MatchString(s) {
		return errors.New("password must include at least one digit")
	}
	if !specialRe.MatchString(s) {
		return errors.New("password must include at least one special character (!@#$%^&*_-+=)")
	}
	return nil
}

// MaskPhone keeps the last four digits for user-facing device hints.
func MaskPhone(s string) string {
	digits := strings.TrimSpace(s)
	if len(digits) <= 4 {
		return "****"
	}
	return "****" + digits[len(digits)-4:]
}
