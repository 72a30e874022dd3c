package identity

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMFARequired        = errors.New("multi-factor verification required")
	ErrInvalidMFAToken    = errors.New("invalid multi-factor token")
	ErrSessionExpired     = errors.New("session expired or revoked")
	ErrRateLimitExceeded  = errors.New("rate limit exceeded")
	ErrPermissionDenied   = errors.New("permission denied")
)

// LockedError reports when the account unlocks so callers can surface a
// retry time without leaking anything else.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked until %s", e.Until.UTC().Format(time.RFC3339))
}

func AsLocked(err error) (*LockedError, bool) {
	var le *LockedError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}

// MFARequiredError carries the masked labels of the devices that were
// challenged. errors.Is(err, ErrMFARequired) still matches through
// Unwrap.
type MFARequiredError struct {
	Devices []string
}

func (e *MFARequiredError) Error() string {
	return ErrMFARequired.Error()
}

func (e *MFARequiredError) Unwrap() error {
	return ErrMFARequired
}

func AsMFARequired(err error) (*MFARequiredError, bool) {
	var me *MFARequiredError
	if errors.As(err, &me) {
		return me, true
	}
	return nil, false
}

type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
