package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"medrota-iam/core/identity"
)

type ctxKey int

const principalKey ctxKey = iota

func WithPrincipal(ctx context.Context, p *identity.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFrom(ctx context.Context) *identity.Principal {
	p, _ := ctx.Value(principalKey).(*identity.Principal)
	return p
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// WriteAuthError maps the service error taxonomy onto HTTP statuses.
func WriteAuthError(w http.ResponseWriter, err error) {
	if le, ok := identity.AsLocked(err); ok {
		writeJSON(w, http.StatusLocked, map[string]string{
			"error":        "account_locked",
			"locked_until": le.Until.UTC().Format(time.RFC3339),
		})
		return
	}
	if me, ok := identity.AsMFARequired(err); ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"error":   "mfa_required",
			"devices": me.Devices,
		})
		return
	}
	if ve, ok := identity.AsValidation(err); ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "validation_error",
			"field": ve.Field,
			"msg":   ve.Msg,
		})
		return
	}
	switch {
	case errors.Is(err, identity.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
	case errors.Is(err, identity.ErrMFARequired):
		writeError(w, http.StatusUnauthorized, "mfa_required")
	case errors.Is(err, identity.ErrInvalidMFAToken):
		writeError(w, http.StatusUnauthorized, "invalid_mfa_token")
	case errors.Is(err, identity.ErrSessionExpired):
		writeError(w, http.StatusUnauthorized, "session_expired")
	case errors.Is(err, identity.ErrRateLimitExceeded):
		writeError(w, http.StatusTooManyRequests, "rate_limit_exceeded")
	case errors.Is(err, identity.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, "permission_denied")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error")
	}
}
