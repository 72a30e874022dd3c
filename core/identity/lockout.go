package identity

import (
	"context"
	"time"

	"medrota-iam/config"
	"medrota-iam/core/store"
)

// LockoutPolicy implements staged brute-force protection: a persisted
// per-identity failure counter that a successful login zeroes and a
// quiet window restarts, a coarser per-address threshold, and a fixed
// lock duration once the identity threshold hits.
type LockoutPolicy struct {
	MaxFailures        int
	Duration           time.Duration
	Window             time.Duration
	AddressMaxFailures int

	attempts store.LoginAttemptsStore
	now      func() time.Time
}

func NewLockoutPolicy(cfg config.LockoutConfig, attempts store.LoginAttemptsStore) *LockoutPolicy {
	return &LockoutPolicy{
		MaxFailures:        cfg.MaxFailures,
		Duration:           cfg.Duration,
		Window:             cfg.AttemptWindow,
		AddressMaxFailures: cfg.AddressMaxFailures,
		attempts:           attempts,
		now:                time.Now,
	}
}

// CheckIdentity returns a LockedError while a lock is in force.
func (p *LockoutPolicy) CheckIdentity(ident *store.Identity) *LockedError {
	if ident.LockedUntil != nil && p.now().Before(*ident.LockedUntil) {
		return &LockedError{Until: *ident.LockedUntil}
	}
	return nil
}

// AddressThrottled reports whether the source address has burned through
// its failure budget across all accounts.
func (p *LockoutPolicy) AddressThrottled(ctx context.Context, ip string) (bool, error) {
	if ip == "" || p.AddressMaxFailures <= 0 {
		return false, nil
	}
	n, err := p.attempts.CountFailuresByIPSince(ctx, ip, p.now().Add(-p.Window))
	if err != nil {
		return false, err
	}
	return n >= p.AddressMaxFailures, nil
}

// NextFailureCount returns the consecutive-failure count after one more
// failure now. The stored counter is zeroed on success, so it restarts
// at one there; it also restarts once the window has gone quiet.
func (p *LockoutPolicy) NextFailureCount(ident *store.Identity) int {
	if ident.LastFailedAt == nil || p.now().Sub(*ident.LastFailedAt) > p.Window {
		return 1
	}
	return ident.FailedAttempts + 1
}

func (p *LockoutPolicy) ShouldLock(failures int) bool {
	return p.MaxFailures > 0 && failures >= p.MaxFailures
}

func (p *LockoutPolicy) LockUntil() time.Time {
	return p.now().Add(p.Duration).UTC()
}
