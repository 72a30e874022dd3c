package store

import "time"

type Identity struct {
	ID                string
	Email             string
	FullName          string
	Department        string
	PasswordHash      string
	Salt              string
	Active            bool
	MFAEnforced       bool
	FailedAttempts    int
	LockedUntil       *time.Time
	LockReason        string
	LastLoginAt       *time.Time
	LastFailedAt      *time.Time
	PasswordChangedAt *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type IdentityWithRoles struct {
	Identity
	Roles []string
}

type Session struct {
	ID         string
	IdentityID string
	KeyHash    string
	IP         string
	UserAgent  string
	CreatedAt  time.Time
	LastSeenAt time.Time
	ExpiresAt  time.Time
	Revoked    bool
	RevokedAt  *time.Time
	RevokedBy  string
}

type LoginAttempt struct {
	ID          int64
	IdentityID  *string
	Email       string
	IP          string
	UserAgent   string
	Success     bool
	Reason      string
	MFARequired bool
	MFASuccess  bool
	CreatedAt   time.Time
}

// AccessToken is the single bearer token an identity holds at a time.
// Issuing a new one replaces the previous row.
type AccessToken struct {
	IdentityID string
	SessionID  string
	TokenHash  string
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

const (
	MFAKindTOTP = "totp"
	MFAKindSMS  = "sms"

	MFAStatusPending = "pending"
	MFAStatusActive  = "active"
)

type MFADevice struct {
	ID           string
	IdentityID   string
	Kind         string
	Label        string
	SecretSealed string
	Phone        string
	Status       string
	PendingCode  string
	CodeIssuedAt *time.Time
	CreatedAt    time.Time
	ActivatedAt  *time.Time
	LastUsedAt   *time.Time
}

type RecoveryCode struct {
	ID         int64
	IdentityID string
	CodeHash   string
	Salt       string
	UsedAt     *time.Time
	CreatedAt  time.Time
}

const (
	OverrideGrant  = "grant"
	OverrideRevoke = "revoke"
)

type PermissionOverride struct {
	IdentityID    string
	Permission    string
	Kind          string
	GrantedBy     string
	Justification string
	ExpiresAt     *time.Time
	CreatedAt     time.Time
}

type AuditEntry struct {
	ID            string
	CorrelationID string
	IdentityID    *string
	Actor         string
	Action        string
	IP            string
	UserAgent     string
	ActorRoles    []string
	ResourceType  string
	ResourceID    string
	RiskLevel     string
	Detail        string
	CreatedAt     time.Time
}

type AuditFilter struct {
	IdentityID   string
	Action       string
	ResourceType string
	ResourceID   string
	RiskLevel    string
	Since        time.Time
	Until        time.Time
	Limit        int
}
