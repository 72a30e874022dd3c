package identity

import (
	"context"
	"time"

	"github.com/google/uuid"

	"medrota-iam/config"
	"medrota-iam/core/auth"
	"medrota-iam/core/rbac"
	"medrota-iam/core/store"
	"medrota-iam/core/utils"
)

const (
	reasonInvalidCredentials = "invalid_credentials"
	reasonInvalidMFA         = "invalid_mfa"
	reasonLocked             = "locked"
	reasonRateLimited        = "rate_limited"
	reasonInactive           = "inactive"
	reasonMFARequired        = "mfa_required"
)

type LoginInput struct {
	Email     string
	Password  string
	MFACode   string
	IP        string
	UserAgent string
}

type LoginResult struct {
	Identity   *store.Identity
	Roles      []string
	Session    *store.Session
	SessionKey string
	Token      string
}

type Principal struct {
	Identity  store.Identity
	Roles     []string
	SessionID string
}

// Authenticator orchestrates credential verification, lockout, MFA,
// session issuance and permission resolution. Flows for one identity
// run serialized; distinct identities proceed in parallel.
type Authenticator struct {
	identities store.IdentitiesStore
	attempts   store.LoginAttemptsStore
	overrides  store.PermissionOverridesStore
	sessions   *SessionManager
	mfa        *MFAEngine
	lockout    *LockoutPolicy
	resolver   *rbac.Resolver
	audit      *AuditLogger
	logger     *utils.Logger
	pepper     string
	locks      *keyedMutex
	profiles   *profileCache
	decoy      *auth.PasswordHash
}

type AuthenticatorDeps struct {
	Config     *config.AppConfig
	Identities store.IdentitiesStore
	Attempts   store.LoginAttemptsStore
	Overrides  store.PermissionOverridesStore
	Sessions   *SessionManager
	MFA        *MFAEngine
	Lockout    *LockoutPolicy
	Resolver   *rbac.Resolver
	Audit      *AuditLogger
	Logger     *utils.Logger
}

func NewAuthenticator(deps AuthenticatorDeps) *Authenticator {
	return &Authenticator{
		identities: deps.Identities,
		attempts:   deps.Attempts,
		overrides:  deps.Overrides,
		sessions:   deps.Sessions,
		mfa:        deps.MFA,
		lockout:    deps.Lockout,
		resolver:   deps.Resolver,
		audit:      deps.Audit,
		logger:     deps.Logger,
		pepper:     deps.Config.Pepper,
		locks:      newKeyedMutex(),
		profiles:   newProfileCache(deps.Config.Cache.ProfileTTL),
		decoy:      auth.MustHashPassword(uuid.NewString(), deps.Config.Pepper),
	}
}

func (a *Authenticator) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	email := utils.NormalizeEmail(in.Email)
	if err := utils.ValidateEmail(email); err != nil {
		return nil, &ValidationError{Field: "email", Msg: err.Error()}
	}
	if in.Password == "" {
		return nil, &ValidationError{Field: "password", Msg: "password is required"}
	}
	corr := NewCorrelationID()

	throttled, err := a.lockout.AddressThrottled(ctx, in.IP)
	if err != nil {
		return nil, err
	}
	if throttled {
		a.recordAttempt(ctx, nil, email, in, false, reasonRateLimited, false, false)
		loginAttemptsTotal.WithLabelValues("rate_limited").Inc()
		return nil, ErrRateLimitExceeded
	}

	ident, roles, err := a.identities.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if ident == nil {
		// Burn the same hashing cost as a real verification so unknown
		// addresses are not distinguishable by timing.
		_, _ = auth.VerifyPassword(in.Password, a.pepper, a.decoy)
		a.recordAttempt(ctx, nil, email, in, false, reasonInvalidCredentials, false, false)
		a.auditLogin(corr, "", nil, email, in, ActionLoginFailed, map[string]any{"reason": "unknown_email"})
		loginAttemptsTotal.WithLabelValues("failure").Inc()
		return nil, ErrInvalidCredentials
	}

	unlock := a.locks.Lock(ident.ID)
	defer unlock()

	if le := a.lockout.CheckIdentity(ident); le != nil {
		a.recordAttempt(ctx, &ident.ID, email, in, false, reasonLocked, false, false)
		a.auditLogin(corr, ident.ID, roles, email, in, ActionLoginFailed, map[string]any{"reason": "locked"})
		loginAttemptsTotal.WithLabelValues("locked").Inc()
		return nil, le
	}
	if ident.LockedUntil != nil {
		// Expired lock: reset the stage before counting fresh failures.
		if err := a.identities.ClearLock(ctx, ident.ID); err != nil {
			return nil, err
		}
		ident.LockedUntil = nil
		ident.FailedAttempts = 0
	}
	if !ident.Active {
		a.recordAttempt(ctx, &ident.ID, email, in, false, reasonInactive, false, false)
		a.auditLogin(corr, ident.ID, roles, email, in, ActionLoginFailed, map[string]any{"reason": "inactive"})
		loginAttemptsTotal.WithLabelValues("failure").Inc()
		return nil, ErrInvalidCredentials
	}

	stored, err := auth.ParsePasswordHash(ident.PasswordHash, ident.Salt)
	if err != nil {
		return nil, err
	}
	ok, err := auth.VerifyPassword(in.Password, a.pepper, stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, a.handleFailure(ctx, corr, ident, roles, email, in, reasonInvalidCredentials, ErrInvalidCredentials)
	}

	needMFA, err := a.mfaRequired(ctx, ident)
	if err != nil {
		return nil, err
	}
	if needMFA {
		if in.MFACode == "" {
			if err := a.mfa.ChallengeAll(ctx, ident.ID); err != nil && a.logger != nil {
				a.logger.Warnf("mfa challenge failed for %s: %v", ident.ID, err)
			}
			a.recordAttempt(ctx, &ident.ID, email, in, false, reasonMFARequired, true, false)
			labels, lerr := a.mfa.ActiveLabels(ctx, ident.ID)
			if lerr != nil && a.logger != nil {
				a.logger.Warnf("mfa device listing failed for %s: %v", ident.ID, lerr)
			}
			return nil, &MFARequiredError{Devices: labels}
		}
		verified, err := a.mfa.Verify(ctx, ident.ID, in.MFACode)
		if err != nil {
			return nil, err
		}
		if !verified {
			activeMFAVerifications.WithLabelValues("failure").Inc()
			a.auditLogin(corr, ident.ID, roles, email, in, ActionMFAFailed, nil)
			return nil, a.handleFailure(ctx, corr, ident, roles, email, in, reasonInvalidMFA, ErrInvalidMFAToken)
		}
		activeMFAVerifications.WithLabelValues("success").Inc()
	}

	now := time.Now().UTC()
	if err := a.identities.RecordLoginSuccess(ctx, ident.ID, now); err != nil {
		return nil, err
	}
	a.recordAttempt(ctx, &ident.ID, email, in, true, "", needMFA, needMFA)
	sess, sessionKey, err := a.sessions.Issue(ctx, ident.ID, in.IP, in.UserAgent)
	if err != nil {
		return nil, err
	}
	token, err := a.sessions.IssueToken(ctx, ident.ID, sess.ID)
	if err != nil {
		return nil, err
	}
	sessionsIssuedTotal.Inc()
	loginAttemptsTotal.WithLabelValues("success").Inc()
	a.profiles.set(ident.ID, store.IdentityWithRoles{Identity: *ident, Roles: roles})
	a.auditSession(corr, ident.ID, roles, email, in, ActionLogin, sess.ID, nil)
	return &LoginResult{Identity: ident, Roles: roles, Session: sess, SessionKey: sessionKey, Token: token}, nil
}

func (a *Authenticator) mfaRequired(ctx context.Context, ident *store.Identity) (bool, error) {
	if ident.MFAEnforced {
		return true, nil
	}
	return a.mfa.HasActive(ctx, ident.ID)
}

// handleFailure records the attempt, advances the persisted counter
// and applies the lock at the threshold. The counter was zeroed by the
// last success, so failures before it never count.
func (a *Authenticator) handleFailure(ctx context.Context, corr string, ident *store.Identity, roles []string, email string, in LoginInput, reason string, base error) error {
	a.recordAttempt(ctx, &ident.ID, email, in, false, reason, reason == reasonInvalidMFA, false)
	failures := a.lockout.NextFailureCount(ident)
	if err := a.identities.RecordLoginFailure(ctx, ident.ID, failures, time.Now().UTC()); err != nil {
		return err
	}
	loginAttemptsTotal.WithLabelValues("failure").Inc()
	a.auditLogin(corr, ident.ID, roles, email, in, ActionLoginFailed, map[string]any{"reason": reason})

	if !a.lockout.ShouldLock(failures) {
		return base
	}
	until := a.lockout.LockUntil()
	if err := a.identities.SetLock(ctx, ident.ID, until, "too many failed attempts"); err != nil {
		return err
	}
	lockoutsTotal.Inc()
	a.auditLogin(corr, ident.ID, roles, email, in, ActionLockout, map[string]any{"until": until.Format(time.RFC3339)})
	return &LockedError{Until: until}
}

func (a *Authenticator) recordAttempt(ctx context.Context, identityID *string, email string, in LoginInput, success bool, reason string, mfaRequired, mfaSuccess bool) {
	attempt := &store.LoginAttempt{
		IdentityID:  identityID,
		Email:       email,
		IP:          in.IP,
		UserAgent:   in.UserAgent,
		Success:     success,
		Reason:      reason,
		MFARequired: mfaRequired,
		MFASuccess:  mfaSuccess,
	}
	if err := a.attempts.Record(ctx, attempt); err != nil && a.logger != nil {
		a.logger.Errorf("login attempt record failed: %v", err)
	}
}

func (a *Authenticator) auditLogin(corr, identityID string, roles []string, actor string, in LoginInput, action string, detail map[string]any) {
	if a.audit == nil {
		return
	}
	a.audit.Record(AuditEvent{
		CorrelationID: corr,
		IdentityID:    identityID,
		Actor:         actor,
		Action:        action,
		IP:            in.IP,
		UserAgent:     in.UserAgent,
		ActorRoles:    roles,
		ResourceType:  "identity",
		ResourceID:    identityID,
		Detail:        detail,
	})
}

func (a *Authenticator) auditSession(corr, identityID string, roles []string, actor string, in LoginInput, action, sessionID string, detail map[string]any) {
	if a.audit == nil {
		return
	}
	a.audit.Record(AuditEvent{
		CorrelationID: corr,
		IdentityID:    identityID,
		Actor:         actor,
		Action:        action,
		IP:            in.IP,
		UserAgent:     in.UserAgent,
		ActorRoles:    roles,
		ResourceType:  "session",
		ResourceID:    sessionID,
		Detail:        detail,
	})
}

// Authenticate maps a bearer access token to its principal.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*Principal, error) {
	sess, err := a.sessions.ResolveToken(ctx, token)
	if err != nil {
		return nil, err
	}
	profile, ok := a.profiles.get(sess.IdentityID)
	if !ok {
		ident, roles, err := a.identities.Get(ctx, sess.IdentityID)
		if err != nil {
			return nil, err
		}
		if ident == nil {
			return nil, ErrSessionExpired
		}
		profile = store.IdentityWithRoles{Identity: *ident, Roles: roles}
		a.profiles.set(sess.IdentityID, profile)
	}
	if !profile.Active {
		return nil, ErrSessionExpired
	}
	return &Principal{Identity: profile.Identity, Roles: profile.Roles, SessionID: sess.ID}, nil
}

// Refresh replaces the access token in place; the session stays. The
// presented token is dead once the new one is saved. Deactivated and
// locked identities cannot refresh.
func (a *Authenticator) Refresh(ctx context.Context, token, ip, userAgent string) (*LoginResult, error) {
	sess, err := a.sessions.ResolveToken(ctx, token)
	if err != nil {
		return nil, err
	}
	ident, roles, err := a.identities.Get(ctx, sess.IdentityID)
	if err != nil {
		return nil, err
	}
	if ident == nil || !ident.Active {
		return nil, ErrSessionExpired
	}
	if le := a.lockout.CheckIdentity(ident); le != nil {
		return nil, ErrSessionExpired
	}
	newToken, err := a.sessions.IssueToken(ctx, ident.ID, sess.ID)
	if err != nil {
		return nil, err
	}
	a.auditSession(NewCorrelationID(), ident.ID, roles, ident.Email, LoginInput{IP: ip, UserAgent: userAgent}, ActionTokenRefresh, sess.ID, nil)
	return &LoginResult{Identity: ident, Roles: roles, Session: sess, Token: newToken}, nil
}

// Logout accepts the access token or a session key, revokes the
// matching session and drops the identity's token when it was bound to
// that session. Unknown credentials are a no-op so repeated logouts
// stay idempotent.
func (a *Authenticator) Logout(ctx context.Context, credential, ip, userAgent string) error {
	sess, err := a.sessions.ResolveToken(ctx, credential)
	if err == ErrSessionExpired {
		sess, err = a.sessions.ResolveKey(ctx, credential)
	}
	if err != nil {
		if err == ErrSessionExpired {
			return nil
		}
		return err
	}
	if err := a.sessions.DeleteToken(ctx, sess.IdentityID); err != nil {
		return err
	}
	if err := a.sessions.Revoke(ctx, sess.ID, "logout"); err != nil {
		return err
	}
	a.auditSession(NewCorrelationID(), sess.IdentityID, nil, "", LoginInput{IP: ip, UserAgent: userAgent}, ActionLogout, sess.ID, nil)
	return nil
}

// EffectivePermissions resolves the identity's permission set including
// per-identity overrides. Expired overrides are skipped, so they stop
// contributing the moment their deadline passes.
func (a *Authenticator) EffectivePermissions(ctx context.Context, identityID string, roles []string) ([]rbac.Permission, error) {
	ov := rbac.Override{}
	entries, err := a.overrides.ListByIdentity(ctx, identityID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	for _, e := range entries {
		if e.ExpiresAt != nil && !e.ExpiresAt.After(now) {
			continue
		}
		switch e.Kind {
		case store.OverrideGrant:
			ov.Grants = append(ov.Grants, rbac.Permission(e.Permission))
		case store.OverrideRevoke:
			ov.Revocations = append(ov.Revocations, rbac.Permission(e.Permission))
		}
	}
	return a.resolver.Effective(ctx, identityID, roles, ov)
}

// Require returns ErrPermissionDenied unless the principal holds perm.
func (a *Authenticator) Require(ctx context.Context, p *Principal, perm rbac.Permission) error {
	perms, err := a.EffectivePermissions(ctx, p.Identity.ID, p.Roles)
	if err != nil {
		return err
	}
	for _, have := range perms {
		if have == perm {
			return nil
		}
	}
	return ErrPermissionDenied
}

func (a *Authenticator) ChangePassword(ctx context.Context, p *Principal, current, next string) error {
	unlock := a.locks.Lock(p.Identity.ID)
	defer unlock()

	stored, err := auth.ParsePasswordHash(p.Identity.PasswordHash, p.Identity.Salt)
	if err != nil {
		return err
	}
	ok, err := auth.VerifyPassword(current, a.pepper, stored)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCredentials
	}
	if err := utils.ValidatePassword(next); err != nil {
		return &ValidationError{Field: "password", Msg: err.Error()}
	}
	h, err := auth.HashPassword(next, a.pepper)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if err := a.identities.UpdatePassword(ctx, p.Identity.ID, h.Hash, h.Salt, now); err != nil {
		return err
	}
	// Other sessions stop working; the one changing the password stays.
	if err := a.sessions.RevokeOthers(ctx, p.Identity.ID, p.SessionID, "password_change"); err != nil {
		return err
	}
	a.profiles.invalidate(p.Identity.ID)
	a.auditLogin(NewCorrelationID(), p.Identity.ID, p.Roles, p.Identity.Email, LoginInput{}, ActionPasswordChanged, nil)
	return nil
}

type CreateIdentityInput struct {
	Email       string
	FullName    string
	Department  string
	Password    string
	Roles       []string
	MFAEnforced bool
}

func (a *Authenticator) CreateIdentity(ctx context.Context, in CreateIdentityInput) (*store.Identity, error) {
	email := utils.NormalizeEmail(in.Email)
	if err := utils.ValidateEmail(email); err != nil {
		return nil, &ValidationError{Field: "email", Msg: err.Error()}
	}
	if err := utils.ValidatePassword(in.Password); err != nil {
		return nil, &ValidationError{Field: "password", Msg: err.Error()}
	}
	for _, role := range in.Roles {
		if !a.resolver.Policy().KnownRole(role) {
			return nil, &ValidationError{Field: "roles", Msg: "unknown role " + role}
		}
	}
	existing, _, err := a.identities.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &ValidationError{Field: "email", Msg: "address already registered"}
	}
	h, err := auth.HashPassword(in.Password, a.pepper)
	if err != nil {
		return nil, err
	}
	ident := &store.Identity{
		ID:           uuid.NewString(),
		Email:        email,
		FullName:     in.FullName,
		Department:   in.Department,
		PasswordHash: h.Hash,
		Salt:         h.Salt,
		Active:       true,
		MFAEnforced:  in.MFAEnforced,
	}
	if err := a.identities.Create(ctx, ident, in.Roles); err != nil {
		return nil, err
	}
	return ident, nil
}

func (a *Authenticator) SetRoles(ctx context.Context, identityID string, roles []string, by string) error {
	for _, role := range roles {
		if !a.resolver.Policy().KnownRole(role) {
			return &ValidationError{Field: "roles", Msg: "unknown role " + role}
		}
	}
	if err := a.identities.SetRoles(ctx, identityID, roles); err != nil {
		return err
	}
	a.resolver.Invalidate(ctx, identityID)
	a.profiles.invalidate(identityID)
	a.auditLogin(NewCorrelationID(), identityID, roles, by, LoginInput{}, ActionRolesChanged, map[string]any{"roles": roles})
	return nil
}

// OverrideInput describes one requested override. ExpiresAt nil means
// the override holds until replaced.
type OverrideInput struct {
	Permission    string
	Kind          string
	Justification string
	ExpiresAt     *time.Time
}

// SetOverrides replaces the identity's full override set. Every entry
// records who granted it and why.
func (a *Authenticator) SetOverrides(ctx context.Context, identityID string, entries []OverrideInput, by string) error {
	rows := make([]store.PermissionOverride, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	summary := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		if e.Kind != store.OverrideGrant && e.Kind != store.OverrideRevoke {
			return &ValidationError{Field: "kind", Msg: "must be grant or revoke"}
		}
		valid, invalid := rbac.NormalizePermissionNames([]string{e.Permission})
		if len(invalid) > 0 || len(valid) != 1 {
			return &ValidationError{Field: "permission", Msg: "unknown permission " + e.Permission}
		}
		key := valid[0] + "|" + e.Kind
		if seen[key] {
			return &ValidationError{Field: "permission", Msg: "duplicate override " + valid[0]}
		}
		seen[key] = true
		rows = append(rows, store.PermissionOverride{
			IdentityID:    identityID,
			Permission:    valid[0],
			Kind:          e.Kind,
			GrantedBy:     by,
			Justification: e.Justification,
			ExpiresAt:     e.ExpiresAt,
		})
		summary = append(summary, map[string]any{"permission": valid[0], "kind": e.Kind})
	}
	if err := a.overrides.Replace(ctx, identityID, rows); err != nil {
		return err
	}
	a.resolver.Invalidate(ctx, identityID)
	a.auditLogin(NewCorrelationID(), identityID, nil, by, LoginInput{}, ActionOverridesChanged, map[string]any{
		"overrides": summary,
	})
	return nil
}

// SetActive enables or disables an account. Disabling revokes every
// live session so access stops immediately.
func (a *Authenticator) SetActive(ctx context.Context, identityID string, active bool, by string) error {
	if err := a.identities.SetActive(ctx, identityID, active); err != nil {
		return err
	}
	if !active {
		if err := a.sessions.RevokeAll(ctx, identityID, by); err != nil {
			return err
		}
	}
	a.profiles.invalidate(identityID)
	a.auditLogin(NewCorrelationID(), identityID, nil, by, LoginInput{}, ActionAccountStateChanged, map[string]any{"active": active})
	return nil
}

// Unlock clears a brute-force lock and resets the failure counter.
func (a *Authenticator) Unlock(ctx context.Context, identityID, by string) error {
	if err := a.identities.ClearLock(ctx, identityID); err != nil {
		return err
	}
	a.auditLogin(NewCorrelationID(), identityID, nil, by, LoginInput{}, ActionUnlock, nil)
	return nil
}

// RemoveMFADevice deletes one of the principal's own second-factor
// devices and records the removal.
func (a *Authenticator) RemoveMFADevice(ctx context.Context, p *Principal, device *store.MFADevice) error {
	if device.IdentityID != p.Identity.ID {
		return ErrPermissionDenied
	}
	if err := a.mfa.RemoveDevice(ctx, device.ID); err != nil {
		return err
	}
	a.auditLogin(NewCorrelationID(), p.Identity.ID, p.Roles, p.Identity.Email, LoginInput{}, ActionMFARemoved, map[string]any{
		"device_id": device.ID, "kind": device.Kind,
	})
	return nil
}

// RevokeSessions ends every live session of the identity, including
// its access token.
func (a *Authenticator) RevokeSessions(ctx context.Context, identityID, by string) error {
	if err := a.sessions.RevokeAll(ctx, identityID, by); err != nil {
		return err
	}
	a.profiles.invalidate(identityID)
	a.auditLogin(NewCorrelationID(), identityID, nil, by, LoginInput{}, ActionSessionRevoked, map[string]any{"scope": "all"})
	return nil
}

func (a *Authenticator) Sessions() *SessionManager {
	return a.sessions
}

func (a *Authenticator) MFA() *MFAEngine {
	return a.mfa
}

func (a *Authenticator) InvalidateProfile(identityID string) {
	a.profiles.invalidate(identityID)
}

// SweepCaches is called from the maintenance job.
func (a *Authenticator) SweepCaches() int {
	return a.profiles.sweep()
}
