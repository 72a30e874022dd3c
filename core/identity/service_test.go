package identity

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"medrota-iam/config"
	"medrota-iam/core/auth"
	"medrota-iam/core/rbac"
	"medrota-iam/core/store"
	"medrota-iam/core/utils"
)

const testPassword = "Correct!Horse9Battery"

type capturingSender struct {
	messages []string
}

func (s *capturingSender) Send(_ context.Context, _ string, message string) error {
	s.messages = append(s.messages, message)
	return nil
}

type testEnv struct {
	auth       *Authenticator
	identities store.IdentitiesStore
	sessions   store.SessionsStore
	attempts   store.LoginAttemptsStore
	mfaDevices store.MFADevicesStore
	sender     *capturingSender
	cfg        *config.AppConfig
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := &config.AppConfig{
		DBPath: filepath.Join(t.TempDir(), "iam.db"),
		Pepper: "test-pepper",
		Issuer: "Medrota",
		Lockout: config.LockoutConfig{
			MaxFailures:        3,
			Duration:           30 * time.Minute,
			AttemptWindow:      15 * time.Minute,
			AddressMaxFailures: 6,
		},
		Cache: config.CacheConfig{
			PermissionTTL: 5 * time.Minute,
			ProfileTTL:    10 * time.Minute,
		},
	}
	logger := utils.NewLogger()
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	if err := store.ApplyMigrations(context.Background(), db, logger); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	identities := store.NewIdentitiesStore(db)
	sessions := store.NewSessionsStore(db)
	tokens := store.NewAccessTokensStore(db)
	attempts := store.NewLoginAttemptsStore(db)
	devices := store.NewMFADevicesStore(db)
	recovery := store.NewRecoveryCodesStore(db)
	overrides := store.NewPermissionOverridesStore(db)
	auditStore := store.NewAuditStore(db)

	cipher, err := auth.NewSeedCipher(cfg.Pepper)
	if err != nil {
		t.Fatalf("cipher: %v", err)
	}
	sender := &capturingSender{}
	mfa := NewMFAEngine(devices, recovery, cipher, sender, cfg.Issuer, cfg.Pepper)
	audit := NewAuditLogger(auditStore, logger)
	t.Cleanup(audit.Close)

	policy := rbac.MustNewPolicy(rbac.DefaultRoles())
	resolver := rbac.NewResolver(policy, rbac.NewMemoryCache(), cfg.Cache.PermissionTTL)

	a := NewAuthenticator(AuthenticatorDeps{
		Config:     cfg,
		Identities: identities,
		Attempts:   attempts,
		Overrides:  overrides,
		Sessions:   NewSessionManager(sessions, tokens, time.Hour),
		MFA:        mfa,
		Lockout:    NewLockoutPolicy(cfg.Lockout, attempts),
		Resolver:   resolver,
		Audit:      audit,
		Logger:     logger,
	})
	return &testEnv{
		auth:       a,
		identities: identities,
		sessions:   sessions,
		attempts:   attempts,
		mfaDevices: devices,
		sender:     sender,
		cfg:        cfg,
	}
}

func (env *testEnv) mustCreate(t *testing.T, email string, roles ...string) *store.Identity {
	t.Helper()
	ident, err := env.auth.CreateIdentity(context.Background(), CreateIdentityInput{
		Email:    email,
		FullName: "Test Clinician",
		Password: testPassword,
		Roles:    roles,
	})
	if err != nil {
		t.Fatalf("create identity: %v", err)
	}
	return ident
}

func login(env *testEnv, email, password string) (*LoginResult, error) {
	return env.auth.Login(context.Background(), LoginInput{
		Email: email, Password: password, IP: "10.1.1.1", UserAgent: "test",
	})
}

func TestLoginSuccess(t *testing.T) {
	env := newTestEnv(t)
	env.mustCreate(t, "nurse.kim@hospital.org", "nurse")

	res, err := login(env, "Nurse.Kim@Hospital.ORG", testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Token == "" || res.SessionKey == "" || res.Session == nil {
		t.Fatalf("result: %+v", res)
	}
	if res.Token == res.SessionKey {
		t.Fatal("token and session key should differ")
	}
	if len(res.Roles) != 1 || res.Roles[0] != "nurse" {
		t.Fatalf("roles: %v", res.Roles)
	}

	p, err := env.auth.Authenticate(context.Background(), res.Token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if p.Identity.Email != "nurse.kim@hospital.org" {
		t.Fatalf("principal: %+v", p)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.mustCreate(t, "dr.lee@clinic.org", "physician")

	_, err := login(env, "dr.lee@clinic.org", "Wrong!Horse9Battery")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err: %v", err)
	}
}

func TestLoginUnknownEmailRecorded(t *testing.T) {
	env := newTestEnv(t)

	_, err := login(env, "ghost@hospital.org", testPassword)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err: %v", err)
	}
	n, err := env.attempts.CountFailuresByIPSince(context.Background(), "10.1.1.1", time.Now().UTC().Add(-time.Minute))
	if err != nil || n != 1 {
		t.Fatalf("ledger: n=%d err=%v", n, err)
	}
}

func TestLockoutAfterRepeatedFailures(t *testing.T) {
	env := newTestEnv(t)
	ident := env.mustCreate(t, "locked@hospital.org", "nurse")

	var lastErr error
	for i := 0; i < env.cfg.Lockout.MaxFailures; i++ {
		_, lastErr = login(env, ident.Email, "Wrong!Horse9Battery")
	}
	le, ok := AsLocked(lastErr)
	if !ok {
		t.Fatalf("expected lock, got %v", lastErr)
	}
	if until := time.Until(le.Until); until < 25*time.Minute || until > 31*time.Minute {
		t.Fatalf("lock until %v", le.Until)
	}

	// Correct password still refused while locked.
	_, err := login(env, ident.Email, testPassword)
	if _, ok := AsLocked(err); !ok {
		t.Fatalf("locked login err: %v", err)
	}
}

func TestExpiredLockClears(t *testing.T) {
	env := newTestEnv(t)
	ident := env.mustCreate(t, "was.locked@hospital.org", "nurse")
	past := time.Now().UTC().Add(-time.Minute)
	if err := env.identities.SetLock(context.Background(), ident.ID, past, "too many failed attempts"); err != nil {
		t.Fatalf("set lock: %v", err)
	}

	res, err := login(env, ident.Email, testPassword)
	if err != nil {
		t.Fatalf("login after lock expiry: %v", err)
	}
	if res.Token == "" {
		t.Fatal("no token issued")
	}
	got, _, _ := env.identities.Get(context.Background(), ident.ID)
	if got.LockedUntil != nil || got.FailedAttempts != 0 {
		t.Fatalf("lock not cleared: %+v", got)
	}
}

func TestAddressThrottle(t *testing.T) {
	env := newTestEnv(t)
	// Failures across many unknown addresses from one source.
	for i := 0; i < env.cfg.Lockout.AddressMaxFailures; i++ {
		_, _ = login(env, fmt.Sprintf("guess%d@hospital.org", i), "Wrong!Horse9Battery")
	}
	_, err := login(env, "another@hospital.org", "Wrong!Horse9Battery")
	if !errors.Is(err, ErrRateLimitExceeded) {
		t.Fatalf("err: %v", err)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	env := newTestEnv(t)
	env.mustCreate(t, "rotate@hospital.org", "nurse")
	res, err := login(env, "rotate@hospital.org", testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	fresh, err := env.auth.Refresh(context.Background(), res.Token, "10.1.1.1", "test")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if fresh.Token == res.Token {
		t.Fatal("token not rotated")
	}
	if _, err := env.auth.Authenticate(context.Background(), res.Token); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("old token err: %v", err)
	}
	if _, err := env.auth.Authenticate(context.Background(), fresh.Token); err != nil {
		t.Fatalf("new token: %v", err)
	}
}

func TestLogoutIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.mustCreate(t, "bye@hospital.org", "nurse")
	res, _ := login(env, "bye@hospital.org", testPassword)

	if err := env.auth.Logout(context.Background(), res.Token, "10.1.1.1", "test"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := env.auth.Authenticate(context.Background(), res.Token); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("post-logout err: %v", err)
	}
	if err := env.auth.Logout(context.Background(), res.Token, "10.1.1.1", "test"); err != nil {
		t.Fatalf("second logout: %v", err)
	}
}

func TestChangePasswordRevokesOtherSessions(t *testing.T) {
	env := newTestEnv(t)
	env.mustCreate(t, "pw@hospital.org", "nurse")
	first, _ := login(env, "pw@hospital.org", testPassword)
	second, _ := login(env, "pw@hospital.org", testPassword)

	p, err := env.auth.Authenticate(context.Background(), second.Token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	const next = "Another!Horse9Battery"
	if err := env.auth.ChangePassword(context.Background(), p, testPassword, next); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, err := env.auth.Authenticate(context.Background(), first.Token); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("first session survived: %v", err)
	}
	if _, err := env.auth.Authenticate(context.Background(), second.Token); err != nil {
		t.Fatalf("own session revoked: %v", err)
	}
	if _, err := login(env, "pw@hospital.org", next); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestChangePasswordRejectsWrongCurrent(t *testing.T) {
	env := newTestEnv(t)
	env.mustCreate(t, "pw2@hospital.org", "nurse")
	res, _ := login(env, "pw2@hospital.org", testPassword)
	p, _ := env.auth.Authenticate(context.Background(), res.Token)

	err := env.auth.ChangePassword(context.Background(), p, "Wrong!Horse9Battery", "Another!Horse9Battery")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err: %v", err)
	}
}

func TestFailureAfterSuccessDoesNotLock(t *testing.T) {
	env := newTestEnv(t)
	ident := env.mustCreate(t, "reset@hospital.org", "nurse")

	for i := 0; i < env.cfg.Lockout.MaxFailures-1; i++ {
		if _, err := login(env, ident.Email, "Wrong!Horse9Battery"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("failure %d: %v", i, err)
		}
	}
	if _, err := login(env, ident.Email, testPassword); err != nil {
		t.Fatalf("success between failures: %v", err)
	}

	// The success zeroed the counter, so one more failure starts over.
	_, err := login(env, ident.Email, "Wrong!Horse9Battery")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("post-success failure: %v", err)
	}
	if _, ok := AsLocked(err); ok {
		t.Fatal("account locked despite intervening success")
	}
	got, _, _ := env.identities.Get(context.Background(), ident.ID)
	if got.LockedUntil != nil {
		t.Fatalf("lock applied: %+v", got)
	}
	if got.FailedAttempts != 1 {
		t.Fatalf("counter not restarted: %d", got.FailedAttempts)
	}

	if _, err := login(env, ident.Email, testPassword); err != nil {
		t.Fatalf("login after single failure: %v", err)
	}
}

func TestSecondLoginInvalidatesFirstToken(t *testing.T) {
	env := newTestEnv(t)
	env.mustCreate(t, "twice@hospital.org", "nurse")

	first, err := login(env, "twice@hospital.org", testPassword)
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	second, err := login(env, "twice@hospital.org", testPassword)
	if err != nil {
		t.Fatalf("second login: %v", err)
	}

	if _, err := env.auth.Authenticate(context.Background(), first.Token); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("first token still live: %v", err)
	}
	if _, err := env.auth.Authenticate(context.Background(), second.Token); err != nil {
		t.Fatalf("second token: %v", err)
	}
	// Both sessions stay listed; only the token is single-valued.
	list, err := env.auth.Sessions().List(context.Background(), second.Identity.ID)
	if err != nil || len(list) != 2 {
		t.Fatalf("sessions: %d err=%v", len(list), err)
	}
}

func TestRefreshRejectedWhileLocked(t *testing.T) {
	env := newTestEnv(t)
	ident := env.mustCreate(t, "frozen@hospital.org", "nurse")
	res, err := login(env, ident.Email, testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	until := time.Now().UTC().Add(30 * time.Minute)
	if err := env.identities.SetLock(context.Background(), ident.ID, until, "too many failed attempts"); err != nil {
		t.Fatalf("set lock: %v", err)
	}

	if _, err := env.auth.Refresh(context.Background(), res.Token, "10.1.1.1", "test"); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("locked refresh err: %v", err)
	}
}

func TestRefreshRejectedWhenDeactivated(t *testing.T) {
	env := newTestEnv(t)
	ident := env.mustCreate(t, "gone@hospital.org", "nurse")
	res, _ := login(env, ident.Email, testPassword)

	if err := env.identities.SetActive(context.Background(), ident.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := env.auth.Refresh(context.Background(), res.Token, "10.1.1.1", "test"); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("inactive refresh err: %v", err)
	}
}

func TestLoginValidation(t *testing.T) {
	env := newTestEnv(t)
	if _, err := login(env, "not-an-email", testPassword); err == nil {
		t.Fatal("bad email accepted")
	} else if _, ok := AsValidation(err); !ok {
		t.Fatalf("err type: %v", err)
	}
	if _, err := login(env, "a@b.com", ""); err == nil {
		t.Fatal("empty password accepted")
	}
}
