package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func seedIdentity(t *testing.T, s IdentitiesStore, email string, roles ...string) *Identity {
	t.Helper()
	ident := &Identity{
		ID:           uuid.NewString(),
		Email:        email,
		FullName:     "Test Clinician",
		PasswordHash: "hash",
		Salt:         "salt",
		Active:       true,
	}
	if err := s.Create(context.Background(), ident, roles); err != nil {
		t.Fatalf("create: %v", err)
	}
	return ident
}

func TestIdentitiesCreateAndFind(t *testing.T) {
	db := mustTestDB(t)
	s := NewIdentitiesStore(db)
	ctx := context.Background()

	seedIdentity(t, s, "nurse.kim@hospital.org", "nurse")

	got, roles, err := s.FindByEmail(ctx, "nurse.kim@hospital.org")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got == nil || got.Email != "nurse.kim@hospital.org" || !got.Active {
		t.Fatalf("identity: %+v", got)
	}
	if len(roles) != 1 || roles[0] != "nurse" {
		t.Fatalf("roles: %v", roles)
	}

	missing, _, err := s.FindByEmail(ctx, "nobody@hospital.org")
	if err != nil || missing != nil {
		t.Fatalf("missing lookup: ident=%v err=%v", missing, err)
	}
}

func TestIdentitiesLockCycle(t *testing.T) {
	db := mustTestDB(t)
	s := NewIdentitiesStore(db)
	ctx := context.Background()
	ident := seedIdentity(t, s, "dr.lee@clinic.org", "physician")

	now := time.Now().UTC().Truncate(time.Second)
	for i := 1; i <= 3; i++ {
		if err := s.RecordLoginFailure(ctx, ident.ID, i, now); err != nil {
			t.Fatalf("failure: %v", err)
		}
	}
	until := now.Add(30 * time.Minute)
	if err := s.SetLock(ctx, ident.ID, until, "too many failed attempts"); err != nil {
		t.Fatalf("lock: %v", err)
	}
	got, _, _ := s.Get(ctx, ident.ID)
	if got.FailedAttempts != 3 || got.LockedUntil == nil || !got.LockedUntil.Equal(until) {
		t.Fatalf("lock state: %+v", got)
	}

	if err := s.RecordLoginSuccess(ctx, ident.ID, now.Add(time.Hour)); err != nil {
		t.Fatalf("success: %v", err)
	}
	got, _, _ = s.Get(ctx, ident.ID)
	if got.FailedAttempts != 0 || got.LockedUntil != nil || got.LastLoginAt == nil {
		t.Fatalf("post-success state: %+v", got)
	}
}

func TestIdentitiesSetRoles(t *testing.T) {
	db := mustTestDB(t)
	s := NewIdentitiesStore(db)
	ctx := context.Background()
	ident := seedIdentity(t, s, "scheduler@hospital.org", "receptionist")

	if err := s.SetRoles(ctx, ident.ID, []string{"scheduler", "receptionist"}); err != nil {
		t.Fatalf("set roles: %v", err)
	}
	_, roles, _ := s.Get(ctx, ident.ID)
	if len(roles) != 2 || roles[0] != "receptionist" || roles[1] != "scheduler" {
		t.Fatalf("roles: %v", roles)
	}
}

func TestIdentitiesUpdatePassword(t *testing.T) {
	db := mustTestDB(t)
	s := NewIdentitiesStore(db)
	ctx := context.Background()
	ident := seedIdentity(t, s, "admin@hospital.org", "admin")

	at := time.Now().UTC().Truncate(time.Second)
	if err := s.UpdatePassword(ctx, ident.ID, "newhash", "newsalt", at); err != nil {
		t.Fatalf("update password: %v", err)
	}
	got, _, _ := s.Get(ctx, ident.ID)
	if got.PasswordHash != "newhash" || got.Salt != "newsalt" || got.PasswordChangedAt == nil {
		t.Fatalf("password state: %+v", got)
	}
}
