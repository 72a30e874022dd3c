package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func seedSession(t *testing.T, s SessionsStore, identityID, keyHash string, expiresAt time.Time) *Session {
	t.Helper()
	sess := &Session{
		ID:         uuid.NewString(),
		IdentityID: identityID,
		KeyHash:    keyHash,
		IP:         "10.0.0.5",
		UserAgent:  "test-client",
		ExpiresAt:  expiresAt,
	}
	if err := s.Save(context.Background(), sess); err != nil {
		t.Fatalf("save session: %v", err)
	}
	return sess
}

func TestSessionsKeyLookup(t *testing.T) {
	db := mustTestDB(t)
	ident := seedIdentity(t, NewIdentitiesStore(db), "a@h.org", "nurse")
	s := NewSessionsStore(db)
	ctx := context.Background()

	sess := seedSession(t, s, ident.ID, "hash-1", time.Now().UTC().Add(time.Hour))
	got, err := s.GetByKeyHash(ctx, "hash-1")
	if err != nil || got == nil || got.ID != sess.ID {
		t.Fatalf("lookup: got=%v err=%v", got, err)
	}
	if got, _ := s.GetByKeyHash(ctx, "unknown"); got != nil {
		t.Fatal("unknown hash matched")
	}
}

func TestSessionsExpiryAndRevocation(t *testing.T) {
	db := mustTestDB(t)
	ident := seedIdentity(t, NewIdentitiesStore(db), "b@h.org", "nurse")
	s := NewSessionsStore(db)
	ctx := context.Background()

	expired := seedSession(t, s, ident.ID, "hash-exp", time.Now().UTC().Add(-time.Minute))
	if got, err := s.GetByKeyHash(ctx, "hash-exp"); err != nil || got != nil {
		t.Fatalf("expired session served: got=%v err=%v", got, err)
	}
	_ = expired

	live := seedSession(t, s, ident.ID, "hash-live", time.Now().UTC().Add(time.Hour))
	if err := s.Revoke(ctx, live.ID, "admin@h.org"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if got, _ := s.GetByKeyHash(ctx, "hash-live"); got != nil {
		t.Fatal("revoked session served")
	}
}

func TestSessionsRevokeAllExcept(t *testing.T) {
	db := mustTestDB(t)
	ident := seedIdentity(t, NewIdentitiesStore(db), "c@h.org", "nurse")
	s := NewSessionsStore(db)
	ctx := context.Background()

	keep := seedSession(t, s, ident.ID, "hash-keep", time.Now().UTC().Add(time.Hour))
	seedSession(t, s, ident.ID, "hash-a", time.Now().UTC().Add(time.Hour))
	seedSession(t, s, ident.ID, "hash-b", time.Now().UTC().Add(time.Hour))

	if err := s.RevokeAllForIdentityExcept(ctx, ident.ID, keep.ID, ident.Email); err != nil {
		t.Fatalf("revoke all except: %v", err)
	}
	list, err := s.ListByIdentity(ctx, ident.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != keep.ID {
		t.Fatalf("list after revoke: %+v", list)
	}
}

func TestSessionsDeleteExpired(t *testing.T) {
	db := mustTestDB(t)
	ident := seedIdentity(t, NewIdentitiesStore(db), "d@h.org", "nurse")
	s := NewSessionsStore(db)
	ctx := context.Background()

	seedSession(t, s, ident.ID, "hash-old", time.Now().UTC().Add(-48*time.Hour))
	seedSession(t, s, ident.ID, "hash-new", time.Now().UTC().Add(time.Hour))

	n, err := s.DeleteExpiredBefore(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Fatalf("deleted %d", n)
	}
	if got, _ := s.GetByKeyHash(ctx, "hash-new"); got == nil {
		t.Fatal("live session deleted")
	}
}
