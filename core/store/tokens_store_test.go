package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestAccessTokensReplaceDropsPrevious(t *testing.T) {
	db := mustTestDB(t)
	ident := seedIdentity(t, NewIdentitiesStore(db), "t@h.org", "nurse")
	s := NewAccessTokensStore(db)
	ctx := context.Background()
	now := time.Now().UTC()

	first := &AccessToken{IdentityID: ident.ID, SessionID: uuid.NewString(), TokenHash: "hash-1", ExpiresAt: now.Add(time.Hour)}
	if err := s.Replace(ctx, first); err != nil {
		t.Fatalf("replace first: %v", err)
	}
	second := &AccessToken{IdentityID: ident.ID, SessionID: uuid.NewString(), TokenHash: "hash-2", ExpiresAt: now.Add(time.Hour)}
	if err := s.Replace(ctx, second); err != nil {
		t.Fatalf("replace second: %v", err)
	}

	if got, _ := s.GetByHash(ctx, "hash-1"); got != nil {
		t.Fatal("replaced token still resolvable")
	}
	got, err := s.GetByHash(ctx, "hash-2")
	if err != nil || got == nil || got.SessionID != second.SessionID {
		t.Fatalf("current token: %+v err=%v", got, err)
	}
}

func TestAccessTokensDeleteAndPurge(t *testing.T) {
	db := mustTestDB(t)
	identities := NewIdentitiesStore(db)
	a := seedIdentity(t, identities, "u@h.org", "nurse")
	b := seedIdentity(t, identities, "v@h.org", "nurse")
	s := NewAccessTokensStore(db)
	ctx := context.Background()
	now := time.Now().UTC()

	_ = s.Replace(ctx, &AccessToken{IdentityID: a.ID, SessionID: uuid.NewString(), TokenHash: "hash-a", ExpiresAt: now.Add(-time.Minute)})
	_ = s.Replace(ctx, &AccessToken{IdentityID: b.ID, SessionID: uuid.NewString(), TokenHash: "hash-b", ExpiresAt: now.Add(time.Hour)})

	if err := s.DeleteByIdentity(ctx, b.ID); err != nil {
		t.Fatalf("delete by identity: %v", err)
	}
	if got, _ := s.GetByHash(ctx, "hash-b"); got != nil {
		t.Fatal("deleted token still resolvable")
	}

	n, err := s.DeleteExpiredBefore(ctx, now)
	if err != nil || n != 1 {
		t.Fatalf("purge: n=%d err=%v", n, err)
	}
}
