package store

import (
	"context"
	"testing"
	"time"
)

func TestPermissionOverridesReplaceAndList(t *testing.T) {
	db := mustTestDB(t)
	ident := seedIdentity(t, NewIdentitiesStore(db), "k@h.org", "nurse")
	s := NewPermissionOverridesStore(db)
	ctx := context.Background()

	if got, err := s.ListByIdentity(ctx, ident.ID); err != nil || len(got) != 0 {
		t.Fatalf("empty list: %v %v", got, err)
	}

	expires := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	entries := []PermissionOverride{
		{Permission: "audit.view", Kind: OverrideGrant, GrantedBy: "admin@h.org", Justification: "quarterly review", ExpiresAt: &expires},
		{Permission: "charts.edit", Kind: OverrideRevoke, GrantedBy: "admin@h.org"},
	}
	if err := s.Replace(ctx, ident.ID, entries); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, err := s.ListByIdentity(ctx, ident.ID)
	if err != nil || len(got) != 2 {
		t.Fatalf("list: %d err=%v", len(got), err)
	}
	if got[0].Permission != "audit.view" || got[0].Kind != OverrideGrant {
		t.Fatalf("first entry: %+v", got[0])
	}
	if got[0].GrantedBy != "admin@h.org" || got[0].Justification != "quarterly review" {
		t.Fatalf("provenance lost: %+v", got[0])
	}
	if got[0].ExpiresAt == nil || !got[0].ExpiresAt.Equal(expires) {
		t.Fatalf("expiry lost: %+v", got[0].ExpiresAt)
	}
	if got[1].Permission != "charts.edit" || got[1].Kind != OverrideRevoke || got[1].ExpiresAt != nil {
		t.Fatalf("second entry: %+v", got[1])
	}

	if err := s.Replace(ctx, ident.ID, []PermissionOverride{
		{Permission: "patients.view", Kind: OverrideRevoke, GrantedBy: "admin@h.org"},
	}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, _ = s.ListByIdentity(ctx, ident.ID)
	if len(got) != 1 || got[0].Permission != "patients.view" {
		t.Fatalf("after overwrite: %+v", got)
	}

	if err := s.Delete(ctx, ident.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := s.ListByIdentity(ctx, ident.ID); len(got) != 0 {
		t.Fatal("deleted overrides still present")
	}
}
