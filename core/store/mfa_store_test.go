package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestMFADeviceLifecycle(t *testing.T) {
	db := mustTestDB(t)
	ident := seedIdentity(t, NewIdentitiesStore(db), "g@h.org", "nurse")
	s := NewMFADevicesStore(db)
	ctx := context.Background()

	dev := &MFADevice{
		ID:           uuid.NewString(),
		IdentityID:   ident.ID,
		Kind:         MFAKindTOTP,
		Label:        "authenticator",
		SecretSealed: "sealed-blob",
	}
	if err := s.Create(ctx, dev); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := s.Get(ctx, dev.ID)
	if err != nil || got == nil {
		t.Fatalf("get: %v %v", got, err)
	}
	if got.Status != MFAStatusPending {
		t.Fatalf("new device status: %q", got.Status)
	}
	if active, _ := s.ListActiveByIdentity(ctx, ident.ID); len(active) != 0 {
		t.Fatal("pending device listed as active")
	}

	at := time.Now().UTC().Truncate(time.Second)
	if err := s.Activate(ctx, dev.ID, at); err != nil {
		t.Fatalf("activate: %v", err)
	}
	active, err := s.ListActiveByIdentity(ctx, ident.ID)
	if err != nil || len(active) != 1 {
		t.Fatalf("active list: %d err=%v", len(active), err)
	}
	if active[0].ActivatedAt == nil {
		t.Fatal("activated_at not set")
	}

	if err := s.Delete(ctx, dev.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := s.Get(ctx, dev.ID); got != nil {
		t.Fatal("deleted device still present")
	}
}

func TestMFASMSChallenge(t *testing.T) {
	db := mustTestDB(t)
	ident := seedIdentity(t, NewIdentitiesStore(db), "h@h.org", "nurse")
	s := NewMFADevicesStore(db)
	ctx := context.Background()

	dev := &MFADevice{ID: uuid.NewString(), IdentityID: ident.ID, Kind: MFAKindSMS, Phone: "+15551234567"}
	if err := s.Create(ctx, dev); err != nil {
		t.Fatalf("create: %v", err)
	}
	issued := time.Now().UTC().Truncate(time.Second)
	if err := s.SetPendingCode(ctx, dev.ID, "123456", issued); err != nil {
		t.Fatalf("set code: %v", err)
	}
	got, _ := s.Get(ctx, dev.ID)
	if got.PendingCode != "123456" || got.CodeIssuedAt == nil {
		t.Fatalf("challenge state: %+v", got)
	}
	if err := s.ClearPendingCode(ctx, dev.ID); err != nil {
		t.Fatalf("clear: %v", err)
	}
	got, _ = s.Get(ctx, dev.ID)
	if got.PendingCode != "" || got.CodeIssuedAt != nil {
		t.Fatalf("challenge not cleared: %+v", got)
	}
}

func TestRecoveryCodesStore(t *testing.T) {
	db := mustTestDB(t)
	ident := seedIdentity(t, NewIdentitiesStore(db), "i@h.org", "nurse")
	s := NewRecoveryCodesStore(db)
	ctx := context.Background()

	hashes := []RecoveryCode{
		{CodeHash: "h1", Salt: "s1"},
		{CodeHash: "h2", Salt: "s2"},
	}
	if err := s.Replace(ctx, ident.ID, hashes); err != nil {
		t.Fatalf("replace: %v", err)
	}
	unused, err := s.ListUnused(ctx, ident.ID)
	if err != nil || len(unused) != 2 {
		t.Fatalf("unused: %d err=%v", len(unused), err)
	}
	if err := s.MarkUsed(ctx, unused[0].ID, time.Now().UTC()); err != nil {
		t.Fatalf("mark used: %v", err)
	}
	if n, _ := s.CountUnused(ctx, ident.ID); n != 1 {
		t.Fatalf("count unused: %d", n)
	}
	// Replace drops spent and unspent codes alike.
	if err := s.Replace(ctx, ident.ID, hashes[:1]); err != nil {
		t.Fatalf("replace again: %v", err)
	}
	if n, _ := s.CountUnused(ctx, ident.ID); n != 1 {
		t.Fatalf("count after replace: %d", n)
	}
}
