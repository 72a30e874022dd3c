package jobs

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"medrota-iam/config"
	"medrota-iam/core/store"
	"medrota-iam/core/utils"
)

func TestJanitorRunOnce(t *testing.T) {
	cfg := &config.AppConfig{DBPath: filepath.Join(t.TempDir(), "iam.db"), Pepper: "pepper"}
	logger := utils.NewLogger()
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	if err := store.ApplyMigrations(context.Background(), db, logger); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	identities := store.NewIdentitiesStore(db)
	sessions := store.NewSessionsStore(db)
	tokens := store.NewAccessTokensStore(db)
	attempts := store.NewLoginAttemptsStore(db)
	audit := store.NewAuditStore(db)

	ident := &store.Identity{ID: uuid.NewString(), Email: "x@h.org", Active: true}
	if err := identities.Create(ctx, ident, []string{"nurse"}); err != nil {
		t.Fatalf("identity: %v", err)
	}
	now := time.Now().UTC()
	old := &store.Session{
		ID: uuid.NewString(), IdentityID: ident.ID, KeyHash: "h-old",
		CreatedAt: now.Add(-72 * time.Hour), LastSeenAt: now.Add(-72 * time.Hour),
		ExpiresAt: now.Add(-48 * time.Hour),
	}
	live := &store.Session{
		ID: uuid.NewString(), IdentityID: ident.ID, KeyHash: "h-live",
		CreatedAt: now, LastSeenAt: now, ExpiresAt: now.Add(time.Hour),
	}
	if err := sessions.Save(ctx, old); err != nil {
		t.Fatalf("session: %v", err)
	}
	if err := sessions.Save(ctx, live); err != nil {
		t.Fatalf("session: %v", err)
	}
	_ = attempts.Record(ctx, &store.LoginAttempt{Email: "x@h.org", IP: "1.1.1.1", Success: false, Reason: "invalid_credentials", CreatedAt: now.Add(-100 * 24 * time.Hour)})
	_ = attempts.Record(ctx, &store.LoginAttempt{Email: "x@h.org", IP: "1.1.1.1", Success: true, CreatedAt: now})
	_ = tokens.Replace(ctx, &store.AccessToken{IdentityID: ident.ID, SessionID: old.ID, TokenHash: "t-old", ExpiresAt: now.Add(-time.Hour)})

	j := NewJanitor(config.JanitorConfig{Enabled: true, Spec: "@every 10m", AttemptRetention: 90 * 24 * time.Hour},
		sessions, tokens, attempts, audit, nil, nil, logger)
	j.RunOnce(ctx)

	if got, _ := sessions.Get(ctx, live.ID); got == nil {
		t.Fatal("live session purged")
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(1) FROM sessions`).Scan(&n); err != nil || n != 1 {
		t.Fatalf("sessions remaining: %d err=%v", n, err)
	}
	if err := db.QueryRow(`SELECT COUNT(1) FROM login_attempts`).Scan(&n); err != nil || n != 1 {
		t.Fatalf("attempts remaining: %d err=%v", n, err)
	}
	if err := db.QueryRow(`SELECT COUNT(1) FROM access_tokens`).Scan(&n); err != nil || n != 0 {
		t.Fatalf("tokens remaining: %d err=%v", n, err)
	}
}
