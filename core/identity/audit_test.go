package identity

import (
	"context"
	"testing"
	"time"

	"medrota-iam/core/store"
)

func TestAuditLoggerDrainsOnClose(t *testing.T) {
	env := newTestEnv(t)
	ident := env.mustCreate(t, "audited@hospital.org", "nurse")

	if _, err := login(env, ident.Email, testPassword); err != nil {
		t.Fatalf("login: %v", err)
	}
	_, _ = login(env, ident.Email, "Wrong!Horse9Battery")

	// Give the dispatcher a moment, then query through a fresh store view.
	deadline := time.Now().Add(2 * time.Second)
	var entries []store.AuditEntry
	for time.Now().Before(deadline) {
		var err error
		entries, err = storeList(env, ident.ID)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(entries) >= 2 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if len(entries) < 2 {
		t.Fatalf("audit entries: %d", len(entries))
	}
	seen := map[string]bool{}
	for _, e := range entries {
		seen[e.Action] = true
		if e.ID == "" || e.CorrelationID == "" {
			t.Fatalf("entry missing ids: %+v", e)
		}
	}
	if !seen[ActionLogin] || !seen[ActionLoginFailed] {
		t.Fatalf("actions: %v", seen)
	}
}

func storeList(env *testEnv, identityID string) ([]store.AuditEntry, error) {
	return envAudit(env).List(context.Background(), store.AuditFilter{IdentityID: identityID})
}

func envAudit(env *testEnv) store.AuditStore {
	return env.auth.audit.store
}
