package identity

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"

	"medrota-iam/core/store"
	"medrota-iam/core/utils"
)

const (
	ActionLogin            = "auth.login"
	ActionLoginFailed      = "auth.login_failed"
	ActionLockout          = "auth.lockout"
	ActionLogout           = "auth.logout"
	ActionTokenRefresh     = "auth.token_refresh"
	ActionMFAEnrolled      = "auth.mfa_enrolled"
	ActionMFAActivated     = "auth.mfa_activated"
	ActionMFAFailed        = "auth.mfa_failed"
	ActionMFARemoved       = "auth.mfa_removed"
	ActionPasswordChanged  = "auth.password_changed"
	ActionSessionRevoked   = "auth.session_revoked"
	ActionRolesChanged     = "auth.roles_changed"
	ActionOverridesChanged = "auth.overrides_changed"

	ActionAccountStateChanged = "account.state_changed"
	ActionUnlock              = "account.unlocked"
)

type AuditEvent struct {
	CorrelationID string
	IdentityID    string
	Actor         string
	Action        string
	IP            string
	UserAgent     string
	ActorRoles    []string
	ResourceType  string
	ResourceID    string
	RiskLevel     string
	Detail        map[string]any
}

// Risk classification per action, for filtering the trail. Actions not
// listed here read as low.
var actionRisk = map[string]string{
	ActionLoginFailed:         "medium",
	ActionLockout:             "high",
	ActionMFAFailed:           "medium",
	ActionMFARemoved:          "high",
	ActionPasswordChanged:     "medium",
	ActionSessionRevoked:      "medium",
	ActionRolesChanged:        "high",
	ActionOverridesChanged:    "high",
	ActionAccountStateChanged: "high",
	ActionUnlock:              "high",
}

func riskFor(action string) string {
	if r, ok := actionRisk[action]; ok {
		return r
	}
	return "low"
}

// AuditLogger writes entries through a buffered channel so the login
// path never blocks on audit storage. Close drains the queue.
type AuditLogger struct {
	store  store.AuditStore
	logger *utils.Logger
	queue  chan *store.AuditEntry
	done   chan struct{}
}

func NewAuditLogger(auditStore store.AuditStore, logger *utils.Logger) *AuditLogger {
	a := &AuditLogger{
		store:  auditStore,
		logger: logger,
		queue:  make(chan *store.AuditEntry, 256),
		done:   make(chan struct{}),
	}
	go a.dispatch()
	return a
}

func (a *AuditLogger) Record(ev AuditEvent) {
	risk := ev.RiskLevel
	if risk == "" {
		risk = riskFor(ev.Action)
	}
	entry := &store.AuditEntry{
		ID:            ulid.Make().String(),
		CorrelationID: ev.CorrelationID,
		Actor:         ev.Actor,
		Action:        ev.Action,
		IP:            ev.IP,
		UserAgent:     ev.UserAgent,
		ActorRoles:    ev.ActorRoles,
		ResourceType:  ev.ResourceType,
		ResourceID:    ev.ResourceID,
		RiskLevel:     risk,
		CreatedAt:     time.Now().UTC(),
	}
	if ev.IdentityID != "" {
		id := ev.IdentityID
		entry.IdentityID = &id
	}
	if len(ev.Detail) > 0 {
		if raw, err := json.Marshal(ev.Detail); err == nil {
			entry.Detail = string(raw)
		}
	}
	select {
	case a.queue <- entry:
	default:
		// Queue full: write inline rather than drop the entry.
		a.write(entry)
	}
}

func (a *AuditLogger) dispatch() {
	defer close(a.done)
	for entry := range a.queue {
		a.write(entry)
	}
}

func (a *AuditLogger) write(entry *store.AuditEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.store.Insert(ctx, entry); err != nil && a.logger != nil {
		a.logger.Errorf("audit write failed action=%s: %v", entry.Action, err)
	}
}

func (a *AuditLogger) Close() {
	close(a.queue)
	<-a.done
}

// NewCorrelationID tags the audit entries of one authentication flow.
func NewCorrelationID() string {
	return ulid.Make().String()
}
