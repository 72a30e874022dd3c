package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"medrota-iam/config"
	"medrota-iam/core/identity"
	"medrota-iam/core/rbac"
	"medrota-iam/core/store"
	"medrota-iam/core/utils"
)

// Janitor prunes expired sessions and tokens, aged login attempts and
// audit rows, and sweeps in-memory caches on a cron schedule.
type Janitor struct {
	cfg      config.JanitorConfig
	sessions store.SessionsStore
	tokens   store.AccessTokensStore
	attempts store.LoginAttemptsStore
	audit    store.AuditStore
	auth     *identity.Authenticator
	perms    *rbac.MemoryCache
	logger   *utils.Logger
	cron     *cron.Cron
}

func NewJanitor(cfg config.JanitorConfig, sessions store.SessionsStore, tokens store.AccessTokensStore, attempts store.LoginAttemptsStore, audit store.AuditStore, auth *identity.Authenticator, perms *rbac.MemoryCache, logger *utils.Logger) *Janitor {
	return &Janitor{
		cfg:      cfg,
		sessions: sessions,
		tokens:   tokens,
		attempts: attempts,
		audit:    audit,
		auth:     auth,
		perms:    perms,
		logger:   logger,
	}
}

func (j *Janitor) Start() error {
	if !j.cfg.Enabled {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(j.cfg.Spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		j.RunOnce(ctx)
	}); err != nil {
		return err
	}
	c.Start()
	j.cron = c
	if j.logger != nil {
		j.logger.Printf("janitor scheduled spec=%q", j.cfg.Spec)
	}
	return nil
}

func (j *Janitor) Stop() {
	if j.cron != nil {
		j.cron.Stop()
	}
}

func (j *Janitor) RunOnce(ctx context.Context) {
	now := time.Now().UTC()

	sessions, err := j.sessions.DeleteExpiredBefore(ctx, now.Add(-24*time.Hour))
	if err != nil && j.logger != nil {
		j.logger.Errorf("janitor sessions: %v", err)
	}
	tokens, err := j.tokens.DeleteExpiredBefore(ctx, now)
	if err != nil && j.logger != nil {
		j.logger.Errorf("janitor tokens: %v", err)
	}

	retention := j.cfg.AttemptRetention
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}
	attempts, err := j.attempts.DeleteOlderThan(ctx, now.Add(-retention))
	if err != nil && j.logger != nil {
		j.logger.Errorf("janitor attempts: %v", err)
	}
	auditRows, err := j.audit.DeleteOlderThan(ctx, now.Add(-retention))
	if err != nil && j.logger != nil {
		j.logger.Errorf("janitor audit: %v", err)
	}

	profiles := 0
	if j.auth != nil {
		profiles = j.auth.SweepCaches()
	}
	permEntries := 0
	if j.perms != nil {
		permEntries = j.perms.Sweep()
	}
	if j.logger != nil {
		j.logger.Printf("janitor pass sessions=%d tokens=%d attempts=%d audit=%d profiles=%d perms=%d",
			sessions, tokens, attempts, auditRows, profiles, permEntries)
	}
}
