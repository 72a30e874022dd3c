package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"medrota-iam/api"
	"medrota-iam/config"
	"medrota-iam/core/auth"
	"medrota-iam/core/bootstrap"
	"medrota-iam/core/identity"
	"medrota-iam/core/jobs"
	"medrota-iam/core/rbac"
	"medrota-iam/core/store"
	"medrota-iam/core/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logger := utils.NewLogger()
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		logger.Fatalf("db init: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := store.ApplyMigrations(ctx, db, logger); err != nil {
		logger.Fatalf("migrations: %v", err)
	}
	if err := bootstrap.EnsureDefaultAdmin(ctx, db, cfg, logger); err != nil {
		logger.Fatalf("seed admin: %v", err)
	}

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
		logger.Fatalf("mfa cipher: %v", err)
	}

	worker := jobs.NewWorker(logger)
	worker.StartWithContext(ctx)
	defer worker.Stop()

	sender := jobs.NewAsyncSMSSender(worker, jobs.LogDelivery(logger))
	mfa := identity.NewMFAEngine(devices, recovery, cipher, sender, cfg.Issuer, cfg.Pepper)

	audit := identity.NewAuditLogger(auditStore, logger)
	defer audit.Close()

	policy, err := rbac.NewPolicy(rbac.DefaultRoles())
	if err != nil {
		logger.Fatalf("rbac policy: %v", err)
	}
	var permCache rbac.PermissionCache
	var memCache *rbac.MemoryCache
	if cfg.Cache.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Fatalf("redis: %v", err)
		}
		permCache = rbac.NewRedisCache(client)
		logger.Printf("permission cache: redis %s", cfg.Cache.RedisAddr)
	} else {
		memCache = rbac.NewMemoryCache()
		permCache = memCache
	}
	resolver := rbac.NewResolver(policy, permCache, cfg.Cache.PermissionTTL)

	authn := identity.NewAuthenticator(identity.AuthenticatorDeps{
		Config:     cfg,
		Identities: identities,
		Attempts:   attempts,
		Overrides:  overrides,
		Sessions:   identity.NewSessionManager(sessions, tokens, cfg.EffectiveSessionTTL()),
		MFA:        mfa,
		Lockout:    identity.NewLockoutPolicy(cfg.Lockout, attempts),
		Resolver:   resolver,
		Audit:      audit,
		Logger:     logger,
	})

	if cfg.Janitor.Enabled {
		janitor := jobs.NewJanitor(cfg.Janitor, sessions, tokens, attempts, auditStore, authn, memCache, logger)
		if err := janitor.Start(); err != nil {
			logger.Fatalf("janitor: %v", err)
		}
		defer janitor.Stop()
	}

	srv := api.NewServer(api.ServerDeps{
		Config:     cfg,
		Auth:       authn,
		Identities: identities,
		Audit:      auditStore,
		Worker:     worker,
		Logger:     logger,
	})
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("graceful shutdown: %v", err)
	}
}
