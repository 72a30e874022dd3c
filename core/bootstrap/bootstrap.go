package bootstrap

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"medrota-iam/config"
	"medrota-iam/core/auth"
	"medrota-iam/core/store"
	"medrota-iam/core/utils"
)

// EnsureDefaultAdmin seeds the first administrator account so a fresh
// deployment can be configured at all.
func EnsureDefaultAdmin(ctx context.Context, db *sql.DB, cfg *config.AppConfig, logger *utils.Logger) error {
	return EnsureDefaultAdminWithStore(ctx, store.NewIdentitiesStore(db), cfg, logger)
}

func EnsureDefaultAdminWithStore(ctx context.Context, identities store.IdentitiesStore, cfg *config.AppConfig, logger *utils.Logger) error {
	email := utils.NormalizeEmail(cfg.Bootstrap.AdminEmail)
	existing, _, err := identities.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	password := cfg.Bootstrap.AdminPassword
	generated := false
	if password == "" {
		random, err := utils.RandString(20)
		if err != nil {
			return err
		}
		password = random + "!Aa1"
		generated = true
	}
	ph, err := auth.HashPassword(password, cfg.Pepper)
	if err != nil {
		return err
	}
	ident := &store.Identity{
		ID:           uuid.NewString(),
		Email:        email,
		FullName:     "Default Administrator",
		Department:   "IT",
		PasswordHash: ph.Hash,
		Salt:         ph.Salt,
		Active:       true,
	}
	if err := identities.Create(ctx, ident, []string{"admin"}); err != nil {
		return err
	}
	if logger != nil {
		if generated {
			logger.Printf("default admin %s created, password: %s", email, password)
		} else {
			logger.Printf("default admin %s created", email)
		}
	}
	return nil
}
