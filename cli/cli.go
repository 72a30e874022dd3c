package cli

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"medrota-iam/config"
	"medrota-iam/core/auth"
	"medrota-iam/core/rbac"
	"medrota-iam/core/store"
	"medrota-iam/core/utils"
)

func Run() {
	createCmd := flag.NewFlagSet("create-identity", flag.ExitOnError)
	email := createCmd.String("email", "", "email address")
	name := createCmd.String("name", "", "full name")
	password := createCmd.String("password", "", "initial password")
	roles := createCmd.String("roles", "receptionist", "comma separated roles")

	unlockCmd := flag.NewFlagSet("unlock", flag.ExitOnError)
	unlockEmail := unlockCmd.String("email", "", "email address")

	if len(os.Args) < 2 {
		fmt.Println("commands: create-identity, unlock, list")
		return
	}

	switch os.Args[1] {
	case "create-identity":
		_ = createCmd.Parse(os.Args[2:])
		db, cfg, logger := open()
		defer db.Close()
		policy := rbac.MustNewPolicy(rbac.DefaultRoles())
		roleList := splitRoles(*roles)
		for _, role := range roleList {
			if !policy.KnownRole(role) {
				logger.Fatalf("unknown role %q", role)
			}
		}
		normalized := utils.NormalizeEmail(*email)
		if err := utils.ValidateEmail(normalized); err != nil {
			logger.Fatalf("email: %v", err)
		}
		if err := utils.ValidatePassword(*password); err != nil {
			logger.Fatalf("password: %v", err)
		}
		ph, err := auth.HashPassword(*password, cfg.Pepper)
		if err != nil {
			logger.Fatalf("hash: %v", err)
		}
		ident := &store.Identity{
			ID:           uuid.NewString(),
			Email:        normalized,
			FullName:     *name,
			PasswordHash: ph.Hash,
			Salt:         ph.Salt,
			Active:       true,
		}
		if err := store.NewIdentitiesStore(db).Create(context.Background(), ident, roleList); err != nil {
			logger.Fatalf("create: %v", err)
		}
		fmt.Println("identity created:", ident.ID)
	case "unlock":
		_ = unlockCmd.Parse(os.Args[2:])
		db, _, logger := open()
		defer db.Close()
		identities := store.NewIdentitiesStore(db)
		ident, _, err := identities.FindByEmail(context.Background(), utils.NormalizeEmail(*unlockEmail))
		if err != nil {
			logger.Fatalf("lookup: %v", err)
		}
		if ident == nil {
			logger.Fatalf("no identity for %s", *unlockEmail)
		}
		if err := identities.ClearLock(context.Background(), ident.ID); err != nil {
			logger.Fatalf("unlock: %v", err)
		}
		fmt.Println("unlocked")
	case "list":
		db, _, logger := open()
		defer db.Close()
		list, err := store.NewIdentitiesStore(db).List(context.Background())
		if err != nil {
			logger.Fatalf("list: %v", err)
		}
		for _, ident := range list {
			state := "active"
			if !ident.Active {
				state = "disabled"
			}
			fmt.Printf("%s\t%s\t%s\t%s\n", ident.ID, ident.Email, strings.Join(ident.Roles, ","), state)
		}
	default:
		fmt.Println("unknown command")
	}
}

func open() (*sql.DB, *config.AppConfig, *utils.Logger) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config load failed:", err)
		os.Exit(1)
	}
	logger := utils.NewLogger()
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		logger.Fatalf("db: %v", err)
	}
	if err := store.ApplyMigrations(context.Background(), db, logger); err != nil {
		logger.Fatalf("migrations: %v", err)
	}
	return db, cfg, logger
}

func splitRoles(r string) []string {
	var res []string
	for _, part := range strings.Split(r, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			res = append(res, part)
		}
	}
	return res
}
