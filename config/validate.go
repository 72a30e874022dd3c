package config

import (
	"fmt"
	"strings"
)

const defaultPepper = "xK1qzr8vWInm4Jp0TeeDhg_-dev-only-pepper"

func Validate(cfg *AppConfig) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	driver := cfg.DBDriver
	if driver == "" {
		driver = "postgres"
	}
	switch driver {
	case "postgres", "pg":
		if strings.TrimSpace(cfg.DBURL) == "" {
			return fmt.Errorf("db_url must be set for postgres driver")
		}
	case "sqlite":
		if strings.TrimSpace(cfg.DBPath) == "" {
			return fmt.Errorf("db_path must be set for sqlite driver")
		}
	default:
		return fmt.Errorf("unsupported db_driver: %s", cfg.DBDriver)
	}
	if strings.TrimSpace(cfg.Pepper) == "" {
		return fmt.Errorf("pepper must be set via env")
	}
	if cfg.AppEnv != "dev" {
		if cfg.Pepper == defaultPepper {
			return fmt.Errorf("default pepper is not allowed outside APP_ENV=dev")
		}
		if !cfg.TLSEnabled {
			return fmt.Errorf("tls_enabled=false is only allowed in APP_ENV=dev")
		}
	}
	if cfg.Lockout.MaxFailures < 2 {
		return fmt.Errorf("lockout.max_failures must be at least 2")
	}
	if cfg.Lockout.AddressMaxFailures < cfg.Lockout.MaxFailures {
		return fmt.Errorf("lockout.address_max_failures must not be lower than lockout.max_failures")
	}
	return nil
}
