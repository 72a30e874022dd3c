package config

import "time"

type AppConfig struct {
	ListenAddr string `yaml:"listen_addr" env:"MEDROTA_LISTEN_ADDR" env-default:"0.0.0.0:8080"`
	AppEnv     string `yaml:"app_env" env:"MEDROTA_APP_ENV" env-default:"dev"`

	DBDriver string `yaml:"db_driver" env:"MEDROTA_DB_DRIVER"`
	DBURL    string `yaml:"db_url" env:"MEDROTA_DB_URL"`
	DBPath   string `yaml:"db_path" env:"MEDROTA_DB_PATH"`

	// Pepper is mixed into password, recovery-code and MFA-secret key
	// derivation. Must be overridden outside dev.
	Pepper string `yaml:"pepper" env:"MEDROTA_PEPPER"`

	SessionTTL time.Duration `yaml:"session_ttl" env:"MEDROTA_SESSION_TTL"`

	TLSEnabled bool   `yaml:"tls_enabled" env:"MEDROTA_TLS_ENABLED"`
	TLSCert    string `yaml:"tls_cert" env:"MEDROTA_TLS_CERT"`
	TLSKey     string `yaml:"tls_key" env:"MEDROTA_TLS_KEY"`

	Issuer string `yaml:"issuer" env:"MEDROTA_ISSUER"`

	Bootstrap BootstrapConfig `yaml:"bootstrap"`

	Lockout  LockoutConfig  `yaml:"lockout"`
	Cache    CacheConfig    `yaml:"cache"`
	Janitor  JanitorConfig  `yaml:"janitor"`
	Security SecurityConfig `yaml:"security"`
}

type LockoutConfig struct {
	// MaxFailures locks the identity once its persisted failure counter
	// reaches this value.
	MaxFailures int `yaml:"max_failures" env:"MEDROTA_LOCKOUT_MAX_FAILURES"`
	// Duration of the lockout window applied at MaxFailures.
	Duration time.Duration `yaml:"duration" env:"MEDROTA_LOCKOUT_DURATION"`
	// AttemptWindow is the sliding window consulted for both identity and
	// source-address failure counting.
	AttemptWindow time.Duration `yaml:"attempt_window" env:"MEDROTA_LOCKOUT_ATTEMPT_WINDOW"`
	// AddressMaxFailures rejects a source address outright once it
	// accumulates this many failures inside AttemptWindow, regardless of
	// which identities it targeted.
	AddressMaxFailures int `yaml:"address_max_failures" env:"MEDROTA_LOCKOUT_ADDRESS_MAX_FAILURES"`
}

type BootstrapConfig struct {
	// AdminEmail is seeded on first start when no identity carries the
	// admin role. AdminPassword empty means a random one is generated
	// and printed once to the log.
	AdminEmail    string `yaml:"admin_email" env:"MEDROTA_ADMIN_EMAIL" env-default:"admin@medrota.local"`
	AdminPassword string `yaml:"admin_password" env:"MEDROTA_ADMIN_PASSWORD"`
}

type CacheConfig struct {
	// RedisAddr switches the permission cache to Redis when set; empty
	// keeps the in-process TTL cache.
	RedisAddr     string        `yaml:"redis_addr" env:"MEDROTA_CACHE_REDIS_ADDR"`
	RedisPassword string        `yaml:"redis_password" env:"MEDROTA_CACHE_REDIS_PASSWORD"`
	RedisDB       int           `yaml:"redis_db" env:"MEDROTA_CACHE_REDIS_DB"`
	PermissionTTL time.Duration `yaml:"permission_ttl" env:"MEDROTA_CACHE_PERMISSION_TTL"`
	ProfileTTL    time.Duration `yaml:"profile_ttl" env:"MEDROTA_CACHE_PROFILE_TTL"`
}

type JanitorConfig struct {
	Enabled bool `yaml:"enabled" env:"MEDROTA_JANITOR_ENABLED"`
	// Spec is a cron expression; defaults to every 10 minutes.
	Spec string `yaml:"spec" env:"MEDROTA_JANITOR_SPEC"`
	// AttemptRetention bounds how long attempt ledger and audit rows are
	// kept before the janitor prunes them.
	AttemptRetention time.Duration `yaml:"attempt_retention" env:"MEDROTA_JANITOR_ATTEMPT_RETENTION"`
}

type SecurityConfig struct {
	TrustedProxies []string `yaml:"trusted_proxies" env:"MEDROTA_TRUSTED_PROXIES"`
	// LoginRateCapacity/LoginRateRefill shape the per-address token bucket
	// in front of the login endpoint.
	LoginRateCapacity int           `yaml:"login_rate_capacity" env:"MEDROTA_LOGIN_RATE_CAPACITY"`
	LoginRateRefill   time.Duration `yaml:"login_rate_refill" env:"MEDROTA_LOGIN_RATE_REFILL"`
}

func (c *AppConfig) EffectiveSessionTTL() time.Duration {
	if c == nil || c.SessionTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return c.SessionTTL
}
