package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	defaultConfigPath = "config/app.yaml"
	envPrefix         = "MEDROTA_"
)

func Load() (*AppConfig, error) {
	cfg := &AppConfig{}
	cfgPath := resolveConfigPath()
	if st, err := os.Stat(cfgPath); err == nil && !st.IsDir() {
		if err := cleanenv.ReadConfig(cfgPath, cfg); err != nil {
			return nil, err
		}
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, err
	}
	applyEnvAliases(cfg)
	normalizeConfig(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvAliases(cfg *AppConfig) {
	if cfg == nil {
		return
	}
	if v := getEnv("PEPPER"); v != "" {
		cfg.Pepper = strings.TrimSpace(v)
	}
	if v := getEnv("ENV", "APP_ENV"); v != "" {
		cfg.AppEnv = strings.TrimSpace(v)
	}
	if v := getEnv("DATABASE_URL"); v != "" {
		cfg.DBURL = strings.TrimSpace(v)
	}
	if v := getEnv("REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = strings.TrimSpace(v)
	}
	if v := getEnv("PORT", envPrefix+"PORT"); v != "" {
		cfg.ListenAddr = listenAddrWithPort(cfg.ListenAddr, v)
	}
}

func normalizeConfig(cfg *AppConfig) {
	if cfg == nil {
		return
	}
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	cfg.DBURL = strings.TrimSpace(cfg.DBURL)
	cfg.DBPath = strings.TrimSpace(cfg.DBPath)
	cfg.ListenAddr = strings.TrimSpace(cfg.ListenAddr)
	cfg.AppEnv = strings.ToLower(strings.TrimSpace(cfg.AppEnv))
	cfg.Pepper = strings.TrimSpace(cfg.Pepper)
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	cfg.Cache.RedisAddr = strings.TrimSpace(cfg.Cache.RedisAddr)
	if cfg.Issuer == "" {
		cfg.Issuer = "Medrota"
	}
	if cfg.Lockout.MaxFailures <= 0 {
		cfg.Lockout.MaxFailures = 5
	}
	if cfg.Lockout.Duration <= 0 {
		cfg.Lockout.Duration = 30 * time.Minute
	}
	if cfg.Lockout.AttemptWindow <= 0 {
		cfg.Lockout.AttemptWindow = 15 * time.Minute
	}
	if cfg.Lockout.AddressMaxFailures <= 0 {
		cfg.Lockout.AddressMaxFailures = 10
	}
	if cfg.Cache.PermissionTTL <= 0 {
		cfg.Cache.PermissionTTL = 5 * time.Minute
	}
	if cfg.Cache.ProfileTTL <= 0 {
		cfg.Cache.ProfileTTL = 10 * time.Minute
	}
	if cfg.Janitor.Spec == "" {
		cfg.Janitor.Spec = "@every 10m"
	}
	if cfg.Janitor.AttemptRetention <= 0 {
		cfg.Janitor.AttemptRetention = 90 * 24 * time.Hour
	}
	if cfg.Security.LoginRateCapacity <= 0 {
		cfg.Security.LoginRateCapacity = 20
	}
	if cfg.Security.LoginRateRefill <= 0 {
		cfg.Security.LoginRateRefill = time.Minute
	}
}

func getEnv(keys ...string) string {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	return ""
}

func resolveConfigPath() string {
	if v := getEnv("APP_CONFIG", envPrefix+"APP_CONFIG"); v != "" {
		return strings.TrimSpace(v)
	}
	return defaultConfigPath
}

func listenAddrWithPort(currentAddr, portRaw string) string {
	port := strings.TrimSpace(portRaw)
	if port == "" {
		return currentAddr
	}
	if _, err := strconv.Atoi(port); err != nil {
		return currentAddr
	}
	host := "0.0.0.0"
	parts := strings.Split(strings.TrimSpace(currentAddr), ":")
	if len(parts) > 1 {
		host = strings.Join(parts[:len(parts)-1], ":")
	}
	if host == "" {
		host = "0.0.0.0"
	}
	return host + ":" + port
}
