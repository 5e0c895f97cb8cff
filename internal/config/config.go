package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ListenAddr string

	DBPath            string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	ZonesPath string

	MasterCode string
	CodeLength int

	RegistryDriver     string
	RegistryDSN        string
	RegistryTable      string
	RegistryCodeCol    string
	RegistryNameCol    string
	RegistryContactCol string
	RegistryLevelCol   string
	RegistryZonesCol   string
	RegistryActiveCol  string
	RegistryUsesCol    string
	RegistryUsedAtCol  string

	SessionCookieName   string
	SessionIdleMinutes  int
	SessionAbsoluteHour int
	SessionSealKey      string
	CSRFCookieName      string
	CookieSecure        bool
	TrustProxy          bool
	CORSAllowedOrigins  []string

	GateCheckTimeoutSec int
	GateSessionTTLMin   int

	CaptchaEnabled   bool
	CaptchaProvider  string
	CaptchaVerifyURL string
	CaptchaSecret    string

	HTTPReadTimeoutSec       int
	HTTPReadHeaderTimeoutSec int
	HTTPWriteTimeoutSec      int
	HTTPIdleTimeoutSec       int

	BootstrapAdminEmail    string
	BootstrapAdminPassword string

	CodeNotifySender string
	CodeNotifyFrom   string
	SMTPHost         string
	SMTPPort         int

	CatalogSyncEnabled     bool
	CatalogSyncURL         string
	CatalogSyncIntervalMin int
}

const defaultMasterCode = "0000"

func Load() (Config, error) {
	cfg := Config{
		ListenAddr:               env("LISTEN_ADDR", ":8080"),
		DBPath:                   env("APP_DB_PATH", "./data/app.db"),
		DBMaxOpenConns:           envInt("APP_DB_MAX_OPEN_CONNS", 4),
		DBMaxIdleConns:           envInt("APP_DB_MAX_IDLE_CONNS", 2),
		DBConnMaxLifetime:        time.Duration(envInt("APP_DB_CONN_MAX_LIFETIME_MIN", 30)) * time.Minute,
		ZonesPath:                env("ZONES_PATH", "./zones.yaml"),
		MasterCode:               env("MASTER_CODE", defaultMasterCode),
		CodeLength:               envInt("CODE_LENGTH", 4),
		RegistryDriver:           strings.ToLower(env("REGISTRY_DRIVER", "sqlite")),
		RegistryDSN:              env("REGISTRY_DSN", ""),
		RegistryTable:            env("REGISTRY_TABLE", "entry_codes"),
		RegistryCodeCol:          env("REGISTRY_CODE_COL", "code"),
		RegistryNameCol:          env("REGISTRY_NAME_COL", "display_name"),
		RegistryContactCol:       env("REGISTRY_CONTACT_COL", "contact_handle"),
		RegistryLevelCol:         env("REGISTRY_LEVEL_COL", "access_level"),
		RegistryZonesCol:         env("REGISTRY_ZONES_COL", "granted_zones"),
		RegistryActiveCol:        env("REGISTRY_ACTIVE_COL", "is_active"),
		RegistryUsesCol:          env("REGISTRY_USES_COL", "usage_counter"),
		RegistryUsedAtCol:        env("REGISTRY_USED_AT_COL", "last_used_at"),
		SessionCookieName:        env("SESSION_COOKIE_NAME", "zonegate_session"),
		SessionIdleMinutes:       envInt("SESSION_IDLE_MINUTES", 0),
		SessionAbsoluteHour:      envInt("SESSION_ABSOLUTE_HOURS", 0),
		SessionSealKey:           env("SESSION_SEAL_KEY", "CHANGE_ME_PRODUCTION_SEAL_KEY"),
		CSRFCookieName:           env("CSRF_COOKIE_NAME", "zonegate_csrf"),
		CookieSecure:             envBool("COOKIE_SECURE", false),
		TrustProxy:               envBool("TRUST_PROXY", false),
		CORSAllowedOrigins:       envCSV("CORS_ALLOWED_ORIGINS"),
		GateCheckTimeoutSec:      envInt("GATE_CHECK_TIMEOUT_SEC", 8),
		GateSessionTTLMin:        envInt("GATE_SESSION_TTL_MIN", 15),
		CaptchaEnabled:           envBool("CAPTCHA_ENABLED", false),
		CaptchaProvider:          strings.ToLower(env("CAPTCHA_PROVIDER", "turnstile")),
		CaptchaVerifyURL:         env("CAPTCHA_VERIFY_URL", ""),
		CaptchaSecret:            env("CAPTCHA_SECRET", ""),
		HTTPReadTimeoutSec:       envInt("HTTP_READ_TIMEOUT_SEC", 10),
		HTTPReadHeaderTimeoutSec: envInt("HTTP_READ_HEADER_TIMEOUT_SEC", 5),
		HTTPWriteTimeoutSec:      envInt("HTTP_WRITE_TIMEOUT_SEC", 30),
		HTTPIdleTimeoutSec:       envInt("HTTP_IDLE_TIMEOUT_SEC", 60),
		BootstrapAdminEmail:      env("BOOTSTRAP_ADMIN_EMAIL", ""),
		BootstrapAdminPassword:   env("BOOTSTRAP_ADMIN_PASSWORD", ""),
		CodeNotifySender:         strings.ToLower(env("CODE_NOTIFY_SENDER", "log")),
		CodeNotifyFrom:           env("CODE_NOTIFY_FROM", "doorkeeper@example.com"),
		SMTPHost:                 env("SMTP_HOST", "127.0.0.1"),
		SMTPPort:                 envInt("SMTP_PORT", 587),
		CatalogSyncEnabled:       envBool("CATALOG_SYNC_ENABLED", false),
		CatalogSyncURL:           env("CATALOG_SYNC_URL", ""),
		CatalogSyncIntervalMin:   envInt("CATALOG_SYNC_INTERVAL_MIN", 60),
	}

	if cfg.DBMaxOpenConns <= 0 || cfg.DBMaxIdleConns < 0 {
		return Config{}, fmt.Errorf("invalid DB pool config")
	}
	if cfg.CodeLength < 4 || cfg.CodeLength > 8 {
		return Config{}, fmt.Errorf("CODE_LENGTH must be between 4 and 8")
	}
	mc := strings.TrimSpace(cfg.MasterCode)
	if mc == "" || mc == defaultMasterCode {
		return Config{}, fmt.Errorf("MASTER_CODE must be set to a non-default value")
	}
	if len(mc) != cfg.CodeLength || !allDigits(mc) {
		return Config{}, fmt.Errorf("MASTER_CODE must be exactly %d digits", cfg.CodeLength)
	}
	cfg.MasterCode = mc
	// Idle/absolute expiry of 0 means "never"; the upstream behavior.
	if cfg.SessionIdleMinutes < 0 || cfg.SessionAbsoluteHour < 0 {
		return Config{}, fmt.Errorf("session timeouts must be >= 0")
	}
	if cfg.GateCheckTimeoutSec <= 0 || cfg.GateSessionTTLMin <= 0 {
		return Config{}, fmt.Errorf("gate timeouts must be positive")
	}
	if strings.TrimSpace(cfg.SessionSealKey) == "" ||
		cfg.SessionSealKey == "CHANGE_ME_PRODUCTION_SEAL_KEY" ||
		len(cfg.SessionSealKey) < 24 {
		return Config{}, fmt.Errorf("SESSION_SEAL_KEY must be set to a strong non-default value (>=24 chars)")
	}
	if !cfg.CookieSecure && !isLocalListen(cfg.ListenAddr) {
		return Config{}, fmt.Errorf("COOKIE_SECURE=false is allowed only for local listen addresses")
	}
	switch cfg.RegistryDriver {
	case "sqlite":
	case "postgres", "pgx", "mysql":
		if strings.TrimSpace(cfg.RegistryDSN) == "" {
			return Config{}, fmt.Errorf("REGISTRY_DSN is required for driver %q", cfg.RegistryDriver)
		}
	default:
		return Config{}, fmt.Errorf("REGISTRY_DRIVER must be one of: sqlite, postgres, mysql")
	}
	if cfg.CaptchaEnabled {
		if strings.TrimSpace(cfg.CaptchaSecret) == "" {
			return Config{}, fmt.Errorf("CAPTCHA_SECRET is required when CAPTCHA_ENABLED=true")
		}
		if strings.TrimSpace(cfg.CaptchaVerifyURL) == "" {
			switch cfg.CaptchaProvider {
			case "turnstile", "":
				cfg.CaptchaVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"
			case "hcaptcha":
				cfg.CaptchaVerifyURL = "https://hcaptcha.com/siteverify"
			default:
				return Config{}, fmt.Errorf("unsupported CAPTCHA_PROVIDER: %s", cfg.CaptchaProvider)
			}
		}
	}
	if cfg.CatalogSyncEnabled {
		if strings.TrimSpace(cfg.CatalogSyncURL) == "" {
			return Config{}, fmt.Errorf("CATALOG_SYNC_URL is required when CATALOG_SYNC_ENABLED=true")
		}
		if cfg.CatalogSyncIntervalMin <= 0 {
			return Config{}, fmt.Errorf("CATALOG_SYNC_INTERVAL_MIN must be positive")
		}
	}
	switch cfg.CodeNotifySender {
	case "log", "smtp":
	default:
		return Config{}, fmt.Errorf("CODE_NOTIFY_SENDER must be one of: log, smtp")
	}
	return cfg, nil
}

// SessionIdleDuration returns 0 when idle expiry is disabled.
func (c Config) SessionIdleDuration() time.Duration {
	return time.Duration(c.SessionIdleMinutes) * time.Minute
}

// SessionAbsoluteDuration returns 0 when absolute expiry is disabled.
func (c Config) SessionAbsoluteDuration() time.Duration {
	return time.Duration(c.SessionAbsoluteHour) * time.Hour
}

func (c Config) GateCheckTimeout() time.Duration {
	return time.Duration(c.GateCheckTimeoutSec) * time.Second
}

func (c Config) GateSessionTTL() time.Duration {
	return time.Duration(c.GateSessionTTLMin) * time.Minute
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func env(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return d
	}
	return n
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return d
	}
	return b
}

func envCSV(k string) []string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isLocalListen(addr string) bool {
	a := strings.ToLower(strings.TrimSpace(addr))
	return strings.Contains(a, "127.0.0.1") || strings.Contains(a, "localhost") || strings.Contains(a, "[::1]") || strings.HasPrefix(a, ":")
}
