package config

import (
	"strings"
	"testing"
	"time"
)

func setValidEnv(t *testing.T) {
	t.Helper()
	t.Setenv("MASTER_CODE", "1987")
	t.Setenv("SESSION_SEAL_KEY", "a_perfectly_long_seal_key_value")
	t.Setenv("LISTEN_ADDR", "127.0.0.1:8080")
}

func TestLoadDefaults(t *testing.T) {
	setValidEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.CodeLength != 4 || cfg.MasterCode != "1987" {
		t.Fatalf("unexpected code config: %+v", cfg)
	}
	if cfg.RegistryDriver != "sqlite" {
		t.Fatalf("expected sqlite registry by default, got %s", cfg.RegistryDriver)
	}
	if cfg.SessionIdleDuration() != 0 || cfg.SessionAbsoluteDuration() != 0 {
		t.Fatalf("sessions should never expire by default")
	}
	if cfg.GateCheckTimeout() != 8*time.Second {
		t.Fatalf("expected 8s gate check timeout, got %v", cfg.GateCheckTimeout())
	}
}

func TestLoadRejectsDefaultMasterCode(t *testing.T) {
	setValidEnv(t)
	t.Setenv("MASTER_CODE", "0000")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "MASTER_CODE") {
		t.Fatalf("expected master code error, got %v", err)
	}
}

func TestLoadRejectsMasterCodeLengthMismatch(t *testing.T) {
	setValidEnv(t)
	t.Setenv("CODE_LENGTH", "6")
	if _, err := Load(); err == nil {
		t.Fatalf("a 4-digit master code must not pass with CODE_LENGTH=6")
	}
	t.Setenv("MASTER_CODE", "198712")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.CodeLength != 6 {
		t.Fatalf("expected code length 6, got %d", cfg.CodeLength)
	}
}

func TestLoadRejectsNonNumericMasterCode(t *testing.T) {
	setValidEnv(t)
	t.Setenv("MASTER_CODE", "19a7")
	if _, err := Load(); err == nil {
		t.Fatalf("expected non-numeric master code rejected")
	}
}

func TestLoadRejectsWeakSealKey(t *testing.T) {
	setValidEnv(t)
	t.Setenv("SESSION_SEAL_KEY", "short")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "SESSION_SEAL_KEY") {
		t.Fatalf("expected seal key error, got %v", err)
	}
}

func TestLoadRejectsInsecureCookiesOnPublicListen(t *testing.T) {
	setValidEnv(t)
	t.Setenv("LISTEN_ADDR", "0.0.0.0:8080")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "COOKIE_SECURE") {
		t.Fatalf("expected cookie secure error, got %v", err)
	}
	t.Setenv("COOKIE_SECURE", "true")
	if _, err := Load(); err != nil {
		t.Fatalf("secure cookies on public listen should pass: %v", err)
	}
}

func TestLoadExternalRegistryNeedsDSN(t *testing.T) {
	setValidEnv(t)
	t.Setenv("REGISTRY_DRIVER", "postgres")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "REGISTRY_DSN") {
		t.Fatalf("expected dsn error, got %v", err)
	}
	t.Setenv("REGISTRY_DSN", "postgres://gate:gate@db/codes")
	if _, err := Load(); err != nil {
		t.Fatalf("postgres with dsn should pass: %v", err)
	}
	t.Setenv("REGISTRY_DRIVER", "oracle")
	if _, err := Load(); err == nil {
		t.Fatalf("unknown registry driver must be rejected")
	}
}

func TestLoadCatalogSyncNeedsURL(t *testing.T) {
	setValidEnv(t)
	t.Setenv("CATALOG_SYNC_ENABLED", "true")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "CATALOG_SYNC_URL") {
		t.Fatalf("expected sync url error, got %v", err)
	}
	t.Setenv("CATALOG_SYNC_URL", "https://example.com/zones.yaml")
	if _, err := Load(); err != nil {
		t.Fatalf("sync with url should pass: %v", err)
	}
}

func TestLoadCaptchaDefaultsVerifyURL(t *testing.T) {
	setValidEnv(t)
	t.Setenv("CAPTCHA_ENABLED", "true")
	if _, err := Load(); err == nil {
		t.Fatalf("captcha without secret must be rejected")
	}
	t.Setenv("CAPTCHA_SECRET", "secret")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !strings.Contains(cfg.CaptchaVerifyURL, "turnstile") {
		t.Fatalf("expected turnstile default verify url, got %q", cfg.CaptchaVerifyURL)
	}
}
