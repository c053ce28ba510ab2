package config

import (
	"strings"
	"testing"
	"time"
)

func validLocal() Config {
	return Config{
		App:      AppConfig{Env: "local", Port: 8080},
		Advisory: AdvisoryConfig{URL: "http://localhost:5000/chat"},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"APP_ENV", "APP_PORT", "ADVISORY_URL"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %s in error, got %v", want, err)
		}
	}
}

func TestValidate_AppliesDefaults(t *testing.T) {
	c := validLocal()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Session.Backend != SessionBackendMemory || c.Session.TTL != time.Hour {
		t.Fatalf("unexpected session defaults: %+v", c.Session)
	}
	if c.Advisory.Timeout != 8*time.Second {
		t.Fatalf("expected 8s advisory timeout, got %v", c.Advisory.Timeout)
	}
	if c.IVR.Language != "en-IN" || c.IVR.GatherTimeout != 5*time.Second {
		t.Fatalf("unexpected ivr defaults: %+v", c.IVR)
	}
	if c.IVR.MaxUsernameAttempts != 1 || c.IVR.MaxPINAttempts != 2 {
		t.Fatalf("unexpected attempt defaults: %+v", c.IVR)
	}
	if c.AuditEnabled() || c.OperatorAPIEnabled() {
		t.Fatalf("optional features should be off by default")
	}
}

func TestValidate_RedisBackendRequiresAddress(t *testing.T) {
	c := validLocal()
	c.Session.Backend = SessionBackendRedis
	if err := c.Validate(); err == nil || !strings.Contains(err.Error(), "REDIS_HOST") {
		t.Fatalf("expected REDIS_HOST error, got %v", err)
	}
}

func TestValidate_RedisTTLMustExceedAdvisoryTimeout(t *testing.T) {
	c := validLocal()
	c.Session = SessionConfig{Backend: SessionBackendRedis, TTL: 5 * time.Second}
	c.Redis = RedisConfig{Host: "localhost", Port: 6379}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for ttl below advisory timeout")
	}
}

func TestValidate_UnknownBackend(t *testing.T) {
	c := validLocal()
	c.Session.Backend = "etcd"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestValidate_ProductionAuditRequiresSSLMode(t *testing.T) {
	c := validLocal()
	c.App.Env = "production"
	c.DB = DBConfig{Host: "db", Port: 5432, User: "ivr", Name: "ivr"}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaultsSSLMode(t *testing.T) {
	c := validLocal()
	c.DB = DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "ivr"}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if !c.AuditEnabled() {
		t.Fatalf("expected audit enabled with DB_HOST")
	}
}

func TestValidate_SignatureNeedsPublicURL(t *testing.T) {
	c := validLocal()
	c.Twilio.AuthToken = "tok"
	if err := c.Validate(); err == nil || !strings.Contains(err.Error(), "PUBLIC_BASE_URL") {
		t.Fatalf("expected PUBLIC_BASE_URL error, got %v", err)
	}
}

func TestValidate_OperatorAPINeedsJWTSecret(t *testing.T) {
	c := validLocal()
	c.Auth.AdminAPIKey = "key"
	if err := c.Validate(); err == nil || !strings.Contains(err.Error(), "JWT_SECRET") {
		t.Fatalf("expected JWT_SECRET error, got %v", err)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("ADVISORY_URL", "http://advisor:5000/chat")
	t.Setenv("ADVISORY_TIMEOUT", "3s")
	t.Setenv("IVR_MAX_PIN_ATTEMPTS", "3")
	t.Setenv("IVR_LANGUAGE", "hi-IN")

	c, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.App.Port != 9090 || c.Advisory.Timeout != 3*time.Second || c.IVR.MaxPINAttempts != 3 || c.IVR.Language != "hi-IN" {
		t.Fatalf("unexpected config: %+v", c)
	}
	if c.HTTPAddr() != ":9090" {
		t.Fatalf("unexpected addr %q", c.HTTPAddr())
	}
}

func TestLoad_RejectsBadDuration(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("ADVISORY_URL", "http://advisor:5000/chat")
	t.Setenv("ADVISORY_TIMEOUT", "soon")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "ADVISORY_TIMEOUT") {
		t.Fatalf("expected ADVISORY_TIMEOUT error, got %v", err)
	}
}
