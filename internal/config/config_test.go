package config

import (
	"os"
	"testing"
	"time"
)

// configKeys is every env var Load reads.
var configKeys = []string{
	"HTTP_ADDR", "DATABASE_URL",
	"JWT_PRIVATE_KEY", "JWT_PUBLIC_KEY", "JWT_ISSUER", "JWT_AUDIENCE",
	"JWT_ACCESS_TTL", "JWT_REFRESH_TTL",
	"BCRYPT_COST", "COOKIE_DOMAIN", "APP_ENV",
	"NATS_URL", "NOTIFY_SUBJECT", "OTLP_ENDPOINT", "OTLP_INSECURE",
	"REMINDER_LEAD", "SESSION_RETENTION",
}

// resetEnv unsets every config key for the duration of the test, restoring
// prior values afterwards. The rest of the process environment is untouched.
func resetEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		if v, ok := os.LookupEnv(k); ok {
			t.Setenv(k, v) // registers restoration of the original value
		}
		os.Unsetenv(k)
	}
}

func TestLoad_Defaults(t *testing.T) {
	resetEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8080")
	}
	if cfg.JWTIssuer != "portal-auth" {
		t.Errorf("JWTIssuer = %q", cfg.JWTIssuer)
	}
	if cfg.JWTAudience != "portal-api" {
		t.Errorf("JWTAudience = %q", cfg.JWTAudience)
	}
	if cfg.AccessTTL() != time.Hour {
		t.Errorf("AccessTTL = %v, want 1h", cfg.AccessTTL())
	}
	if cfg.RefreshTTL() != 168*time.Hour {
		t.Errorf("RefreshTTL = %v, want 168h", cfg.RefreshTTL())
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if cfg.NotifySubject != "portal.notify" {
		t.Errorf("NotifySubject = %q", cfg.NotifySubject)
	}
	if !cfg.IsDevelopment() || cfg.IsProduction() {
		t.Errorf("default env should be development, got %q", cfg.Env)
	}
	if cfg.ReminderLeadDuration() != 15*time.Minute {
		t.Errorf("ReminderLeadDuration = %v", cfg.ReminderLeadDuration())
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	resetEnv(t)
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("JWT_ISSUER", "custom-issuer")
	t.Setenv("BCRYPT_COST", "14")
	t.Setenv("JWT_ACCESS_TTL", "30m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.JWTIssuer != "custom-issuer" {
		t.Errorf("JWTIssuer = %q", cfg.JWTIssuer)
	}
	if cfg.BcryptCost != 14 {
		t.Errorf("BcryptCost = %d", cfg.BcryptCost)
	}
	if cfg.AccessTTL() != 30*time.Minute {
		t.Errorf("AccessTTL = %v", cfg.AccessTTL())
	}
}

func TestLoad_KeysFromEnvironment(t *testing.T) {
	resetEnv(t)
	t.Setenv("JWT_PRIVATE_KEY", "private.pem")
	t.Setenv("JWT_PUBLIC_KEY", "public.pem")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.JWTPrivateKey != "private.pem" {
		t.Errorf("JWTPrivateKey = %q, want %q", cfg.JWTPrivateKey, "private.pem")
	}
	if cfg.JWTPublicKey != "public.pem" {
		t.Errorf("JWTPublicKey = %q, want %q", cfg.JWTPublicKey, "public.pem")
	}
}

func TestLoad_ProductionWithEnvKeys(t *testing.T) {
	resetEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_PRIVATE_KEY", "private.pem")
	t.Setenv("JWT_PUBLIC_KEY", "public.pem")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.IsProduction() {
		t.Errorf("Env = %q, want production", cfg.Env)
	}
}

func TestLoad_InvalidBcryptCost(t *testing.T) {
	resetEnv(t)
	t.Setenv("BCRYPT_COST", "99")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for out-of-range bcrypt cost")
	}
}

func TestLoad_TTLOrder(t *testing.T) {
	resetEnv(t)
	t.Setenv("JWT_ACCESS_TTL", "200h")
	t.Setenv("JWT_REFRESH_TTL", "168h")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when access TTL >= refresh TTL")
	}
}

func TestLoad_KeyPairMustBeComplete(t *testing.T) {
	resetEnv(t)
	t.Setenv("JWT_PRIVATE_KEY", "some-key.pem")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when only the private key is set")
	}
}

func TestLoad_ProductionRequiresKeys(t *testing.T) {
	resetEnv(t)
	t.Setenv("APP_ENV", "production")
	if _, err := Load(); err == nil {
		t.Fatal("expected error: production without JWT keys")
	}
}

func TestConfig_DurationFallbacks(t *testing.T) {
	c := &Config{JWTAccessTTL: "garbage", JWTRefreshTTL: "", ReminderLead: "-5m", SessionRetention: "bad"}
	if c.AccessTTL() != time.Hour {
		t.Errorf("AccessTTL fallback = %v", c.AccessTTL())
	}
	if c.RefreshTTL() != 168*time.Hour {
		t.Errorf("RefreshTTL fallback = %v", c.RefreshTTL())
	}
	if c.ReminderLeadDuration() != 15*time.Minute {
		t.Errorf("ReminderLeadDuration fallback = %v", c.ReminderLeadDuration())
	}
	if c.SessionRetentionDuration() != 720*time.Hour {
		t.Errorf("SessionRetentionDuration fallback = %v", c.SessionRetentionDuration())
	}
}
