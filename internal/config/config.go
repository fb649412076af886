// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN; empty runs the server on in-memory stores.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; used with JWT_PUBLIC_KEY for RS256/ES256.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; used with JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim (e.g. "portal-auth").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim (e.g. "portal-api").
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "1h").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime (e.g. "168h" for 7d).
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// CookieDomain is the Domain attribute for auth cookies; empty means host-only.
	CookieDomain string `mapstructure:"COOKIE_DOMAIN"`
	// Env is the application environment ("development", "production"). Cookie
	// attributes relax in development (no Secure, SameSite=Lax).
	Env string `mapstructure:"APP_ENV"`

	// NATSURL enables the notification sink when set (e.g. nats://localhost:4222).
	NATSURL string `mapstructure:"NATS_URL"`
	// NotifySubject is the NATS subject notices are published on.
	NotifySubject string `mapstructure:"NOTIFY_SUBJECT"`

	// OTLPEndpoint enables OTLP export when set (e.g. http://localhost:4317).
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// OTLPInsecure forces a plaintext OTLP dial even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTLP_INSECURE"`

	// ReminderLead is how far ahead of session expiry the reminder job notifies.
	ReminderLead string `mapstructure:"REMINDER_LEAD"`
	// SessionRetention is how long ended sessions are kept before pruning.
	SessionRetention string `mapstructure:"SESSION_RETENTION"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	// Every key needs a default (even empty) so AutomaticEnv surfaces the
	// matching env var during Unmarshal.
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "portal-auth")
	v.SetDefault("JWT_AUDIENCE", "portal-api")
	v.SetDefault("JWT_ACCESS_TTL", "1h")
	v.SetDefault("JWT_REFRESH_TTL", "168h") // 7d
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("COOKIE_DOMAIN", "")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("NATS_URL", "")
	v.SetDefault("NOTIFY_SUBJECT", "portal.notify")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("OTLP_INSECURE", false)
	v.SetDefault("REMINDER_LEAD", "15m")
	v.SetDefault("SESSION_RETENTION", "720h") // 30d

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if (cfg.JWTPrivateKey == "") != (cfg.JWTPublicKey == "") {
		return nil, errors.New("config: JWT_PRIVATE_KEY and JWT_PUBLIC_KEY must be set together")
	}
	if cfg.IsProduction() && cfg.JWTPrivateKey == "" {
		return nil, errors.New("config: JWT keys are required when APP_ENV=production")
	}
	if cfg.AccessTTL() >= cfg.RefreshTTL() {
		return nil, errors.New("config: JWT_ACCESS_TTL must be shorter than JWT_REFRESH_TTL")
	}

	return &cfg, nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool { return c.Env == "production" }

// IsDevelopment reports whether APP_ENV is development (or unset).
func (c *Config) IsDevelopment() bool { return c.Env == "" || c.Env == "development" }

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 1h if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTAccessTTL)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTRefreshTTL)
	if err != nil || d <= 0 {
		return 168 * time.Hour
	}
	return d
}

// ReminderLeadDuration parses ReminderLead. Returns 15m if unset or invalid.
func (c *Config) ReminderLeadDuration() time.Duration {
	d, err := time.ParseDuration(c.ReminderLead)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// SessionRetentionDuration parses SessionRetention. Returns 720h if unset or invalid.
func (c *Config) SessionRetentionDuration() time.Duration {
	d, err := time.ParseDuration(c.SessionRetention)
	if err != nil || d <= 0 {
		return 720 * time.Hour
	}
	return d
}
