// Package config loads the service configuration: defaults first, then an
// optional .env file, then the process environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// SessionMode selects how the session token travels between client and
// server. Exactly one mode is active per deployment.
type SessionMode string

const (
	SessionCookie SessionMode = "cookie"
	SessionBearer SessionMode = "bearer"
)

func (m SessionMode) IsValid() bool {
	return m == SessionCookie || m == SessionBearer
}

// MailMode selects how transactional mail leaves the process.
type MailMode string

const (
	MailSMTP MailMode = "smtp"
	// MailLog writes messages to the log instead of sending them. Links in
	// those messages are live credentials, so it must be chosen explicitly.
	MailLog MailMode = "log"
)

// StoreKind selects the credential store backend.
type StoreKind string

const (
	StorePostgres StoreKind = "postgres"
	StoreMemory   StoreKind = "memory"
)

type Config struct {
	Port          string
	DatabaseURL   string
	DBMaxOpen     int
	DBMaxIdle     int
	DBMaxLifetime time.Duration
	Store         StoreKind

	JWTSecret      string
	SessionTTL     time.Duration
	SessionMode    SessionMode
	CookieSecure   bool
	AllowedOrigins []string
	ClientURL      string

	VerifyTokenTTL     time.Duration
	ResetTokenTTL      time.Duration
	TokenSweepInterval time.Duration

	MailMode     MailMode
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	MailFrom     string

	LogLevel string
}

// LoadDefaults populates Config with development defaults.
// JWTSecret is left empty on purpose: Validate refuses to start without one.
func (c *Config) LoadDefaults() {
	c.Port = "8000"
	c.DBMaxOpen = 25
	c.DBMaxIdle = 25
	c.DBMaxLifetime = 300 * time.Second
	c.Store = StorePostgres
	c.SessionTTL = 30 * 24 * time.Hour
	c.SessionMode = SessionCookie
	c.CookieSecure = true
	c.AllowedOrigins = []string{"http://localhost:3000"}
	c.ClientURL = "http://localhost:3000"
	c.VerifyTokenTTL = 24 * time.Hour
	c.ResetTokenTTL = time.Hour
	c.TokenSweepInterval = 15 * time.Minute
	c.MailMode = MailSMTP
	c.SMTPPort = 587
	c.MailFrom = "no-reply@taskboard.local"
	c.LogLevel = "info"
}

// Load builds a Config from defaults, .env (if present) and the environment.
func Load() (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	cfg := &Config{}
	cfg.LoadDefaults()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Port = getenv("PORT", c.Port)
	c.DatabaseURL = getenv("DATABASE_URL", c.DatabaseURL)
	c.Store = StoreKind(strings.ToLower(getenv("STORE", string(c.Store))))
	c.JWTSecret = getenv("JWT_SECRET", c.JWTSecret)
	c.SessionMode = SessionMode(strings.ToLower(getenv("SESSION_MODE", string(c.SessionMode))))
	c.ClientURL = strings.TrimRight(getenv("CLIENT_URL", c.ClientURL), "/")
	c.MailMode = MailMode(strings.ToLower(getenv("MAIL_MODE", string(c.MailMode))))
	c.SMTPHost = getenv("SMTP_HOST", c.SMTPHost)
	c.SMTPUser = getenv("SMTP_USER", c.SMTPUser)
	c.SMTPPassword = getenv("SMTP_PASSWORD", c.SMTPPassword)
	c.MailFrom = getenv("MAIL_FROM", c.MailFrom)
	c.LogLevel = getenv("LOG_LEVEL", c.LogLevel)

	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitList(v)
	}

	var err error
	if c.DBMaxOpen, err = envInt("DB_MAX_OPEN", c.DBMaxOpen); err != nil {
		return err
	}
	if c.DBMaxIdle, err = envInt("DB_MAX_IDLE", c.DBMaxIdle); err != nil {
		return err
	}
	if c.SMTPPort, err = envInt("SMTP_PORT", c.SMTPPort); err != nil {
		return err
	}
	if v := os.Getenv("DB_MAX_LIFETIME"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: DB_MAX_LIFETIME: %w", err)
		}
		c.DBMaxLifetime = time.Duration(secs) * time.Second
	}
	if v := os.Getenv("COOKIE_SECURE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: COOKIE_SECURE: %w", err)
		}
		c.CookieSecure = b
	}

	ttls := []struct {
		key string
		dst *time.Duration
	}{
		{"SESSION_TTL", &c.SessionTTL},
		{"VERIFY_TOKEN_TTL", &c.VerifyTokenTTL},
		{"RESET_TOKEN_TTL", &c.ResetTokenTTL},
		{"TOKEN_SWEEP_INTERVAL", &c.TokenSweepInterval},
	}
	for _, t := range ttls {
		v := os.Getenv(t.key)
		if v == "" {
			continue
		}
		d, err := ParseTTL(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", t.key, err)
		}
		*t.dst = d
	}
	return nil
}

// Validate rejects configurations the server cannot safely run with.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("config: JWT_SECRET is required")
	}
	if !c.SessionMode.IsValid() {
		return fmt.Errorf("config: SESSION_MODE must be %q or %q, got %q", SessionCookie, SessionBearer, c.SessionMode)
	}
	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: DATABASE_URL is required")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("config: unknown STORE %q", c.Store)
	}
	switch c.MailMode {
	case MailSMTP:
		if c.SMTPHost == "" {
			return fmt.Errorf("config: SMTP_HOST is required (set MAIL_MODE=log to write mail to the log instead)")
		}
	case MailLog:
	default:
		return fmt.Errorf("config: unknown MAIL_MODE %q", c.MailMode)
	}
	if c.SessionTTL <= 0 || c.VerifyTokenTTL <= 0 || c.ResetTokenTTL <= 0 {
		return fmt.Errorf("config: token lifetimes must be positive")
	}
	return nil
}

// ParseTTL parses TTLs such as "15m", "1h", "20s", or "30" (minutes).
func ParseTTL(ttlStr string) (time.Duration, error) {
	if ttlStr == "" {
		return 15 * time.Minute, nil
	}

	if strings.HasSuffix(ttlStr, "m") ||
		strings.HasSuffix(ttlStr, "h") ||
		strings.HasSuffix(ttlStr, "s") {
		return time.ParseDuration(ttlStr)
	}

	// fallback: minutes
	min, err := strconv.Atoi(ttlStr)
	if err != nil {
		return 0, err
	}
	return time.Duration(min) * time.Minute, nil
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
