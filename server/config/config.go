package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/hireloop/hireloop/pkg/ratelimit"
)

type SMTP struct {
	Host     string `json:"host"`
	Port     int    `json:"port"` // 0 means 587
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from"` // eg login@hireloop.example
}

// Limits is the per-limit-class rate limit table. Coarse/global classes are
// tuned looser, targeted ones tighter. Zero values fall back to defaults.
type Limits struct {
	AuthPerIP         LimitJSON `json:"authPerIP"`         // All auth attempts from one IP
	LoginCodePerEmail LimitJSON `json:"loginCodePerEmail"` // Login code requests for one email
	VerifyPerEmail    LimitJSON `json:"verifyPerEmail"`    // Code verification attempts for one email
	GlobalSensitive   LimitJSON `json:"globalSensitive"`   // Global counter across all sensitive actions
}

type LimitJSON struct {
	MaxAttempts int `json:"maxAttempts"`
	WindowMS    int `json:"windowMS"`
}

func (l LimitJSON) Config() ratelimit.Config {
	return ratelimit.Config{MaxAttempts: l.MaxAttempts, Window: time.Duration(l.WindowMS) * time.Millisecond}
}

type Config struct {
	Port           int    `json:"port"`           // HTTP listen port
	DBPath         string `json:"dbPath"`         // Path to the sqlite database
	Production     bool   `json:"production"`     // Refuse to start without a configured session secret
	SessionSecret  string `json:"sessionSecret"`  // Secret for signing session credentials (HIRELOOP_SESSION_SECRET overrides)
	AllowedEmails  string `json:"allowedEmails"`  // Regexp which an email address must match before we'll send it a login code
	SessionTTLDays int    `json:"sessionTTLDays"` // Session lifetime. Default 30.
	CodeTTLMinutes int    `json:"codeTTLMinutes"` // Login code lifetime. Default 10.
	SMTP           SMTP   `json:"smtp"`
	Limits         Limits `json:"limits"`
}

func LoadConfig(filename string) (*Config, error) {
	if filename == "" {
		filename = "hireloop.json"
	}
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("Error loading %v: %w", filename, err)
	}
	cfg := &Config{}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("Error loading as JSON %v: %w", filename, err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.DBPath == "" {
		c.DBPath = "hireloop.sqlite"
	}
	if secret := os.Getenv("HIRELOOP_SESSION_SECRET"); secret != "" {
		c.SessionSecret = secret
	}
	if c.SessionTTLDays <= 0 {
		c.SessionTTLDays = 30
	}
	if c.CodeTTLMinutes <= 0 {
		c.CodeTTLMinutes = 10
	}
	applyLimitDefault(&c.Limits.AuthPerIP, 30, 15*time.Minute)
	applyLimitDefault(&c.Limits.LoginCodePerEmail, 5, 15*time.Minute)
	applyLimitDefault(&c.Limits.VerifyPerEmail, 5, 15*time.Minute)
	applyLimitDefault(&c.Limits.GlobalSensitive, 2000, time.Hour)
}

func applyLimitDefault(l *LimitJSON, maxAttempts int, window time.Duration) {
	if l.MaxAttempts <= 0 {
		l.MaxAttempts = maxAttempts
	}
	if l.WindowMS <= 0 {
		l.WindowMS = int(window.Milliseconds())
	}
}

// Returns an error if there is anything invalid about the config, or nil if everything is OK
func (c *Config) Validate() error {
	if c.Production && c.SessionSecret == "" {
		return fmt.Errorf("sessionSecret (or HIRELOOP_SESSION_SECRET) is required when production is true")
	}
	if c.AllowedEmails != "" {
		if _, err := regexp.Compile(c.AllowedEmails); err != nil {
			return fmt.Errorf("Invalid allowedEmails regexp '%v': %w", c.AllowedEmails, err)
		}
	}
	return nil
}
