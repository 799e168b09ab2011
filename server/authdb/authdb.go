// Package authdb owns the authentication state of the system: users and
// their permissions, magic login codes, and sessions. The database is the
// single source of truth shared across instances; anything per-process
// (rate limiting) lives elsewhere.
package authdb

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
	"gorm.io/gorm"
)

// Errors that callers translate into HTTP failures. Login/verify failures
// are deliberately coarse: no caller-visible error may reveal whether an
// email address has an account.
var (
	ErrEmailNotAllowed = errors.New("email address not allowed")
	ErrNoSession       = errors.New("no session")
	ErrInvalidSession  = errors.New("invalid session")
	// ErrSessionRevoked means the credential's signature still verifies, but the
	// server-side session record is gone (logout, permission change, deactivation).
	ErrSessionRevoked = errors.New("session revoked")
)

// emailRegex is a loose syntactic check. The allow-list pattern in Options
// is the real gate on who may request a code.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

type Options struct {
	SessionSecret string        // Secret for signing session credentials. Required when Production.
	Production    bool          // Refuse a missing secret instead of generating one
	AllowedEmails string        // Regexp that a normalized email must match before we issue a code. Empty allows all.
	CodeTTL       time.Duration // Login code lifetime. Default 10 minutes.
	SessionTTL    time.Duration // Session lifetime. Default 30 days.
}

type AuthDB struct {
	Log logs.Log
	DB  *gorm.DB

	secret        []byte
	allowedEmails *regexp.Regexp
	codeTTL       time.Duration
	sessionTTL    time.Duration
	now           func() time.Time
}

func NewAuthDB(logger logs.Log, dbFilename string, opts Options) (*AuthDB, error) {
	if opts.SessionSecret == "" {
		if opts.Production {
			return nil, fmt.Errorf("No session signing secret configured. A secret is required in production")
		}
		opts.SessionSecret = base64.StdEncoding.EncodeToString(StrongRandomBytes(32))
		logger.Warnf("No session signing secret configured. Using a random secret; sessions will not survive a restart")
	}
	var allowed *regexp.Regexp
	if opts.AllowedEmails != "" {
		var err error
		allowed, err = regexp.Compile(opts.AllowedEmails)
		if err != nil {
			return nil, fmt.Errorf("Invalid allowed-email pattern '%v': %w", opts.AllowedEmails, err)
		}
	}
	if opts.CodeTTL <= 0 {
		opts.CodeTTL = 10 * time.Minute
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * 24 * time.Hour
	}
	os.MkdirAll(filepath.Dir(dbFilename), 0770)
	db, err := dbh.OpenDB(logger, dbh.MakeSqliteConfig(dbFilename), Migrations(logger), 0)
	if err != nil {
		return nil, fmt.Errorf("Failed to open database %v: %w", dbFilename, err)
	}
	return &AuthDB{
		Log:           logger,
		DB:            db,
		secret:        []byte(opts.SessionSecret),
		allowedEmails: allowed,
		codeTTL:       opts.CodeTTL,
		sessionTTL:    opts.SessionTTL,
		now:           time.Now,
	}, nil
}

// SetNowFunc overrides the clock (for tests).
func (c *AuthDB) SetNowFunc(now func() time.Time) {
	c.now = now
}

// CodeTTL is the lifetime of an issued login code.
func (c *AuthDB) CodeTTL() time.Duration {
	return c.codeTTL
}

// IsEmailAllowed returns nil if 'email' (already normalized) is syntactically
// valid and matches the allow-list pattern.
func (c *AuthDB) IsEmailAllowed(email string) error {
	if !emailRegex.MatchString(email) {
		return ErrEmailNotAllowed
	}
	if c.allowedEmails != nil && !c.allowedEmails.MatchString(email) {
		return ErrEmailNotAllowed
	}
	return nil
}
