package authdb

import (
	"strings"

	"github.com/cyclopcam/dbh"
)

// BaseModel is our base class for a GORM model.
// The default GORM Model uses int, but we prefer int64
type BaseModel struct {
	ID int64 `gorm:"primaryKey" json:"id"`
}

// Permission gates access to one administrative action or route group.
// Permissions are a closed set: unknown tags are rejected at the boundary,
// and extending the set means recompiling, not trusting runtime strings.
type Permission string

const (
	PermissionViewJobs         Permission = "view_jobs"
	PermissionManageJobs       Permission = "manage_jobs"
	PermissionViewCandidates   Permission = "view_candidates"
	PermissionManageCandidates Permission = "manage_candidates"
	PermissionManageUsers      Permission = "manage_users"
)

var allPermissions = []Permission{
	PermissionViewJobs,
	PermissionManageJobs,
	PermissionViewCandidates,
	PermissionManageCandidates,
	PermissionManageUsers,
}

func IsValidPermission(p string) bool {
	for _, known := range allPermissions {
		if p == string(known) {
			return true
		}
	}
	return false
}

// SYNC-RECORD-USER
type User struct {
	BaseModel
	Email           string      `json:"email"`
	EmailNormalized string      `json:"emailNormalized"`
	Name            string      `json:"name" gorm:"default:null"`
	Permissions     string      `json:"permissions"` // Comma-separated Permission values
	CreatedAt       dbh.IntTime `json:"createdAt"`
}

// Session is the authoritative server-side record of a login. The client
// holds a signed credential; this row is what lets us force-invalidate a
// session before its natural expiry.
type Session struct {
	ID        string `gorm:"primaryKey"`
	UserID    int64
	CreatedAt dbh.IntTime
	ExpiresAt dbh.IntTime
}

// MagicToken is a short-lived single-use login code, stored hashed.
// Issuing a new token for an email deletes any prior tokens, so only the
// most recent code is ever authoritative.
type MagicToken struct {
	BaseModel
	Email     string // normalized
	CodeHash  []byte
	CreatedAt dbh.IntTime
	ExpiresAt dbh.IntTime
	Consumed  bool
}

func (u *User) HasPermission(p Permission) bool {
	for _, have := range SplitPermissions(u.Permissions) {
		if have == p {
			return true
		}
	}
	return false
}

func (u *User) PermissionList() []Permission {
	return SplitPermissions(u.Permissions)
}

// SplitPermissions parses a comma-separated permission field, dropping
// anything that is not a known Permission.
func SplitPermissions(csv string) []Permission {
	perms := []Permission{}
	for _, p := range strings.Split(csv, ",") {
		p = strings.TrimSpace(p)
		if IsValidPermission(p) {
			perms = append(perms, Permission(p))
		}
	}
	return perms
}

func JoinPermissions(perms []Permission) string {
	parts := make([]string, 0, len(perms))
	for _, p := range perms {
		parts = append(parts, string(p))
	}
	return strings.Join(parts, ",")
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
