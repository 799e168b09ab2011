package server

import (
	"testing"

	"github.com/hireloop/hireloop/server/authdb"
	"github.com/stretchr/testify/require"
)

func TestRequiredPermissions(t *testing.T) {
	// Exact match
	require.Equal(t, []authdb.Permission{authdb.PermissionManageUsers}, requiredPermissions("/api/users"))
	// Dynamic sub-routes inherit the parent's requirement
	require.Equal(t, []authdb.Permission{authdb.PermissionManageUsers}, requiredPermissions("/api/users/17"))
	require.Equal(t, []authdb.Permission{authdb.PermissionManageUsers}, requiredPermissions("/api/users/17/permissions"))
	// Longest prefix wins
	require.Equal(t, []authdb.Permission{authdb.PermissionManageJobs}, requiredPermissions("/api/jobs/manage/5"))
	require.Equal(t, []authdb.Permission{authdb.PermissionViewJobs, authdb.PermissionManageJobs}, requiredPermissions("/api/jobs/5"))
	// Segment boundaries are respected
	require.Nil(t, requiredPermissions("/api/userscsv"))
	// Routes with no entry only need a valid session
	require.Nil(t, requiredPermissions("/api/auth/whoami"))
}

func TestMatchesPrefix(t *testing.T) {
	require.True(t, matchesPrefix("/api/users", "/api/users"))
	require.True(t, matchesPrefix("/api/users/17", "/api/users"))
	require.False(t, matchesPrefix("/api/users", "/api/users/17"))
	require.False(t, matchesPrefix("/api/userscsv", "/api/users"))
}
