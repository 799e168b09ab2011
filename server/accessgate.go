package server

import (
	"strings"

	"github.com/hireloop/hireloop/server/authdb"
)

// routePermissions maps path prefixes to the permission set that a route
// requires; holding any one of the listed permissions is enough. Matching
// is exact or per path segment, so dynamic sub-routes (/api/users/17/...)
// inherit their parent's requirement without individual registration. The
// longest matching prefix wins.
var routePermissions = []struct {
	Prefix string
	Perms  []authdb.Permission
}{
	{"/api/users", []authdb.Permission{authdb.PermissionManageUsers}},
	{"/api/jobs", []authdb.Permission{authdb.PermissionViewJobs, authdb.PermissionManageJobs}},
	{"/api/jobs/manage", []authdb.Permission{authdb.PermissionManageJobs}},
	{"/api/candidates", []authdb.Permission{authdb.PermissionViewCandidates, authdb.PermissionManageCandidates}},
	{"/api/candidates/manage", []authdb.Permission{authdb.PermissionManageCandidates}},
}

// requiredPermissions returns the permission set guarding 'path', or nil for
// routes that only need a valid session.
func requiredPermissions(path string) []authdb.Permission {
	best := -1
	bestLen := -1
	for i, route := range routePermissions {
		if matchesPrefix(path, route.Prefix) && len(route.Prefix) > bestLen {
			best = i
			bestLen = len(route.Prefix)
		}
	}
	if best == -1 {
		return nil
	}
	return routePermissions[best].Perms
}

// matchesPrefix reports whether 'path' equals 'prefix' or descends from it
// on a path-segment boundary ("/api/users" matches "/api/users/17" but not
// "/api/userscsv").
func matchesPrefix(path, prefix string) bool {
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}
