package server

import (
	"net/http"

	"github.com/cyclopcam/www"
	"github.com/hireloop/hireloop/server/authdb"
	"github.com/julienschmidt/httprouter"
)

type createUserJSON struct {
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

type setPermissionsJSON struct {
	Permissions []string `json:"permissions"`
}

// parsePermissions rejects unknown permission tags at the boundary. We never
// store a permission string we don't recognize.
func parsePermissions(tags []string) []authdb.Permission {
	perms := []authdb.Permission{}
	for _, tag := range tags {
		if !authdb.IsValidPermission(tag) {
			www.PanicBadRequestf("Unknown permission '%v'", tag)
		}
		perms = append(perms, authdb.Permission(tag))
	}
	return perms
}

func (s *Server) httpUserList(w http.ResponseWriter, r *http.Request, params httprouter.Params, user *authdb.User) {
	users, err := s.AuthDB.ListUsers()
	www.Check(err)
	resp := []*whoAmIResponseJSON{}
	for i := range users {
		resp = append(resp, makeWhoAmIResponse(&users[i]))
	}
	www.SendJSON(w, resp)
}

func (s *Server) httpUserGet(w http.ResponseWriter, r *http.Request, params httprouter.Params, user *authdb.User) {
	target, err := s.AuthDB.GetUserFromID(www.ParseID(params.ByName("id")))
	if err != nil {
		www.PanicNotFound()
	}
	www.SendJSON(w, makeWhoAmIResponse(target))
}

// httpUserCreate creates a user. Ordinarily this requires manage_users, but
// when nobody holds manage_users yet the system is un-bootstrapped, and the
// first user may be created without authentication. That first user is
// forced to hold manage_users, otherwise you could lock yourself out of the
// system before it ever had an administrator.
func (s *Server) httpUserCreate(w http.ResponseWriter, r *http.Request) {
	req := createUserJSON{}
	www.ReadJSON(w, r, &req, 1024*64)
	perms := parsePermissions(req.Permissions)

	isInitialUser := false
	actor := s.currentUser(r)
	if actor == nil || !actor.HasPermission(authdb.PermissionManageUsers) {
		n, err := s.AuthDB.NumUserManagers()
		www.Check(err)
		if n != 0 {
			// There is already a user manager, so you can't use the bootstrap path
			www.PanicForbidden()
		}
		isInitialUser = true
		hasManage := false
		for _, p := range perms {
			if p == authdb.PermissionManageUsers {
				hasManage = true
			}
		}
		if !hasManage {
			perms = append(perms, authdb.PermissionManageUsers)
		}
	}

	s.gate(w, "global:sensitive", s.Config.Limits.GlobalSensitive.Config())

	user, err := s.AuthDB.CreateUser(req.Email, req.Name, perms)
	if err != nil {
		www.PanicBadRequestf("Failed to create user: %v", err)
	}
	if isInitialUser {
		s.Log.Infof("Created initial user manager %v (%v)", user.ID, user.Email)
	}
	www.SendJSON(w, makeWhoAmIResponse(user))
}

// httpUserSetPermissions replaces the target's permission set. You may not
// strip manage_users from your own account here (self-lockout guard).
// Changing another user's permissions invalidates their sessions, so the old
// permission set can't keep riding on a live session; your own sessions are
// left alone so you aren't logged out by your own edit.
func (s *Server) httpUserSetPermissions(w http.ResponseWriter, r *http.Request, params httprouter.Params, user *authdb.User) {
	targetID := www.ParseID(params.ByName("id"))
	target, err := s.AuthDB.GetUserFromID(targetID)
	if err != nil {
		www.PanicNotFound()
	}
	req := setPermissionsJSON{}
	www.ReadJSON(w, r, &req, 1024*64)
	perms := parsePermissions(req.Permissions)

	if target.ID == user.ID {
		keepsManage := false
		for _, p := range perms {
			if p == authdb.PermissionManageUsers {
				keepsManage = true
			}
		}
		if !keepsManage {
			www.PanicForbiddenf("You cannot remove your own user management permission")
		}
	}

	www.Check(s.AuthDB.SetPermissions(target.ID, perms))
	if target.ID != user.ID {
		s.AuthDB.InvalidateAllSessions(target.ID)
	}
	s.Log.Infof("User %v set permissions of user %v to '%v'", user.ID, target.ID, authdb.JoinPermissions(perms))
	www.SendOK(w)
}

// httpUserDeactivate clears the target's permissions and kills their
// sessions. Deactivating your own account is refused; get another user
// manager to do it.
func (s *Server) httpUserDeactivate(w http.ResponseWriter, r *http.Request, params httprouter.Params, user *authdb.User) {
	targetID := www.ParseID(params.ByName("id"))
	target, err := s.AuthDB.GetUserFromID(targetID)
	if err != nil {
		www.PanicNotFound()
	}
	if target.ID == user.ID {
		www.PanicForbiddenf("You cannot deactivate your own account")
	}
	www.Check(s.AuthDB.DeactivateUser(target.ID))
	s.AuthDB.InvalidateAllSessions(target.ID)
	s.Log.Infof("User %v deactivated user %v", user.ID, target.ID)
	www.SendOK(w)
}

// currentUser returns the user behind the request's session, or nil. Unlike
// authorizeRequest it never panics; callers that allow anonymous access use
// this.
func (s *Server) currentUser(r *http.Request) *authdb.User {
	userID, _, err := s.AuthDB.SessionFromRequest(r)
	if err != nil {
		return nil
	}
	user, err := s.AuthDB.GetUserFromID(userID)
	if err != nil {
		return nil
	}
	return user
}
