package server

import (
	"errors"
	"net/http"

	"github.com/cyclopcam/www"
	"github.com/hireloop/hireloop/server/authdb"
	"github.com/hireloop/hireloop/server/email"
	"github.com/julienschmidt/httprouter"
	"gorm.io/gorm"
)

type loginRequestJSON struct {
	Email string `json:"email"`
}

type verifyRequestJSON struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// SYNC-WHOAMI-RESPONSE-JSON
type whoAmIResponseJSON struct {
	ID          int64    `json:"id"`
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

func makeWhoAmIResponse(user *authdb.User) *whoAmIResponseJSON {
	perms := []string{}
	for _, p := range user.PermissionList() {
		perms = append(perms, string(p))
	}
	return &whoAmIResponseJSON{
		ID:          user.ID,
		Email:       user.Email,
		Name:        user.Name,
		Permissions: perms,
	}
}

// httpAuthRequestCode handles "send me a login code". Gate order is fixed:
// the coarse global and per-IP checks run before the targeted per-email
// check. The response is the same whether or not the email belongs to a
// user, so this endpoint can't be used to probe for accounts.
func (s *Server) httpAuthRequestCode(w http.ResponseWriter, r *http.Request) {
	req := loginRequestJSON{}
	www.ReadJSON(w, r, &req, 1024*64)
	emailAddr := authdb.NormalizeEmail(req.Email)
	if emailAddr == "" {
		www.PanicBadRequestf("Must specify email")
	}
	if err := s.AuthDB.IsEmailAllowed(emailAddr); err != nil {
		www.PanicBadRequestf("Email address not allowed")
	}

	s.gate(w, "global:sensitive", s.Config.Limits.GlobalSensitive.Config())
	s.gate(w, "ip:"+clientIP(r), s.Config.Limits.AuthPerIP.Config())
	s.gate(w, "login:"+emailAddr, s.Config.Limits.LoginCodePerEmail.Config())

	if _, err := s.AuthDB.GetUserByEmail(emailAddr); err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.Log.Errorf("User lookup for login failed: %v", err)
			www.PanicServerError("Internal error")
		}
		// Unknown user. Acknowledge without sending, so the response is
		// indistinguishable from the known-user case.
		s.Log.Infof("Login code requested for unknown email %v", emailAddr)
		www.SendOK(w)
		return
	}

	code, err := s.AuthDB.IssueLoginCode(emailAddr)
	if err != nil {
		s.Log.Errorf("Failed to issue login code for %v: %v", emailAddr, err)
		www.PanicServerError("Internal error")
	}
	subject, body := email.LoginCodeMessage(code, s.AuthDB.CodeTTL())
	if err := s.Email.Send(emailAddr, subject, body); err != nil {
		// No automatic retry: that could double-send a code.
		s.Log.Errorf("Failed to send login code to %v: %v", emailAddr, err)
		www.PanicServerError("Failed to send email")
	}
	s.Log.Infof("Sent login code to %v", emailAddr)
	www.SendOK(w)
}

// httpAuthVerifyCode exchanges a correct (email, code) pair for a session.
// Wrong code, expired code, consumed code, and unknown email all produce the
// same generic 401.
func (s *Server) httpAuthVerifyCode(w http.ResponseWriter, r *http.Request) {
	req := verifyRequestJSON{}
	www.ReadJSON(w, r, &req, 1024*64)
	emailAddr := authdb.NormalizeEmail(req.Email)
	if emailAddr == "" || req.Code == "" {
		www.PanicBadRequestf("Must specify email and code")
	}

	s.gate(w, "global:sensitive", s.Config.Limits.GlobalSensitive.Config())
	s.gate(w, "ip:"+clientIP(r), s.Config.Limits.AuthPerIP.Config())
	s.gate(w, "verify:"+emailAddr, s.Config.Limits.VerifyPerEmail.Config())

	ok, err := s.AuthDB.VerifyLoginCode(emailAddr, req.Code)
	if err != nil {
		// Store failure, not a bad code. Already logged with detail.
		www.PanicServerError("Internal error")
	}
	if !ok {
		www.Panic(http.StatusUnauthorized, "Invalid or expired code")
	}
	user, err := s.AuthDB.GetUserByEmail(emailAddr)
	if err != nil {
		// Code was valid but there's no user behind it. Same generic message.
		www.Panic(http.StatusUnauthorized, "Invalid or expired code")
	}
	credential, _, err := s.AuthDB.CreateSession(user.ID)
	www.Check(err)
	s.AuthDB.SetSessionCookie(w, credential, s.AuthDB.SessionExpiry())
	www.SendJSON(w, makeWhoAmIResponse(user))
}

func (s *Server) httpAuthLogout(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	s.AuthDB.Logout(w, r)
	www.SendOK(w)
}

// httpAuthWhoAmi returns the identity behind the current session. When the
// client still holds a signature-valid credential whose server-side session
// is gone, we proactively clear the cookie along with the 401.
func (s *Server) httpAuthWhoAmi(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	userID, _, err := s.AuthDB.SessionFromRequest(r)
	if err != nil {
		if errors.Is(err, authdb.ErrSessionRevoked) {
			s.AuthDB.ClearSessionCookie(w)
		}
		www.PanicUnauthorized()
	}
	user, err := s.AuthDB.GetUserFromID(userID)
	if err != nil {
		www.PanicUnauthorized()
	}
	www.SendJSON(w, makeWhoAmIResponse(user))
}
