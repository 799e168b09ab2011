package server

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/cyclopcam/www"
	"github.com/go-chi/httprate"
	"github.com/hireloop/hireloop/pkg/ratelimit"
	"github.com/hireloop/hireloop/server/authdb"
	"github.com/julienschmidt/httprouter"
)

// SetupHTTP builds the router. Three kinds of routes:
//   - limited: anonymous, behind a coarse per-IP httprate shield (the auth
//     endpoints; the policy-table limiter runs inside the handlers)
//   - protected: requires a valid session credential AND a live server-side
//     session record, then applies the route permission table
//   - edge-only protected routes (whoami, logout) skip the permission table
func (s *Server) SetupHTTP() http.Handler {
	router := httprouter.New()

	limited := func(method, route string, handle func(w http.ResponseWriter, r *http.Request), requestLimit int, windowLength time.Duration) {
		// We create a unique rate limiter for each endpoint, so we don't need
		// httprate.KeyByEndpoint.
		shield := httprate.Limit(requestLimit, windowLength, httprate.WithKeyFuncs(httprate.KeyByIP))
		www.Handle(s.Log, router, method, route, func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
			shield(http.HandlerFunc(handle)).ServeHTTP(w, r)
		})
	}

	protected := func(method, route string, handle func(w http.ResponseWriter, r *http.Request, params httprouter.Params, user *authdb.User)) {
		www.Handle(s.Log, router, method, route, func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
			user := s.authorizeRequest(w, r)
			handle(w, r, params, user)
		})
	}

	limited("POST", "/api/auth/login", s.httpAuthRequestCode, 30, time.Minute)
	limited("POST", "/api/auth/verify", s.httpAuthVerifyCode, 30, time.Minute)
	limited("POST", "/api/users", s.httpUserCreate, 30, time.Minute)

	www.Handle(s.Log, router, "POST", "/api/auth/logout", s.httpAuthLogout)
	www.Handle(s.Log, router, "GET", "/api/auth/whoami", s.httpAuthWhoAmi)

	protected("GET", "/api/users", s.httpUserList)
	protected("GET", "/api/users/:id", s.httpUserGet)
	protected("PUT", "/api/users/:id/permissions", s.httpUserSetPermissions)
	protected("POST", "/api/users/:id/deactivate", s.httpUserDeactivate)

	return router
}

// authorizeRequest is the access gate. Layer one (edge) requires a valid
// credential and a live session record. Layer two re-reads the user's
// permissions from the store (never from the credential's claims) and
// applies the route permission table, so revocation takes effect without
// waiting for credential expiry. Panics with 401/403 on failure.
func (s *Server) authorizeRequest(w http.ResponseWriter, r *http.Request) *authdb.User {
	userID, _, err := s.AuthDB.SessionFromRequest(r)
	if err != nil {
		www.PanicUnauthorized()
	}
	user, err := s.AuthDB.GetUserFromID(userID)
	if err != nil {
		www.PanicUnauthorized()
	}
	required := requiredPermissions(r.URL.Path)
	if len(required) == 0 {
		return user
	}
	for _, p := range required {
		if user.HasPermission(p) {
			return user
		}
	}
	// Authenticated, but not authorized. Deliberately does not say which
	// permission is missing.
	www.PanicForbidden()
	return nil
}

// gate applies one rate-limit class, and fails the request with a 429 when
// the window is exhausted. The reset time goes out in headers for client
// backoff. Gates are always checked coarse-first, so the cheap check fails
// fast before the targeted one runs.
func (s *Server) gate(w http.ResponseWriter, key string, cfg ratelimit.Config) {
	res := s.Limiter.Check(key, cfg)
	if !res.Allowed {
		retryAfter := int(time.Until(res.ResetAt).Seconds()) + 1
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.UnixMilli(), 10))
		www.Panic(http.StatusTooManyRequests, "Too many requests")
	}
}

// clientIP returns the remote IP without the port. We deliberately ignore
// X-Forwarded-For; if you deploy behind a proxy, terminate it honestly.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
