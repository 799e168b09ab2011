package authdb

import (
	"net/http"
	"strings"
	"time"

	"github.com/cyclopcam/dbh"
	"github.com/google/uuid"
)

// SYNC-HIRELOOP-SESSION-COOKIE
const SessionCookie = "hireloop_session"

// CreateSession records a new session for userID and returns the signed
// credential that the client will carry.
func (c *AuthDB) CreateSession(userID int64) (credential string, sessionID string, err error) {
	now := c.now().UTC()
	expiresAt := now.Add(c.sessionTTL)
	sessionID = uuid.NewString()
	session := Session{
		ID:        sessionID,
		UserID:    userID,
		CreatedAt: dbh.MakeIntTime(now),
		ExpiresAt: dbh.MakeIntTime(expiresAt),
	}
	if err := c.DB.Create(&session).Error; err != nil {
		return "", "", err
	}
	credential, err = c.signCredential(userID, sessionID, now, expiresAt)
	if err != nil {
		return "", "", err
	}
	c.PurgeExpiredSessions()
	c.PurgeExpiredTokens()
	c.Log.Infof("Logging user %v in (session %v)", userID, sessionID)
	return credential, sessionID, nil
}

// SessionExpiry returns when a session created now would expire.
func (c *AuthDB) SessionExpiry() time.Time {
	return c.now().UTC().Add(c.sessionTTL)
}

// CredentialFromRequest extracts the raw session credential from the cookie,
// or from an Authorization: Bearer header for API clients that don't carry
// cookies. Returns "" if neither is present.
func CredentialFromRequest(r *http.Request) string {
	cookie, _ := r.Cookie(SessionCookie)
	if cookie != nil {
		return cookie.Value
	}
	authorization := r.Header.Get("Authorization")
	if strings.HasPrefix(authorization, "Bearer ") {
		return authorization[7:]
	}
	return ""
}

// SessionFromRequest resolves the request's credential to a live session.
// The signature/expiry check is local; on top of that we require the
// server-side session record to still exist, so that logout, permission
// changes and deactivation take effect immediately rather than at
// credential expiry.
func (c *AuthDB) SessionFromRequest(r *http.Request) (userID int64, sessionID string, err error) {
	credential := CredentialFromRequest(r)
	if credential == "" {
		return 0, "", ErrNoSession
	}
	userID, sessionID, err = c.ValidateCredential(credential)
	if err != nil {
		return 0, "", err
	}
	session := Session{}
	if err := c.DB.First(&session, "id = ?", sessionID).Error; err != nil {
		return 0, "", ErrSessionRevoked
	}
	if session.UserID != userID || !session.ExpiresAt.Get().After(c.now()) {
		return 0, "", ErrSessionRevoked
	}
	return userID, sessionID, nil
}

// SetSessionCookie sends the credential as a secure, http-only, same-site
// cookie.
func (c *AuthDB) SetSessionCookie(w http.ResponseWriter, credential string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    credential,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie tells the client to drop its credential.
func (c *AuthDB) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Logout invalidates the request's session server-side and clears the
// client-held credential. Always succeeds from the client's point of view.
func (c *AuthDB) Logout(w http.ResponseWriter, r *http.Request) {
	credential := CredentialFromRequest(r)
	if credential != "" {
		if _, sessionID, err := c.ValidateCredential(credential); err == nil {
			c.InvalidateSession(sessionID)
		}
	}
	c.ClearSessionCookie(w)
}

// InvalidateSession deletes one session record.
func (c *AuthDB) InvalidateSession(sessionID string) {
	if err := c.DB.Delete(&Session{}, "id = ?", sessionID).Error; err != nil {
		c.Log.Errorf("InvalidateSession %v failed: %v", sessionID, err)
	}
}

// InvalidateAllSessions deletes every session belonging to userID, eg after
// a permission change or deactivation by an administrator.
func (c *AuthDB) InvalidateAllSessions(userID int64) {
	if err := c.DB.Delete(&Session{}, "user_id = ?", userID).Error; err != nil {
		c.Log.Errorf("InvalidateAllSessions for user %v failed: %v", userID, err)
	}
}

func (c *AuthDB) PurgeExpiredSessions() {
	db, err := c.DB.DB()
	if err != nil {
		c.Log.Warnf("PurgeExpiredSessions failed (1): %v", err)
		return
	}
	_, err = db.Exec("DELETE FROM session WHERE expires_at < ?", c.now().UnixMilli())
	if err != nil {
		c.Log.Warnf("PurgeExpiredSessions failed (2): %v", err)
	}
}
