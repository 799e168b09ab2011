package authdb

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

func requestWithCookie(credential string) *http.Request {
	r := httptest.NewRequest("GET", "/api/auth/whoami", nil)
	r.AddCookie(&http.Cookie{Name: SessionCookie, Value: credential})
	return r
}

func TestSessionRoundtrip(t *testing.T) {
	db := createTestDB(t)
	credential, sessionID, err := db.CreateSession(5)
	require.NoError(t, err)
	require.NotEmpty(t, credential)
	require.NotEmpty(t, sessionID)

	// Local signature/expiry check
	userID, sid, err := db.ValidateCredential(credential)
	require.NoError(t, err)
	require.Equal(t, int64(5), userID)
	require.Equal(t, sessionID, sid)

	// Full check including the server-side record
	userID, sid, err = db.SessionFromRequest(requestWithCookie(credential))
	require.NoError(t, err)
	require.Equal(t, int64(5), userID)
	require.Equal(t, sessionID, sid)
}

func TestSessionBearerHeader(t *testing.T) {
	db := createTestDB(t)
	credential, _, err := db.CreateSession(5)
	require.NoError(t, err)

	r := httptest.NewRequest("GET", "/api/auth/whoami", nil)
	r.Header.Set("Authorization", "Bearer "+credential)
	userID, _, err := db.SessionFromRequest(r)
	require.NoError(t, err)
	require.Equal(t, int64(5), userID)
}

func TestSessionTamper(t *testing.T) {
	db := createTestDB(t)
	credential, _, err := db.CreateSession(5)
	require.NoError(t, err)

	_, _, err = db.ValidateCredential(credential + "x")
	require.ErrorIs(t, err, ErrInvalidSession)
	_, _, err = db.ValidateCredential("")
	require.ErrorIs(t, err, ErrInvalidSession)

	// A credential signed with a different secret must not validate
	otherPath := filepath.Join(t.TempDir(), "other.sqlite")
	other, err := NewAuthDB(logs.NewTestingLog(t), otherPath, Options{SessionSecret: "other-secret"})
	require.NoError(t, err)
	foreign, _, err := other.CreateSession(5)
	require.NoError(t, err)
	_, _, err = db.ValidateCredential(foreign)
	require.ErrorIs(t, err, ErrInvalidSession)
}

func TestSessionExpiry(t *testing.T) {
	db := createTestDB(t)
	clock := createTestClock(db)

	credential, _, err := db.CreateSession(5)
	require.NoError(t, err)

	clock.advance(31 * 24 * time.Hour)
	_, _, err = db.ValidateCredential(credential)
	require.ErrorIs(t, err, ErrInvalidSession)
}

func TestSessionRevocation(t *testing.T) {
	db := createTestDB(t)
	credential, sessionID, err := db.CreateSession(5)
	require.NoError(t, err)

	db.InvalidateSession(sessionID)

	// Signature still verifies...
	_, _, err = db.ValidateCredential(credential)
	require.NoError(t, err)
	// ...but the full check rejects it
	_, _, err = db.SessionFromRequest(requestWithCookie(credential))
	require.ErrorIs(t, err, ErrSessionRevoked)
}

func TestInvalidateAllSessions(t *testing.T) {
	db := createTestDB(t)
	cred1, _, err := db.CreateSession(5)
	require.NoError(t, err)
	cred2, _, err := db.CreateSession(5)
	require.NoError(t, err)
	credOther, _, err := db.CreateSession(6)
	require.NoError(t, err)

	db.InvalidateAllSessions(5)

	_, _, err = db.SessionFromRequest(requestWithCookie(cred1))
	require.ErrorIs(t, err, ErrSessionRevoked)
	_, _, err = db.SessionFromRequest(requestWithCookie(cred2))
	require.ErrorIs(t, err, ErrSessionRevoked)
	// Other users' sessions are untouched
	userID, _, err := db.SessionFromRequest(requestWithCookie(credOther))
	require.NoError(t, err)
	require.Equal(t, int64(6), userID)
}

func TestLogout(t *testing.T) {
	db := createTestDB(t)
	credential, _, err := db.CreateSession(5)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	db.Logout(w, requestWithCookie(credential))

	// Server-side record gone
	_, _, err = db.SessionFromRequest(requestWithCookie(credential))
	require.ErrorIs(t, err, ErrSessionRevoked)

	// Client told to drop the cookie
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, SessionCookie, cookies[0].Name)
	require.Equal(t, "", cookies[0].Value)
	require.Negative(t, cookies[0].MaxAge)
}

func TestSessionCookieAttributes(t *testing.T) {
	db := createTestDB(t)
	credential, _, err := db.CreateSession(5)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	db.SetSessionCookie(w, credential, db.SessionExpiry())
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	require.Equal(t, SessionCookie, c.Name)
	require.True(t, c.HttpOnly)
	require.True(t, c.Secure)
	require.Equal(t, http.SameSiteLaxMode, c.SameSite)
	require.True(t, c.Expires.After(time.Now().Add(29*24*time.Hour)))
}

func TestPurgeExpiredSessions(t *testing.T) {
	db := createTestDB(t)
	clock := createTestClock(db)

	_, _, err := db.CreateSession(5)
	require.NoError(t, err)
	clock.advance(31 * 24 * time.Hour)
	_, _, err = db.CreateSession(6)
	require.NoError(t, err)

	db.PurgeExpiredSessions()

	n := int64(0)
	require.NoError(t, db.DB.Model(&Session{}).Count(&n).Error)
	require.Equal(t, int64(1), n)
}
