package authdb

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// sessionClaims is the payload of the client-held session credential.
// The subject is the user ID; "sid" ties the credential to its server-side
// session record. Everything authorization-related is re-read from the
// store, never trusted from here.
type sessionClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
}

func (c *AuthDB) signCredential(userID int64, sessionID string, issuedAt, expiresAt time.Time) (string, error) {
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		SessionID: sessionID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// ValidateCredential checks the signature and expiry of a session
// credential. This is purely local (no store access), so it runs cheaply on
// every request. A passing credential is necessary but not sufficient: the
// server-side session record must also still exist (see SessionFromRequest).
func (c *AuthDB) ValidateCredential(credential string) (userID int64, sessionID string, err error) {
	claims := sessionClaims{}
	_, err = jwt.ParseWithClaims(credential, &claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired(), jwt.WithTimeFunc(func() time.Time { return c.now() }))
	if err != nil {
		return 0, "", ErrInvalidSession
	}
	userID, err = strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID == 0 || claims.SessionID == "" {
		return 0, "", ErrInvalidSession
	}
	return userID, claims.SessionID, nil
}
