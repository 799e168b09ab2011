package authdb

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// verifyCode asserts that the store is healthy, and returns whether the
// (email, code) pair authenticated.
func verifyCode(t *testing.T, db *AuthDB, email, code string) bool {
	ok, err := db.VerifyLoginCode(email, code)
	require.NoError(t, err)
	return ok
}

func TestLoginCodeSingleUse(t *testing.T) {
	db := createTestDB(t)
	code, err := db.IssueLoginCode("a@co.com")
	require.NoError(t, err)
	require.Len(t, code, LoginCodeLength)

	require.True(t, verifyCode(t, db, "a@co.com", code))
	// A consumed code can never verify again
	require.False(t, verifyCode(t, db, "a@co.com", code))
}

func TestLoginCodeWrongThenRight(t *testing.T) {
	db := createTestDB(t)
	code, err := db.IssueLoginCode("a@co.com")
	require.NoError(t, err)

	// A wrong code fails, but does not consume or extend the token
	require.False(t, verifyCode(t, db, "a@co.com", "WRONGC"))
	require.True(t, verifyCode(t, db, "a@co.com", code))
}

func TestLoginCodeExpiry(t *testing.T) {
	db := createTestDB(t)
	clock := createTestClock(db)

	code, err := db.IssueLoginCode("a@co.com")
	require.NoError(t, err)

	clock.advance(11 * time.Minute)
	// Correct code, but past the expiry window
	require.False(t, verifyCode(t, db, "a@co.com", code))
}

func TestLoginCodeSupersession(t *testing.T) {
	db := createTestDB(t)
	code1, err := db.IssueLoginCode("a@co.com")
	require.NoError(t, err)
	code2, err := db.IssueLoginCode("a@co.com")
	require.NoError(t, err)

	// The old code is dead the moment a new one is issued
	if code1 != code2 {
		require.False(t, verifyCode(t, db, "a@co.com", code1))
	}
	require.True(t, verifyCode(t, db, "a@co.com", code2))
}

func TestLoginCodeInputNormalization(t *testing.T) {
	db := createTestDB(t)
	code, err := db.IssueLoginCode("A@CO.com")
	require.NoError(t, err)

	// User input is uppercased and trimmed, email is normalized
	require.True(t, verifyCode(t, db, " a@co.COM ", "  "+strings.ToLower(code)+" "))
}

func TestLoginCodeUnknownEmail(t *testing.T) {
	db := createTestDB(t)
	require.False(t, verifyCode(t, db, "nobody@co.com", "ABC234"))
	require.False(t, verifyCode(t, db, "", ""))
}

func TestLoginCodesAreIndependentPerEmail(t *testing.T) {
	db := createTestDB(t)
	codeA, err := db.IssueLoginCode("a@co.com")
	require.NoError(t, err)
	codeB, err := db.IssueLoginCode("b@co.com")
	require.NoError(t, err)

	require.False(t, verifyCode(t, db, "b@co.com", codeA) && codeA != codeB)
	require.True(t, verifyCode(t, db, "a@co.com", codeA))
	require.True(t, verifyCode(t, db, "b@co.com", codeB))
}

func TestPurgeExpiredTokens(t *testing.T) {
	db := createTestDB(t)
	clock := createTestClock(db)

	_, err := db.IssueLoginCode("a@co.com")
	require.NoError(t, err)
	clock.advance(11 * time.Minute)
	code2, err := db.IssueLoginCode("b@co.com")
	require.NoError(t, err)

	db.PurgeExpiredTokens()

	n := int64(0)
	require.NoError(t, db.DB.Model(&MagicToken{}).Count(&n).Error)
	require.Equal(t, int64(1), n)
	require.True(t, verifyCode(t, db, "b@co.com", code2))
}

func TestTokensReclaimedOnLogin(t *testing.T) {
	db := createTestDB(t)
	user, err := db.CreateUser("a@co.com", "A", []Permission{PermissionViewJobs})
	require.NoError(t, err)

	code, err := db.IssueLoginCode("a@co.com")
	require.NoError(t, err)
	require.True(t, verifyCode(t, db, "a@co.com", code))

	// Completing login reclaims the consumed token row, so rows for emails
	// that never issue again don't accumulate
	_, _, err = db.CreateSession(user.ID)
	require.NoError(t, err)

	n := int64(0)
	require.NoError(t, db.DB.Model(&MagicToken{}).Count(&n).Error)
	require.Equal(t, int64(0), n)
}

func TestVerifyReportsStoreFailure(t *testing.T) {
	db := createTestDB(t)
	code, err := db.IssueLoginCode("a@co.com")
	require.NoError(t, err)

	// A store outage must surface as an error, never as a plain
	// authentication failure
	require.NoError(t, db.DB.Exec("DROP TABLE magic_token").Error)

	ok, err := db.VerifyLoginCode("a@co.com", code)
	require.Error(t, err)
	require.False(t, ok)
}
