package authdb

import (
	"errors"
	"strings"

	"github.com/cyclopcam/dbh"
	"gorm.io/gorm"
)

// IssueLoginCode validates 'email' against the allow-list, then creates a
// fresh single-use login code for it. Any prior codes for the email are
// deleted, so only the newest code can ever verify. The caller is
// responsible for delivering the code (and for rate limiting before
// calling us).
func (c *AuthDB) IssueLoginCode(email string) (string, error) {
	email = NormalizeEmail(email)
	if err := c.IsEmailAllowed(email); err != nil {
		return "", err
	}
	code := StrongRandomCode(LoginCodeLength)
	now := c.now().UTC()
	token := MagicToken{
		Email:     email,
		CodeHash:  HashLoginCode(code),
		CreatedAt: dbh.MakeIntTime(now),
		ExpiresAt: dbh.MakeIntTime(now.Add(c.codeTTL)),
	}
	if err := c.DB.Where("email = ?", email).Delete(&MagicToken{}).Error; err != nil {
		return "", err
	}
	if err := c.DB.Create(&token).Error; err != nil {
		return "", err
	}
	return code, nil
}

// VerifyLoginCode checks a submitted (email, code) pair, and consumes the
// stored token on success. Consumption is a conditional update keyed on the
// token still being unconsumed, so two simultaneous correct submissions can
// mint at most one session between them. Every authentication failure looks
// identical to the caller; a non-nil error means the store failed, which is
// a different thing, and callers must not report it as a bad code.
func (c *AuthDB) VerifyLoginCode(email, submittedCode string) (bool, error) {
	email = NormalizeEmail(email)
	submittedCode = strings.ToUpper(strings.TrimSpace(submittedCode))
	if email == "" || submittedCode == "" {
		return false, nil
	}
	token := MagicToken{}
	err := c.DB.Where("email = ? AND consumed = 0 AND expires_at > ?", email, c.now().UnixMilli()).Order("id DESC").First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	} else if err != nil {
		c.Log.Errorf("Login code lookup for %v failed: %v", email, err)
		return false, err
	}
	if !VerifyCodeHash(submittedCode, token.CodeHash) {
		return false, nil
	}
	res := c.DB.Model(&MagicToken{}).Where("id = ? AND consumed = 0", token.ID).Update("consumed", true)
	if res.Error != nil {
		c.Log.Errorf("Failed to consume login code for %v: %v", email, res.Error)
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// PurgeExpiredTokens deletes magic tokens that are consumed or whose expiry
// has passed. Runs lazily on login, the same way sessions are reclaimed.
func (c *AuthDB) PurgeExpiredTokens() {
	db, err := c.DB.DB()
	if err != nil {
		c.Log.Warnf("PurgeExpiredTokens failed (1): %v", err)
		return
	}
	_, err = db.Exec("DELETE FROM magic_token WHERE expires_at < ? OR consumed = 1", c.now().UnixMilli())
	if err != nil {
		c.Log.Warnf("PurgeExpiredTokens failed (2): %v", err)
	}
}
