package authdb

import (
	"fmt"

	"github.com/cyclopcam/dbh"
)

func (c *AuthDB) GetUserFromID(id int64) (*User, error) {
	user := User{}
	if err := c.DB.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *AuthDB) GetUserByEmail(email string) (*User, error) {
	user := User{}
	if err := c.DB.First(&user, "email_normalized = ?", NormalizeEmail(email)).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *AuthDB) ListUsers() ([]User, error) {
	users := []User{}
	if err := c.DB.Order("id").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (c *AuthDB) CreateUser(email, name string, perms []Permission) (*User, error) {
	email = NormalizeEmail(email)
	if err := c.IsEmailAllowed(email); err != nil {
		return nil, err
	}
	user := User{
		Email:           email,
		EmailNormalized: email,
		Name:            name,
		Permissions:     JoinPermissions(perms),
		CreatedAt:       dbh.MakeIntTime(c.now().UTC()),
	}
	if err := c.DB.Create(&user).Error; err != nil {
		return nil, err
	}
	c.Log.Infof("Created user %v (%v), perms:%v", user.ID, user.Email, user.Permissions)
	return &user, nil
}

// SetPermissions replaces a user's permission set.
func (c *AuthDB) SetPermissions(userID int64, perms []Permission) error {
	res := c.DB.Model(&User{}).Where("id = ?", userID).Update("permissions", JoinPermissions(perms))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user %v not found", userID)
	}
	return nil
}

// DeactivateUser strips all permissions from the user. Their record (and
// history attached to it) stays; their sessions must be invalidated by the
// caller together with this.
func (c *AuthDB) DeactivateUser(userID int64) error {
	return c.SetPermissions(userID, nil)
}

// NumUserManagers counts users who hold the manage_users permission. Zero
// means the system is un-bootstrapped and the first user may be created
// without authentication.
func (c *AuthDB) NumUserManagers() (int, error) {
	n := int64(0)
	if err := c.DB.Model(&User{}).Where("permissions LIKE ?", "%"+string(PermissionManageUsers)+"%").Count(&n).Error; err != nil {
		return 0, err
	}
	return int(n), nil
}
