// Package auth handles accounts: email+password sign-up and sign-in, bearer
// tokens, and the fixed guest identity used when the app runs without a
// hosted record store.
package auth

import "gorm.io/gorm"

// GuestEmail is the identity every request runs under in fallback mode.
const GuestEmail = "guest@opentales.local"

// User is an account. PasswordHash is a bcrypt hash and never serialized.
type User struct {
	gorm.Model
	Email        string `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"size:255;not null" json:"-"`
	DisplayName  string `gorm:"size:255" json:"display_name"`
}

// TableName keeps the table name stable across Gorm naming-strategy changes.
func (User) TableName() string {
	return "users"
}
