package models

import (
	"time"
)

// User is a local account checked by the Postgres credential verifier
type User struct {
	ID               string
	Email            string
	PasswordHash     string
	EmailConfirmedAt *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// EmailConfirmed reports whether the account finished email confirmation
func (u *User) EmailConfirmed() bool {
	return u.EmailConfirmedAt != nil
}
