package entity

import (
	"database/sql"
	"time"
)

type Account struct {
	ID              uint64
	Name            string
	Email           string
	CanonicalEmail  string
	PasswordHash    string
	IsAdmin         bool
	EmailVerifiedAt sql.NullTime
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (a *Account) IsVerified() bool {
	return a != nil && a.EmailVerifiedAt.Valid
}

// DirectoryEntry is a verified account as listed in the public directory.
type DirectoryEntry struct {
	Account *Account
	Profile *Profile
}
