package entity

import (
	"database/sql"
	"time"
)

type SessionToken struct {
	ID         uint64
	AccountID  uint64
	Name       string
	TokenHash  string
	LastUsedAt sql.NullTime
	ExpiresAt  sql.NullTime
	CreatedAt  time.Time
}

func (t *SessionToken) IsExpired(now time.Time) bool {
	return t.ExpiresAt.Valid && !now.Before(t.ExpiresAt.Time)
}

type PasswordResetToken struct {
	Email     string
	TokenHash string
	CreatedAt time.Time
}
