package token

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-accounts/app/entity"
	"github.com/vibast-solutions/ms-go-accounts/app/repository"
)

const sessionPrefix = "acct_"

var ErrUnauthenticated = errors.New("unauthenticated")

// Sessions issues opaque bearer tokens. A ttl of zero issues tokens that live
// until they are revoked.
type Sessions struct {
	ttl time.Duration
	now func() time.Time
}

func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{ttl: ttl, now: time.Now}
}

func (s *Sessions) Issue(ctx context.Context, store repository.SessionStore, accountID uint64, name string) (string, *entity.SessionToken, error) {
	secret, err := newSecret(32)
	if err != nil {
		return "", nil, err
	}
	plain := sessionPrefix + secret

	now := s.now()
	row := &entity.SessionToken{
		AccountID: accountID,
		Name:      name,
		TokenHash: Hash(plain),
		CreatedAt: now,
	}
	if s.ttl > 0 {
		row.ExpiresAt = sql.NullTime{Time: now.Add(s.ttl), Valid: true}
	}
	if err := store.Create(ctx, row); err != nil {
		return "", nil, err
	}
	return plain, row, nil
}

// Validate resolves a bearer secret to its stored row.
func (s *Sessions) Validate(ctx context.Context, store repository.SessionStore, secret string) (*entity.SessionToken, error) {
	secret = strings.TrimSpace(secret)
	if !strings.HasPrefix(secret, sessionPrefix) {
		return nil, ErrUnauthenticated
	}

	row, err := store.FindByHash(ctx, Hash(secret))
	if err != nil {
		return nil, err
	}
	now := s.now()
	if row == nil || row.IsExpired(now) {
		return nil, ErrUnauthenticated
	}
	if err := store.TouchLastUsed(ctx, row.ID, now); err != nil {
		return nil, err
	}
	row.LastUsedAt = sql.NullTime{Time: now, Valid: true}
	return row, nil
}

func (s *Sessions) Revoke(ctx context.Context, store repository.SessionStore, accountID, id uint64) error {
	_, err := store.Delete(ctx, id, accountID)
	return err
}

func (s *Sessions) RevokeAll(ctx context.Context, store repository.SessionStore, accountID uint64) error {
	_, err := store.DeleteByAccountID(ctx, accountID)
	return err
}

// RevokeOthers keeps only the session identified by keepID.
func (s *Sessions) RevokeOthers(ctx context.Context, store repository.SessionStore, accountID, keepID uint64) error {
	_, err := store.DeleteByAccountIDExcept(ctx, accountID, keepID)
	return err
}

// Prune deletes expired sessions.
func (s *Sessions) Prune(ctx context.Context, store repository.SessionStore) (int64, error) {
	return store.DeleteExpired(ctx, s.now())
}
