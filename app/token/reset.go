package token

import (
	"context"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-accounts/app/entity"
	"github.com/vibast-solutions/ms-go-accounts/app/repository"
)

var (
	ErrResetTokenInvalid = errors.New("invalid reset token")
	ErrResetTokenExpired = errors.New("reset token expired")
)

type ResetBroker struct {
	ttl time.Duration
	now func() time.Time
}

func NewResetBroker(ttl time.Duration) *ResetBroker {
	return &ResetBroker{ttl: ttl, now: time.Now}
}

// Issue replaces any outstanding token for email and returns the new secret.
func (b *ResetBroker) Issue(ctx context.Context, store repository.ResetTokenStore, email string) (string, error) {
	plain, err := newSecret(32)
	if err != nil {
		return "", err
	}
	err = store.Upsert(ctx, &entity.PasswordResetToken{
		Email:     email,
		TokenHash: Hash(plain),
		CreatedAt: b.now(),
	})
	if err != nil {
		return "", err
	}
	return plain, nil
}

// Consume deletes the stored token on every attempt, matching or not. The
// caller must run Consume and the password change in one transaction, and must
// commit on ErrResetTokenInvalid and ErrResetTokenExpired so the deletion sticks.
func (b *ResetBroker) Consume(ctx context.Context, store repository.ResetTokenStore, email, plain string) error {
	stored, err := store.FindByEmailForUpdate(ctx, email)
	if err != nil {
		return err
	}
	if stored == nil {
		return ErrResetTokenInvalid
	}

	if err := store.DeleteByEmail(ctx, email); err != nil {
		return err
	}
	if plain == "" || !equalHash(stored.TokenHash, Hash(plain)) {
		return ErrResetTokenInvalid
	}
	if !b.now().Before(stored.CreatedAt.Add(b.ttl)) {
		return ErrResetTokenExpired
	}
	return nil
}

// Prune deletes tokens older than the ttl.
func (b *ResetBroker) Prune(ctx context.Context, store repository.ResetTokenStore) (int64, error) {
	return store.DeleteCreatedBefore(ctx, b.now().Add(-b.ttl))
}
