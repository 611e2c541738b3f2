package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/vibast-solutions/ms-go-accounts/app/entity"
)

type SessionTokenRepository struct {
	db DBTX
}

func NewSessionTokenRepository(db DBTX) *SessionTokenRepository {
	return &SessionTokenRepository{db: db}
}

func (r *SessionTokenRepository) Create(ctx context.Context, token *entity.SessionToken) error {
	query := `
		INSERT INTO session_tokens (account_id, name, token_hash, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		token.AccountID,
		token.Name,
		token.TokenHash,
		token.ExpiresAt,
		token.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	token.ID = uint64(id)
	return nil
}

func (r *SessionTokenRepository) FindByHash(ctx context.Context, tokenHash string) (*entity.SessionToken, error) {
	query := `
		SELECT id, account_id, name, token_hash, last_used_at, expires_at, created_at
		FROM session_tokens WHERE token_hash = ?
	`
	token := &entity.SessionToken{}
	err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&token.ID,
		&token.AccountID,
		&token.Name,
		&token.TokenHash,
		&token.LastUsedAt,
		&token.ExpiresAt,
		&token.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return token, nil
}

func (r *SessionTokenRepository) TouchLastUsed(ctx context.Context, id uint64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE session_tokens SET last_used_at = ? WHERE id = ?`, at, id)
	return err
}

func (r *SessionTokenRepository) Delete(ctx context.Context, id, accountID uint64) (int64, error) {
	return r.exec(ctx, `DELETE FROM session_tokens WHERE id = ? AND account_id = ?`, id, accountID)
}

func (r *SessionTokenRepository) DeleteByAccountID(ctx context.Context, accountID uint64) (int64, error) {
	return r.exec(ctx, `DELETE FROM session_tokens WHERE account_id = ?`, accountID)
}

func (r *SessionTokenRepository) DeleteByAccountIDExcept(ctx context.Context, accountID, keepID uint64) (int64, error) {
	return r.exec(ctx, `DELETE FROM session_tokens WHERE account_id = ? AND id <> ?`, accountID, keepID)
}

func (r *SessionTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.exec(ctx, `DELETE FROM session_tokens WHERE expires_at IS NOT NULL AND expires_at <= ?`, now)
}

func (r *SessionTokenRepository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
