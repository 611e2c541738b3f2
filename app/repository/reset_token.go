package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/vibast-solutions/ms-go-accounts/app/entity"
)

type ResetTokenRepository struct {
	db DBTX
}

func NewResetTokenRepository(db DBTX) *ResetTokenRepository {
	return &ResetTokenRepository{db: db}
}

// Upsert keeps at most one outstanding token per email.
func (r *ResetTokenRepository) Upsert(ctx context.Context, token *entity.PasswordResetToken) error {
	query := `
		INSERT INTO password_reset_tokens (email, token_hash, created_at)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE token_hash = VALUES(token_hash), created_at = VALUES(created_at)
	`
	_, err := r.db.ExecContext(ctx, query, token.Email, token.TokenHash, token.CreatedAt)
	return err
}

func (r *ResetTokenRepository) FindByEmailForUpdate(ctx context.Context, email string) (*entity.PasswordResetToken, error) {
	query := `
		SELECT email, token_hash, created_at
		FROM password_reset_tokens WHERE email = ? FOR UPDATE
	`
	token := &entity.PasswordResetToken{}
	err := r.db.QueryRowContext(ctx, query, email).Scan(&token.Email, &token.TokenHash, &token.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return token, nil
}

func (r *ResetTokenRepository) DeleteByEmail(ctx context.Context, email string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM password_reset_tokens WHERE email = ?`, email)
	return err
}

func (r *ResetTokenRepository) DeleteCreatedBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM password_reset_tokens WHERE created_at < ?`, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
