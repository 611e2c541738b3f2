package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-accounts/app/entity"
)

const accountColumns = `id, name, email, canonical_email, password_hash, is_admin, email_verified_at, created_at, updated_at`

const directoryColumns = `a.id, a.name, a.email, a.canonical_email, a.password_hash, a.is_admin, a.email_verified_at, a.created_at, a.updated_at,
		       p.id, p.bio, p.phone, p.avatar_path, p.gender, p.date_of_birth, p.country, p.city, p.created_at, p.updated_at`

type AccountRepository struct {
	db DBTX
}

func NewAccountRepository(db DBTX) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(ctx context.Context, account *entity.Account) error {
	query := `
		INSERT INTO accounts (name, email, canonical_email, password_hash, is_admin, email_verified_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		account.Name,
		account.Email,
		account.CanonicalEmail,
		account.PasswordHash,
		account.IsAdmin,
		account.EmailVerifiedAt,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntry(err) {
			return ErrDuplicateEmail
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	account.ID = uint64(id)
	return nil
}

func (r *AccountRepository) FindByID(ctx context.Context, id uint64) (*entity.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts WHERE id = ?
	`
	return r.findOne(ctx, query, id)
}

func (r *AccountRepository) FindByCanonicalEmail(ctx context.Context, canonicalEmail string) (*entity.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts WHERE canonical_email = ?
	`
	return r.findOne(ctx, query, canonicalEmail)
}

func (r *AccountRepository) Update(ctx context.Context, account *entity.Account) error {
	query := `
		UPDATE accounts SET
			name = ?,
			email = ?,
			canonical_email = ?,
			password_hash = ?,
			updated_at = ?
		WHERE id = ?
	`
	account.UpdatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, query,
		account.Name,
		account.Email,
		account.CanonicalEmail,
		account.PasswordHash,
		account.UpdatedAt,
		account.ID,
	)
	if isDuplicateEntry(err) {
		return ErrDuplicateEmail
	}
	return err
}

// MarkEmailVerified sets email_verified_at once. It reports false when the
// account was already verified or does not exist.
func (r *AccountRepository) MarkEmailVerified(ctx context.Context, id uint64, at time.Time) (bool, error) {
	query := `UPDATE accounts SET email_verified_at = ?, updated_at = ? WHERE id = ? AND email_verified_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, at, at, id)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *AccountRepository) SetAdmin(ctx context.Context, id uint64, isAdmin bool) error {
	query := `UPDATE accounts SET is_admin = ?, updated_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, isAdmin, time.Now(), id)
	return err
}

func (r *AccountRepository) Delete(ctx context.Context, id uint64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *AccountRepository) ListVerified(ctx context.Context, limit, offset int) ([]*entity.DirectoryEntry, error) {
	query := `
		SELECT ` + directoryColumns + `
		FROM accounts a
		LEFT JOIN profiles p ON p.account_id = a.id
		WHERE a.email_verified_at IS NOT NULL
		ORDER BY a.id
		LIMIT ? OFFSET ?
	`
	return r.findEntries(ctx, query, limit, offset)
}

func (r *AccountRepository) CountVerified(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts WHERE email_verified_at IS NOT NULL`).Scan(&count)
	return count, err
}

func (r *AccountRepository) SearchVerified(ctx context.Context, term string, limit int) ([]*entity.DirectoryEntry, error) {
	query := `
		SELECT ` + directoryColumns + `
		FROM accounts a
		LEFT JOIN profiles p ON p.account_id = a.id
		WHERE a.email_verified_at IS NOT NULL
		  AND (a.name LIKE ? OR p.city LIKE ? OR p.country LIKE ?)
		ORDER BY a.id
		LIMIT ?
	`
	pattern := "%" + escapeLike(term) + "%"
	return r.findEntries(ctx, query, pattern, pattern, pattern, limit)
}

func (r *AccountRepository) FindVerifiedByIDs(ctx context.Context, ids []uint64) ([]*entity.DirectoryEntry, error) {
	if len(ids) == 0 {
		return []*entity.DirectoryEntry{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	query := `
		SELECT ` + directoryColumns + `
		FROM accounts a
		LEFT JOIN profiles p ON p.account_id = a.id
		WHERE a.email_verified_at IS NOT NULL
		  AND a.id IN (` + placeholders + `)
		ORDER BY a.id
	`
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return r.findEntries(ctx, query, args...)
}

func (r *AccountRepository) findOne(ctx context.Context, query string, args ...any) (*entity.Account, error) {
	account, err := scanAccount(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (r *AccountRepository) findEntries(ctx context.Context, query string, args ...any) ([]*entity.DirectoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []*entity.DirectoryEntry{}
	for rows.Next() {
		entry, err := scanDirectoryEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanAccount(row rowScanner) (*entity.Account, error) {
	account := &entity.Account{}
	err := row.Scan(
		&account.ID,
		&account.Name,
		&account.Email,
		&account.CanonicalEmail,
		&account.PasswordHash,
		&account.IsAdmin,
		&account.EmailVerifiedAt,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return account, nil
}

func scanDirectoryEntry(row rowScanner) (*entity.DirectoryEntry, error) {
	account := &entity.Account{}
	profile := &entity.Profile{}
	var (
		profileID        sql.NullInt64
		profileCreatedAt sql.NullTime
		profileUpdatedAt sql.NullTime
	)
	err := row.Scan(
		&account.ID,
		&account.Name,
		&account.Email,
		&account.CanonicalEmail,
		&account.PasswordHash,
		&account.IsAdmin,
		&account.EmailVerifiedAt,
		&account.CreatedAt,
		&account.UpdatedAt,
		&profileID,
		&profile.Bio,
		&profile.Phone,
		&profile.AvatarPath,
		&profile.Gender,
		&profile.DateOfBirth,
		&profile.Country,
		&profile.City,
		&profileCreatedAt,
		&profileUpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	entry := &entity.DirectoryEntry{Account: account}
	if profileID.Valid {
		profile.ID = uint64(profileID.Int64)
		profile.AccountID = account.ID
		profile.CreatedAt = profileCreatedAt.Time
		profile.UpdatedAt = profileUpdatedAt.Time
		entry.Profile = profile
	}
	return entry, nil
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
