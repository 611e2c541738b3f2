package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/vibast-solutions/ms-go-accounts/app/entity"
)

type ProfileRepository struct {
	db DBTX
}

func NewProfileRepository(db DBTX) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) Create(ctx context.Context, profile *entity.Profile) error {
	query := `
		INSERT INTO profiles (account_id, bio, phone, avatar_path, gender, date_of_birth, country, city, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		profile.AccountID,
		profile.Bio,
		profile.Phone,
		profile.AvatarPath,
		profile.Gender,
		profile.DateOfBirth,
		profile.Country,
		profile.City,
		profile.CreatedAt,
		profile.UpdatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	profile.ID = uint64(id)
	return nil
}

func (r *ProfileRepository) FindByAccountID(ctx context.Context, accountID uint64) (*entity.Profile, error) {
	query := `
		SELECT id, account_id, bio, phone, avatar_path, gender, date_of_birth, country, city, created_at, updated_at
		FROM profiles WHERE account_id = ?
	`
	profile := &entity.Profile{}
	err := r.db.QueryRowContext(ctx, query, accountID).Scan(
		&profile.ID,
		&profile.AccountID,
		&profile.Bio,
		&profile.Phone,
		&profile.AvatarPath,
		&profile.Gender,
		&profile.DateOfBirth,
		&profile.Country,
		&profile.City,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return profile, nil
}

func (r *ProfileRepository) Update(ctx context.Context, profile *entity.Profile) error {
	query := `
		UPDATE profiles SET
			bio = ?,
			phone = ?,
			avatar_path = ?,
			gender = ?,
			date_of_birth = ?,
			country = ?,
			city = ?,
			updated_at = ?
		WHERE id = ?
	`
	profile.UpdatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, query,
		profile.Bio,
		profile.Phone,
		profile.AvatarPath,
		profile.Gender,
		profile.DateOfBirth,
		profile.Country,
		profile.City,
		profile.UpdatedAt,
		profile.ID,
	)
	return err
}

func (r *ProfileRepository) DeleteByAccountID(ctx context.Context, accountID uint64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM profiles WHERE account_id = ?`, accountID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
