package service

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/vibast-solutions/ms-go-accounts/app/entity"
	"github.com/vibast-solutions/ms-go-accounts/app/policy"
	"github.com/vibast-solutions/ms-go-accounts/app/repository"
)

const (
	MaxAvatarBytes = 2048 * 1024
	avatarDir      = "avatars"

	maxBioLength      = 1000
	maxPhoneLength    = 20
	maxLocationLength = 100
)

// UpdateProfileInput is a partial update: nil fields are left unchanged and
// empty strings clear the field.
type UpdateProfileInput struct {
	Bio         *string
	Phone       *string
	Gender      *string
	DateOfBirth *time.Time
	Country     *string
	City        *string
}

type AvatarUpload struct {
	Data []byte
}

type ProfileService struct {
	repos     repository.Manager
	blobs     BlobStore
	sanitizer *bluemonday.Policy
	options
}

func NewProfileService(repos repository.Manager, blobs BlobStore, opts ...Option) *ProfileService {
	return &ProfileService{
		repos:     repos,
		blobs:     blobs,
		sanitizer: bluemonday.StrictPolicy(),
		options:   newOptions(opts),
	}
}

func (s *ProfileService) GetProfile(ctx context.Context, actor *Actor, accountID uint64) (*entity.Profile, error) {
	if !policy.CanViewProfile(actor.account(), &entity.Profile{AccountID: accountID}) {
		return nil, ErrForbidden
	}
	profile, err := s.repos.Profiles().FindByAccountID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrProfileNotFound
	}
	return profile, nil
}

// UpdateProfile applies in and optionally swaps the avatar. The new blob is
// stored before the transaction and the old one deleted only after commit; a
// failed transaction deletes the new blob instead.
func (s *ProfileService) UpdateProfile(ctx context.Context, actor *Actor, accountID uint64, in UpdateProfileInput, avatar *AvatarUpload) (*entity.Profile, error) {
	if !policy.CanUpdateProfile(actor.account(), &entity.Profile{AccountID: accountID}) {
		return nil, ErrForbidden
	}
	account, err := s.repos.Accounts().FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	if err := s.validate(in); err != nil {
		return nil, err
	}

	var contentType string
	if avatar != nil {
		if contentType, err = sniffAvatar(avatar.Data); err != nil {
			return nil, err
		}
	}

	var newPath string
	if avatar != nil {
		if newPath, err = s.blobs.Store(ctx, avatarDir, avatar.Data, contentType); err != nil {
			return nil, fmt.Errorf("store avatar: %w", err)
		}
	}

	var (
		oldPath string
		updated *entity.Profile
	)
	err = s.repos.WithTx(ctx, func(ctx context.Context, tx repository.Manager) error {
		profile, err := tx.Profiles().FindByAccountID(ctx, accountID)
		if err != nil {
			return err
		}
		now := time.Now()
		create := profile == nil
		if create {
			profile = &entity.Profile{AccountID: accountID, CreatedAt: now}
		}

		s.apply(profile, in)
		if newPath != "" {
			if profile.AvatarPath.Valid {
				oldPath = profile.AvatarPath.String
			}
			profile.AvatarPath = sql.NullString{String: newPath, Valid: true}
		}
		profile.UpdatedAt = now

		if create {
			err = tx.Profiles().Create(ctx, profile)
		} else {
			err = tx.Profiles().Update(ctx, profile)
		}
		if err != nil {
			return err
		}
		updated = profile
		return nil
	})
	if err != nil {
		deleteBlob(context.WithoutCancel(ctx), s.blobs, newPath)
		return nil, err
	}

	if oldPath != newPath {
		deleteBlob(ctx, s.blobs, oldPath)
	}
	s.reindex(ctx, s.repos, accountID)
	return updated, nil
}

func (s *ProfileService) DeleteProfile(ctx context.Context, actor *Actor, accountID uint64) error {
	if !policy.CanDeleteProfile(actor.account(), &entity.Profile{AccountID: accountID}) {
		return ErrForbidden
	}

	var avatarPath string
	err := s.repos.WithTx(ctx, func(ctx context.Context, tx repository.Manager) error {
		profile, err := tx.Profiles().FindByAccountID(ctx, accountID)
		if err != nil {
			return err
		}
		if profile == nil {
			return ErrProfileNotFound
		}
		if profile.AvatarPath.Valid {
			avatarPath = profile.AvatarPath.String
		}
		_, err = tx.Profiles().DeleteByAccountID(ctx, accountID)
		return err
	})
	if err != nil {
		return err
	}

	deleteBlob(ctx, s.blobs, avatarPath)
	s.reindex(ctx, s.repos, accountID)
	return nil
}

func (s *ProfileService) validate(in UpdateProfileInput) error {
	if in.Gender != nil && *in.Gender != "" {
		switch *in.Gender {
		case entity.GenderMale, entity.GenderFemale, entity.GenderOther:
		default:
			return fmt.Errorf("%w: gender must be one of male, female, other", ErrInvalidProfile)
		}
	}
	if in.DateOfBirth != nil && !in.DateOfBirth.Before(today()) {
		return fmt.Errorf("%w: date of birth must be before today", ErrInvalidProfile)
	}
	if in.Bio != nil && len([]rune(*in.Bio)) > maxBioLength {
		return fmt.Errorf("%w: bio must be at most %d characters", ErrInvalidProfile, maxBioLength)
	}
	if in.Phone != nil && len([]rune(*in.Phone)) > maxPhoneLength {
		return fmt.Errorf("%w: phone must be at most %d characters", ErrInvalidProfile, maxPhoneLength)
	}
	for _, value := range []*string{in.Country, in.City} {
		if value != nil && len([]rune(*value)) > maxLocationLength {
			return fmt.Errorf("%w: country and city must be at most %d characters", ErrInvalidProfile, maxLocationLength)
		}
	}
	return nil
}

func (s *ProfileService) apply(profile *entity.Profile, in UpdateProfileInput) {
	if in.Bio != nil {
		profile.Bio = nullString(s.sanitizer.Sanitize(*in.Bio))
	}
	if in.Phone != nil {
		profile.Phone = nullString(*in.Phone)
	}
	if in.Gender != nil {
		profile.Gender = nullString(*in.Gender)
	}
	if in.DateOfBirth != nil {
		profile.DateOfBirth = sql.NullTime{Time: *in.DateOfBirth, Valid: true}
	}
	if in.Country != nil {
		profile.Country = nullString(*in.Country)
	}
	if in.City != nil {
		profile.City = nullString(*in.City)
	}
}

// sniffAvatar returns the detected content type of an acceptable avatar.
func sniffAvatar(data []byte) (string, error) {
	if len(data) == 0 || len(data) > MaxAvatarBytes {
		return "", ErrInvalidAvatar
	}
	contentType := http.DetectContentType(data)
	switch contentType {
	case "image/jpeg", "image/png":
		return contentType, nil
	default:
		return "", ErrInvalidAvatar
	}
}

func nullString(value string) sql.NullString {
	value = strings.TrimSpace(value)
	return sql.NullString{String: value, Valid: value != ""}
}

func today() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}
