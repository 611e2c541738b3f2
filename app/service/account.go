package service

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-accounts/app/entity"
	"github.com/vibast-solutions/ms-go-accounts/app/mailer"
	"github.com/vibast-solutions/ms-go-accounts/app/policy"
	"github.com/vibast-solutions/ms-go-accounts/app/repository"
	"github.com/vibast-solutions/ms-go-accounts/app/token"
	"github.com/vibast-solutions/ms-go-accounts/config"
)

const defaultSessionName = "api"

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

type LoginInput struct {
	Email    string
	Password string
	// DeviceName labels the issued session token.
	DeviceName string
}

type LoginResult struct {
	Token   string
	Session *entity.SessionToken
	Account *entity.Account
}

// UpdateAccountInput is a partial update: nil fields are left unchanged.
type UpdateAccountInput struct {
	Name     *string
	Email    *string
	Password *string
}

type AccountService struct {
	repos  repository.Manager
	tokens *token.Issuer
	mail   mailer.Mailer
	blobs  BlobStore
	cfg    *config.Config
	options
}

func NewAccountService(
	repos repository.Manager,
	tokens *token.Issuer,
	mail mailer.Mailer,
	blobs BlobStore,
	cfg *config.Config,
	opts ...Option,
) *AccountService {
	return &AccountService{
		repos:   repos,
		tokens:  tokens,
		mail:    mail,
		blobs:   blobs,
		cfg:     cfg,
		options: newOptions(opts),
	}
}

func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*entity.Account, error) {
	if err := checkPasswordPolicy(s.cfg.Password.Policy, in.Password); err != nil {
		return nil, err
	}

	passwordHash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	email := normalizeEmail(in.Email)
	now := time.Now()
	account := &entity.Account{
		Name:           strings.TrimSpace(in.Name),
		Email:          email,
		CanonicalEmail: CanonicalizeEmail(email),
		PasswordHash:   passwordHash,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.repos.WithTx(ctx, func(ctx context.Context, tx repository.Manager) error {
		existing, err := tx.Accounts().FindByCanonicalEmail(ctx, account.CanonicalEmail)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrDuplicateEmail
		}

		if err := tx.Accounts().Create(ctx, account); err != nil {
			return err
		}
		return tx.Profiles().Create(ctx, &entity.Profile{
			AccountID: account.ID,
			CreatedAt: now,
			UpdatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.record(EventRegistered)
	if err := s.sendVerification(account, s.cfg.Tokens.VerifyTTL); err != nil {
		logrus.WithError(err).WithField("account_id", account.ID).Error("failed to issue verification link")
	}

	return account, nil
}

// Login checks verification before the password, so an unverified account
// always gets ErrEmailNotVerified.
func (s *AccountService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	account, err := s.repos.Accounts().FindByCanonicalEmail(ctx, CanonicalizeEmail(in.Email))
	if err != nil {
		return nil, err
	}
	if account == nil {
		s.record(EventLoginFailed)
		return nil, ErrInvalidCredentials
	}
	if !account.IsVerified() {
		s.record(EventLoginFailed)
		return nil, ErrEmailNotVerified
	}
	if !verifyPassword(account.PasswordHash, in.Password) {
		s.record(EventLoginFailed)
		return nil, ErrInvalidCredentials
	}

	name := strings.TrimSpace(in.DeviceName)
	if name == "" {
		name = defaultSessionName
	}

	result := &LoginResult{Account: account}
	err = s.repos.WithTx(ctx, func(ctx context.Context, tx repository.Manager) error {
		if err := s.tokens.Sessions.RevokeAll(ctx, tx.Sessions(), account.ID); err != nil {
			return err
		}
		secret, session, err := s.tokens.Sessions.Issue(ctx, tx.Sessions(), account.ID, name)
		if err != nil {
			return err
		}
		result.Token = secret
		result.Session = session
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(EventLogin)
	return result, nil
}

func (s *AccountService) Logout(ctx context.Context, actor *Actor) error {
	if actor.account() == nil {
		return ErrUnauthenticated
	}
	return s.tokens.Sessions.Revoke(ctx, s.repos.Sessions(), actor.Account.ID, actor.SessionID)
}

// Authenticate resolves a bearer secret to the actor that owns it.
func (s *AccountService) Authenticate(ctx context.Context, secret string) (*Actor, error) {
	session, err := s.tokens.Sessions.Validate(ctx, s.repos.Sessions(), secret)
	if err != nil {
		return nil, err
	}

	account, err := s.repos.Accounts().FindByID(ctx, session.AccountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrUnauthenticated
	}

	return &Actor{Account: account, SessionID: session.ID}, nil
}

// GetAccount hides unverified accounts from everyone but their owner and
// admins.
func (s *AccountService) GetAccount(ctx context.Context, actor *Actor, id uint64) (*entity.Account, error) {
	account, err := s.repos.Accounts().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if account == nil || !policy.CanViewAccount(actor.account(), account) {
		return nil, ErrAccountNotFound
	}
	return account, nil
}

func (s *AccountService) UpdateAccount(ctx context.Context, actor *Actor, id uint64, in UpdateAccountInput) (*entity.Account, error) {
	var passwordHash string
	if in.Password != nil {
		if err := checkPasswordPolicy(s.cfg.Password.Policy, *in.Password); err != nil {
			return nil, err
		}
		hashed, err := hashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		passwordHash = hashed
	}

	var updated *entity.Account
	err := s.repos.WithTx(ctx, func(ctx context.Context, tx repository.Manager) error {
		target, err := tx.Accounts().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if target == nil {
			return ErrAccountNotFound
		}
		if !policy.CanUpdateAccount(actor.account(), target) {
			return ErrForbidden
		}

		if in.Name != nil {
			target.Name = strings.TrimSpace(*in.Name)
		}
		if in.Email != nil {
			email := normalizeEmail(*in.Email)
			canonical := CanonicalizeEmail(email)
			if canonical != target.CanonicalEmail {
				existing, err := tx.Accounts().FindByCanonicalEmail(ctx, canonical)
				if err != nil {
					return err
				}
				if existing != nil && existing.ID != target.ID {
					return ErrDuplicateEmail
				}
			}
			target.Email = email
			target.CanonicalEmail = canonical
		}
		if passwordHash != "" {
			target.PasswordHash = passwordHash
		}

		if err := tx.Accounts().Update(ctx, target); err != nil {
			return err
		}

		if passwordHash != "" {
			if actor.Account.ID == target.ID && actor.SessionID != 0 {
				err = s.tokens.Sessions.RevokeOthers(ctx, tx.Sessions(), target.ID, actor.SessionID)
			} else {
				err = s.tokens.Sessions.RevokeAll(ctx, tx.Sessions(), target.ID)
			}
			if err != nil {
				return err
			}
		}

		updated = target
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.reindex(ctx, s.repos, updated.ID)
	return updated, nil
}

// DeleteAccount removes the profile, sessions, reset token and account in one
// transaction. The avatar blob is deleted only after the commit.
func (s *AccountService) DeleteAccount(ctx context.Context, actor *Actor, id uint64) error {
	var avatarPath string
	err := s.repos.WithTx(ctx, func(ctx context.Context, tx repository.Manager) error {
		target, err := tx.Accounts().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if target == nil {
			return ErrAccountNotFound
		}
		if !policy.CanDeleteAccount(actor.account(), target) {
			return ErrForbidden
		}

		profile, err := tx.Profiles().FindByAccountID(ctx, id)
		if err != nil {
			return err
		}
		if profile != nil && profile.AvatarPath.Valid {
			avatarPath = profile.AvatarPath.String
		}

		if _, err := tx.Profiles().DeleteByAccountID(ctx, id); err != nil {
			return err
		}
		if err := s.tokens.Sessions.RevokeAll(ctx, tx.Sessions(), id); err != nil {
			return err
		}
		if err := tx.ResetTokens().DeleteByEmail(ctx, target.Email); err != nil {
			return err
		}
		_, err = tx.Accounts().Delete(ctx, id)
		return err
	})
	if err != nil {
		return err
	}

	deleteBlob(ctx, s.blobs, avatarPath)
	s.unindex(ctx, id)
	s.record(EventAccountDeleted)
	return nil
}

// SetAdmin grants or revokes the admin flag by email.
func (s *AccountService) SetAdmin(ctx context.Context, email string, isAdmin bool) (*entity.Account, error) {
	account, err := s.repos.Accounts().FindByCanonicalEmail(ctx, CanonicalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	if err := s.repos.Accounts().SetAdmin(ctx, account.ID, isAdmin); err != nil {
		return nil, err
	}
	account.IsAdmin = isAdmin
	return account, nil
}

// SetPassword replaces the password of an account by email and revokes all of
// its sessions.
func (s *AccountService) SetPassword(ctx context.Context, email, password string) error {
	if err := checkPasswordPolicy(s.cfg.Password.Policy, password); err != nil {
		return err
	}
	passwordHash, err := hashPassword(password)
	if err != nil {
		return err
	}

	return s.repos.WithTx(ctx, func(ctx context.Context, tx repository.Manager) error {
		account, err := tx.Accounts().FindByCanonicalEmail(ctx, CanonicalizeEmail(email))
		if err != nil {
			return err
		}
		if account == nil {
			return ErrAccountNotFound
		}
		account.PasswordHash = passwordHash
		if err := tx.Accounts().Update(ctx, account); err != nil {
			return err
		}
		return s.tokens.Sessions.RevokeAll(ctx, tx.Sessions(), account.ID)
	})
}

type PruneResult struct {
	Sessions    int64
	ResetTokens int64
}

// PruneTokens deletes expired session and reset tokens.
func (s *AccountService) PruneTokens(ctx context.Context) (*PruneResult, error) {
	sessions, err := s.tokens.Sessions.Prune(ctx, s.repos.Sessions())
	if err != nil {
		return nil, err
	}
	resets, err := s.tokens.Resets.Prune(ctx, s.repos.ResetTokens())
	if err != nil {
		return nil, err
	}
	return &PruneResult{Sessions: sessions, ResetTokens: resets}, nil
}
