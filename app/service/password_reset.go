package service

import (
	"context"
	"errors"
	"net/url"

	"github.com/vibast-solutions/ms-go-accounts/app/mailer"
	"github.com/vibast-solutions/ms-go-accounts/app/repository"
	"github.com/vibast-solutions/ms-go-accounts/app/token"
)

type ResetPasswordInput struct {
	Email    string
	Token    string
	Password string
}

// RequestPasswordReset works for unverified accounts too.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	account, err := s.repos.Accounts().FindByCanonicalEmail(ctx, CanonicalizeEmail(email))
	if err != nil {
		return err
	}
	if account == nil {
		return ErrAccountNotFound
	}

	plain, err := s.tokens.Resets.Issue(ctx, s.repos.ResetTokens(), account.Email)
	if err != nil {
		return err
	}

	query := url.Values{}
	query.Set("token", plain)
	query.Set("email", account.Email)

	s.deliver(s.mail, mailer.Message{
		To:       account.Email,
		Subject:  "Reset your password",
		Template: mailer.TemplateResetPassword,
		Data: map[string]string{
			"name": account.Name,
			"link": s.cfg.Tokens.ResetURL + "?" + query.Encode(),
		},
	})
	return nil
}

// ResetPassword consumes the reset token, replaces the password and revokes
// every session in one transaction.
func (s *AccountService) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	if err := checkPasswordPolicy(s.cfg.Password.Policy, in.Password); err != nil {
		return err
	}
	passwordHash, err := hashPassword(in.Password)
	if err != nil {
		return err
	}

	rejected := false
	err = s.repos.WithTx(ctx, func(ctx context.Context, tx repository.Manager) error {
		account, err := tx.Accounts().FindByCanonicalEmail(ctx, CanonicalizeEmail(in.Email))
		if err != nil {
			return err
		}
		if account == nil {
			return ErrInvalidResetToken
		}

		err = s.tokens.Resets.Consume(ctx, tx.ResetTokens(), account.Email, in.Token)
		switch {
		case errors.Is(err, token.ErrResetTokenExpired), errors.Is(err, token.ErrResetTokenInvalid):
			// commit so the consumed token is gone
			rejected = true
			return nil
		case err != nil:
			return err
		}

		account.PasswordHash = passwordHash
		if err := tx.Accounts().Update(ctx, account); err != nil {
			return err
		}
		return s.tokens.Sessions.RevokeAll(ctx, tx.Sessions(), account.ID)
	})
	if err != nil {
		return err
	}
	if rejected {
		return ErrInvalidResetToken
	}

	s.record(EventPasswordReset)
	return nil
}
