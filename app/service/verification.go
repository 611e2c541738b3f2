package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/vibast-solutions/ms-go-accounts/app/entity"
	"github.com/vibast-solutions/ms-go-accounts/app/mailer"
	"github.com/vibast-solutions/ms-go-accounts/app/token"
)

type VerifyResult struct {
	Account         *entity.Account
	AlreadyVerified bool
}

// VerifyEmail moves an account from unverified to verified. Repeating a valid
// verification is a no-op success.
func (s *AccountService) VerifyEmail(ctx context.Context, id uint64, fingerprint, signature string) (*VerifyResult, error) {
	if err := s.tokens.Links.Validate(id, fingerprint, token.PurposeVerifyEmail, signature); err != nil {
		return nil, ErrInvalidVerificationLink
	}

	account, err := s.repos.Accounts().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrInvalidVerificationLink
	}
	if account.IsVerified() {
		return &VerifyResult{Account: account, AlreadyVerified: true}, nil
	}
	if !token.MatchFingerprint(account.Email, fingerprint) {
		return nil, ErrInvalidVerificationLink
	}

	now := time.Now()
	changed, err := s.repos.Accounts().MarkEmailVerified(ctx, id, now)
	if err != nil {
		return nil, err
	}
	if !changed {
		// verified by a concurrent request
		return &VerifyResult{Account: account, AlreadyVerified: true}, nil
	}

	account.EmailVerifiedAt = sql.NullTime{Time: now, Valid: true}
	s.record(EventVerified)
	s.reindex(ctx, s.repos, id)
	return &VerifyResult{Account: account}, nil
}

// ResendVerification mails a fresh link with the longer resend lifetime.
func (s *AccountService) ResendVerification(ctx context.Context, email string) error {
	account, err := s.repos.Accounts().FindByCanonicalEmail(ctx, CanonicalizeEmail(email))
	if err != nil {
		return err
	}
	if account == nil {
		return ErrAccountNotFound
	}
	if account.IsVerified() {
		return ErrAlreadyVerified
	}
	return s.sendVerification(account, s.cfg.Tokens.ResendVerifyTTL)
}

func (s *AccountService) sendVerification(account *entity.Account, ttl time.Duration) error {
	link, expiresAt, err := s.tokens.Links.Issue(account.ID, token.Fingerprint(account.Email), token.PurposeVerifyEmail, ttl)
	if err != nil {
		return err
	}

	s.deliver(s.mail, mailer.Message{
		To:       account.Email,
		Subject:  "Verify your email address",
		Template: mailer.TemplateVerifyEmail,
		Data: map[string]string{
			"name":       account.Name,
			"link":       link,
			"expires_at": expiresAt.UTC().Format(time.RFC1123),
		},
	})
	return nil
}
