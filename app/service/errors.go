package service

import (
	"errors"

	"github.com/vibast-solutions/ms-go-accounts/app/repository"
	"github.com/vibast-solutions/ms-go-accounts/app/token"
)

var (
	ErrDuplicateEmail          = repository.ErrDuplicateEmail
	ErrUnauthenticated         = token.ErrUnauthenticated
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrEmailNotVerified        = errors.New("email address is not verified")
	ErrAlreadyVerified         = errors.New("email address is already verified")
	ErrForbidden               = errors.New("forbidden")
	ErrAccountNotFound         = errors.New("account not found")
	ErrProfileNotFound         = errors.New("profile not found")
	ErrInvalidVerificationLink = errors.New("invalid or expired verification link")
	ErrInvalidResetToken       = errors.New("invalid or expired reset token")
	ErrWeakPassword            = errors.New("password does not meet policy requirements")
	ErrInvalidAvatar           = errors.New("avatar must be a jpeg or png image of at most 2048 KB")
	ErrInvalidProfile          = errors.New("invalid profile data")
)
