package http

import (
	"time"

	"github.com/vibast-solutions/ms-go-accounts/app/entity"
	"github.com/vibast-solutions/ms-go-accounts/app/service"
)

type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type ErrorResponse struct {
	Success              bool              `json:"success"`
	Message              string            `json:"message"`
	Errors               map[string]string `json:"errors,omitempty"`
	RequiresVerification bool              `json:"requires_verification,omitempty"`
}

func OK(message string, data any) Response {
	return Response{Success: true, Message: message, Data: data}
}

func Error(message string) ErrorResponse {
	return ErrorResponse{Message: message}
}

type AccountResponse struct {
	ID              uint64     `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	IsAdmin         bool       `json:"is_admin"`
	EmailVerifiedAt *time.Time `json:"email_verified_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func NewAccountResponse(account *entity.Account) *AccountResponse {
	if account == nil {
		return nil
	}
	res := &AccountResponse{
		ID:        account.ID,
		Name:      account.Name,
		Email:     account.Email,
		IsAdmin:   account.IsAdmin,
		CreatedAt: account.CreatedAt,
		UpdatedAt: account.UpdatedAt,
	}
	if account.EmailVerifiedAt.Valid {
		verifiedAt := account.EmailVerifiedAt.Time
		res.EmailVerifiedAt = &verifiedAt
	}
	return res
}

type RegisterResponse struct {
	Account              *AccountResponse `json:"account"`
	RequiresVerification bool             `json:"requires_verification"`
}

type LoginResponse struct {
	Token     string           `json:"token"`
	TokenType string           `json:"token_type"`
	ExpiresAt *time.Time       `json:"expires_at"`
	Account   *AccountResponse `json:"account"`
}

func NewLoginResponse(result *service.LoginResult) *LoginResponse {
	res := &LoginResponse{
		Token:     result.Token,
		TokenType: "Bearer",
		Account:   NewAccountResponse(result.Account),
	}
	if result.Session != nil && result.Session.ExpiresAt.Valid {
		expiresAt := result.Session.ExpiresAt.Time
		res.ExpiresAt = &expiresAt
	}
	return res
}

// URLFunc turns a stored blob path into a public URL.
type URLFunc func(path string) string

type ProfileResponse struct {
	ID          uint64    `json:"id"`
	AccountID   uint64    `json:"account_id"`
	Bio         string    `json:"bio"`
	Phone       string    `json:"phone"`
	Avatar      string    `json:"avatar"`
	AvatarURL   string    `json:"avatar_url"`
	Gender      string    `json:"gender"`
	DateOfBirth string    `json:"dob"`
	Country     string    `json:"country"`
	City        string    `json:"city"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func NewProfileResponse(profile *entity.Profile, url URLFunc) *ProfileResponse {
	if profile == nil {
		return nil
	}
	res := &ProfileResponse{
		ID:        profile.ID,
		AccountID: profile.AccountID,
		Bio:       profile.Bio.String,
		Phone:     profile.Phone.String,
		Gender:    profile.Gender.String,
		Country:   profile.Country.String,
		City:      profile.City.String,
		CreatedAt: profile.CreatedAt,
		UpdatedAt: profile.UpdatedAt,
	}
	if profile.AvatarPath.Valid {
		res.Avatar = profile.AvatarPath.String
		res.AvatarURL = url(profile.AvatarPath.String)
	}
	if profile.DateOfBirth.Valid {
		res.DateOfBirth = profile.DateOfBirth.Time.Format("2006-01-02")
	}
	return res
}

// DirectoryEntryResponse is the public view of a verified account.
type DirectoryEntryResponse struct {
	ID          uint64    `json:"id"`
	Name        string    `json:"name"`
	AvatarURL   string    `json:"avatar_url"`
	Bio         string    `json:"bio"`
	Country     string    `json:"country"`
	City        string    `json:"city"`
	MemberSince time.Time `json:"member_since"`
}

func NewDirectoryEntryResponse(entry *entity.DirectoryEntry, url URLFunc) *DirectoryEntryResponse {
	res := &DirectoryEntryResponse{
		ID:          entry.Account.ID,
		Name:        entry.Account.Name,
		MemberSince: entry.Account.CreatedAt,
	}
	if p := entry.Profile; p != nil {
		res.Bio = p.Bio.String
		res.Country = p.Country.String
		res.City = p.City.String
		if p.AvatarPath.Valid {
			res.AvatarURL = url(p.AvatarPath.String)
		}
	}
	return res
}

func NewDirectoryEntriesResponse(entries []*entity.DirectoryEntry, url URLFunc) []*DirectoryEntryResponse {
	out := make([]*DirectoryEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, NewDirectoryEntryResponse(entry, url))
	}
	return out
}

type DirectoryPageResponse struct {
	Users    []*DirectoryEntryResponse `json:"users"`
	Page     int                       `json:"page"`
	PerPage  int                       `json:"per_page"`
	Total    int64                     `json:"total"`
	LastPage int                       `json:"last_page"`
}

func NewDirectoryPageResponse(page *service.DirectoryPage, url URLFunc) *DirectoryPageResponse {
	return &DirectoryPageResponse{
		Users:    NewDirectoryEntriesResponse(page.Entries, url),
		Page:     page.Page,
		PerPage:  page.PerPage,
		Total:    page.Total,
		LastPage: page.LastPage,
	}
}
