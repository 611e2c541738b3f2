package types

import (
	"errors"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-accounts/app/entity"
)

func (r *ValidateTokenRequest) Validate() error {
	if strings.TrimSpace(r.GetToken()) == "" {
		return errors.New("token is required")
	}
	return nil
}

func (r *GetAccountRequest) Validate() error {
	if r.GetId() == 0 {
		return errors.New("id is required")
	}
	return nil
}

func NewAccountResponse(account *entity.Account) *AccountResponse {
	return &AccountResponse{
		Id:            account.ID,
		Name:          account.Name,
		Email:         account.Email,
		IsAdmin:       account.IsAdmin,
		EmailVerified: account.IsVerified(),
		CreatedAt:     account.CreatedAt.UTC().Format(time.RFC3339),
	}
}
