package types

import (
	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-accounts/app/service"
)

// UpdateAccountRequest is a partial update; absent fields stay unchanged.
type UpdateAccountRequest struct {
	Name                 *string `json:"name" validate:"omitempty,min=1,max=255"`
	Email                *string `json:"email" validate:"omitempty,email,max=255"`
	Password             *string `json:"password" validate:"omitempty,min=1"`
	PasswordConfirmation *string `json:"password_confirmation"`
}

func NewUpdateAccountRequestFromContext(ctx echo.Context) (*UpdateAccountRequest, error) {
	var body UpdateAccountRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.Name = trimmed(body.Name)
	body.Email = trimmed(body.Email)

	return &body, nil
}

func (r *UpdateAccountRequest) Validate() error {
	if err := validateStruct(r); err != nil {
		return err
	}
	if r.Password != nil {
		if r.PasswordConfirmation == nil || *r.PasswordConfirmation != *r.Password {
			return fieldError("password_confirmation", "does not match")
		}
	}
	return nil
}

func (r *UpdateAccountRequest) ToInput() service.UpdateAccountInput {
	return service.UpdateAccountInput{Name: r.Name, Email: r.Email, Password: r.Password}
}
