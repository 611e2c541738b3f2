package types

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-accounts/app/service"
)

type RegisterRequest struct {
	Name                 string `json:"name" validate:"required,max=255"`
	Email                string `json:"email" validate:"required,email,max=255"`
	Password             string `json:"password" validate:"required"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required,eqfield=Password"`
}

func NewRegisterRequestFromContext(ctx echo.Context) (*RegisterRequest, error) {
	var body RegisterRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.Name = strings.TrimSpace(body.Name)
	body.Email = strings.TrimSpace(body.Email)

	return &body, nil
}

func (r *RegisterRequest) Validate() error {
	return validateStruct(r)
}

func (r *RegisterRequest) ToInput() service.RegisterInput {
	return service.RegisterInput{Name: r.Name, Email: r.Email, Password: r.Password}
}

type LoginRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	DeviceName string `json:"device_name" validate:"max=255"`
}

func NewLoginRequestFromContext(ctx echo.Context) (*LoginRequest, error) {
	var body LoginRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.Email = strings.TrimSpace(body.Email)
	body.DeviceName = strings.TrimSpace(body.DeviceName)

	return &body, nil
}

func (r *LoginRequest) Validate() error {
	return validateStruct(r)
}

func (r *LoginRequest) ToInput() service.LoginInput {
	return service.LoginInput{Email: r.Email, Password: r.Password, DeviceName: r.DeviceName}
}

// EmailRequest is the body of forgot-password and resend verification.
type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func NewEmailRequestFromContext(ctx echo.Context) (*EmailRequest, error) {
	var body EmailRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.Email = strings.TrimSpace(body.Email)

	return &body, nil
}

func (r *EmailRequest) Validate() error {
	return validateStruct(r)
}

type ResetPasswordRequest struct {
	Email                string `json:"email" validate:"required,email"`
	Token                string `json:"token" validate:"required"`
	Password             string `json:"password" validate:"required"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required,eqfield=Password"`
}

func NewResetPasswordRequestFromContext(ctx echo.Context) (*ResetPasswordRequest, error) {
	var body ResetPasswordRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.Email = strings.TrimSpace(body.Email)
	body.Token = strings.TrimSpace(body.Token)

	return &body, nil
}

func (r *ResetPasswordRequest) Validate() error {
	return validateStruct(r)
}

func (r *ResetPasswordRequest) ToInput() service.ResetPasswordInput {
	return service.ResetPasswordInput{Email: r.Email, Token: r.Token, Password: r.Password}
}
