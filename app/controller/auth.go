package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	httpdto "github.com/vibast-solutions/ms-go-accounts/app/dto/http"
	"github.com/vibast-solutions/ms-go-accounts/app/middleware"
	"github.com/vibast-solutions/ms-go-accounts/app/service"
	"github.com/vibast-solutions/ms-go-accounts/app/types"
)

const msgResetLinkUniform = "If the email is registered, a password reset link has been sent."

type AuthController struct {
	accounts *service.AccountService
	// disclose reports unknown emails on forgot-password and resend.
	disclose bool
}

func NewAuthController(accounts *service.AccountService, discloseUnknownEmail bool) *AuthController {
	return &AuthController{accounts: accounts, disclose: discloseUnknownEmail}
}

func (c *AuthController) Register(ctx echo.Context) error {
	req, err := types.NewRegisterRequestFromContext(ctx)
	if err != nil {
		return invalidBody(ctx, err)
	}
	if err = req.Validate(); err != nil {
		return respondError(ctx, err, "register")
	}

	logrus.WithField("email", req.Email).Info("Register request received")
	account, err := c.accounts.Register(ctx.Request().Context(), req.ToInput())
	if err != nil {
		return respondError(ctx, err, "register")
	}

	logrus.WithField("account_id", account.ID).Info("Account registered")
	return ctx.JSON(http.StatusCreated, httpdto.OK(
		"User registered successfully, please verify your email.",
		httpdto.RegisterResponse{Account: httpdto.NewAccountResponse(account), RequiresVerification: true},
	))
}

func (c *AuthController) Login(ctx echo.Context) error {
	req, err := types.NewLoginRequestFromContext(ctx)
	if err != nil {
		return invalidBody(ctx, err)
	}
	if err = req.Validate(); err != nil {
		return respondError(ctx, err, "login")
	}

	result, err := c.accounts.Login(ctx.Request().Context(), req.ToInput())
	if err != nil {
		return respondError(ctx, err, "login")
	}

	logrus.WithField("account_id", result.Account.ID).Info("Login successful")
	return ctx.JSON(http.StatusOK, httpdto.OK("Login successful", httpdto.NewLoginResponse(result)))
}

func (c *AuthController) Logout(ctx echo.Context) error {
	actor := middleware.ActorFromContext(ctx)
	if err := c.accounts.Logout(ctx.Request().Context(), actor); err != nil {
		return respondError(ctx, err, "logout")
	}
	return ctx.JSON(http.StatusOK, httpdto.OK("Logged out successfully", nil))
}

func (c *AuthController) ForgotPassword(ctx echo.Context) error {
	req, err := types.NewEmailRequestFromContext(ctx)
	if err != nil {
		return invalidBody(ctx, err)
	}
	if err = req.Validate(); err != nil {
		return respondError(ctx, err, "forgot_password")
	}

	err = c.accounts.RequestPasswordReset(ctx.Request().Context(), req.Email)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrAccountNotFound) && !c.disclose:
		logrus.Debug("Password reset requested for unknown email")
	case errors.Is(err, service.ErrAccountNotFound):
		return ctx.JSON(http.StatusNotFound, httpdto.Error("We can't find a user with that email address."))
	default:
		return respondError(ctx, err, "forgot_password")
	}

	message := msgResetLinkUniform
	if c.disclose {
		message = "Password reset link sent to your email."
	}
	return ctx.JSON(http.StatusOK, httpdto.OK(message, nil))
}

func (c *AuthController) ResetPassword(ctx echo.Context) error {
	req, err := types.NewResetPasswordRequestFromContext(ctx)
	if err != nil {
		return invalidBody(ctx, err)
	}
	if err = req.Validate(); err != nil {
		return respondError(ctx, err, "reset_password")
	}

	if err = c.accounts.ResetPassword(ctx.Request().Context(), req.ToInput()); err != nil {
		return respondError(ctx, err, "reset_password")
	}

	logrus.Info("Password reset completed")
	return ctx.JSON(http.StatusOK, httpdto.OK("Password reset successfully. You can now login with your new password.", nil))
}
