package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	httpdto "github.com/vibast-solutions/ms-go-accounts/app/dto/http"
	"github.com/vibast-solutions/ms-go-accounts/app/service"
	"github.com/vibast-solutions/ms-go-accounts/app/types"
)

type VerificationController struct {
	accounts *service.AccountService
	disclose bool
}

func NewVerificationController(accounts *service.AccountService, discloseUnknownEmail bool) *VerificationController {
	return &VerificationController{accounts: accounts, disclose: discloseUnknownEmail}
}

// Verify handles GET /email/verify/:id/:hash?expires=&signature=.
func (c *VerificationController) Verify(ctx echo.Context) error {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return respondError(ctx, service.ErrInvalidVerificationLink, "verify_email")
	}

	result, err := c.accounts.VerifyEmail(ctx.Request().Context(), id, ctx.Param("hash"), ctx.QueryParam("signature"))
	if err != nil {
		return respondError(ctx, err, "verify_email")
	}
	if result.AlreadyVerified {
		return ctx.JSON(http.StatusOK, httpdto.OK("Email already verified.", nil))
	}

	logrus.WithField("account_id", id).Info("Email verified")
	return ctx.JSON(http.StatusOK, httpdto.OK("Email verified successfully!", nil))
}

func (c *VerificationController) Resend(ctx echo.Context) error {
	req, err := types.NewEmailRequestFromContext(ctx)
	if err != nil {
		return invalidBody(ctx, err)
	}
	if err = req.Validate(); err != nil {
		return respondError(ctx, err, "resend_verification")
	}

	err = c.accounts.ResendVerification(ctx.Request().Context(), req.Email)
	switch {
	case err == nil:
	case !c.disclose && (errors.Is(err, service.ErrAccountNotFound) || errors.Is(err, service.ErrAlreadyVerified)):
		logrus.Debug("Verification resend skipped")
	default:
		return respondError(ctx, err, "resend_verification")
	}

	message := "If the email is registered and unverified, a verification link has been sent."
	if c.disclose {
		message = "Verification email sent successfully."
	}
	return ctx.JSON(http.StatusOK, httpdto.OK(message, nil))
}
