package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	httpdto "github.com/vibast-solutions/ms-go-accounts/app/dto/http"
	"github.com/vibast-solutions/ms-go-accounts/app/service"
	"github.com/vibast-solutions/ms-go-accounts/app/types"
)

const (
	msgInvalidBody   = "invalid request body"
	msgInvalidData   = "The given data was invalid."
	msgUnauthorized  = "This action is unauthorized."
	msgInternalError = "internal server error"
)

func invalidBody(ctx echo.Context, err error) error {
	logrus.WithError(err).Debug("Failed to bind request")
	return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{
		Message: msgInvalidBody,
		Errors:  types.ToDetails(err),
	})
}

// respondError maps service and validation errors to HTTP responses.
func respondError(ctx echo.Context, err error, action string) error {
	entry := logrus.WithField("action", action)

	var verr *types.ValidationError
	switch {
	case errors.As(err, &verr):
		entry.Debug("Validation failed")
		return ctx.JSON(http.StatusUnprocessableEntity, httpdto.ErrorResponse{Message: msgInvalidData, Errors: verr.Fields})
	case errors.Is(err, service.ErrWeakPassword):
		entry.Debug("Weak password rejected")
		return ctx.JSON(http.StatusUnprocessableEntity, httpdto.ErrorResponse{
			Message: msgInvalidData,
			Errors:  map[string]string{"password": err.Error()},
		})
	case errors.Is(err, service.ErrInvalidAvatar):
		return ctx.JSON(http.StatusUnprocessableEntity, httpdto.ErrorResponse{
			Message: msgInvalidData,
			Errors:  map[string]string{"avatar": err.Error()},
		})
	case errors.Is(err, service.ErrInvalidProfile):
		return ctx.JSON(http.StatusUnprocessableEntity, httpdto.Error(err.Error()))
	case errors.Is(err, service.ErrDuplicateEmail):
		entry.Info("Email already taken")
		return ctx.JSON(http.StatusConflict, httpdto.ErrorResponse{
			Message: "The email has already been taken.",
			Errors:  map[string]string{"email": "has already been taken"},
		})
	case errors.Is(err, service.ErrInvalidCredentials):
		entry.Info("Invalid credentials")
		return ctx.JSON(http.StatusUnauthorized, httpdto.Error("Invalid credentials"))
	case errors.Is(err, service.ErrEmailNotVerified):
		entry.Info("Email not verified")
		return ctx.JSON(http.StatusForbidden, httpdto.ErrorResponse{
			Message:              "Please verify your email before logging in.",
			RequiresVerification: true,
		})
	case errors.Is(err, service.ErrForbidden):
		entry.Warn("Forbidden")
		return ctx.JSON(http.StatusForbidden, httpdto.Error(msgUnauthorized))
	case errors.Is(err, service.ErrAccountNotFound):
		return ctx.JSON(http.StatusNotFound, httpdto.Error("User not found."))
	case errors.Is(err, service.ErrProfileNotFound):
		return ctx.JSON(http.StatusNotFound, httpdto.Error("Profile not found."))
	case errors.Is(err, service.ErrAlreadyVerified):
		return ctx.JSON(http.StatusBadRequest, httpdto.Error("Email already verified."))
	case errors.Is(err, service.ErrInvalidVerificationLink):
		entry.Info("Invalid verification link")
		return ctx.JSON(http.StatusBadRequest, httpdto.Error("Invalid or expired verification link."))
	case errors.Is(err, service.ErrInvalidResetToken):
		entry.Info("Invalid reset token")
		return ctx.JSON(http.StatusBadRequest, httpdto.Error("Failed to reset password. Token may have expired."))
	case errors.Is(err, service.ErrUnauthenticated):
		return ctx.JSON(http.StatusUnauthorized, httpdto.Error("Unauthenticated."))
	default:
		entry.WithError(err).Error("Request failed")
		return ctx.JSON(http.StatusInternalServerError, httpdto.Error(msgInternalError))
	}
}
