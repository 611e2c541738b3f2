package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	httpdto "github.com/vibast-solutions/ms-go-accounts/app/dto/http"
	"github.com/vibast-solutions/ms-go-accounts/app/service"
)

const ContextKeyCallerService = "caller_service"

type apiKeyAuthorizer interface {
	Authorize(ctx context.Context, apiKey string) (*service.InternalCaller, error)
}

type APIKeyMiddleware struct {
	keys apiKeyAuthorizer
}

func NewAPIKeyMiddleware(keys apiKeyAuthorizer) *APIKeyMiddleware {
	return &APIKeyMiddleware{keys: keys}
}

func (m *APIKeyMiddleware) RequireAPIKey(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		// Let CORS preflight pass.
		if c.Request().Method == http.MethodOptions {
			return next(c)
		}

		apiKey := strings.TrimSpace(c.Request().Header.Get("X-API-Key"))
		if apiKey == "" {
			logrus.Debug("Missing x-api-key header")
			return c.JSON(http.StatusUnauthorized, httpdto.Error("unauthorized"))
		}

		caller, err := m.keys.Authorize(c.Request().Context(), apiKey)
		switch {
		case errors.Is(err, service.ErrInternalAccessDenied):
			logrus.Debug("Internal caller not allowed")
			return c.JSON(http.StatusForbidden, httpdto.Error("forbidden"))
		case errors.Is(err, service.ErrInvalidInternalAPIKey):
			logrus.Debug("Invalid x-api-key header")
			return c.JSON(http.StatusUnauthorized, httpdto.Error("unauthorized"))
		case err != nil:
			logrus.WithError(err).Error("Failed to validate x-api-key header")
			return c.JSON(http.StatusInternalServerError, httpdto.Error("internal server error"))
		}

		c.Set(ContextKeyCallerService, caller.ServiceName)
		return next(c)
	}
}
