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

const ContextKeyActor = "actor"

type authenticator interface {
	Authenticate(ctx context.Context, secret string) (*service.Actor, error)
}

type AuthMiddleware struct {
	accounts authenticator
}

func NewAuthMiddleware(accounts authenticator) *AuthMiddleware {
	return &AuthMiddleware{accounts: accounts}
}

func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if authHeader == "" {
			logrus.Debug("Missing authorization header")
			return c.JSON(http.StatusUnauthorized, httpdto.Error("Unauthenticated."))
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			logrus.Debug("Invalid authorization header format")
			return c.JSON(http.StatusUnauthorized, httpdto.Error("Unauthenticated."))
		}

		actor, err := m.accounts.Authenticate(c.Request().Context(), parts[1])
		if err != nil {
			if errors.Is(err, service.ErrUnauthenticated) {
				logrus.Debug("Invalid or expired session token")
				return c.JSON(http.StatusUnauthorized, httpdto.Error("Unauthenticated."))
			}
			logrus.WithError(err).Error("Session token validation failed")
			return c.JSON(http.StatusInternalServerError, httpdto.Error("internal server error"))
		}

		c.Set(ContextKeyActor, actor)
		return next(c)
	}
}

// ActorFromContext returns nil for anonymous requests.
func ActorFromContext(c echo.Context) *service.Actor {
	actor, _ := c.Get(ContextKeyActor).(*service.Actor)
	return actor
}
