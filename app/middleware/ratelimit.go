package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	httpdto "github.com/vibast-solutions/ms-go-accounts/app/dto/http"
	"github.com/vibast-solutions/ms-go-accounts/app/ratelimit"
)

type limiter interface {
	Allow(ctx context.Context, key string) (ratelimit.Result, error)
}

// RateLimit limits requests per client IP and route. A nil limiter disables
// it and Redis failures let the request through.
func RateLimit(l limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if l == nil {
			return next
		}
		return func(c echo.Context) error {
			if c.Request().Method == http.MethodOptions {
				return next(c)
			}

			key := "rl:" + c.Path() + ":ip:" + c.RealIP()
			result, err := l.Allow(c.Request().Context(), key)
			if err != nil {
				logrus.WithError(err).Warn("Rate limiter unavailable")
				return next(c)
			}

			resetSec := int(math.Ceil(result.Reset.Seconds()))
			header := c.Response().Header()
			header.Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			header.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			header.Set("X-RateLimit-Reset", strconv.Itoa(resetSec))

			if !result.Allowed {
				if resetSec > 0 {
					header.Set("Retry-After", strconv.Itoa(resetSec))
				}
				logrus.WithField("key", key).Info("Rate limit exceeded")
				return c.JSON(http.StatusTooManyRequests, httpdto.Error("Too many requests."))
			}
			return next(c)
		}
	}
}
