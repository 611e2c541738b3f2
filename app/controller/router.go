package controller

import (
	"github.com/labstack/echo/v4"
)

// Router wires the HTTP surface. RateLimit may be nil.
type Router struct {
	Auth         *AuthController
	Verification *VerificationController
	Account      *AccountController
	Profile      *ProfileController
	Directory    *DirectoryController
	Health       *HealthController

	RequireAuth echo.MiddlewareFunc
	RateLimit   echo.MiddlewareFunc
}

func (r *Router) Register(e *echo.Echo) {
	limited := []echo.MiddlewareFunc{}
	if r.RateLimit != nil {
		limited = append(limited, r.RateLimit)
	}

	e.GET("/health", r.Health.Health)

	e.POST("/register", r.Auth.Register, limited...)
	e.POST("/login", r.Auth.Login, limited...)
	e.POST("/forgot-password", r.Auth.ForgotPassword, limited...)
	e.POST("/reset-password", r.Auth.ResetPassword, limited...)
	e.POST("/email/resend", r.Verification.Resend, limited...)
	e.GET("/email/verify/:id/:hash", r.Verification.Verify)

	e.GET("/users", r.Directory.Index)
	e.GET("/users/search", r.Directory.Search)
	e.GET("/users/:id", r.Directory.Show)

	auth := r.RequireAuth
	e.POST("/logout", r.Auth.Logout, auth)
	e.GET("/profile", r.Profile.Show, auth)
	e.PUT("/profile", r.Profile.Update, auth)
	e.POST("/profile", r.Profile.Update, auth)
	e.DELETE("/profile", r.Profile.Delete, auth)
	e.GET("/user/:id", r.Account.Show, auth)
	e.PUT("/user/:id", r.Account.Update, auth)
	e.DELETE("/user/:id", r.Account.Delete, auth)
}
