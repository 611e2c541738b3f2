package controller

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	httpdto "github.com/vibast-solutions/ms-go-accounts/app/dto/http"
	"github.com/vibast-solutions/ms-go-accounts/app/middleware"
	"github.com/vibast-solutions/ms-go-accounts/app/service"
	"github.com/vibast-solutions/ms-go-accounts/app/types"
)

// ProfileController serves the authenticated account's own profile.
type ProfileController struct {
	profiles *service.ProfileService
	url      httpdto.URLFunc
}

func NewProfileController(profiles *service.ProfileService, url httpdto.URLFunc) *ProfileController {
	return &ProfileController{profiles: profiles, url: url}
}

func (c *ProfileController) Show(ctx echo.Context) error {
	actor := middleware.ActorFromContext(ctx)
	profile, err := c.profiles.GetProfile(ctx.Request().Context(), actor, actor.Account.ID)
	if err != nil {
		return respondError(ctx, err, "show_profile")
	}
	return ctx.JSON(http.StatusOK, httpdto.OK("", httpdto.NewProfileResponse(profile, c.url)))
}

func (c *ProfileController) Update(ctx echo.Context) error {
	req, err := types.NewUpdateProfileRequestFromContext(ctx)
	if err != nil {
		return invalidBody(ctx, err)
	}
	if err = req.Validate(); err != nil {
		return respondError(ctx, err, "update_profile")
	}
	in, err := req.ToInput()
	if err != nil {
		return respondError(ctx, err, "update_profile")
	}

	actor := middleware.ActorFromContext(ctx)
	profile, err := c.profiles.UpdateProfile(ctx.Request().Context(), actor, actor.Account.ID, in, req.Avatar)
	if err != nil {
		return respondError(ctx, err, "update_profile")
	}

	logrus.WithFields(logrus.Fields{
		"account_id": actor.Account.ID,
		"avatar":     req.Avatar != nil,
	}).Info("Profile updated")
	return ctx.JSON(http.StatusOK, httpdto.OK("Profile updated successfully", httpdto.NewProfileResponse(profile, c.url)))
}

func (c *ProfileController) Delete(ctx echo.Context) error {
	actor := middleware.ActorFromContext(ctx)
	if err := c.profiles.DeleteProfile(ctx.Request().Context(), actor, actor.Account.ID); err != nil {
		return respondError(ctx, err, "delete_profile")
	}

	logrus.WithField("account_id", actor.Account.ID).Info("Profile deleted")
	return ctx.JSON(http.StatusOK, httpdto.OK("Profile deleted successfully", nil))
}
