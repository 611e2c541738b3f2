package controller

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	httpdto "github.com/vibast-solutions/ms-go-accounts/app/dto/http"
	"github.com/vibast-solutions/ms-go-accounts/app/middleware"
	"github.com/vibast-solutions/ms-go-accounts/app/service"
	"github.com/vibast-solutions/ms-go-accounts/app/types"
)

type AccountController struct {
	accounts *service.AccountService
}

func NewAccountController(accounts *service.AccountService) *AccountController {
	return &AccountController{accounts: accounts}
}

func (c *AccountController) Show(ctx echo.Context) error {
	id, ok := accountIDParam(ctx)
	if !ok {
		return respondError(ctx, service.ErrAccountNotFound, "show_account")
	}

	account, err := c.accounts.GetAccount(ctx.Request().Context(), middleware.ActorFromContext(ctx), id)
	if err != nil {
		return respondError(ctx, err, "show_account")
	}
	return ctx.JSON(http.StatusOK, httpdto.OK("", httpdto.NewAccountResponse(account)))
}

func (c *AccountController) Update(ctx echo.Context) error {
	id, ok := accountIDParam(ctx)
	if !ok {
		return respondError(ctx, service.ErrAccountNotFound, "update_account")
	}

	req, err := types.NewUpdateAccountRequestFromContext(ctx)
	if err != nil {
		return invalidBody(ctx, err)
	}
	if err = req.Validate(); err != nil {
		return respondError(ctx, err, "update_account")
	}

	actor := middleware.ActorFromContext(ctx)
	account, err := c.accounts.UpdateAccount(ctx.Request().Context(), actor, id, req.ToInput())
	if err != nil {
		return respondError(ctx, err, "update_account")
	}

	logrus.WithFields(logrus.Fields{
		"account_id": id,
		"actor_id":   actor.Account.ID,
	}).Info("Account updated")
	return ctx.JSON(http.StatusOK, httpdto.OK("User updated successfully", httpdto.NewAccountResponse(account)))
}

func (c *AccountController) Delete(ctx echo.Context) error {
	id, ok := accountIDParam(ctx)
	if !ok {
		return respondError(ctx, service.ErrAccountNotFound, "delete_account")
	}

	actor := middleware.ActorFromContext(ctx)
	if err := c.accounts.DeleteAccount(ctx.Request().Context(), actor, id); err != nil {
		return respondError(ctx, err, "delete_account")
	}

	logrus.WithFields(logrus.Fields{
		"account_id": id,
		"actor_id":   actor.Account.ID,
	}).Info("Account deleted")
	return ctx.JSON(http.StatusOK, httpdto.OK("User deleted successfully", nil))
}

func accountIDParam(ctx echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	return id, err == nil && id > 0
}
