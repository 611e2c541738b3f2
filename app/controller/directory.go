package controller

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	httpdto "github.com/vibast-solutions/ms-go-accounts/app/dto/http"
	"github.com/vibast-solutions/ms-go-accounts/app/service"
	"github.com/vibast-solutions/ms-go-accounts/app/types"
)

// DirectoryController is the public listing of verified accounts.
type DirectoryController struct {
	directory *service.DirectoryService
	url       httpdto.URLFunc
}

func NewDirectoryController(directory *service.DirectoryService, url httpdto.URLFunc) *DirectoryController {
	return &DirectoryController{directory: directory, url: url}
}

func (c *DirectoryController) Index(ctx echo.Context) error {
	page, err := strconv.Atoi(ctx.QueryParam("page"))
	if err != nil || page < 1 {
		page = 1
	}

	result, err := c.directory.List(ctx.Request().Context(), page)
	if err != nil {
		return respondError(ctx, err, "list_users")
	}
	return ctx.JSON(http.StatusOK, httpdto.OK("", httpdto.NewDirectoryPageResponse(result, c.url)))
}

func (c *DirectoryController) Search(ctx echo.Context) error {
	query := strings.TrimSpace(ctx.QueryParam("q"))
	if query == "" {
		return respondError(ctx, &types.ValidationError{Fields: map[string]string{"q": "is required"}}, "search_users")
	}

	entries, err := c.directory.Search(ctx.Request().Context(), query)
	if err != nil {
		return respondError(ctx, err, "search_users")
	}
	return ctx.JSON(http.StatusOK, httpdto.OK("", httpdto.NewDirectoryEntriesResponse(entries, c.url)))
}

func (c *DirectoryController) Show(ctx echo.Context) error {
	id, ok := accountIDParam(ctx)
	if !ok {
		return respondError(ctx, service.ErrAccountNotFound, "show_user")
	}

	entry, err := c.directory.Show(ctx.Request().Context(), id)
	if err != nil {
		return respondError(ctx, err, "show_user")
	}
	return ctx.JSON(http.StatusOK, httpdto.OK("", httpdto.NewDirectoryEntryResponse(entry, c.url)))
}
