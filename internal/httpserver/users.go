package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/game_store/pkg/logging"

	"github.com/Skotchmaster/game_store/internal/models"
	"github.com/Skotchmaster/game_store/internal/service"
	"github.com/Skotchmaster/game_store/internal/transport"
	"github.com/Skotchmaster/game_store/internal/util"
)

type UserHTTP struct {
	Svc *service.UserService
}

func (h *UserHTTP) ListUsers(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.list_users")

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	total, users, err := h.Svc.ListUsers(ctx, offset, limit)
	if err != nil {
		return fail(l, "list_users_error", err)
	}

	return c.JSON(http.StatusOK, transport.Page[models.User]{
		Data: users,
		Meta: transport.NewPageMeta(max(page, 1), offset, limit, total),
	})
}

func (h *UserHTTP) GetUser(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.get_user")

	id, ok := util.ParseID(c.Param("id"))
	if !ok {
		return badRequest(l, "get_user_error", "id is not a positive integer", nil)
	}
	user, err := h.Svc.GetUser(ctx, id)
	if err != nil {
		return fail(l, "get_user_error", err)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *UserHTTP) UpdateUser(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.update_user")

	actorID, err := callerID(c, l, "update_user_error")
	if err != nil {
		return err
	}
	id, ok := util.ParseID(c.Param("id"))
	if !ok {
		return badRequest(l, "update_user_error", "id is not a positive integer", nil)
	}
	var req transport.AdminUpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "update_user_error", "invalid body", err)
	}

	user, err := h.Svc.UpdateUser(ctx, actorID, id, req)
	if err != nil {
		return fail(l, "update_user_error", err)
	}

	l.Info("update_user_success", "user_id", id)
	return c.JSON(http.StatusOK, user)
}

func (h *UserHTTP) DeleteUser(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.delete_user")

	actorID, err := callerID(c, l, "delete_user_error")
	if err != nil {
		return err
	}
	id, ok := util.ParseID(c.Param("id"))
	if !ok {
		return badRequest(l, "delete_user_error", "id is not a positive integer", nil)
	}

	if err := h.Svc.DeleteUser(ctx, actorID, id); err != nil {
		return fail(l, "delete_user_error", err)
	}

	l.Info("delete_user_success", "user_id", id)
	return c.JSON(http.StatusOK, transport.MessageResponse{Message: "user deleted"})
}
