package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	middleware "github.com/Skotchmaster/game_store/pkg/middleware/auth"
	"github.com/Skotchmaster/game_store/pkg/logging"

	"github.com/Skotchmaster/game_store/internal/service"
	"github.com/Skotchmaster/game_store/internal/transport"
)

type AuthHTTP struct {
	Svc *service.AuthService
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.register")

	var req transport.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "register_error", "invalid body", err)
	}

	user, err := h.Svc.Register(ctx, req, middleware.Role(c))
	if err != nil {
		return fail(l, "register_error", err)
	}

	l.Info("register_success", "user_id", user.ID)
	return c.JSON(http.StatusCreated, transport.RegisterResponse{Message: "user registered", UserID: user.ID})
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.login")

	var req transport.LoginRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "login_error", "invalid body", err)
	}

	res, err := h.Svc.Login(ctx, req)
	if err != nil {
		return fail(l, "login_error", err)
	}

	return c.JSON(http.StatusOK, transport.LoginResponse{
		Message:     "login successful",
		User:        res.User,
		AccessToken: res.AccessToken,
		ExpiresAt:   res.ExpiresAt,
	})
}

func (h *AuthHTTP) Me(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.me")

	userID, err := callerID(c, l, "me_error")
	if err != nil {
		return err
	}
	user, err := h.Svc.Me(ctx, userID)
	if err != nil {
		return fail(l, "me_error", err)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *AuthHTTP) UpdateMe(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.update_me")

	userID, err := callerID(c, l, "update_me_error")
	if err != nil {
		return err
	}
	var req transport.UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "update_me_error", "invalid body", err)
	}

	user, err := h.Svc.UpdateProfile(ctx, userID, req)
	if err != nil {
		return fail(l, "update_me_error", err)
	}

	l.Info("update_me_success", "user_id", userID)
	return c.JSON(http.StatusOK, user)
}

func (h *AuthHTTP) DeleteMe(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.delete_me")

	userID, err := callerID(c, l, "delete_me_error")
	if err != nil {
		return err
	}
	var req transport.DeleteAccountRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "delete_me_error", "invalid body", err)
	}

	if err := h.Svc.DeleteAccount(ctx, userID, req.Password); err != nil {
		return fail(l, "delete_me_error", err)
	}

	l.Info("delete_me_success", "user_id", userID)
	return c.JSON(http.StatusOK, transport.MessageResponse{Message: "account deleted"})
}
