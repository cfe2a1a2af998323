package httpserver

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	middleware "github.com/Skotchmaster/game_store/pkg/middleware/auth"

	"github.com/Skotchmaster/game_store/internal/service"
	"github.com/Skotchmaster/game_store/internal/transport"
)

func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrPayment):
		return http.StatusInternalServerError, "payment gateway error"
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, service.ErrInsufficientStock):
		return http.StatusBadRequest, "insufficient stock"
	case errors.Is(err, service.ErrUnauthorized), errors.Is(err, service.ErrWebhookRejected):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, service.ErrProductUnavailable):
		return http.StatusNotFound, "product unavailable"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// fail logs a failed handler call and turns the service error into the JSON
// error body. Internal errors never leak their text.
func fail(l *slog.Logger, event string, err error) error {
	status, msg := statusOf(err)

	body := transport.ErrorResponse{Message: msg}
	var perr *service.PaymentError
	switch {
	case errors.As(err, &perr):
		body.Detail = perr.Detail
	case status < http.StatusInternalServerError:
		body.Detail = err.Error()
	}

	if status >= http.StatusInternalServerError {
		l.Error(event, "status", status, "reason", msg, "error", err)
	} else {
		l.Warn(event, "status", status, "reason", msg, "error", err)
	}
	return echo.NewHTTPError(status, body)
}

func badRequest(l *slog.Logger, event, reason string, err error) error {
	l.Warn(event, "status", http.StatusBadRequest, "reason", reason, "error", err)
	return echo.NewHTTPError(http.StatusBadRequest, transport.ErrorResponse{Message: "invalid request", Detail: reason})
}

// callerID reads the authenticated user id set by the auth middleware.
func callerID(c echo.Context, l *slog.Logger, event string) (uint, error) {
	id, ok := middleware.UserID(c)
	if !ok {
		l.Warn(event, "status", http.StatusUnauthorized, "reason", "no user in context")
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return id, nil
}
