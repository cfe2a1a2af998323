package httpserver

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/game_store/pkg/logging"

	"github.com/Skotchmaster/game_store/internal/service"
	"github.com/Skotchmaster/game_store/internal/transport"
)

type PaymentHTTP struct {
	Svc *service.PaymentService
	// FrontendURL turns the capture and cancel endpoints into browser
	// redirects. Empty means JSON responses.
	FrontendURL string
}

func (h *PaymentHTTP) frontend(path string, q url.Values) string {
	u := h.FrontendURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (h *PaymentHTTP) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.create_order")

	userID, err := callerID(c, l, "paypal_create_order_error")
	if err != nil {
		return err
	}
	var req transport.CreatePaymentRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "paypal_create_order_error", "invalid body", err)
	}

	created, err := h.Svc.CreateGatewayOrder(ctx, userID, req.OrderID)
	if err != nil {
		return fail(l, "paypal_create_order_error", err)
	}

	return c.JSON(http.StatusCreated, transport.CreatePaymentResponse{ID: created.ID, ApproveURL: created.ApproveURL})
}

// CaptureOrder is the return URL PayPal sends the buyer to after approval.
func (h *PaymentHTTP) CaptureOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.capture_order")

	res, err := h.Svc.CaptureOrder(ctx, c.QueryParam("token"))
	if err != nil {
		herr := fail(l, "paypal_capture_error", err)
		if h.FrontendURL == "" {
			return herr
		}
		return c.Redirect(http.StatusFound, h.frontend("/pago-error", nil))
	}

	l.Info("paypal_capture_success", "order_id", res.Order.ID, "already_paid", res.AlreadyPaid)
	if h.FrontendURL != "" {
		q := url.Values{"pedidoId": {strconv.FormatUint(uint64(res.Order.ID), 10)}}
		return c.Redirect(http.StatusFound, h.frontend("/pago-exitoso", q))
	}
	return c.JSON(http.StatusOK, transport.CaptureResponse{
		Message:   "payment captured",
		OrderID:   res.Order.ID,
		Status:    res.Order.Status,
		CaptureID: res.CaptureID,
	})
}

// CancelOrder is the cancel URL of the PayPal checkout. The order stays
// pending payment.
func (h *PaymentHTTP) CancelOrder(c echo.Context) error {
	ctx := c.Request().Context()
	orderID := h.Svc.CancelRedirect(ctx, c.QueryParam("token"))

	var q url.Values
	if orderID != 0 {
		q = url.Values{"pedidoId": {strconv.FormatUint(uint64(orderID), 10)}}
	}
	if h.FrontendURL != "" {
		return c.Redirect(http.StatusFound, h.frontend("/pago-cancelado", q))
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message":  "payment cancelled by buyer",
		"pedidoId": orderID,
	})
}

func (h *PaymentHTTP) Webhook(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.webhook")

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			l.Warn("paypal_webhook_error", "status", he.Code, "reason", "body too large")
			return he
		}
		return badRequest(l, "paypal_webhook_error", "cannot read body", err)
	}

	outcome, err := h.Svc.HandleWebhook(ctx, c.Request(), body)
	if err != nil {
		return fail(l, "paypal_webhook_error", err)
	}

	l.Info("paypal_webhook_handled", "outcome", outcome)
	return c.JSON(http.StatusOK, map[string]string{"status": outcome})
}
