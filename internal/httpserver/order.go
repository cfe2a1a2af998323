package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/game_store/pkg/logging"

	"github.com/Skotchmaster/game_store/internal/service"
	"github.com/Skotchmaster/game_store/internal/transport"
	"github.com/Skotchmaster/game_store/internal/util"
)

type OrderHTTP struct {
	Svc *service.OrderService
}

func (h *OrderHTTP) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.create_order")

	userID, err := callerID(c, l, "create_order_error")
	if err != nil {
		return err
	}
	var req transport.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "create_order_error", "invalid body", err)
	}

	order, err := h.Svc.CreateOrder(ctx, userID, req)
	if err != nil {
		return fail(l, "create_order_error", err)
	}

	l.Info("create_order_success", "order_id", order.ID)
	return c.JSON(http.StatusCreated, transport.CreateOrderResponse{
		Message: "order created",
		OrderID: order.ID,
		Total:   order.Total.StringFixed(2),
	})
}

func (h *OrderHTTP) MyOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.my_orders")

	userID, err := callerID(c, l, "my_orders_error")
	if err != nil {
		return err
	}
	orders, err := h.Svc.ListMyOrders(ctx, userID)
	if err != nil {
		return fail(l, "my_orders_error", err)
	}

	views := make([]transport.OrderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, transport.NewOrderView(o))
	}
	return c.JSON(http.StatusOK, views)
}

func (h *OrderHTTP) CancelOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.cancel_order")

	userID, err := callerID(c, l, "cancel_order_error")
	if err != nil {
		return err
	}
	id, ok := util.ParseID(c.Param("id"))
	if !ok {
		return badRequest(l, "cancel_order_error", "id is not a positive integer", nil)
	}

	order, err := h.Svc.CancelOrder(ctx, userID, id)
	if err != nil {
		return fail(l, "cancel_order_error", err)
	}

	l.Info("cancel_order_success", "order_id", id)
	return c.JSON(http.StatusOK, transport.NewOrderView(*order))
}

func (h *OrderHTTP) UpdateAddress(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.update_address")

	userID, err := callerID(c, l, "update_address_error")
	if err != nil {
		return err
	}
	id, ok := util.ParseID(c.Param("id"))
	if !ok {
		return badRequest(l, "update_address_error", "id is not a positive integer", nil)
	}
	var req transport.UpdateAddressRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "update_address_error", "invalid body", err)
	}

	order, err := h.Svc.UpdateShippingAddress(ctx, userID, id, req)
	if err != nil {
		return fail(l, "update_address_error", err)
	}

	l.Info("update_address_success", "order_id", id)
	return c.JSON(http.StatusOK, transport.NewOrderView(*order))
}
