package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Skotchmaster/game_store/internal/models"
	"github.com/Skotchmaster/game_store/internal/repo"
	"github.com/Skotchmaster/game_store/internal/transport"
	"github.com/Skotchmaster/game_store/pkg/events"
	"github.com/Skotchmaster/game_store/pkg/logging"
)

type OrderService struct {
	Repo   *repo.GormRepo
	Events events.Publisher
}

type lineRequest struct {
	productID uint
	quantity  int
}

// mergeItems validates the requested items and sums quantities of repeated
// products, keeping the first-seen order.
func mergeItems(items []transport.OrderItemRequest) ([]lineRequest, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: items required", ErrValidation)
	}

	idx := make(map[uint]int, len(items))
	out := make([]lineRequest, 0, len(items))
	for i, it := range items {
		if it.ProductID == 0 {
			return nil, fmt.Errorf("%w: items[%d].productoId required", ErrValidation, i)
		}
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: items[%d].cantidad must be > 0", ErrValidation, i)
		}
		if j, ok := idx[it.ProductID]; ok {
			out[j].quantity += it.Quantity
			continue
		}
		idx[it.ProductID] = len(out)
		out = append(out, lineRequest{productID: it.ProductID, quantity: it.Quantity})
	}
	return out, nil
}

// CreateOrder reserves stock and stores the order with its lines in one
// transaction. Any failing line leaves no trace.
func (s *OrderService) CreateOrder(ctx context.Context, userID uint, req transport.CreateOrderRequest) (*models.Order, error) {
	l := logging.FromContext(ctx).With("svc", "order.create", "user_id", userID)

	lines, err := mergeItems(req.Items)
	if err != nil {
		return nil, err
	}
	if err := transport.ValidateAddress(req.ShippingAddress); err != nil {
		return nil, validation(err)
	}
	method := strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	if method == "" {
		method = models.PaymentMethodPayPal
	}
	if method != models.PaymentMethodPayPal {
		return nil, fmt.Errorf("%w: metodoPago must be paypal", ErrValidation)
	}

	// lock rows in id order so concurrent orders over the same products
	// queue instead of deadlocking
	lockOrder := make([]uint, 0, len(lines))
	for _, ln := range lines {
		lockOrder = append(lockOrder, ln.productID)
	}
	slices.Sort(lockOrder)

	var order *models.Order
	err = s.Repo.InTx(ctx, func(tx *repo.GormRepo) error {
		products := make(map[uint]*models.Product, len(lines))
		for _, id := range lockOrder {
			p, err := tx.LockProduct(ctx, id)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: product %d", ErrProductUnavailable, id)
				}
				return fmt.Errorf("lock product %d: %w", id, err)
			}
			if !p.Active {
				return fmt.Errorf("%w: product %d", ErrProductUnavailable, id)
			}
			products[id] = p
		}

		total := decimal.Zero
		orderLines := make([]models.OrderLine, 0, len(lines))
		for _, ln := range lines {
			p := products[ln.productID]
			if p.Stock < ln.quantity {
				return fmt.Errorf("%w: product %d has %d left, requested %d", ErrInsufficientStock, p.ID, p.Stock, ln.quantity)
			}
			subtotal := p.Price.Mul(decimal.NewFromInt(int64(ln.quantity)))
			total = total.Add(subtotal)
			orderLines = append(orderLines, models.OrderLine{
				ProductID: p.ID,
				Quantity:  ln.quantity,
				UnitPrice: p.Price,
				Subtotal:  subtotal,
			})
		}

		order = &models.Order{
			UserID:          userID,
			Total:           total,
			ShippingAddress: *req.ShippingAddress,
			PaymentMethod:   method,
			Status:          models.OrderStatusPendingPayment,
			Lines:           orderLines,
		}
		if err := tx.CreateOrder(ctx, order); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for _, ln := range lines {
			ok, err := tx.DecrementStock(ctx, ln.productID, ln.quantity)
			if err != nil {
				return fmt.Errorf("decrement stock of %d: %w", ln.productID, err)
			}
			if !ok {
				return fmt.Errorf("%w: product %d", ErrInsufficientStock, ln.productID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.Info("order_created", "order_id", order.ID, "total", order.Total.StringFixed(2), "lines", len(order.Lines))
	items := make([]map[string]any, 0, len(order.Lines))
	for _, ln := range order.Lines {
		items = append(items, map[string]any{"product_id": ln.ProductID, "quantity": ln.Quantity})
	}
	publish(ctx, s.Events, events.TopicOrders, orderKey(order.ID), events.New("order_created", map[string]any{
		"order_id": order.ID,
		"user_id":  userID,
		"total":    order.Total.StringFixed(2),
		"items":    items,
	}))
	return order, nil
}

func (s *OrderService) ListMyOrders(ctx context.Context, userID uint) ([]models.Order, error) {
	orders, err := s.Repo.ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// CancelOrder returns the stock of every line and marks the order cancelled.
// Paid orders can be cancelled too; the refund happens outside the shop.
func (s *OrderService) CancelOrder(ctx context.Context, userID, orderID uint) (*models.Order, error) {
	l := logging.FromContext(ctx).With("svc", "order.cancel", "user_id", userID, "order_id", orderID)

	var (
		order *models.Order
		prev  models.OrderStatus
	)
	err := s.Repo.InTx(ctx, func(tx *repo.GormRepo) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return notFound(err, "order")
		}
		if o.UserID != userID {
			return fmt.Errorf("%w: order belongs to another user", ErrForbidden)
		}
		if !o.Status.Cancellable() {
			return fmt.Errorf("%w: order in status %s cannot be cancelled", ErrValidation, o.Status)
		}

		for _, ln := range o.Lines {
			if err := tx.IncrementStock(ctx, ln.ProductID, ln.Quantity); err != nil {
				return fmt.Errorf("restore stock of %d: %w", ln.ProductID, err)
			}
		}

		ok, err := tx.TransitionStatus(ctx, o.ID, o.Status, models.OrderStatusCancelledByUser)
		if err != nil {
			return fmt.Errorf("cancel order: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: order status changed concurrently", ErrValidation)
		}

		prev = o.Status
		o.Status = models.OrderStatusCancelledByUser
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	refund := prev == models.OrderStatusPaid
	if refund {
		l.Warn("refund_required", "total", order.Total.StringFixed(2), "gateway_transaction_id", order.GatewayTransactionID)
	}
	l.Info("order_cancelled", "previous_status", prev)
	publish(ctx, s.Events, events.TopicOrders, orderKey(order.ID), events.New("order_cancelled", map[string]any{
		"order_id":        order.ID,
		"user_id":         userID,
		"previous_status": prev,
		"refund_required": refund,
	}))
	return order, nil
}

// UpdateShippingAddress replaces the address of an order that has not been
// cancelled.
func (s *OrderService) UpdateShippingAddress(ctx context.Context, userID, orderID uint, req transport.UpdateAddressRequest) (*models.Order, error) {
	if err := transport.ValidateAddress(req.ShippingAddress); err != nil {
		return nil, validation(err)
	}

	o, err := s.Repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, notFound(err, "order")
	}
	if o.UserID != userID {
		return nil, fmt.Errorf("%w: order belongs to another user", ErrForbidden)
	}
	if !o.Status.Cancellable() {
		return nil, fmt.Errorf("%w: address of an order in status %s cannot change", ErrValidation, o.Status)
	}

	ok, err := s.Repo.UpdateShippingAddress(ctx, orderID, *req.ShippingAddress,
		models.OrderStatusPendingPayment, models.OrderStatusPaid)
	if err != nil {
		return nil, fmt.Errorf("update address: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: order status changed concurrently", ErrValidation)
	}

	updated, err := s.Repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("reload order: %w", err)
	}
	publish(ctx, s.Events, events.TopicOrders, orderKey(orderID), events.New("order_address_updated", map[string]any{
		"order_id": orderID,
		"user_id":  userID,
	}))
	return updated, nil
}

func orderKey(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
