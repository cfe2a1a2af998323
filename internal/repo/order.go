package repo

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/game_store/internal/models"
)

// CreateOrder inserts the order together with its lines.
func (r *GormRepo) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.DB.WithContext(ctx).Create(order).Error
}

func (r *GormRepo) GetOrder(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	err := r.DB.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&order, id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// LockOrder reads the order row with FOR UPDATE and then its lines.
func (r *GormRepo) LockOrder(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	err := r.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	if err := r.DB.WithContext(ctx).Where("order_id = ?", id).Order("id ASC").Find(&order.Lines).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormRepo) FindOrderByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	var order models.Order
	if err := r.DB.WithContext(ctx).Where("gateway_order_id = ?", gatewayOrderID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrdersByUser returns the user's orders newest first, lines and their
// products preloaded.
func (r *GormRepo) ListOrdersByUser(ctx context.Context, userID uint) ([]models.Order, error) {
	var orders []models.Order
	err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Lines.Product").
		Order("created_at DESC").Order("id DESC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// TransitionStatus moves an order from one status to another. It reports
// false when the order was not in the expected status.
func (r *GormRepo) TransitionStatus(ctx context.Context, id uint, from, to models.OrderStatus) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, string(from)).
		Update("status", string(to))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkOrderPaid records the gateway capture id. Only a pending order is
// updated, so repeated captures or webhook deliveries are no-ops.
func (r *GormRepo) MarkOrderPaid(ctx context.Context, id uint, captureID string) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, string(models.OrderStatusPendingPayment)).
		Updates(map[string]any{
			"status":                 string(models.OrderStatusPaid),
			"gateway_transaction_id": captureID,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormRepo) SetGatewayOrderID(ctx context.Context, id uint, gatewayOrderID string) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, string(models.OrderStatusPendingPayment)).
		Update("gateway_order_id", gatewayOrderID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// UpdateShippingAddress replaces the address while the order is in one of
// the given statuses.
func (r *GormRepo) UpdateShippingAddress(ctx context.Context, id uint, addr models.Address, statuses ...models.OrderStatus) (bool, error) {
	raw, err := json.Marshal(addr)
	if err != nil {
		return false, err
	}
	allowed := make([]string, 0, len(statuses))
	for _, s := range statuses {
		allowed = append(allowed, string(s))
	}

	res := r.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status IN ?", id, allowed).
		Update("shipping_address", string(raw))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
