package repo

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/game_store/internal/models"
)

func (r *GormRepo) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	if err := r.DB.WithContext(ctx).First(&product, id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *GormRepo) GetActiveProduct(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	if err := r.DB.WithContext(ctx).Where("id = ? AND active = ?", id, true).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// LockProduct reads a product row with FOR UPDATE inside a transaction.
func (r *GormRepo) LockProduct(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	err := r.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *GormRepo) ListActiveProducts(ctx context.Context, offset, limit int) (int64, []models.Product, error) {
	q := r.DB.WithContext(ctx).Model(&models.Product{}).Where("active = ?", true)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var items []models.Product
	if err := q.Order("id ASC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return 0, nil, err
	}
	return total, items, nil
}

// SearchActiveProducts is the database fallback when no search index is
// configured: a case-insensitive substring match on title and description.
func (r *GormRepo) SearchActiveProducts(ctx context.Context, query string, offset, limit int) (int64, []models.Product, error) {
	like := "%" + escapeLike(strings.ToLower(query)) + "%"
	q := r.DB.WithContext(ctx).Model(&models.Product{}).
		Where("active = ?", true).
		Where("(LOWER(title) LIKE ? ESCAPE '!' OR LOWER(description) LIKE ? ESCAPE '!')", like, like)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var items []models.Product
	if err := q.Order("id ASC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return 0, nil, err
	}
	return total, items, nil
}

// GetActiveProductsByIDs returns active products in the order of ids.
func (r *GormRepo) GetActiveProductsByIDs(ctx context.Context, ids []uint) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var found []models.Product
	if err := r.DB.WithContext(ctx).Where("id IN ? AND active = ?", ids, true).Find(&found).Error; err != nil {
		return nil, err
	}

	byID := make(map[uint]models.Product, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	out := make([]models.Product, 0, len(found))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *GormRepo) CreateProduct(ctx context.Context, prod *models.Product) error {
	return r.DB.WithContext(ctx).Create(prod).Error
}

// PatchProduct applies a column->value patch. A missing id surfaces from the
// reload, not from RowsAffected, which MySQL leaves at zero for no-op patches.
func (r *GormRepo) PatchProduct(ctx context.Context, id uint, patch map[string]any) (*models.Product, error) {
	if err := r.DB.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(patch).Error; err != nil {
		return nil, err
	}
	return r.GetProduct(ctx, id)
}

// DeactivateProduct is the logical delete. An already inactive product is
// reported as not found.
func (r *GormRepo) DeactivateProduct(ctx context.Context, id uint) error {
	res := r.DB.WithContext(ctx).Model(&models.Product{}).
		Where("id = ? AND active = ?", id, true).
		Update("active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormRepo) DeleteProduct(ctx context.Context, id uint) error {
	res := r.DB.WithContext(ctx).Delete(&models.Product{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DecrementStock subtracts qty only while enough stock remains. It reports
// false when the guard did not match.
func (r *GormRepo) DecrementStock(ctx context.Context, id uint, qty int) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.Product{}).
		Where("id = ? AND stock >= ?", id, qty).
		Update("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormRepo) IncrementStock(ctx context.Context, id uint, qty int) error {
	return r.DB.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", id).
		Update("stock", gorm.Expr("stock + ?", qty)).Error
}

func escapeLike(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return r.Replace(s)
}
