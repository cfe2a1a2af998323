package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/Skotchmaster/game_store/internal/models"
)

func (r *GormRepo) CreateUser(ctx context.Context, u *models.User) error {
	return r.DB.WithContext(ctx).Create(u).Error
}

func (r *GormRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormRepo) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormRepo) ListUsers(ctx context.Context, offset, limit int) (int64, []models.User, error) {
	var total int64
	if err := r.DB.WithContext(ctx).Model(&models.User{}).Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var users []models.User
	if err := r.DB.WithContext(ctx).Order("id ASC").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return 0, nil, err
	}
	return total, users, nil
}

// UpdateUser applies a column->value patch and returns the stored row.
// Existence is decided by the reload: MySQL reports zero affected rows when
// the patch leaves every value unchanged.
func (r *GormRepo) UpdateUser(ctx context.Context, id uint, patch map[string]any) (*models.User, error) {
	if err := r.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(patch).Error; err != nil {
		return nil, err
	}
	return r.GetUserByID(ctx, id)
}

func (r *GormRepo) DeleteUser(ctx context.Context, id uint) error {
	res := r.DB.WithContext(ctx).Delete(&models.User{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
