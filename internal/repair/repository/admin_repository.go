package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/repairhub/internal/repair/entity"
	"gorm.io/gorm"
)

// AdminRepository 管理员仓库
type AdminRepository struct {
	db *gorm.DB
}

func NewAdminRepository(db *gorm.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

// FindByID 读取启用的管理员（含角色）
func (r *AdminRepository) FindByID(ctx context.Context, id string) (*entity.Admin, error) {
	var admin entity.Admin
	err := r.db.WithContext(ctx).
		Preload("Roles").
		Where("id = ? AND is_active = ?", id, true).
		First(&admin).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &admin, nil
}

// FindByPhone 按手机号读取启用的管理员（登录用）
func (r *AdminRepository) FindByPhone(ctx context.Context, phone string) (*entity.Admin, error) {
	var admin entity.Admin
	err := r.db.WithContext(ctx).
		Preload("Roles").
		Where("phone = ? AND is_active = ?", phone, true).
		First(&admin).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &admin, nil
}

// CountActiveByIDs 统计 id 集合中启用的管理员数量（批量指派前校验）
func (r *AdminRepository) CountActiveByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Admin{}).
		Where("id IN ? AND is_active = ?", ids, true).
		Count(&count).Error
	return count, err
}
