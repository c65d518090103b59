package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/repairhub/internal/repair/entity"
	"gorm.io/gorm"
)

// StatusRepository 维修单状态仓库
type StatusRepository struct {
	db *gorm.DB
}

func NewStatusRepository(db *gorm.DB) *StatusRepository {
	return &StatusRepository{db: db}
}

// FindByID 读取未删除的状态
func (r *StatusRepository) FindByID(ctx context.Context, id string) (*entity.RepairOrderStatus, error) {
	var status entity.RepairOrderStatus
	err := r.db.WithContext(ctx).
		Where("id = ? AND status <> ?", id, entity.LifecycleDeleted).
		First(&status).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &status, nil
}

// FindByIDTx 事务内读取未删除的状态
func (r *StatusRepository) FindByIDTx(tx *gorm.DB, id string) (*entity.RepairOrderStatus, error) {
	var status entity.RepairOrderStatus
	err := tx.
		Where("id = ? AND status <> ?", id, entity.LifecycleDeleted).
		First(&status).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &status, nil
}

// ListByBranch 网点内状态列，按看板顺序
func (r *StatusRepository) ListByBranch(ctx context.Context, branchID string) ([]entity.RepairOrderStatus, error) {
	var statuses []entity.RepairOrderStatus
	err := r.db.WithContext(ctx).
		Where("branch_id = ? AND status <> ?", branchID, entity.LifecycleDeleted).
		Order("sort ASC").
		Find(&statuses).Error
	return statuses, err
}

// Create 事务内插入状态
func (r *StatusRepository) Create(tx *gorm.DB, status *entity.RepairOrderStatus) error {
	return tx.Create(status).Error
}

// UpdateFields 事务内更新状态字段
func (r *StatusRepository) UpdateFields(tx *gorm.DB, id string, fields map[string]interface{}) error {
	return tx.Model(&entity.RepairOrderStatus{}).Where("id = ?", id).Updates(fields).Error
}

// FindInitialByBranch 网点的接单初始状态（看板第一列）
func (r *StatusRepository) FindInitialByBranch(ctx context.Context, branchID string) (*entity.RepairOrderStatus, error) {
	var status entity.RepairOrderStatus
	err := r.db.WithContext(ctx).
		Where("branch_id = ? AND status <> ? AND is_active = ?", branchID, entity.LifecycleDeleted, true).
		Order("sort ASC").
		First(&status).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &status, nil
}
