package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/bitfantasy/repairhub/internal/repair/entity"
	"gorm.io/gorm"
)

// OrderRepository 维修单仓库
type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create 在事务内插入维修单
func (r *OrderRepository) Create(tx *gorm.DB, order *entity.RepairOrder) error {
	return tx.Create(order).Error
}

// FindByID 读取未删除的维修单（不加载子实体）
func (r *OrderRepository) FindByID(ctx context.Context, id string) (*entity.RepairOrder, error) {
	var order entity.RepairOrder
	err := r.db.WithContext(ctx).
		Where("id = ? AND status <> ?", id, entity.LifecycleDeleted).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

// FindByIDTx 事务内读取未删除的维修单
func (r *OrderRepository) FindByIDTx(tx *gorm.DB, id string) (*entity.RepairOrder, error) {
	var order entity.RepairOrder
	err := tx.
		Where("id = ? AND status <> ?", id, entity.LifecycleDeleted).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

// FindDetail 读取维修单及全部子实体
func (r *OrderRepository) FindDetail(ctx context.Context, id string) (*entity.RepairOrder, error) {
	var order entity.RepairOrder
	err := r.db.WithContext(ctx).
		Preload("OrderStatus").
		Preload("PhoneCategory").
		Preload("Admins.Admin").
		Preload("InitialProblems.ProblemCategory").
		Preload("InitialProblems.Parts.Part").
		Preload("FinalProblems.ProblemCategory").
		Preload("Comments").
		Preload("Attachments").
		Preload("Pickup").
		Preload("Delivery").
		Preload("RentalPhones").
		Preload("Payments").
		Where("id = ? AND status <> ?", id, entity.LifecycleDeleted).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

// UpdateFields 事务内更新维修单标量字段
func (r *OrderRepository) UpdateFields(tx *gorm.DB, id string, fields map[string]interface{}) error {
	return tx.Model(&entity.RepairOrder{}).Where("id = ?", id).Updates(fields).Error
}

// ListByBranchStatuses 按网点+状态集合查询看板页（回源查询）。
// 一次查询覆盖全部状态列，每个状态列内独立分页（窗口函数取每列第 page 页）
func (r *OrderRepository) ListByBranchStatuses(ctx context.Context, branchID string, statusIDs []string, sortField, sortOrder string, page, pageSize int) ([]entity.RepairOrder, error) {
	if len(statusIDs) == 0 {
		return nil, nil
	}
	from := (page-1)*pageSize + 1
	to := page * pageSize

	sub := r.db.WithContext(ctx).
		Model(&entity.RepairOrder{}).
		Select(fmt.Sprintf("id, ROW_NUMBER() OVER (PARTITION BY status_id ORDER BY %s %s) AS rn", sortField, sortOrder)).
		Where("branch_id = ? AND status_id IN ? AND status <> ?", branchID, statusIDs, entity.LifecycleDeleted)

	var ids []string
	err := r.db.WithContext(ctx).
		Table("(?) AS ranked", sub).
		Where("rn BETWEEN ? AND ?", from, to).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	var orders []entity.RepairOrder
	err = r.db.WithContext(ctx).
		Preload("Admins").
		Preload("InitialProblems").
		Where("id IN ?", ids).
		Order(fmt.Sprintf("%s %s", sortField, sortOrder)).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// ListByBranch 网点全部未删除维修单（导出用）
func (r *OrderRepository) ListByBranch(ctx context.Context, branchID string) ([]entity.RepairOrder, error) {
	var orders []entity.RepairOrder
	err := r.db.WithContext(ctx).
		Preload("OrderStatus").
		Preload("PhoneCategory").
		Where("branch_id = ? AND status <> ?", branchID, entity.LifecycleDeleted).
		Order("sort ASC").
		Find(&orders).Error
	return orders, err
}
