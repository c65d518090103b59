package repository

import (
	"context"

	"github.com/bitfantasy/repairhub/internal/repair/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HistoryRepository 变更日志仓库（只追加）
type HistoryRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Create 事务内追加一条变更日志
func (r *HistoryRepository) Create(tx *gorm.DB, row *entity.ChangeHistory) error {
	if row.ID == "" {
		row.ID = uuid.New().String()[:32]
	}
	return tx.Create(row).Error
}

// ListByOrder 维修单变更日志，新的在前
func (r *HistoryRepository) ListByOrder(ctx context.Context, orderID string, page, pageSize int) ([]entity.ChangeHistory, int64, error) {
	var rows []entity.ChangeHistory
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.ChangeHistory{}).
		Where("repair_order_id = ?", orderID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&rows).Error

	return rows, total, err
}

// CountByOrder 维修单的日志条数
func (r *HistoryRepository) CountByOrder(ctx context.Context, orderID string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&entity.ChangeHistory{}).
		Where("repair_order_id = ?", orderID).
		Count(&total).Error
	return total, err
}
