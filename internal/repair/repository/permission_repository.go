package repository

import (
	"context"
	"time"

	"github.com/bitfantasy/repairhub/internal/repair/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PermissionRepository 状态权限仓库
type PermissionRepository struct {
	db *gorm.DB
}

func NewPermissionRepository(db *gorm.DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

// FindByRolesAndStatus (角色集合, 状态) 的全部权限行。没有行即 default-deny
func (r *PermissionRepository) FindByRolesAndStatus(ctx context.Context, roleIDs []string, statusID string) ([]entity.StatusPermission, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}
	var rows []entity.StatusPermission
	err := r.db.WithContext(ctx).
		Where("role_id IN ? AND status_id = ?", roleIDs, statusID).
		Find(&rows).Error
	return rows, err
}

// ListByStatus 状态下全部角色的权限行
func (r *PermissionRepository) ListByStatus(ctx context.Context, statusID string) ([]entity.StatusPermission, error) {
	var rows []entity.StatusPermission
	err := r.db.WithContext(ctx).
		Where("status_id = ?", statusID).
		Find(&rows).Error
	return rows, err
}

// Upsert 按 (role_id, status_id) 覆盖写入权限行
func (r *PermissionRepository) Upsert(ctx context.Context, perm *entity.StatusPermission) error {
	if perm.ID == "" {
		perm.ID = uuid.New().String()[:32]
	}
	now := time.Now()
	if perm.CreatedAt.IsZero() {
		perm.CreatedAt = now
	}
	perm.UpdatedAt = now
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "role_id"}, {Name: "status_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"can_view", "can_add", "can_update", "can_assign_admin", "can_comment",
				"can_pickup_manage", "can_delivery_manage",
				"can_change_initial_problems", "can_change_final_problems", "updated_at",
			}),
		}).
		Create(perm).Error
}

// DeleteByRoleAndStatus 删除权限行（回收该角色在该状态下的全部能力）
func (r *PermissionRepository) DeleteByRoleAndStatus(ctx context.Context, roleID, statusID string) error {
	return r.db.WithContext(ctx).
		Where("role_id = ? AND status_id = ?", roleID, statusID).
		Delete(&entity.StatusPermission{}).Error
}
