package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/repairhub/internal/repair/entity"
	"github.com/bitfantasy/repairhub/internal/repair/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// StatusService 状态列管理：建列/改列/删列/排序，以及 (角色, 状态) 权限行维护
type StatusService struct {
	db         *gorm.DB
	statusRepo *repository.StatusRepository
	permRepo   *repository.PermissionRepository
	orderRepo  *repository.OrderRepository
	perms      *PermissionService
	logger     *zap.Logger
}

func NewStatusService(
	repos *repository.Repositories,
	db *gorm.DB,
	perms *PermissionService,
	logger *zap.Logger,
) *StatusService {
	return &StatusService{
		db:         db,
		statusRepo: repos.Status,
		permRepo:   repos.Permission,
		orderRepo:  repos.Order,
		perms:      perms,
		logger:     logger,
	}
}

// ListByBranch 网点看板列
func (s *StatusService) ListByBranch(ctx context.Context, branchID string) ([]entity.RepairOrderStatus, error) {
	statuses, err := s.statusRepo.ListByBranch(ctx, branchID)
	if err != nil {
		return nil, wrapStorage(err)
	}
	return statuses, nil
}

// CreateStatusRequest 建列请求
type CreateStatusRequest struct {
	BranchID      string `json:"branch_id" binding:"required"`
	NameUz        string `json:"name_uz" binding:"required"`
	NameRu        string `json:"name_ru"`
	NameEn        string `json:"name_en"`
	Color         string `json:"color"`
	Type          string `json:"type"`
	CanAddPayment bool   `json:"can_add_payment"`
	CanUserView   bool   `json:"can_user_view"`
}

// CreateStatus 新列追加到网点看板末尾
func (s *StatusService) CreateStatus(ctx context.Context, actorID string, req *CreateStatusRequest) (*entity.RepairOrderStatus, error) {
	if req.Type == "" {
		req.Type = entity.StatusTypeNone
	}
	switch req.Type {
	case entity.StatusTypeNone, entity.StatusTypeCompleted, entity.StatusTypeCancelled:
	default:
		return nil, ValidationError("type", "type must be one of none, completed, cancelled")
	}

	status := &entity.RepairOrderStatus{
		ID:            uuid.New().String()[:32],
		BranchID:      req.BranchID,
		NameUz:        req.NameUz,
		NameRu:        req.NameRu,
		NameEn:        req.NameEn,
		Color:         req.Color,
		Type:          req.Type,
		CanAddPayment: req.CanAddPayment,
		CanUserView:   req.CanUserView,
		IsActive:      true,
		Status:        entity.LifecycleOpen,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sort, err := repository.NextSortValue(tx, repository.StatusBucket(req.BranchID))
		if err != nil {
			return err
		}
		status.Sort = sort
		return s.statusRepo.Create(tx, status)
	})
	if err != nil {
		return nil, wrapStorage(err)
	}
	return status, nil
}

// UpdateStatusRequest 改列请求。指针为 nil 的字段不动
type UpdateStatusRequest struct {
	NameUz        *string `json:"name_uz"`
	NameRu        *string `json:"name_ru"`
	NameEn        *string `json:"name_en"`
	Color         *string `json:"color"`
	Type          *string `json:"type"`
	CanAddPayment *bool   `json:"can_add_payment"`
	CanUserView   *bool   `json:"can_user_view"`
	IsActive      *bool   `json:"is_active"`
}

// UpdateStatus 受保护的列不允许结构性变更（type、启停、收款开关），
// 名称和颜色随便改
func (s *StatusService) UpdateStatus(ctx context.Context, statusID string, req *UpdateStatusRequest) (*entity.RepairOrderStatus, error) {
	status, err := s.statusRepo.FindByID(ctx, statusID)
	if err != nil {
		return nil, wrapStorage(err)
	}

	if status.IsProtected && (req.Type != nil || req.CanAddPayment != nil || req.IsActive != nil) {
		return nil, ConflictError("protected status cannot be structurally altered")
	}

	fields := map[string]interface{}{}
	if req.NameUz != nil {
		fields["name_uz"] = *req.NameUz
	}
	if req.NameRu != nil {
		fields["name_ru"] = *req.NameRu
	}
	if req.NameEn != nil {
		fields["name_en"] = *req.NameEn
	}
	if req.Color != nil {
		fields["color"] = *req.Color
	}
	if req.Type != nil {
		switch *req.Type {
		case entity.StatusTypeNone, entity.StatusTypeCompleted, entity.StatusTypeCancelled:
		default:
			return nil, ValidationError("type", "type must be one of none, completed, cancelled")
		}
		fields["type"] = *req.Type
	}
	if req.CanAddPayment != nil {
		fields["can_add_payment"] = *req.CanAddPayment
	}
	if req.CanUserView != nil {
		fields["can_user_view"] = *req.CanUserView
	}
	if req.IsActive != nil {
		fields["is_active"] = *req.IsActive
	}
	if len(fields) == 0 {
		return status, nil
	}
	fields["updated_at"] = time.Now()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.statusRepo.UpdateFields(tx, statusID, fields)
	})
	if err != nil {
		return nil, wrapStorage(err)
	}
	return s.statusRepo.FindByID(ctx, statusID)
}

// ReorderStatus 列在看板内移动
func (s *StatusService) ReorderStatus(ctx context.Context, statusID string, targetSort int) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		status, err := s.statusRepo.FindByIDTx(tx, statusID)
		if err != nil {
			return err
		}
		size, err := repository.BucketSize(tx, repository.StatusBucket(status.BranchID))
		if err != nil {
			return err
		}
		if targetSort < 1 || targetSort > size {
			return ValidationError("sort", fmt.Sprintf("sort must be between 1 and %d", size))
		}
		return repository.Reorder(tx, repository.StatusBucket(status.BranchID), status.ID, status.Sort, targetSort)
	})
	return wrapStorage(err)
}

// SoftDeleteStatus 软删除列。受保护的列不能删；列下还有未删除维修单时拒绝
func (s *StatusService) SoftDeleteStatus(ctx context.Context, statusID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		status, err := s.statusRepo.FindByIDTx(tx, statusID)
		if err != nil {
			return err
		}
		if status.IsProtected {
			return ConflictError("protected status cannot be deleted")
		}

		var orderCount int64
		err = tx.Model(&entity.RepairOrder{}).
			Where("status_id = ? AND status <> ?", statusID, entity.LifecycleDeleted).
			Count(&orderCount).Error
		if err != nil {
			return err
		}
		if orderCount > 0 {
			return ConflictError("status still has repair orders, move them first")
		}

		if err := s.statusRepo.UpdateFields(tx, statusID, map[string]interface{}{
			"status":     entity.LifecycleDeleted,
			"is_active":  false,
			"updated_at": time.Now(),
		}); err != nil {
			return err
		}
		return repository.CloseGap(tx, repository.StatusBucket(status.BranchID), status.Sort)
	})
	return wrapStorage(err)
}

// PermissionInput (角色, 状态) 的能力授权输入
type PermissionInput struct {
	RoleID                   string `json:"role_id" binding:"required"`
	CanView                  bool   `json:"can_view"`
	CanAdd                   bool   `json:"can_add"`
	CanUpdate                bool   `json:"can_update"`
	CanAssignAdmin           bool   `json:"can_assign_admin"`
	CanComment               bool   `json:"can_comment"`
	CanPickupManage          bool   `json:"can_pickup_manage"`
	CanDeliveryManage        bool   `json:"can_delivery_manage"`
	CanChangeInitialProblems bool   `json:"can_change_initial_problems"`
	CanChangeFinalProblems   bool   `json:"can_change_final_problems"`
}

// SetPermission 覆盖写 (角色, 状态) 权限行并同步清权限缓存。
// 缓存清不掉时整个调用失败，调用方重试——不允许旧授权残留
func (s *StatusService) SetPermission(ctx context.Context, statusID string, input *PermissionInput) error {
	if _, err := s.statusRepo.FindByID(ctx, statusID); err != nil {
		return wrapStorage(err)
	}
	perm := &entity.StatusPermission{
		RoleID:                   input.RoleID,
		StatusID:                 statusID,
		CanView:                  input.CanView,
		CanAdd:                   input.CanAdd,
		CanUpdate:                input.CanUpdate,
		CanAssignAdmin:           input.CanAssignAdmin,
		CanComment:               input.CanComment,
		CanPickupManage:          input.CanPickupManage,
		CanDeliveryManage:        input.CanDeliveryManage,
		CanChangeInitialProblems: input.CanChangeInitialProblems,
		CanChangeFinalProblems:   input.CanChangeFinalProblems,
	}
	if err := s.permRepo.Upsert(ctx, perm); err != nil {
		return wrapStorage(err)
	}
	return s.perms.Invalidate(ctx)
}

// DeletePermission 撤销 (角色, 状态) 的全部能力
func (s *StatusService) DeletePermission(ctx context.Context, statusID, roleID string) error {
	if err := s.permRepo.DeleteByRoleAndStatus(ctx, roleID, statusID); err != nil {
		return wrapStorage(err)
	}
	return s.perms.Invalidate(ctx)
}

// ListPermissions 状态下全部权限行
func (s *StatusService) ListPermissions(ctx context.Context, statusID string) ([]entity.StatusPermission, error) {
	rows, err := s.permRepo.ListByStatus(ctx, statusID)
	if err != nil {
		return nil, wrapStorage(err)
	}
	return rows, nil
}
