package entity

import (
	"time"
)

// 状态类型（终态标记）
const (
	StatusTypeNone      = "none"
	StatusTypeCompleted = "completed"
	StatusTypeCancelled = "cancelled"
)

// 软删除生命周期
const (
	LifecycleOpen    = "open"
	LifecycleDeleted = "deleted"
)

// RepairOrderStatus 维修单状态（网点内看板列）
type RepairOrderStatus struct {
	ID            string    `json:"id" gorm:"primaryKey;size:32"`
	BranchID      string    `json:"branch_id" gorm:"size:32;not null;index"`
	NameUz        string    `json:"name_uz" gorm:"size:128;not null"`
	NameRu        string    `json:"name_ru" gorm:"size:128"`
	NameEn        string    `json:"name_en" gorm:"size:128"`
	Color         string    `json:"color" gorm:"size:16"`
	Sort          int       `json:"sort" gorm:"not null"`
	Type          string    `json:"type" gorm:"size:16;not null;default:none"`
	CanAddPayment bool      `json:"can_add_payment" gorm:"not null;default:false"`
	IsProtected   bool      `json:"is_protected" gorm:"not null;default:false"`
	CanUserView   bool      `json:"can_user_view" gorm:"not null;default:true"`
	IsActive      bool      `json:"is_active" gorm:"not null;default:true"`
	Status        string    `json:"status" gorm:"size:16;not null;default:open"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	// 关联
	Branch      *Branch            `json:"branch,omitempty" gorm:"foreignKey:BranchID"`
	Permissions []StatusPermission `json:"permissions,omitempty" gorm:"foreignKey:StatusID"`
}

func (RepairOrderStatus) TableName() string {
	return "repair_order_statuses"
}

// StatusPermission (角色, 状态) 权限行。缺行即全部拒绝（default-deny）
type StatusPermission struct {
	ID                       string    `json:"id" gorm:"primaryKey;size:32"`
	RoleID                   string    `json:"role_id" gorm:"size:32;not null;uniqueIndex:idx_role_status"`
	StatusID                 string    `json:"status_id" gorm:"size:32;not null;uniqueIndex:idx_role_status"`
	CanView                  bool      `json:"can_view" gorm:"not null;default:false"`
	CanAdd                   bool      `json:"can_add" gorm:"not null;default:false"`
	CanUpdate                bool      `json:"can_update" gorm:"not null;default:false"`
	CanAssignAdmin           bool      `json:"can_assign_admin" gorm:"not null;default:false"`
	CanComment               bool      `json:"can_comment" gorm:"not null;default:false"`
	CanPickupManage          bool      `json:"can_pickup_manage" gorm:"not null;default:false"`
	CanDeliveryManage        bool      `json:"can_delivery_manage" gorm:"not null;default:false"`
	CanChangeInitialProblems bool      `json:"can_change_initial_problems" gorm:"not null;default:false"`
	CanChangeFinalProblems   bool      `json:"can_change_final_problems" gorm:"not null;default:false"`
	CreatedAt                time.Time `json:"created_at"`
	UpdatedAt                time.Time `json:"updated_at"`
}

func (StatusPermission) TableName() string {
	return "repair_order_status_permissions"
}
