package entity

import (
	"time"
)

// Branch 维修网点
type Branch struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	NameUz    string    `json:"name_uz" gorm:"size:128;not null"`
	NameRu    string    `json:"name_ru" gorm:"size:128"`
	NameEn    string    `json:"name_en" gorm:"size:128"`
	Address   string    `json:"address" gorm:"size:256"`
	Phone     string    `json:"phone" gorm:"size:32"`
	IsActive  bool      `json:"is_active" gorm:"not null;default:true"`
	Status    string    `json:"status" gorm:"size:16;not null;default:open"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Branch) TableName() string {
	return "branches"
}

// Admin 管理员（维修网点员工）
type Admin struct {
	ID           string     `json:"id" gorm:"primaryKey;size:32"`
	BranchID     *string    `json:"branch_id" gorm:"size:32;index"`
	Name         string     `json:"name" gorm:"size:128;not null"`
	Phone        string     `json:"phone" gorm:"size:32;uniqueIndex"`
	PasswordHash string     `json:"-" gorm:"size:128;not null"`
	IsActive     bool       `json:"is_active" gorm:"not null;default:true"`
	Status       string     `json:"status" gorm:"size:16;not null;default:open"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	// 关联
	Branch *Branch `json:"branch,omitempty" gorm:"foreignKey:BranchID"`
	Roles  []Role  `json:"roles,omitempty" gorm:"many2many:admin_roles;"`
}

func (Admin) TableName() string {
	return "admins"
}

// Role 角色
type Role struct {
	ID          string    `json:"id" gorm:"primaryKey;size:32"`
	Code        string    `json:"code" gorm:"size:64;not null;uniqueIndex"`
	Name        string    `json:"name" gorm:"size:128;not null"`
	Description string    `json:"description" gorm:"type:text"`
	Status      string    `json:"status" gorm:"size:16;not null;default:active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Role) TableName() string {
	return "roles"
}

// AdminRole 管理员-角色关联
type AdminRole struct {
	AdminID   string    `json:"admin_id" gorm:"primaryKey;size:32"`
	RoleID    string    `json:"role_id" gorm:"primaryKey;size:32"`
	CreatedAt time.Time `json:"created_at"`
}

func (AdminRole) TableName() string {
	return "admin_roles"
}
