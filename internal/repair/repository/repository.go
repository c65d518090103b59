package repository

import (
	"errors"

	"gorm.io/gorm"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// Repositories 仓库集合
type Repositories struct {
	Admin      *AdminRepository
	Status     *StatusRepository
	Permission *PermissionRepository
	Order      *OrderRepository
	History    *HistoryRepository
	Reference  *ReferenceRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Admin:      NewAdminRepository(db),
		Status:     NewStatusRepository(db),
		Permission: NewPermissionRepository(db),
		Order:      NewOrderRepository(db),
		History:    NewHistoryRepository(db),
		Reference:  NewReferenceRepository(db),
	}
}
