package entity

import (
	"time"
)

// ChangeHistory 维修单变更日志，只追加，不修改不删除
type ChangeHistory struct {
	ID            string    `json:"id" gorm:"primaryKey;size:32"`
	RepairOrderID string    `json:"repair_order_id" gorm:"size:32;not null;index:idx_history_order_time,priority:1"`
	Field         string    `json:"field" gorm:"size:64;not null"`
	OldValue      *string   `json:"old_value" gorm:"type:text"`
	NewValue      *string   `json:"new_value" gorm:"type:text"`
	ActorID       string    `json:"actor_id" gorm:"size:32;not null"`
	CreatedAt     time.Time `json:"created_at" gorm:"index:idx_history_order_time,priority:2"`
}

func (ChangeHistory) TableName() string {
	return "repair_order_change_histories"
}
