package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// PhoneCategory 手机型号分类（如 iPhone 15）
type PhoneCategory struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	Name      string    `json:"name" gorm:"size:128;not null"`
	Brand     string    `json:"brand" gorm:"size:64"`
	IsActive  bool      `json:"is_active" gorm:"not null;default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (PhoneCategory) TableName() string {
	return "phone_categories"
}

// ProblemCategory 故障分类树（parent_id 指向上级分类）
type ProblemCategory struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	ParentID  *string   `json:"parent_id" gorm:"size:32;index"`
	Name      string    `json:"name" gorm:"size:128;not null"`
	IsActive  bool      `json:"is_active" gorm:"not null;default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Parent *ProblemCategory `json:"parent,omitempty" gorm:"foreignKey:ParentID"`
}

func (ProblemCategory) TableName() string {
	return "problem_categories"
}

// Part 配件
type Part struct {
	ID        string          `json:"id" gorm:"primaryKey;size:32"`
	Code      string          `json:"code" gorm:"size:64;uniqueIndex"`
	Name      string          `json:"name" gorm:"size:128;not null"`
	Price     decimal.Decimal `json:"price" gorm:"type:numeric(14,2);not null;default:0"`
	IsActive  bool            `json:"is_active" gorm:"not null;default:true"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (Part) TableName() string {
	return "parts"
}

// PhoneProblemMapping 手机型号与故障分类的映射（只读参考数据）
// 映射到某个分类即同时放行其整棵子树
type PhoneProblemMapping struct {
	ID                string    `json:"id" gorm:"primaryKey;size:32"`
	PhoneCategoryID   string    `json:"phone_category_id" gorm:"size:32;not null;uniqueIndex:idx_phone_problem"`
	ProblemCategoryID string    `json:"problem_category_id" gorm:"size:32;not null;uniqueIndex:idx_phone_problem"`
	CreatedAt         time.Time `json:"created_at"`
}

func (PhoneProblemMapping) TableName() string {
	return "phone_problem_mappings"
}

// PartAssignment 配件与故障分类的适配关系（只读参考数据）
type PartAssignment struct {
	ID                string    `json:"id" gorm:"primaryKey;size:32"`
	PartID            string    `json:"part_id" gorm:"size:32;not null;uniqueIndex:idx_part_problem"`
	ProblemCategoryID string    `json:"problem_category_id" gorm:"size:32;not null;uniqueIndex:idx_part_problem"`
	CreatedAt         time.Time `json:"created_at"`
}

func (PartAssignment) TableName() string {
	return "part_assignments"
}
