package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// InitialProblem 初检问题（接单时登记的故障）
type InitialProblem struct {
	ID                string          `json:"id" gorm:"primaryKey;size:32"`
	RepairOrderID     string          `json:"repair_order_id" gorm:"size:32;not null;index"`
	ProblemCategoryID string          `json:"problem_category_id" gorm:"size:32;not null"`
	Price             decimal.Decimal `json:"price" gorm:"type:numeric(14,2);not null;default:0"`
	EstimatedMinutes  int             `json:"estimated_minutes"`
	CreatedBy         string          `json:"created_by" gorm:"size:32;not null"`
	CreatedAt         time.Time       `json:"created_at"`

	// 关联
	ProblemCategory *ProblemCategory `json:"problem_category,omitempty" gorm:"foreignKey:ProblemCategoryID"`
	Parts           []ProblemPart    `json:"parts,omitempty" gorm:"foreignKey:InitialProblemID"`
}

func (InitialProblem) TableName() string {
	return "repair_order_initial_problems"
}

// ProblemPart 初检问题关联的配件
type ProblemPart struct {
	ID               string          `json:"id" gorm:"primaryKey;size:32"`
	InitialProblemID string          `json:"initial_problem_id" gorm:"size:32;not null;index"`
	PartID           string          `json:"part_id" gorm:"size:32;not null"`
	Quantity         int             `json:"quantity" gorm:"not null;default:1"`
	Price            decimal.Decimal `json:"price" gorm:"type:numeric(14,2);not null;default:0"`
	CreatedAt        time.Time       `json:"created_at"`

	Part *Part `json:"part,omitempty" gorm:"foreignKey:PartID"`
}

func (ProblemPart) TableName() string {
	return "repair_order_problem_parts"
}

// FinalProblem 终检问题（维修完成后确认的故障）
type FinalProblem struct {
	ID                string          `json:"id" gorm:"primaryKey;size:32"`
	RepairOrderID     string          `json:"repair_order_id" gorm:"size:32;not null;index"`
	ProblemCategoryID string          `json:"problem_category_id" gorm:"size:32;not null"`
	Price             decimal.Decimal `json:"price" gorm:"type:numeric(14,2);not null;default:0"`
	CreatedBy         string          `json:"created_by" gorm:"size:32;not null"`
	CreatedAt         time.Time       `json:"created_at"`

	ProblemCategory *ProblemCategory `json:"problem_category,omitempty" gorm:"foreignKey:ProblemCategoryID"`
}

func (FinalProblem) TableName() string {
	return "repair_order_final_problems"
}
