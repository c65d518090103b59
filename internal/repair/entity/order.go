package entity

import (
	"time"
)

// 维修单优先级
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// RepairOrder 维修单
type RepairOrder struct {
	ID              string    `json:"id" gorm:"primaryKey;size:32"`
	BranchID        string    `json:"branch_id" gorm:"size:32;not null;index"`
	StatusID        string    `json:"status_id" gorm:"size:32;not null;index"`
	Sort            int       `json:"sort" gorm:"not null"`
	PhoneCategoryID string    `json:"phone_category_id" gorm:"size:32;not null"`
	CustomerName    string    `json:"customer_name" gorm:"size:128"`
	CustomerPhone   string    `json:"customer_phone" gorm:"size:32"`
	IMEI            string    `json:"imei" gorm:"size:32"`
	Priority        string    `json:"priority" gorm:"size:16;not null;default:medium"`
	IsActive        bool      `json:"is_active" gorm:"not null;default:true"`
	Status          string    `json:"status" gorm:"size:16;not null;default:open"`
	CreatedBy       string    `json:"created_by" gorm:"size:32;not null"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	// 关联
	Branch          *Branch            `json:"branch,omitempty" gorm:"foreignKey:BranchID"`
	OrderStatus     *RepairOrderStatus `json:"order_status,omitempty" gorm:"foreignKey:StatusID"`
	PhoneCategory   *PhoneCategory     `json:"phone_category,omitempty" gorm:"foreignKey:PhoneCategoryID"`
	Admins          []OrderAdmin       `json:"admins,omitempty" gorm:"foreignKey:RepairOrderID"`
	InitialProblems []InitialProblem   `json:"initial_problems,omitempty" gorm:"foreignKey:RepairOrderID"`
	FinalProblems   []FinalProblem     `json:"final_problems,omitempty" gorm:"foreignKey:RepairOrderID"`
	Comments        []Comment          `json:"comments,omitempty" gorm:"foreignKey:RepairOrderID"`
	Attachments     []Attachment       `json:"attachments,omitempty" gorm:"foreignKey:RepairOrderID"`
	Pickup          *Pickup            `json:"pickup,omitempty" gorm:"foreignKey:RepairOrderID"`
	Delivery        *Delivery          `json:"delivery,omitempty" gorm:"foreignKey:RepairOrderID"`
	RentalPhones    []RentalPhone      `json:"rental_phones,omitempty" gorm:"foreignKey:RepairOrderID"`
	Payments        []Payment          `json:"payments,omitempty" gorm:"foreignKey:RepairOrderID"`
}

func (RepairOrder) TableName() string {
	return "repair_orders"
}

// OrderAdmin 维修单-负责管理员关联
type OrderAdmin struct {
	ID            string    `json:"id" gorm:"primaryKey;size:32"`
	RepairOrderID string    `json:"repair_order_id" gorm:"size:32;not null;uniqueIndex:idx_order_admin"`
	AdminID       string    `json:"admin_id" gorm:"size:32;not null;uniqueIndex:idx_order_admin"`
	AssignedBy    string    `json:"assigned_by" gorm:"size:32;not null"`
	CreatedAt     time.Time `json:"created_at"`

	Admin *Admin `json:"admin,omitempty" gorm:"foreignKey:AdminID"`
}

func (OrderAdmin) TableName() string {
	return "repair_order_admins"
}

// Comment 维修单备注
type Comment struct {
	ID            string    `json:"id" gorm:"primaryKey;size:32"`
	RepairOrderID string    `json:"repair_order_id" gorm:"size:32;not null;index"`
	Text          string    `json:"text" gorm:"type:text;not null"`
	CreatedBy     string    `json:"created_by" gorm:"size:32;not null"`
	CreatedAt     time.Time `json:"created_at"`
}

func (Comment) TableName() string {
	return "repair_order_comments"
}

// Attachment 维修单附件（对象存储中的文件元数据）
type Attachment struct {
	ID            string    `json:"id" gorm:"primaryKey;size:32"`
	RepairOrderID string    `json:"repair_order_id" gorm:"size:32;not null;index"`
	FileName      string    `json:"file_name" gorm:"size:256;not null"`
	ObjectKey     string    `json:"object_key" gorm:"size:512;not null"`
	ContentType   string    `json:"content_type" gorm:"size:128"`
	Size          int64     `json:"size"`
	UploadedBy    string    `json:"uploaded_by" gorm:"size:32;not null"`
	CreatedAt     time.Time `json:"created_at"`
}

func (Attachment) TableName() string {
	return "repair_order_attachments"
}
