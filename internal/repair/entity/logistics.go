package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pickup 上门取件信息（每单至多一条，整条覆盖写入）
type Pickup struct {
	ID            string          `json:"id" gorm:"primaryKey;size:32"`
	RepairOrderID string          `json:"repair_order_id" gorm:"size:32;not null;uniqueIndex"`
	CourierID     *string         `json:"courier_id" gorm:"size:32"`
	Address       string          `json:"address" gorm:"size:256;not null"`
	Lat           *float64        `json:"lat"`
	Lng           *float64        `json:"lng"`
	ScheduledAt   *time.Time      `json:"scheduled_at"`
	Price         decimal.Decimal `json:"price" gorm:"type:numeric(14,2);not null;default:0"`
	Notes         string          `json:"notes" gorm:"type:text"`
	CreatedBy     string          `json:"created_by" gorm:"size:32;not null"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (Pickup) TableName() string {
	return "repair_order_pickups"
}

// Delivery 送回交付信息（每单至多一条，整条覆盖写入）
type Delivery struct {
	ID            string          `json:"id" gorm:"primaryKey;size:32"`
	RepairOrderID string          `json:"repair_order_id" gorm:"size:32;not null;uniqueIndex"`
	CourierID     *string         `json:"courier_id" gorm:"size:32"`
	Address       string          `json:"address" gorm:"size:256;not null"`
	Lat           *float64        `json:"lat"`
	Lng           *float64        `json:"lng"`
	ScheduledAt   *time.Time      `json:"scheduled_at"`
	Price         decimal.Decimal `json:"price" gorm:"type:numeric(14,2);not null;default:0"`
	Notes         string          `json:"notes" gorm:"type:text"`
	CreatedBy     string          `json:"created_by" gorm:"size:32;not null"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (Delivery) TableName() string {
	return "repair_order_deliveries"
}

// 租借机状态
const (
	RentalStatusActive    = "active"
	RentalStatusCancelled = "cancelled"
)

// RentalPhone 租借机（维修期间借给客户的备用机）
type RentalPhone struct {
	ID            string          `json:"id" gorm:"primaryKey;size:32"`
	RepairOrderID string          `json:"repair_order_id" gorm:"size:32;not null;index"`
	DeviceName    string          `json:"device_name" gorm:"size:128;not null"`
	DeviceIMEI    string          `json:"device_imei" gorm:"size:32"`
	DailyPrice    decimal.Decimal `json:"daily_price" gorm:"type:numeric(14,2);not null;default:0"`
	Currency      string          `json:"currency" gorm:"size:8;not null;default:UZS"`
	Notes         string          `json:"notes" gorm:"type:text"`
	Status        string          `json:"status" gorm:"size:16;not null;default:active"`
	CreatedBy     string          `json:"created_by" gorm:"size:32;not null"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (RentalPhone) TableName() string {
	return "repair_order_rental_phones"
}

// Payment 维修单收款记录
type Payment struct {
	ID            string          `json:"id" gorm:"primaryKey;size:32"`
	RepairOrderID string          `json:"repair_order_id" gorm:"size:32;not null;index"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:numeric(14,2);not null"`
	Currency      string          `json:"currency" gorm:"size:8;not null;default:UZS"`
	Method        string          `json:"method" gorm:"size:16;not null;default:cash"`
	Notes         string          `json:"notes" gorm:"type:text"`
	CreatedBy     string          `json:"created_by" gorm:"size:32;not null"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (Payment) TableName() string {
	return "repair_order_payments"
}
