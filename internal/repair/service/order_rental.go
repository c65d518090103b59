package service

import (
	"context"
	"errors"
	"time"

	"github.com/bitfantasy/repairhub/internal/repair/entity"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// UpdateRentalPhoneInput 租借机可变字段。设备本身不可改，退换走先取消再新建
type UpdateRentalPhoneInput struct {
	DailyPrice *decimal.Decimal `json:"daily_price"`
	Currency   *string          `json:"currency"`
	Notes      *string          `json:"notes"`
}

func findActiveRental(tx *gorm.DB, orderID string) (*entity.RentalPhone, error) {
	var rental entity.RentalPhone
	err := tx.Where("repair_order_id = ? AND status = ?", orderID, entity.RentalStatusActive).
		First(&rental).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rental, nil
}

// updateRentalPhone 编排器内的租借机片段：没有生效中的租借就新建，
// 有的话只允许动价格/币种/备注，换设备一律拒绝
func (s *OrderService) updateRentalPhone(ctx context.Context, tx *gorm.DB, order *entity.RepairOrder, input *RentalPhoneInput, actor Actor) error {
	if input == nil {
		return nil
	}
	if err := s.perms.Authorize(ctx, actor.RoleIDs, order.BranchID, order.StatusID, CapUpdate); err != nil {
		return err
	}

	active, err := findActiveRental(tx, order.ID)
	if err != nil {
		return err
	}
	if active == nil {
		return s.insertRental(tx, order.ID, input, actor)
	}

	if input.DeviceName != active.DeviceName || (input.DeviceIMEI != "" && input.DeviceIMEI != active.DeviceIMEI) {
		return ValidationError("rental_phone.device_name", "rented device cannot be changed, cancel the rental first")
	}

	return s.applyRentalUpdate(tx, order.ID, active, &UpdateRentalPhoneInput{
		DailyPrice: &input.DailyPrice,
		Currency:   strPtrOrNil(input.Currency),
		Notes:      &input.Notes,
	}, actor)
}

func (s *OrderService) insertRental(tx *gorm.DB, orderID string, input *RentalPhoneInput, actor Actor) error {
	currency := input.Currency
	if currency == "" {
		currency = "UZS"
	}
	row := &entity.RentalPhone{
		ID:            uuid.New().String()[:32],
		RepairOrderID: orderID,
		DeviceName:    input.DeviceName,
		DeviceIMEI:    input.DeviceIMEI,
		DailyPrice:    input.DailyPrice,
		Currency:      currency,
		Notes:         input.Notes,
		Status:        entity.RentalStatusActive,
		CreatedBy:     actor.ID,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if err := tx.Create(row).Error; err != nil {
		return err
	}
	return s.audit.Log(tx, orderID, "rental_phone_created", map[string]string{
		"rental_id":   row.ID,
		"device_name": row.DeviceName,
	}, actor.ID)
}

func (s *OrderService) applyRentalUpdate(tx *gorm.DB, orderID string, active *entity.RentalPhone, input *UpdateRentalPhoneInput, actor Actor) error {
	fields := map[string]interface{}{}
	if input.DailyPrice != nil && !input.DailyPrice.Equal(active.DailyPrice) {
		fields["daily_price"] = *input.DailyPrice
		if err := s.audit.LogIfChanged(tx, orderID, "rental_phone.daily_price", active.DailyPrice.String(), input.DailyPrice.String(), actor.ID); err != nil {
			return err
		}
	}
	if input.Currency != nil && *input.Currency != active.Currency {
		fields["currency"] = *input.Currency
		if err := s.audit.LogIfChanged(tx, orderID, "rental_phone.currency", active.Currency, *input.Currency, actor.ID); err != nil {
			return err
		}
	}
	if input.Notes != nil && *input.Notes != active.Notes {
		fields["notes"] = *input.Notes
		if err := s.audit.LogIfChanged(tx, orderID, "rental_phone.notes", active.Notes, *input.Notes, actor.ID); err != nil {
			return err
		}
	}
	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = time.Now()
	return tx.Model(&entity.RentalPhone{}).Where("id = ?", active.ID).Updates(fields).Error
}

// CreateRentalPhone 窄接口：登记租借机。同一单同时只能有一台生效
func (s *OrderService) CreateRentalPhone(ctx context.Context, actor Actor, orderID string, input RentalPhoneInput) error {
	if input.DeviceName == "" {
		return ValidationError("device_name", "device name is required")
	}
	var branchID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.orderRepo.FindByIDTx(tx, orderID)
		if err != nil {
			return err
		}
		branchID = order.BranchID
		if err := s.perms.Authorize(ctx, actor.RoleIDs, order.BranchID, order.StatusID, CapUpdate); err != nil {
			return err
		}
		active, err := findActiveRental(tx, order.ID)
		if err != nil {
			return err
		}
		if active != nil {
			return ConflictError("an active rental phone already exists for this order")
		}
		return s.insertRental(tx, order.ID, &input, actor)
	})
	if err != nil {
		return wrapStorage(err)
	}
	s.cache.InvalidateBranch(ctx, branchID)
	return nil
}

// UpdateRentalPhone 窄接口：只改价格/币种/备注
func (s *OrderService) UpdateRentalPhone(ctx context.Context, actor Actor, orderID string, input UpdateRentalPhoneInput) error {
	var branchID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.orderRepo.FindByIDTx(tx, orderID)
		if err != nil {
			return err
		}
		branchID = order.BranchID
		if err := s.perms.Authorize(ctx, actor.RoleIDs, order.BranchID, order.StatusID, CapUpdate); err != nil {
			return err
		}
		active, err := findActiveRental(tx, order.ID)
		if err != nil {
			return err
		}
		if active == nil {
			return NotFoundError("no active rental phone for this order")
		}
		return s.applyRentalUpdate(tx, order.ID, active, &input, actor)
	})
	if err != nil {
		return wrapStorage(err)
	}
	s.cache.InvalidateBranch(ctx, branchID)
	return nil
}

// CancelRentalPhone 窄接口：归还/取消，Active → Cancelled，从不物理删除
func (s *OrderService) CancelRentalPhone(ctx context.Context, actor Actor, orderID string) error {
	var branchID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.orderRepo.FindByIDTx(tx, orderID)
		if err != nil {
			return err
		}
		branchID = order.BranchID
		if err := s.perms.Authorize(ctx, actor.RoleIDs, order.BranchID, order.StatusID, CapUpdate); err != nil {
			return err
		}
		active, err := findActiveRental(tx, order.ID)
		if err != nil {
			return err
		}
		if active == nil {
			return NotFoundError("no active rental phone for this order")
		}
		err = tx.Model(&entity.RentalPhone{}).Where("id = ?", active.ID).Updates(map[string]interface{}{
			"status":     entity.RentalStatusCancelled,
			"updated_at": time.Now(),
		}).Error
		if err != nil {
			return err
		}
		return s.audit.LogIfChanged(tx, order.ID, "rental_phone.status",
			entity.RentalStatusActive, entity.RentalStatusCancelled, actor.ID)
	})
	if err != nil {
		return wrapStorage(err)
	}
	s.cache.InvalidateBranch(ctx, branchID)
	return nil
}

func strPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
