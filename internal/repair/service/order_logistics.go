package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/repairhub/internal/repair/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// logisticsSnapshot 取件/交付的规范化快照（no-op 判定与审计日志共用）
type logisticsSnapshot struct {
	CourierID   *string    `json:"courier_id"`
	Address     string     `json:"address"`
	Lat         *float64   `json:"lat"`
	Lng         *float64   `json:"lng"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	Price       string     `json:"price"`
	Notes       string     `json:"notes"`
}

// updatePickup 取件信息整条覆盖（delete-then-insert），内容没变则零写入
func (s *OrderService) updatePickup(ctx context.Context, tx *gorm.DB, order *entity.RepairOrder, input *PickupInput, actor Actor) error {
	if input == nil {
		return nil
	}
	if err := s.perms.Authorize(ctx, actor.RoleIDs, order.BranchID, order.StatusID, CapPickupManage); err != nil {
		return err
	}
	if input.Address == "" {
		return ValidationError("pickup.address", "pickup address is required")
	}

	var current entity.Pickup
	var oldSnap *logisticsSnapshot
	err := tx.Where("repair_order_id = ?", order.ID).First(&current).Error
	if err == nil {
		oldSnap = &logisticsSnapshot{
			CourierID:   current.CourierID,
			Address:     current.Address,
			Lat:         current.Lat,
			Lng:         current.Lng,
			ScheduledAt: current.ScheduledAt,
			Price:       current.Price.String(),
			Notes:       current.Notes,
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	newSnap := &logisticsSnapshot{
		CourierID:   input.CourierID,
		Address:     input.Address,
		Lat:         input.Lat,
		Lng:         input.Lng,
		ScheduledAt: input.ScheduledAt,
		Price:       input.Price.String(),
		Notes:       input.Notes,
	}

	oldSer, _ := serializeValue(oldSnap)
	newSer, _ := serializeValue(newSnap)
	if serializedEqual(oldSer, newSer) {
		return nil
	}

	if oldSnap != nil {
		if err := tx.Where("repair_order_id = ?", order.ID).Delete(&entity.Pickup{}).Error; err != nil {
			return fmt.Errorf("delete old pickup: %w", err)
		}
	}
	row := &entity.Pickup{
		ID:            uuid.New().String()[:32],
		RepairOrderID: order.ID,
		CourierID:     input.CourierID,
		Address:       input.Address,
		Lat:           input.Lat,
		Lng:           input.Lng,
		ScheduledAt:   input.ScheduledAt,
		Price:         input.Price,
		Notes:         input.Notes,
		CreatedBy:     actor.ID,
		CreatedAt:     time.Now(),
	}
	if err := tx.Create(row).Error; err != nil {
		return fmt.Errorf("insert pickup: %w", err)
	}

	return s.audit.LogIfChanged(tx, order.ID, "pickup", oldSnap, newSnap, actor.ID)
}

// updateDelivery 交付信息整条覆盖，逻辑与取件对称
func (s *OrderService) updateDelivery(ctx context.Context, tx *gorm.DB, order *entity.RepairOrder, input *DeliveryInput, actor Actor) error {
	if input == nil {
		return nil
	}
	if err := s.perms.Authorize(ctx, actor.RoleIDs, order.BranchID, order.StatusID, CapDeliveryManage); err != nil {
		return err
	}
	if input.Address == "" {
		return ValidationError("delivery.address", "delivery address is required")
	}

	var current entity.Delivery
	var oldSnap *logisticsSnapshot
	err := tx.Where("repair_order_id = ?", order.ID).First(&current).Error
	if err == nil {
		oldSnap = &logisticsSnapshot{
			CourierID:   current.CourierID,
			Address:     current.Address,
			Lat:         current.Lat,
			Lng:         current.Lng,
			ScheduledAt: current.ScheduledAt,
			Price:       current.Price.String(),
			Notes:       current.Notes,
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	newSnap := &logisticsSnapshot{
		CourierID:   input.CourierID,
		Address:     input.Address,
		Lat:         input.Lat,
		Lng:         input.Lng,
		ScheduledAt: input.ScheduledAt,
		Price:       input.Price.String(),
		Notes:       input.Notes,
	}

	oldSer, _ := serializeValue(oldSnap)
	newSer, _ := serializeValue(newSnap)
	if serializedEqual(oldSer, newSer) {
		return nil
	}

	if oldSnap != nil {
		if err := tx.Where("repair_order_id = ?", order.ID).Delete(&entity.Delivery{}).Error; err != nil {
			return fmt.Errorf("delete old delivery: %w", err)
		}
	}
	row := &entity.Delivery{
		ID:            uuid.New().String()[:32],
		RepairOrderID: order.ID,
		CourierID:     input.CourierID,
		Address:       input.Address,
		Lat:           input.Lat,
		Lng:           input.Lng,
		ScheduledAt:   input.ScheduledAt,
		Price:         input.Price,
		Notes:         input.Notes,
		CreatedBy:     actor.ID,
		CreatedAt:     time.Now(),
	}
	if err := tx.Create(row).Error; err != nil {
		return fmt.Errorf("insert delivery: %w", err)
	}

	return s.audit.LogIfChanged(tx, order.ID, "delivery", oldSnap, newSnap, actor.ID)
}

// SetPickup 窄接口：单独改取件信息
func (s *OrderService) SetPickup(ctx context.Context, actor Actor, orderID string, input PickupInput) error {
	var branchID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.orderRepo.FindByIDTx(tx, orderID)
		if err != nil {
			return err
		}
		branchID = order.BranchID
		return s.updatePickup(ctx, tx, order, &input, actor)
	})
	if err != nil {
		return wrapStorage(err)
	}
	s.cache.InvalidateBranch(ctx, branchID)
	return nil
}

// SetDelivery 窄接口：单独改交付信息
func (s *OrderService) SetDelivery(ctx context.Context, actor Actor, orderID string, input DeliveryInput) error {
	var branchID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.orderRepo.FindByIDTx(tx, orderID)
		if err != nil {
			return err
		}
		branchID = order.BranchID
		return s.updateDelivery(ctx, tx, order, &input, actor)
	})
	if err != nil {
		return wrapStorage(err)
	}
	s.cache.InvalidateBranch(ctx, branchID)
	return nil
}
