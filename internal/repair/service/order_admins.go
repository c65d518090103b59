package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/bitfantasy/repairhub/internal/repair/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// updateAdmins 负责人集合更新：算出增删差集，只落差量，集合没变则零写入
func (s *OrderService) updateAdmins(ctx context.Context, tx *gorm.DB, order *entity.RepairOrder, adminIDs *[]string, actor Actor) error {
	if adminIDs == nil {
		return nil
	}
	if err := s.perms.Authorize(ctx, actor.RoleIDs, order.BranchID, order.StatusID, CapAssignAdmin); err != nil {
		return err
	}

	var current []entity.OrderAdmin
	if err := tx.Where("repair_order_id = ?", order.ID).Find(&current).Error; err != nil {
		return err
	}
	currentSet := make(map[string]bool, len(current))
	for _, a := range current {
		currentSet[a.AdminID] = true
	}

	desiredSet := make(map[string]bool, len(*adminIDs))
	for _, id := range *adminIDs {
		desiredSet[id] = true
	}

	var toAdd, toRemove []string
	for id := range desiredSet {
		if !currentSet[id] {
			toAdd = append(toAdd, id)
		}
	}
	for id := range currentSet {
		if !desiredSet[id] {
			toRemove = append(toRemove, id)
		}
	}
	if len(toAdd) == 0 && len(toRemove) == 0 {
		return nil
	}

	if len(toAdd) > 0 {
		count, err := s.adminRepo.CountActiveByIDs(ctx, toAdd)
		if err != nil {
			return err
		}
		if count != int64(len(toAdd)) {
			return ValidationError("admin_ids", "one or more admins do not exist or are inactive")
		}
	}

	if len(toRemove) > 0 {
		err := tx.Where("repair_order_id = ? AND admin_id IN ?", order.ID, toRemove).
			Delete(&entity.OrderAdmin{}).Error
		if err != nil {
			return fmt.Errorf("remove order admins: %w", err)
		}
	}
	for _, id := range toAdd {
		link := &entity.OrderAdmin{
			ID:            uuid.New().String()[:32],
			RepairOrderID: order.ID,
			AdminID:       id,
			AssignedBy:    actor.ID,
			CreatedAt:     time.Now(),
		}
		if err := tx.Create(link).Error; err != nil {
			return fmt.Errorf("assign order admin: %w", err)
		}
	}

	return s.audit.LogIfChanged(tx, order.ID, "admins",
		sortedKeys(currentSet), sortedKeys(desiredSet), actor.ID)
}

// AssignAdmins 窄接口：在现有负责人集合上追加
func (s *OrderService) AssignAdmins(ctx context.Context, actor Actor, orderID string, adminIDs []string) error {
	return s.mutateAdmins(ctx, actor, orderID, func(current map[string]bool) {
		for _, id := range adminIDs {
			current[id] = true
		}
	})
}

// RemoveAdmins 窄接口：从现有负责人集合中摘除
func (s *OrderService) RemoveAdmins(ctx context.Context, actor Actor, orderID string, adminIDs []string) error {
	return s.mutateAdmins(ctx, actor, orderID, func(current map[string]bool) {
		for _, id := range adminIDs {
			delete(current, id)
		}
	})
}

func (s *OrderService) mutateAdmins(ctx context.Context, actor Actor, orderID string, mutate func(map[string]bool)) error {
	var branchID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.orderRepo.FindByIDTx(tx, orderID)
		if err != nil {
			return err
		}
		branchID = order.BranchID

		var current []entity.OrderAdmin
		if err := tx.Where("repair_order_id = ?", order.ID).Find(&current).Error; err != nil {
			return err
		}
		desired := make(map[string]bool, len(current))
		for _, a := range current {
			desired[a.AdminID] = true
		}
		mutate(desired)

		ids := sortedKeys(desired)
		return s.updateAdmins(ctx, tx, order, &ids, actor)
	})
	if err != nil {
		return wrapStorage(err)
	}
	s.cache.InvalidateBranch(ctx, branchID)
	return nil
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
