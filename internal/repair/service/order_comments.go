package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bitfantasy/repairhub/internal/repair/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// updateComments 备注是追加模型：请求里出现的文本逐条落库并记事件日志
func (s *OrderService) updateComments(ctx context.Context, tx *gorm.DB, order *entity.RepairOrder, comments *[]string, actor Actor) error {
	if comments == nil || len(*comments) == 0 {
		return nil
	}
	if err := s.perms.Authorize(ctx, actor.RoleIDs, order.BranchID, order.StatusID, CapComment); err != nil {
		return err
	}

	for _, text := range *comments {
		text = strings.TrimSpace(text)
		if text == "" {
			return ValidationError("comments", "comment text must not be empty")
		}
		row := &entity.Comment{
			ID:            uuid.New().String()[:32],
			RepairOrderID: order.ID,
			Text:          text,
			CreatedBy:     actor.ID,
			CreatedAt:     time.Now(),
		}
		if err := tx.Create(row).Error; err != nil {
			return fmt.Errorf("insert comment: %w", err)
		}
		if err := s.audit.Log(tx, order.ID, "comment_added", map[string]string{"comment_id": row.ID}, actor.ID); err != nil {
			return err
		}
	}
	return nil
}

// AddComment 窄接口：追加一条备注
func (s *OrderService) AddComment(ctx context.Context, actor Actor, orderID, text string) (*entity.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ValidationError("text", "comment text must not be empty")
	}

	var branchID string
	var created *entity.Comment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.orderRepo.FindByIDTx(tx, orderID)
		if err != nil {
			return err
		}
		branchID = order.BranchID
		if err := s.perms.Authorize(ctx, actor.RoleIDs, order.BranchID, order.StatusID, CapComment); err != nil {
			return err
		}
		created = &entity.Comment{
			ID:            uuid.New().String()[:32],
			RepairOrderID: order.ID,
			Text:          text,
			CreatedBy:     actor.ID,
			CreatedAt:     time.Now(),
		}
		if err := tx.Create(created).Error; err != nil {
			return err
		}
		return s.audit.Log(tx, order.ID, "comment_added", map[string]string{"comment_id": created.ID}, actor.ID)
	})
	if err != nil {
		return nil, wrapStorage(err)
	}
	s.cache.InvalidateBranch(ctx, branchID)
	return created, nil
}
