package service

import (
	"context"
	"time"

	"github.com/bitfantasy/repairhub/internal/repair/entity"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentInput 收款输入
type PaymentInput struct {
	Amount   decimal.Decimal `json:"amount" binding:"required"`
	Currency string          `json:"currency"`
	Method   string          `json:"method"`
	Notes    string          `json:"notes"`
}

// AddPayment 收款。状态列的 can_add_payment 开关决定该列能否收款，
// 操作者另需该状态下的 can_update
func (s *OrderService) AddPayment(ctx context.Context, actor Actor, orderID string, input PaymentInput) (*entity.Payment, error) {
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, ValidationError("amount", "amount must be positive")
	}
	if input.Currency == "" {
		input.Currency = "UZS"
	}
	if input.Method == "" {
		input.Method = "cash"
	}

	var branchID string
	var payment *entity.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.orderRepo.FindByIDTx(tx, orderID)
		if err != nil {
			return err
		}
		branchID = order.BranchID

		status, err := s.statusRepo.FindByIDTx(tx, order.StatusID)
		if err != nil {
			return err
		}
		if !status.CanAddPayment {
			return ConflictError("payments are not accepted at the order's current status")
		}
		if err := s.perms.Authorize(ctx, actor.RoleIDs, order.BranchID, order.StatusID, CapUpdate); err != nil {
			return err
		}

		payment = &entity.Payment{
			ID:            uuid.New().String()[:32],
			RepairOrderID: order.ID,
			Amount:        input.Amount,
			Currency:      input.Currency,
			Method:        input.Method,
			Notes:         input.Notes,
			CreatedBy:     actor.ID,
			CreatedAt:     time.Now(),
		}
		if err := tx.Create(payment).Error; err != nil {
			return err
		}
		return s.audit.Log(tx, order.ID, "payment_added", map[string]string{
			"payment_id": payment.ID,
			"amount":     payment.Amount.String(),
			"currency":   payment.Currency,
		}, actor.ID)
	})
	if err != nil {
		return nil, wrapStorage(err)
	}
	s.cache.InvalidateBranch(ctx, branchID)
	return payment, nil
}
