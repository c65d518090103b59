package service_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/bitfantasy/repairhub/internal/repair/entity"
	"github.com/bitfantasy/repairhub/internal/repair/service"
	"github.com/bitfantasy/repairhub/internal/repair/testutil"
)

func TestRentalPhoneSingleActive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, actor := seedOrderEnv(t, db)
	ctx := context.Background()

	order, err := svc.Order.CreateOrder(ctx, actor, &service.CreateOrderRequest{
		BranchID:        "br-1",
		PhoneCategoryID: "ph-1",
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	input := service.RentalPhoneInput{
		DeviceName: "Redmi Note 12",
		DailyPrice: decimal.NewFromInt(20000),
	}
	if err := svc.Order.CreateRentalPhone(ctx, actor, order.ID, input); err != nil {
		t.Fatalf("CreateRentalPhone: %v", err)
	}

	// 同一单第二台直接冲突
	err = svc.Order.CreateRentalPhone(ctx, actor, order.ID, service.RentalPhoneInput{DeviceName: "Redmi Note 13"})
	if service.KindOf(err) != service.KindConflict {
		t.Fatalf("Expected conflict for second active rental, got %v", err)
	}

	// 归还后可以再租
	if err := svc.Order.CancelRentalPhone(ctx, actor, order.ID); err != nil {
		t.Fatalf("CancelRentalPhone: %v", err)
	}
	if err := svc.Order.CreateRentalPhone(ctx, actor, order.ID, service.RentalPhoneInput{DeviceName: "Redmi Note 13"}); err != nil {
		t.Fatalf("CreateRentalPhone after cancel: %v", err)
	}

	// 取消的记录保留，不做物理删除
	var count int64
	db.Model(&entity.RentalPhone{}).Where("repair_order_id = ?", order.ID).Count(&count)
	if count != 2 {
		t.Errorf("Expected 2 rental rows, got %d", count)
	}
	var cancelled int64
	db.Model(&entity.RentalPhone{}).
		Where("repair_order_id = ? AND status = ?", order.ID, entity.RentalStatusCancelled).
		Count(&cancelled)
	if cancelled != 1 {
		t.Errorf("Expected 1 cancelled rental row, got %d", cancelled)
	}
}

func TestRentalPhoneUpdateMutableFields(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, actor := seedOrderEnv(t, db)
	ctx := context.Background()

	order, err := svc.Order.CreateOrder(ctx, actor, &service.CreateOrderRequest{
		BranchID:        "br-1",
		PhoneCategoryID: "ph-1",
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if err := svc.Order.CreateRentalPhone(ctx, actor, order.ID, service.RentalPhoneInput{
		DeviceName: "Redmi Note 12",
		DailyPrice: decimal.NewFromInt(20000),
	}); err != nil {
		t.Fatalf("CreateRentalPhone: %v", err)
	}
	before := len(historyRows(t, db, order.ID))

	price := decimal.NewFromInt(25000)
	notes := "screen scratch on corner"
	if err := svc.Order.UpdateRentalPhone(ctx, actor, order.ID, service.UpdateRentalPhoneInput{
		DailyPrice: &price,
		Notes:      &notes,
	}); err != nil {
		t.Fatalf("UpdateRentalPhone: %v", err)
	}

	var rental entity.RentalPhone
	if err := db.Where("repair_order_id = ? AND status = ?", order.ID, entity.RentalStatusActive).
		First(&rental).Error; err != nil {
		t.Fatalf("Failed to load rental: %v", err)
	}
	if !rental.DailyPrice.Equal(price) || rental.Notes != notes {
		t.Errorf("Mutable fields not applied: %+v", rental)
	}
	if got := len(historyRows(t, db, order.ID)); got != before+2 {
		t.Errorf("Expected 2 audit rows for 2 changed fields, got %d", got-before)
	}
}

func TestRentalPhoneDeviceChangeRejected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, actor := seedOrderEnv(t, db)
	ctx := context.Background()

	order, err := svc.Order.CreateOrder(ctx, actor, &service.CreateOrderRequest{
		BranchID:        "br-1",
		PhoneCategoryID: "ph-1",
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if err := svc.Order.CreateRentalPhone(ctx, actor, order.ID, service.RentalPhoneInput{
		DeviceName: "Redmi Note 12",
	}); err != nil {
		t.Fatalf("CreateRentalPhone: %v", err)
	}

	// 编排器片段里换设备名被拒绝
	rental := service.RentalPhoneInput{DeviceName: "Samsung A54"}
	_, err = svc.Order.UpdateOrder(ctx, actor, order.ID, &service.UpdateOrderRequest{RentalPhone: &rental})
	if service.KindOf(err) != service.KindValidation {
		t.Errorf("Expected validation error for device change, got %v", err)
	}

	// 同设备名走编排器只动可变字段
	rental = service.RentalPhoneInput{
		DeviceName: "Redmi Note 12",
		DailyPrice: decimal.NewFromInt(30000),
	}
	if _, err := svc.Order.UpdateOrder(ctx, actor, order.ID, &service.UpdateOrderRequest{RentalPhone: &rental}); err != nil {
		t.Fatalf("UpdateOrder with rental fragment: %v", err)
	}
}

func TestRentalPhoneUpdateWithoutActive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, actor := seedOrderEnv(t, db)
	ctx := context.Background()

	order, err := svc.Order.CreateOrder(ctx, actor, &service.CreateOrderRequest{
		BranchID:        "br-1",
		PhoneCategoryID: "ph-1",
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	price := decimal.NewFromInt(10000)
	err = svc.Order.UpdateRentalPhone(ctx, actor, order.ID, service.UpdateRentalPhoneInput{DailyPrice: &price})
	if service.KindOf(err) != service.KindNotFound {
		t.Errorf("Expected not_found without active rental, got %v", err)
	}
	if err := svc.Order.CancelRentalPhone(ctx, actor, order.ID); service.KindOf(err) != service.KindNotFound {
		t.Errorf("Expected not_found cancelling without active rental, got %v", err)
	}
}
