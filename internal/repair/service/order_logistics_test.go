package service_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/bitfantasy/repairhub/internal/repair/entity"
	"github.com/bitfantasy/repairhub/internal/repair/service"
	"github.com/bitfantasy/repairhub/internal/repair/testutil"
)

func TestSetPickupReplaceOnWrite(t *testing.T) {
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

	if err := svc.Order.SetPickup(ctx, actor, order.ID, service.PickupInput{
		Address: "Chilonzor 14",
		Price:   decimal.NewFromInt(15000),
	}); err != nil {
		t.Fatalf("SetPickup: %v", err)
	}

	// 整条覆盖：每单始终至多一条取件记录
	if err := svc.Order.SetPickup(ctx, actor, order.ID, service.PickupInput{
		Address: "Yunusobod 9",
	}); err != nil {
		t.Fatalf("SetPickup replace: %v", err)
	}

	var pickups []entity.Pickup
	if err := db.Where("repair_order_id = ?", order.ID).Find(&pickups).Error; err != nil {
		t.Fatalf("Failed to load pickups: %v", err)
	}
	if len(pickups) != 1 {
		t.Fatalf("Expected single pickup row, got %d", len(pickups))
	}
	if pickups[0].Address != "Yunusobod 9" {
		t.Errorf("Expected replaced address, got %s", pickups[0].Address)
	}
}

func TestSetPickupRequiresAddress(t *testing.T) {
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

	err = svc.Order.SetPickup(ctx, actor, order.ID, service.PickupInput{})
	if service.KindOf(err) != service.KindValidation {
		t.Errorf("Expected validation error for empty address, got %v", err)
	}
}

func TestSetDeliveryNoopSkipsAudit(t *testing.T) {
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

	input := service.DeliveryInput{
		Address: "Chilonzor 14",
		Price:   decimal.NewFromInt(20000),
		Notes:   "call before arriving",
	}
	if err := svc.Order.SetDelivery(ctx, actor, order.ID, input); err != nil {
		t.Fatalf("SetDelivery: %v", err)
	}
	before := len(historyRows(t, db, order.ID))

	// 相同内容重新提交不记日志
	if err := svc.Order.SetDelivery(ctx, actor, order.ID, input); err != nil {
		t.Fatalf("SetDelivery repeat: %v", err)
	}
	if got := len(historyRows(t, db, order.ID)); got != before {
		t.Errorf("No-op delivery write produced %d history rows", got-before)
	}
}

func TestLogisticsCapabilitiesAreSeparate(t *testing.T) {
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

	// 只有取件权限的角色不能动交付
	testutil.SeedRole(t, db, "role-pickup", "courier_in", "Pickup courier")
	testutil.SeedPermission(t, db, &entity.StatusPermission{
		RoleID: "role-pickup", StatusID: "st-1", CanView: true, CanPickupManage: true,
	})
	courier := service.Actor{ID: "admin-1", RoleIDs: []string{"role-pickup"}}

	if err := svc.Order.SetPickup(ctx, courier, order.ID, service.PickupInput{Address: "Chilonzor 14"}); err != nil {
		t.Fatalf("SetPickup with pickup capability: %v", err)
	}
	err = svc.Order.SetDelivery(ctx, courier, order.ID, service.DeliveryInput{Address: "Chilonzor 14"})
	if service.KindOf(err) != service.KindPermissionDenied {
		t.Errorf("Expected permission_denied for delivery, got %v", err)
	}
}
