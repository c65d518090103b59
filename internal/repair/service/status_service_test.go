package service_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/bitfantasy/repairhub/internal/repair/entity"
	"github.com/bitfantasy/repairhub/internal/repair/service"
	"github.com/bitfantasy/repairhub/internal/repair/testutil"
)

func TestCreateStatusAppendsToBoard(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := testutil.SetupServices(t, db)
	testutil.SeedBranch(t, db, "br-1", "Chilonzor")
	testutil.SeedStatus(t, db, "st-1", "br-1", "Yangi", 1)
	ctx := context.Background()

	status, err := svc.Status.CreateStatus(ctx, "admin-1", &service.CreateStatusRequest{
		BranchID: "br-1",
		NameUz:   "Tashxis",
	})
	if err != nil {
		t.Fatalf("CreateStatus: %v", err)
	}
	if status.Sort != 2 {
		t.Errorf("Expected new status at sort 2, got %d", status.Sort)
	}
	if status.Type != entity.StatusTypeNone {
		t.Errorf("Expected default type none, got %s", status.Type)
	}

	_, err = svc.Status.CreateStatus(ctx, "admin-1", &service.CreateStatusRequest{
		BranchID: "br-1",
		NameUz:   "Bekor",
		Type:     "closed",
	})
	if service.KindOf(err) != service.KindValidation {
		t.Errorf("Expected validation error for bad type, got %v", err)
	}
}

func TestUpdateStatusProtected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := testutil.SetupServices(t, db)
	testutil.SeedBranch(t, db, "br-1", "Chilonzor")
	st := testutil.SeedStatus(t, db, "st-1", "br-1", "Yangi", 1)
	db.Model(st).Update("is_protected", true)
	ctx := context.Background()

	// 结构性字段被锁死
	newType := entity.StatusTypeCompleted
	_, err := svc.Status.UpdateStatus(ctx, "st-1", &service.UpdateStatusRequest{Type: &newType})
	if service.KindOf(err) != service.KindConflict {
		t.Errorf("Expected conflict for protected type change, got %v", err)
	}
	enabled := false
	_, err = svc.Status.UpdateStatus(ctx, "st-1", &service.UpdateStatusRequest{IsActive: &enabled})
	if service.KindOf(err) != service.KindConflict {
		t.Errorf("Expected conflict for protected is_active change, got %v", err)
	}

	// 名称和颜色不受保护
	name := "Qabul"
	color := "#ff8800"
	updated, err := svc.Status.UpdateStatus(ctx, "st-1", &service.UpdateStatusRequest{NameUz: &name, Color: &color})
	if err != nil {
		t.Fatalf("UpdateStatus rename: %v", err)
	}
	if updated.NameUz != "Qabul" || updated.Color != "#ff8800" {
		t.Errorf("Rename not applied: %+v", updated)
	}
}

func TestSoftDeleteStatusGuards(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, actor := seedOrderEnv(t, db)
	ctx := context.Background()

	// 列下还有单子：拒绝删除
	if _, err := svc.Order.CreateOrder(ctx, actor, &service.CreateOrderRequest{
		BranchID:        "br-1",
		PhoneCategoryID: "ph-1",
	}); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	err := svc.Status.SoftDeleteStatus(ctx, "st-1")
	if service.KindOf(err) != service.KindConflict {
		t.Fatalf("Expected conflict deleting status with orders, got %v", err)
	}

	// 空列可以删，后面的列补位
	testutil.SeedStatus(t, db, "st-3", "br-1", "Tayyor", 3)
	if err := svc.Status.SoftDeleteStatus(ctx, "st-2"); err != nil {
		t.Fatalf("SoftDeleteStatus: %v", err)
	}

	var st3 entity.RepairOrderStatus
	if err := db.Where("id = ?", "st-3").First(&st3).Error; err != nil {
		t.Fatalf("Failed to load st-3: %v", err)
	}
	if st3.Sort != 2 {
		t.Errorf("Expected st-3 to close the gap at sort 2, got %d", st3.Sort)
	}

	// 受保护的列不能删
	db.Model(&entity.RepairOrderStatus{}).Where("id = ?", "st-3").Update("is_protected", true)
	if err := svc.Status.SoftDeleteStatus(ctx, "st-3"); service.KindOf(err) != service.KindConflict {
		t.Errorf("Expected conflict deleting protected status, got %v", err)
	}
}

func TestReorderStatusColumns(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := testutil.SetupServices(t, db)
	testutil.SeedBranch(t, db, "br-1", "Chilonzor")
	testutil.SeedStatus(t, db, "st-1", "br-1", "A", 1)
	testutil.SeedStatus(t, db, "st-2", "br-1", "B", 2)
	testutil.SeedStatus(t, db, "st-3", "br-1", "C", 3)
	ctx := context.Background()

	if err := svc.Status.ReorderStatus(ctx, "st-3", 1); err != nil {
		t.Fatalf("ReorderStatus: %v", err)
	}

	expected := map[string]int{"st-3": 1, "st-1": 2, "st-2": 3}
	for id, want := range expected {
		var st entity.RepairOrderStatus
		if err := db.Where("id = ?", id).First(&st).Error; err != nil {
			t.Fatalf("Failed to load %s: %v", id, err)
		}
		if st.Sort != want {
			t.Errorf("Status %s: expected sort %d, got %d", id, want, st.Sort)
		}
	}
}

func TestReorderStatusRejectsOutOfRangeSort(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := testutil.SetupServices(t, db)
	testutil.SeedBranch(t, db, "br-1", "Chilonzor")
	testutil.SeedStatus(t, db, "st-1", "br-1", "A", 1)
	testutil.SeedStatus(t, db, "st-2", "br-1", "B", 2)
	testutil.SeedStatus(t, db, "st-3", "br-1", "C", 3)
	ctx := context.Background()

	for _, target := range []int{100, 0, -3} {
		err := svc.Status.ReorderStatus(ctx, "st-3", target)
		if service.KindOf(err) != service.KindValidation {
			t.Fatalf("ReorderStatus to sort %d: expected validation error, got %v", target, err)
		}
	}

	expected := map[string]int{"st-1": 1, "st-2": 2, "st-3": 3}
	for id, want := range expected {
		var st entity.RepairOrderStatus
		if err := db.Where("id = ?", id).First(&st).Error; err != nil {
			t.Fatalf("Failed to load %s: %v", id, err)
		}
		if st.Sort != want {
			t.Errorf("Status %s: expected sort %d, got %d", id, want, st.Sort)
		}
	}
}

func TestAddPaymentGatedByStatusFlag(t *testing.T) {
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

	// 当前列不收款
	_, err = svc.Order.AddPayment(ctx, actor, order.ID, service.PaymentInput{Amount: decimal.NewFromInt(50000)})
	if service.KindOf(err) != service.KindConflict {
		t.Fatalf("Expected conflict at non-payment status, got %v", err)
	}

	db.Model(&entity.RepairOrderStatus{}).Where("id = ?", "st-1").Update("can_add_payment", true)

	_, err = svc.Order.AddPayment(ctx, actor, order.ID, service.PaymentInput{Amount: decimal.Zero})
	if service.KindOf(err) != service.KindValidation {
		t.Errorf("Expected validation error for zero amount, got %v", err)
	}

	payment, err := svc.Order.AddPayment(ctx, actor, order.ID, service.PaymentInput{Amount: decimal.NewFromInt(50000)})
	if err != nil {
		t.Fatalf("AddPayment: %v", err)
	}
	if payment.Currency != "UZS" || payment.Method != "cash" {
		t.Errorf("Expected UZS/cash defaults, got %s/%s", payment.Currency, payment.Method)
	}

	rows := historyRows(t, db, order.ID)
	found := false
	for _, r := range rows {
		if r.Field == "payment_added" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected payment_added history row")
	}
}
