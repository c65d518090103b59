package service_test

import (
	"context"
	"testing"

	"github.com/bitfantasy/repairhub/internal/repair/service"
	"github.com/bitfantasy/repairhub/internal/repair/testutil"
)

func TestExportBranchOrders(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, actor := seedOrderEnv(t, db)
	ctx := context.Background()

	order, err := svc.Order.CreateOrder(ctx, actor, &service.CreateOrderRequest{
		BranchID:        "br-1",
		PhoneCategoryID: "ph-1",
		CustomerName:    "Mijoz",
		CustomerPhone:   "+998901234567",
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	f, err := svc.Export.ExportBranchOrders(ctx, "br-1")
	if err != nil {
		t.Fatalf("ExportBranchOrders: %v", err)
	}
	defer f.Close()

	header, err := f.GetCellValue("Orders", "A1")
	if err != nil {
		t.Fatalf("GetCellValue: %v", err)
	}
	if header == "" {
		t.Errorf("Expected header in A1")
	}

	id, err := f.GetCellValue("Orders", "A2")
	if err != nil {
		t.Fatalf("GetCellValue: %v", err)
	}
	if id != order.ID {
		t.Errorf("Expected order id %s in A2, got %s", order.ID, id)
	}
}
