package service_test

import (
	"testing"

	"gorm.io/gorm"

	"github.com/bitfantasy/repairhub/internal/repair/entity"
	"github.com/bitfantasy/repairhub/internal/repair/repository"
	"github.com/bitfantasy/repairhub/internal/repair/service"
	"github.com/bitfantasy/repairhub/internal/repair/testutil"
)

func historyRows(t *testing.T, db *gorm.DB, orderID string) []entity.ChangeHistory {
	t.Helper()
	var rows []entity.ChangeHistory
	if err := db.Where("repair_order_id = ?", orderID).Order("created_at ASC").Find(&rows).Error; err != nil {
		t.Fatalf("Failed to load history rows: %v", err)
	}
	return rows
}

func TestLogIfChangedWritesOnDifference(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	audit := service.NewChangeLogger(repos.History)

	if err := audit.LogIfChanged(db, "order-1", "priority", "medium", "high", "admin-1"); err != nil {
		t.Fatalf("LogIfChanged: %v", err)
	}

	rows := historyRows(t, db, "order-1")
	if len(rows) != 1 {
		t.Fatalf("Expected 1 history row, got %d", len(rows))
	}
	if rows[0].Field != "priority" {
		t.Errorf("Expected field priority, got %s", rows[0].Field)
	}
	if rows[0].OldValue == nil || *rows[0].OldValue != `"medium"` {
		t.Errorf("Unexpected old value: %v", rows[0].OldValue)
	}
	if rows[0].NewValue == nil || *rows[0].NewValue != `"high"` {
		t.Errorf("Unexpected new value: %v", rows[0].NewValue)
	}
	if rows[0].ActorID != "admin-1" {
		t.Errorf("Expected actor admin-1, got %s", rows[0].ActorID)
	}
}

func TestLogIfChangedSkipsEqualValues(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	audit := service.NewChangeLogger(repos.History)

	if err := audit.LogIfChanged(db, "order-1", "imei", "356938035643809", "356938035643809", "admin-1"); err != nil {
		t.Fatalf("LogIfChanged: %v", err)
	}
	if rows := historyRows(t, db, "order-1"); len(rows) != 0 {
		t.Errorf("Expected no history rows for equal values, got %d", len(rows))
	}
}

func TestLogIfChangedTreatsNilAsAbsent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	audit := service.NewChangeLogger(repos.History)

	// 无类型 nil 与带类型的 nil 指针等价，视为同一个"无值"
	var typedNil *string
	if err := audit.LogIfChanged(db, "order-1", "notes", nil, typedNil, "admin-1"); err != nil {
		t.Fatalf("LogIfChanged: %v", err)
	}
	var nilSlice []string
	if err := audit.LogIfChanged(db, "order-1", "tags", nilSlice, nil, "admin-1"); err != nil {
		t.Fatalf("LogIfChanged: %v", err)
	}
	if rows := historyRows(t, db, "order-1"); len(rows) != 0 {
		t.Errorf("Expected no history rows for nil-equivalent values, got %d", len(rows))
	}

	// 无值 → 有值要记录
	value := "called customer"
	if err := audit.LogIfChanged(db, "order-1", "notes", nil, &value, "admin-1"); err != nil {
		t.Fatalf("LogIfChanged: %v", err)
	}
	rows := historyRows(t, db, "order-1")
	if len(rows) != 1 {
		t.Fatalf("Expected 1 history row, got %d", len(rows))
	}
	if rows[0].OldValue != nil {
		t.Errorf("Expected nil old value, got %v", *rows[0].OldValue)
	}
}

func TestLogAlwaysWrites(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	audit := service.NewChangeLogger(repos.History)

	if err := audit.Log(db, "order-1", "order_created", map[string]interface{}{"sort": 1}, "admin-1"); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if err := audit.Log(db, "order-1", "order_deleted", nil, "admin-1"); err != nil {
		t.Fatalf("Log: %v", err)
	}

	rows := historyRows(t, db, "order-1")
	if len(rows) != 2 {
		t.Fatalf("Expected 2 history rows, got %d", len(rows))
	}
	if rows[0].Field != "order_created" || rows[1].Field != "order_deleted" {
		t.Errorf("Unexpected fields: %s, %s", rows[0].Field, rows[1].Field)
	}
}
