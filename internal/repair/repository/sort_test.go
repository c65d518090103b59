package repository_test

import (
	"testing"

	"gorm.io/gorm"

	"github.com/bitfantasy/repairhub/internal/repair/entity"
	"github.com/bitfantasy/repairhub/internal/repair/repository"
	"github.com/bitfantasy/repairhub/internal/repair/testutil"
)

func statusSorts(t *testing.T, db *gorm.DB, branchID string) map[string]int {
	t.Helper()
	var statuses []entity.RepairOrderStatus
	if err := db.Where("branch_id = ? AND status <> ?", branchID, entity.LifecycleDeleted).
		Find(&statuses).Error; err != nil {
		t.Fatalf("Failed to load statuses: %v", err)
	}
	result := make(map[string]int, len(statuses))
	for _, s := range statuses {
		result[s.ID] = s.Sort
	}
	return result
}

func TestNextSortValue(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SeedBranch(t, db, "br-1", "Chilonzor")

	bucket := repository.StatusBucket("br-1")

	next, err := repository.NextSortValue(db, bucket)
	if err != nil {
		t.Fatalf("NextSortValue on empty bucket: %v", err)
	}
	if next != 1 {
		t.Errorf("Expected first sort value 1, got %d", next)
	}

	testutil.SeedStatus(t, db, "st-1", "br-1", "Yangi", 1)
	testutil.SeedStatus(t, db, "st-2", "br-1", "Tashxis", 2)

	next, err = repository.NextSortValue(db, bucket)
	if err != nil {
		t.Fatalf("NextSortValue: %v", err)
	}
	if next != 3 {
		t.Errorf("Expected next sort value 3, got %d", next)
	}

	// 已删除的行不占位
	db.Model(&entity.RepairOrderStatus{}).Where("id = ?", "st-2").
		Update("status", entity.LifecycleDeleted)
	next, err = repository.NextSortValue(db, bucket)
	if err != nil {
		t.Fatalf("NextSortValue after delete: %v", err)
	}
	if next != 2 {
		t.Errorf("Expected next sort value 2 after delete, got %d", next)
	}
}

func TestBucketSizeExcludesDeleted(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SeedBranch(t, db, "br-1", "Chilonzor")
	testutil.SeedStatus(t, db, "st-1", "br-1", "Yangi", 1)
	testutil.SeedStatus(t, db, "st-2", "br-1", "Tashxis", 2)

	size, err := repository.BucketSize(db, repository.StatusBucket("br-1"))
	if err != nil {
		t.Fatalf("BucketSize: %v", err)
	}
	if size != 2 {
		t.Errorf("Expected bucket size 2, got %d", size)
	}

	db.Model(&entity.RepairOrderStatus{}).Where("id = ?", "st-2").
		Update("status", entity.LifecycleDeleted)
	size, err = repository.BucketSize(db, repository.StatusBucket("br-1"))
	if err != nil {
		t.Fatalf("BucketSize after delete: %v", err)
	}
	if size != 1 {
		t.Errorf("Expected bucket size 1 after delete, got %d", size)
	}
}

func TestReorderMoveUp(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SeedBranch(t, db, "br-1", "Chilonzor")
	testutil.SeedStatus(t, db, "st-1", "br-1", "A", 1)
	testutil.SeedStatus(t, db, "st-2", "br-1", "B", 2)
	testutil.SeedStatus(t, db, "st-3", "br-1", "C", 3)
	testutil.SeedStatus(t, db, "st-4", "br-1", "D", 4)

	// 第4位移到第2位：中间的行依次后移
	if err := repository.Reorder(db, repository.StatusBucket("br-1"), "st-4", 4, 2); err != nil {
		t.Fatalf("Reorder: %v", err)
	}

	sorts := statusSorts(t, db, "br-1")
	expected := map[string]int{"st-1": 1, "st-4": 2, "st-2": 3, "st-3": 4}
	for id, want := range expected {
		if sorts[id] != want {
			t.Errorf("Status %s: expected sort %d, got %d", id, want, sorts[id])
		}
	}
}

func TestReorderMoveDown(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SeedBranch(t, db, "br-1", "Chilonzor")
	testutil.SeedStatus(t, db, "st-1", "br-1", "A", 1)
	testutil.SeedStatus(t, db, "st-2", "br-1", "B", 2)
	testutil.SeedStatus(t, db, "st-3", "br-1", "C", 3)
	testutil.SeedStatus(t, db, "st-4", "br-1", "D", 4)

	if err := repository.Reorder(db, repository.StatusBucket("br-1"), "st-1", 1, 3); err != nil {
		t.Fatalf("Reorder: %v", err)
	}

	sorts := statusSorts(t, db, "br-1")
	expected := map[string]int{"st-2": 1, "st-3": 2, "st-1": 3, "st-4": 4}
	for id, want := range expected {
		if sorts[id] != want {
			t.Errorf("Status %s: expected sort %d, got %d", id, want, sorts[id])
		}
	}
}

func TestReorderSamePositionIsNoop(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SeedBranch(t, db, "br-1", "Chilonzor")
	testutil.SeedStatus(t, db, "st-1", "br-1", "A", 1)
	testutil.SeedStatus(t, db, "st-2", "br-1", "B", 2)

	if err := repository.Reorder(db, repository.StatusBucket("br-1"), "st-2", 2, 2); err != nil {
		t.Fatalf("Reorder: %v", err)
	}

	sorts := statusSorts(t, db, "br-1")
	if sorts["st-1"] != 1 || sorts["st-2"] != 2 {
		t.Errorf("Expected unchanged sorts, got %v", sorts)
	}
}

func TestCloseGap(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SeedBranch(t, db, "br-1", "Chilonzor")
	testutil.SeedStatus(t, db, "st-1", "br-1", "A", 1)
	testutil.SeedStatus(t, db, "st-2", "br-1", "B", 2)
	testutil.SeedStatus(t, db, "st-3", "br-1", "C", 3)
	testutil.SeedStatus(t, db, "st-4", "br-1", "D", 4)

	// 第2位离场，后面的行前移补位
	db.Model(&entity.RepairOrderStatus{}).Where("id = ?", "st-2").
		Update("status", entity.LifecycleDeleted)
	if err := repository.CloseGap(db, repository.StatusBucket("br-1"), 2); err != nil {
		t.Fatalf("CloseGap: %v", err)
	}

	sorts := statusSorts(t, db, "br-1")
	expected := map[string]int{"st-1": 1, "st-3": 2, "st-4": 3}
	for id, want := range expected {
		if sorts[id] != want {
			t.Errorf("Status %s: expected sort %d, got %d", id, want, sorts[id])
		}
	}
}

func TestSortBucketsAreScoped(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SeedBranch(t, db, "br-1", "Chilonzor")
	testutil.SeedBranch(t, db, "br-2", "Yunusobod")
	testutil.SeedStatus(t, db, "st-1", "br-1", "A", 1)
	testutil.SeedStatus(t, db, "st-2", "br-1", "B", 2)
	testutil.SeedStatus(t, db, "other-1", "br-2", "X", 1)

	if err := repository.Reorder(db, repository.StatusBucket("br-1"), "st-2", 2, 1); err != nil {
		t.Fatalf("Reorder: %v", err)
	}

	// 其他网点的桶不受影响
	sorts := statusSorts(t, db, "br-2")
	if sorts["other-1"] != 1 {
		t.Errorf("Expected other branch untouched, got sort %d", sorts["other-1"])
	}
}
