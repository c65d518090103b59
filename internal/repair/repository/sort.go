package repository

import (
	"fmt"

	"gorm.io/gorm"
)

// SortBucket 排序桶：sort 值在桶内必须连续且唯一（1..N）
type SortBucket struct {
	Table       string
	ScopeColumn string
	ScopeValue  string
}

// OrderBucket 网点内维修单排序桶
func OrderBucket(branchID string) SortBucket {
	return SortBucket{Table: "repair_orders", ScopeColumn: "branch_id", ScopeValue: branchID}
}

// StatusBucket 网点内状态列排序桶
func StatusBucket(branchID string) SortBucket {
	return SortBucket{Table: "repair_order_statuses", ScopeColumn: "branch_id", ScopeValue: branchID}
}

// lockBucket 对桶取事务级咨询锁，串行化同一桶内的 sort 读写。
// 锁随事务提交/回滚自动释放
func lockBucket(tx *gorm.DB, bucket SortBucket) error {
	err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?), hashtext(?))",
		bucket.Table, bucket.ScopeValue).Error
	if err != nil {
		return fmt.Errorf("lock sort bucket %s/%s: %w", bucket.Table, bucket.ScopeValue, err)
	}
	return nil
}

// BucketSize 桶内未删除行数，即当前最大合法 sort 值 N
func BucketSize(tx *gorm.DB, bucket SortBucket) (int, error) {
	var count int64
	err := tx.Table(bucket.Table).
		Where(fmt.Sprintf("%s = ? AND status <> ?", bucket.ScopeColumn), bucket.ScopeValue, "deleted").
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("bucket size for %s: %w", bucket.Table, err)
	}
	return int(count), nil
}

// NextSortValue 桶内追加位置：max(sort)+1，空桶为 1。
// 必须与后续 insert 在同一事务中执行；桶锁挡住并发创建读到同一个 max
func NextSortValue(tx *gorm.DB, bucket SortBucket) (int, error) {
	if err := lockBucket(tx, bucket); err != nil {
		return 0, err
	}
	var max int
	err := tx.Table(bucket.Table).
		Where(fmt.Sprintf("%s = ? AND status <> ?", bucket.ScopeColumn), bucket.ScopeValue, "deleted").
		Select("COALESCE(MAX(sort), 0)").
		Scan(&max).Error
	if err != nil {
		return 0, fmt.Errorf("next sort value for %s: %w", bucket.Table, err)
	}
	return max + 1, nil
}

// Reorder 桶内移动：current 与 target 之间的行整体移位 ±1，再把目标行落到 target。
// 全程必须在一个事务内，读者不能观察到半移位的序列
func Reorder(tx *gorm.DB, bucket SortBucket, itemID string, currentSort, targetSort int) error {
	if targetSort == currentSort {
		return nil
	}
	if err := lockBucket(tx, bucket); err != nil {
		return err
	}

	scoped := func() *gorm.DB {
		return tx.Table(bucket.Table).
			Where(fmt.Sprintf("%s = ? AND status <> ?", bucket.ScopeColumn), bucket.ScopeValue, "deleted")
	}

	if targetSort < currentSort {
		// 上移：[target, current) 区间整体 +1
		err := scoped().
			Where("sort >= ? AND sort < ?", targetSort, currentSort).
			Update("sort", gorm.Expr("sort + 1")).Error
		if err != nil {
			return fmt.Errorf("shift sort range up in %s: %w", bucket.Table, err)
		}
	} else {
		// 下移：(current, target] 区间整体 -1
		err := scoped().
			Where("sort > ? AND sort <= ?", currentSort, targetSort).
			Update("sort", gorm.Expr("sort - 1")).Error
		if err != nil {
			return fmt.Errorf("shift sort range down in %s: %w", bucket.Table, err)
		}
	}

	err := tx.Table(bucket.Table).
		Where("id = ?", itemID).
		Update("sort", targetSort).Error
	if err != nil {
		return fmt.Errorf("set target sort in %s: %w", bucket.Table, err)
	}
	return nil
}

// CloseGap 某行离开桶（软删除）后，其后的行整体前移，保持 1..N 连续
func CloseGap(tx *gorm.DB, bucket SortBucket, removedSort int) error {
	if err := lockBucket(tx, bucket); err != nil {
		return err
	}
	err := tx.Table(bucket.Table).
		Where(fmt.Sprintf("%s = ? AND status <> ?", bucket.ScopeColumn), bucket.ScopeValue, "deleted").
		Where("sort > ?", removedSort).
		Update("sort", gorm.Expr("sort - 1")).Error
	if err != nil {
		return fmt.Errorf("close sort gap in %s: %w", bucket.Table, err)
	}
	return nil
}
