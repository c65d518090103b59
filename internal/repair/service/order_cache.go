package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bitfantasy/repairhub/internal/repair/entity"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const orderCachePrefix = "orders:"

// OrderListCache 看板读路径缓存。尽力而为：redis 不可用时所有方法退化为
// 未命中/空操作，写路径不依赖缓存可用性
type OrderListCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewOrderListCache(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *OrderListCache {
	return &OrderListCache{rdb: rdb, ttl: ttl, logger: logger}
}

// Key 缓存键：网点在最前，便于按网点前缀整体失效
func (c *OrderListCache) Key(branchID, adminID, statusID, sortField, sortOrder string, page, pageSize int) string {
	return fmt.Sprintf("%s%s:%s:%s:%s:%s:%d:%d",
		orderCachePrefix, branchID, adminID, statusID, sortField, sortOrder, page, pageSize)
}

// Get 命中返回该状态列的一页维修单
func (c *OrderListCache) Get(ctx context.Context, key string) ([]entity.RepairOrder, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		return nil, false
	}
	var orders []entity.RepairOrder
	if err := json.Unmarshal([]byte(raw), &orders); err != nil {
		return nil, false
	}
	return orders, true
}

// Set 写入一页，带 TTL。失败只记日志
func (c *OrderListCache) Set(ctx context.Context, key string, orders []entity.RepairOrder) {
	if c == nil || c.rdb == nil {
		return
	}
	if orders == nil {
		orders = []entity.RepairOrder{}
	}
	raw, err := json.Marshal(orders)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, string(raw), c.ttl).Err(); err != nil && c.logger != nil {
		c.logger.Warn("Failed to set order list cache", zap.String("key", key), zap.Error(err))
	}
}

// InvalidateBranch 按网点前缀粗粒度清空。条目 TTL 很短，粗粒度即可；
// 清空失败不阻塞写路径
func (c *OrderListCache) InvalidateBranch(ctx context.Context, branchID string) {
	if c == nil || c.rdb == nil {
		return
	}
	pattern := orderCachePrefix + branchID + ":*"
	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			if c.logger != nil {
				c.logger.Warn("Failed to scan order list cache", zap.String("branch_id", branchID), zap.Error(err))
			}
			return
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil && c.logger != nil {
				c.logger.Warn("Failed to delete order list cache keys", zap.String("branch_id", branchID), zap.Error(err))
			}
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}
