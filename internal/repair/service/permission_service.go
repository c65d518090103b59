package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bitfantasy/repairhub/internal/repair/entity"
	"github.com/bitfantasy/repairhub/internal/repair/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Capability 能力名：(角色, 状态) 维度的布尔权限
type Capability string

const (
	CapView                  Capability = "can_view"
	CapAdd                   Capability = "can_add"
	CapUpdate                Capability = "can_update"
	CapAssignAdmin           Capability = "can_assign_admin"
	CapComment               Capability = "can_comment"
	CapPickupManage          Capability = "can_pickup_manage"
	CapDeliveryManage        Capability = "can_delivery_manage"
	CapChangeInitialProblems Capability = "can_change_initial_problems"
	CapChangeFinalProblems   Capability = "can_change_final_problems"
)

// CapabilitySet 某组角色在某状态下的可用能力集合。缺失即拒绝
type CapabilitySet map[Capability]bool

// Has 能力是否被授予
func (s CapabilitySet) Has(cap Capability) bool {
	return s[cap]
}

// mergeRow 行内为 true 的能力并入集合（角色间取并集）
func (s CapabilitySet) mergeRow(row *entity.StatusPermission) {
	if row.CanView {
		s[CapView] = true
	}
	if row.CanAdd {
		s[CapAdd] = true
	}
	if row.CanUpdate {
		s[CapUpdate] = true
	}
	if row.CanAssignAdmin {
		s[CapAssignAdmin] = true
	}
	if row.CanComment {
		s[CapComment] = true
	}
	if row.CanPickupManage {
		s[CapPickupManage] = true
	}
	if row.CanDeliveryManage {
		s[CapDeliveryManage] = true
	}
	if row.CanChangeInitialProblems {
		s[CapChangeInitialProblems] = true
	}
	if row.CanChangeFinalProblems {
		s[CapChangeFinalProblems] = true
	}
}

// Actor 已认证的操作者
type Actor struct {
	ID      string
	RoleIDs []string
}

const permCachePrefix = "perm:"

// PermissionCache 权限解析结果的显式缓存。撤销权限后不允许再命中旧授权，
// 所以权限写路径必须同步调用 Invalidate
type PermissionCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewPermissionCache(rdb *redis.Client, ttl time.Duration) *PermissionCache {
	return &PermissionCache{rdb: rdb, ttl: ttl}
}

func permCacheKey(statusID string, roleIDs []string) string {
	sorted := make([]string, len(roleIDs))
	copy(sorted, roleIDs)
	sort.Strings(sorted)
	return fmt.Sprintf("%s%s:%s", permCachePrefix, statusID, strings.Join(sorted, ","))
}

// Get 缓存命中返回能力集合
func (c *PermissionCache) Get(ctx context.Context, key string) (CapabilitySet, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		return nil, false
	}
	var caps []Capability
	if err := json.Unmarshal([]byte(raw), &caps); err != nil {
		return nil, false
	}
	set := make(CapabilitySet, len(caps))
	for _, cap := range caps {
		set[cap] = true
	}
	return set, true
}

// Set 写入缓存，失败忽略（下次回源）
func (c *PermissionCache) Set(ctx context.Context, key string, set CapabilitySet) {
	if c == nil || c.rdb == nil {
		return
	}
	caps := make([]Capability, 0, len(set))
	for cap, ok := range set {
		if ok {
			caps = append(caps, cap)
		}
	}
	raw, err := json.Marshal(caps)
	if err != nil {
		return
	}
	c.rdb.Set(ctx, key, string(raw), c.ttl)
}

// Invalidate 清空全部权限缓存条目。权限行写入后必须调用
func (c *PermissionCache) Invalidate(ctx context.Context) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, permCachePrefix+"*", 200).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// PermissionService 状态权限解析器。状态归属网点，branchID 作为纵深校验：
// 状态不属于该网点时按无权限处理
type PermissionService struct {
	permRepo   *repository.PermissionRepository
	statusRepo *repository.StatusRepository
	cache      *PermissionCache
	logger     *zap.Logger
}

func NewPermissionService(permRepo *repository.PermissionRepository, statusRepo *repository.StatusRepository, cache *PermissionCache, logger *zap.Logger) *PermissionService {
	return &PermissionService{
		permRepo:   permRepo,
		statusRepo: statusRepo,
		cache:      cache,
		logger:     logger,
	}
}

// Resolve 返回角色集合在 (网点, 状态) 下的能力集合，角色间授权取并集
func (s *PermissionService) Resolve(ctx context.Context, roleIDs []string, branchID, statusID string) (CapabilitySet, error) {
	status, err := s.statusRepo.FindByID(ctx, statusID)
	if err != nil {
		return nil, wrapStorage(err)
	}
	if status.BranchID != branchID {
		// 状态与网点不匹配，视为全部拒绝
		return CapabilitySet{}, nil
	}

	key := permCacheKey(statusID, roleIDs)
	if set, ok := s.cache.Get(ctx, key); ok {
		return set, nil
	}

	rows, err := s.permRepo.FindByRolesAndStatus(ctx, roleIDs, statusID)
	if err != nil {
		return nil, wrapStorage(err)
	}
	set := CapabilitySet{}
	for i := range rows {
		set.mergeRow(&rows[i])
	}
	s.cache.Set(ctx, key, set)
	return set, nil
}

// Authorize 核对单个能力，缺失返回 PermissionDenied。
// 每条变更路径在触碰存储前都必须通过这里
func (s *PermissionService) Authorize(ctx context.Context, roleIDs []string, branchID, statusID string, cap Capability) error {
	set, err := s.Resolve(ctx, roleIDs, branchID, statusID)
	if err != nil {
		return err
	}
	if !set.Has(cap) {
		return PermissionError(cap, statusID)
	}
	return nil
}

// Invalidate 权限行变更后清缓存。失败必须上抛：宁可让权限写入报错重试，
// 也不能让已撤销的授权继续命中
func (s *PermissionService) Invalidate(ctx context.Context) error {
	if err := s.cache.Invalidate(ctx); err != nil {
		if s.logger != nil {
			s.logger.Error("Failed to invalidate permission cache", zap.Error(err))
		}
		return StorageError(err)
	}
	return nil
}
