package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/repairhub/internal/repair/entity"
	"github.com/bitfantasy/repairhub/internal/repair/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OrderService 维修单编排器：每个变更请求一个事务，权限校验 → 子实体更新 →
// 审计日志，期间任何失败整体回滚；提交后按网点失效读缓存
type OrderService struct {
	db         *gorm.DB
	orderRepo  *repository.OrderRepository
	statusRepo *repository.StatusRepository
	adminRepo  *repository.AdminRepository
	refRepo    *repository.ReferenceRepository
	histRepo   *repository.HistoryRepository
	perms      *PermissionService
	audit      *ChangeLogger
	cache      *OrderListCache
	logger     *zap.Logger
}

func NewOrderService(
	repos *repository.Repositories,
	db *gorm.DB,
	perms *PermissionService,
	audit *ChangeLogger,
	cache *OrderListCache,
	logger *zap.Logger,
) *OrderService {
	return &OrderService{
		db:         db,
		orderRepo:  repos.Order,
		statusRepo: repos.Status,
		adminRepo:  repos.Admin,
		refRepo:    repos.Reference,
		histRepo:   repos.History,
		perms:      perms,
		audit:      audit,
		cache:      cache,
		logger:     logger,
	}
}

// ProblemPartInput 问题配件输入
type ProblemPartInput struct {
	PartID   string          `json:"part_id" binding:"required"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// InitialProblemInput 初检问题输入
type InitialProblemInput struct {
	ProblemCategoryID string             `json:"problem_category_id" binding:"required"`
	Price             decimal.Decimal    `json:"price"`
	EstimatedMinutes  int                `json:"estimated_minutes"`
	Parts             []ProblemPartInput `json:"parts"`
}

// FinalProblemInput 终检问题输入
type FinalProblemInput struct {
	ProblemCategoryID string          `json:"problem_category_id" binding:"required"`
	Price             decimal.Decimal `json:"price"`
}

// PickupInput 取件信息输入（整条覆盖）
type PickupInput struct {
	CourierID   *string         `json:"courier_id"`
	Address     string          `json:"address" binding:"required"`
	Lat         *float64        `json:"lat"`
	Lng         *float64        `json:"lng"`
	ScheduledAt *time.Time      `json:"scheduled_at"`
	Price       decimal.Decimal `json:"price"`
	Notes       string          `json:"notes"`
}

// DeliveryInput 交付信息输入（整条覆盖）
type DeliveryInput struct {
	CourierID   *string         `json:"courier_id"`
	Address     string          `json:"address" binding:"required"`
	Lat         *float64        `json:"lat"`
	Lng         *float64        `json:"lng"`
	ScheduledAt *time.Time      `json:"scheduled_at"`
	Price       decimal.Decimal `json:"price"`
	Notes       string          `json:"notes"`
}

// RentalPhoneInput 租借机输入
type RentalPhoneInput struct {
	DeviceName string          `json:"device_name" binding:"required"`
	DeviceIMEI string          `json:"device_imei"`
	DailyPrice decimal.Decimal `json:"daily_price"`
	Currency   string          `json:"currency"`
	Notes      string          `json:"notes"`
}

// CreateOrderRequest 建单请求。子实体片段缺省（nil）即不创建
type CreateOrderRequest struct {
	BranchID        string                 `json:"branch_id" binding:"required"`
	StatusID        *string                `json:"status_id"`
	PhoneCategoryID string                 `json:"phone_category_id" binding:"required"`
	CustomerName    string                 `json:"customer_name"`
	CustomerPhone   string                 `json:"customer_phone"`
	IMEI            string                 `json:"imei"`
	Priority        string                 `json:"priority"`
	AdminIDs        *[]string              `json:"admin_ids"`
	InitialProblems *[]InitialProblemInput `json:"initial_problems"`
	FinalProblems   *[]FinalProblemInput   `json:"final_problems"`
	Comments        *[]string              `json:"comments"`
	Pickup          *PickupInput           `json:"pickup"`
	Delivery        *DeliveryInput         `json:"delivery"`
}

// UpdateOrderRequest 改单请求。指针为 nil 表示该片段不动（部分更新语义）
type UpdateOrderRequest struct {
	StatusID        *string                `json:"status_id"`
	PhoneCategoryID *string                `json:"phone_category_id"`
	CustomerName    *string                `json:"customer_name"`
	CustomerPhone   *string                `json:"customer_phone"`
	IMEI            *string                `json:"imei"`
	Priority        *string                `json:"priority"`
	AdminIDs        *[]string              `json:"admin_ids"`
	InitialProblems *[]InitialProblemInput `json:"initial_problems"`
	FinalProblems   *[]FinalProblemInput   `json:"final_problems"`
	Comments        *[]string              `json:"comments"`
	Pickup          *PickupInput           `json:"pickup"`
	Delivery        *DeliveryInput         `json:"delivery"`
	RentalPhone     *RentalPhoneInput      `json:"rental_phone"`
}

// CreateOrder 建单：目标状态必须授予 can_add，sort 取网点桶尾，
// 子实体按固定顺序写入，任何失败整体回滚
func (s *OrderService) CreateOrder(ctx context.Context, actor Actor, req *CreateOrderRequest) (*entity.RepairOrder, error) {
	if req.Priority == "" {
		req.Priority = entity.PriorityMedium
	}
	if !validPriority(req.Priority) {
		return nil, ValidationError("priority", "priority must be one of low, medium, high")
	}
	if !validCustomerPhone(req.CustomerPhone) {
		return nil, ValidationError("customer_phone", "invalid phone number format")
	}

	if _, err := s.refRepo.FindPhoneCategory(ctx, req.PhoneCategoryID); err != nil {
		if KindOf(err) == KindNotFound {
			return nil, ValidationError("phone_category_id", "phone category not found or inactive")
		}
		return nil, wrapStorage(err)
	}

	var status *entity.RepairOrderStatus
	var err error
	if req.StatusID != nil {
		status, err = s.statusRepo.FindByID(ctx, *req.StatusID)
	} else {
		status, err = s.statusRepo.FindInitialByBranch(ctx, req.BranchID)
	}
	if err != nil {
		if KindOf(err) == KindNotFound {
			return nil, NotFoundError("repair order status not found")
		}
		return nil, wrapStorage(err)
	}
	if status.BranchID != req.BranchID {
		return nil, ValidationError("status_id", "status does not belong to the branch")
	}

	if err := s.perms.Authorize(ctx, actor.RoleIDs, req.BranchID, status.ID, CapAdd); err != nil {
		return nil, err
	}

	order := &entity.RepairOrder{
		ID:              uuid.New().String()[:32],
		BranchID:        req.BranchID,
		StatusID:        status.ID,
		PhoneCategoryID: req.PhoneCategoryID,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		IMEI:            req.IMEI,
		Priority:        req.Priority,
		IsActive:        true,
		Status:          entity.LifecycleOpen,
		CreatedBy:       actor.ID,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sort, err := repository.NextSortValue(tx, repository.OrderBucket(req.BranchID))
		if err != nil {
			return err
		}
		order.Sort = sort
		if err := s.orderRepo.Create(tx, order); err != nil {
			return err
		}
		if err := s.audit.Log(tx, order.ID, "order_created", map[string]interface{}{
			"branch_id": order.BranchID,
			"status_id": order.StatusID,
			"sort":      order.Sort,
		}, actor.ID); err != nil {
			return err
		}

		// 子实体按固定顺序写入，报错位置可预期
		if err := s.updateAdmins(ctx, tx, order, req.AdminIDs, actor); err != nil {
			return err
		}
		if err := s.updateInitialProblems(ctx, tx, order, req.InitialProblems, actor); err != nil {
			return err
		}
		if err := s.updateFinalProblems(ctx, tx, order, req.FinalProblems, actor); err != nil {
			return err
		}
		if err := s.updateComments(ctx, tx, order, req.Comments, actor); err != nil {
			return err
		}
		if err := s.updatePickup(ctx, tx, order, req.Pickup, actor); err != nil {
			return err
		}
		if err := s.updateDelivery(ctx, tx, order, req.Delivery, actor); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, wrapStorage(err)
	}

	s.cache.InvalidateBranch(ctx, req.BranchID)
	return order, nil
}

// UpdateOrder 改单：标量字段变化要求 can_update 并逐字段记日志，
// 子实体片段只处理请求里出现的部分
func (s *OrderService) UpdateOrder(ctx context.Context, actor Actor, orderID string, req *UpdateOrderRequest) (*entity.RepairOrder, error) {
	var order *entity.RepairOrder

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = s.orderRepo.FindByIDTx(tx, orderID)
		if err != nil {
			return err
		}
		// 权限全部按进入事务时的状态判定
		statusID := order.StatusID

		fields := map[string]interface{}{}

		if req.StatusID != nil && *req.StatusID != order.StatusID {
			target, err := s.statusRepo.FindByIDTx(tx, *req.StatusID)
			if err != nil {
				if KindOf(err) == KindNotFound {
					return NotFoundError("target status not found")
				}
				return err
			}
			if target.BranchID != order.BranchID {
				return ValidationError("status_id", "status does not belong to the order's branch")
			}
			fields["status_id"] = target.ID
			if err := s.audit.LogIfChanged(tx, order.ID, "status_id", order.StatusID, target.ID, actor.ID); err != nil {
				return err
			}
		}
		if req.Priority != nil && *req.Priority != order.Priority {
			if !validPriority(*req.Priority) {
				return ValidationError("priority", "priority must be one of low, medium, high")
			}
			fields["priority"] = *req.Priority
			if err := s.audit.LogIfChanged(tx, order.ID, "priority", order.Priority, *req.Priority, actor.ID); err != nil {
				return err
			}
		}
		if req.PhoneCategoryID != nil && *req.PhoneCategoryID != order.PhoneCategoryID {
			if _, err := s.refRepo.FindPhoneCategory(ctx, *req.PhoneCategoryID); err != nil {
				if KindOf(err) == KindNotFound {
					return ValidationError("phone_category_id", "phone category not found or inactive")
				}
				return err
			}
			fields["phone_category_id"] = *req.PhoneCategoryID
			if err := s.audit.LogIfChanged(tx, order.ID, "phone_category_id", order.PhoneCategoryID, *req.PhoneCategoryID, actor.ID); err != nil {
				return err
			}
		}
		if req.CustomerName != nil && *req.CustomerName != order.CustomerName {
			fields["customer_name"] = *req.CustomerName
			if err := s.audit.LogIfChanged(tx, order.ID, "customer_name", order.CustomerName, *req.CustomerName, actor.ID); err != nil {
				return err
			}
		}
		if req.CustomerPhone != nil && *req.CustomerPhone != order.CustomerPhone {
			if !validCustomerPhone(*req.CustomerPhone) {
				return ValidationError("customer_phone", "invalid phone number format")
			}
			fields["customer_phone"] = *req.CustomerPhone
			if err := s.audit.LogIfChanged(tx, order.ID, "customer_phone", order.CustomerPhone, *req.CustomerPhone, actor.ID); err != nil {
				return err
			}
		}
		if req.IMEI != nil && *req.IMEI != order.IMEI {
			fields["imei"] = *req.IMEI
			if err := s.audit.LogIfChanged(tx, order.ID, "imei", order.IMEI, *req.IMEI, actor.ID); err != nil {
				return err
			}
		}

		if len(fields) > 0 {
			if err := s.perms.Authorize(ctx, actor.RoleIDs, order.BranchID, statusID, CapUpdate); err != nil {
				return err
			}
			fields["updated_at"] = time.Now()
			if err := s.orderRepo.UpdateFields(tx, order.ID, fields); err != nil {
				return err
			}
		}

		if err := s.updateAdmins(ctx, tx, order, req.AdminIDs, actor); err != nil {
			return err
		}
		if err := s.updateInitialProblems(ctx, tx, order, req.InitialProblems, actor); err != nil {
			return err
		}
		if err := s.updateFinalProblems(ctx, tx, order, req.FinalProblems, actor); err != nil {
			return err
		}
		if err := s.updateComments(ctx, tx, order, req.Comments, actor); err != nil {
			return err
		}
		if err := s.updatePickup(ctx, tx, order, req.Pickup, actor); err != nil {
			return err
		}
		if err := s.updateDelivery(ctx, tx, order, req.Delivery, actor); err != nil {
			return err
		}
		if err := s.updateRentalPhone(ctx, tx, order, req.RentalPhone, actor); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, wrapStorage(err)
	}

	s.cache.InvalidateBranch(ctx, order.BranchID)
	return s.orderRepo.FindByID(ctx, orderID)
}

// MoveOrder 看板移动：换列（状态）与列内排序一步完成
func (s *OrderService) MoveOrder(ctx context.Context, actor Actor, orderID, targetStatusID string, targetSort int) error {
	var branchID string

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.orderRepo.FindByIDTx(tx, orderID)
		if err != nil {
			return err
		}
		branchID = order.BranchID

		if err := s.perms.Authorize(ctx, actor.RoleIDs, order.BranchID, order.StatusID, CapUpdate); err != nil {
			return err
		}

		if targetStatusID != order.StatusID {
			target, err := s.statusRepo.FindByIDTx(tx, targetStatusID)
			if err != nil {
				if KindOf(err) == KindNotFound {
					return NotFoundError("target status not found")
				}
				return err
			}
			if target.BranchID != order.BranchID {
				return ValidationError("status_id", "status does not belong to the order's branch")
			}
			if err := s.orderRepo.UpdateFields(tx, order.ID, map[string]interface{}{
				"status_id":  target.ID,
				"updated_at": time.Now(),
			}); err != nil {
				return err
			}
			if err := s.audit.LogIfChanged(tx, order.ID, "status_id", order.StatusID, target.ID, actor.ID); err != nil {
				return err
			}
		}

		if targetSort != order.Sort {
			size, err := repository.BucketSize(tx, repository.OrderBucket(order.BranchID))
			if err != nil {
				return err
			}
			if targetSort < 1 || targetSort > size {
				return ValidationError("sort", fmt.Sprintf("sort must be between 1 and %d", size))
			}
			if err := repository.Reorder(tx, repository.OrderBucket(order.BranchID), order.ID, order.Sort, targetSort); err != nil {
				return err
			}
			if err := s.audit.LogIfChanged(tx, order.ID, "sort", order.Sort, targetSort, actor.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return wrapStorage(err)
	}

	s.cache.InvalidateBranch(ctx, branchID)
	return nil
}

// SoftDeleteOrder 软删除并收紧网点桶的 sort 序列
func (s *OrderService) SoftDeleteOrder(ctx context.Context, actor Actor, orderID string) error {
	var branchID string

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.orderRepo.FindByIDTx(tx, orderID)
		if err != nil {
			return err
		}
		branchID = order.BranchID

		if err := s.perms.Authorize(ctx, actor.RoleIDs, order.BranchID, order.StatusID, CapUpdate); err != nil {
			return err
		}

		if err := s.orderRepo.UpdateFields(tx, order.ID, map[string]interface{}{
			"status":     entity.LifecycleDeleted,
			"is_active":  false,
			"updated_at": time.Now(),
		}); err != nil {
			return err
		}
		if err := repository.CloseGap(tx, repository.OrderBucket(order.BranchID), order.Sort); err != nil {
			return err
		}
		return s.audit.Log(tx, order.ID, "order_deleted", nil, actor.ID)
	})
	if err != nil {
		return wrapStorage(err)
	}

	s.cache.InvalidateBranch(ctx, branchID)
	return nil
}

// GetOrder 维修单详情，要求当前状态下的 can_view
func (s *OrderService) GetOrder(ctx context.Context, actor Actor, orderID string) (*entity.RepairOrder, error) {
	order, err := s.orderRepo.FindDetail(ctx, orderID)
	if err != nil {
		return nil, wrapStorage(err)
	}
	if err := s.perms.Authorize(ctx, actor.RoleIDs, order.BranchID, order.StatusID, CapView); err != nil {
		return nil, err
	}
	return order, nil
}

// ListPagination 看板读路径分页参数
type ListPagination struct {
	SortField string
	SortOrder string
	Page      int
	PageSize  int
}

func (p *ListPagination) normalize() {
	switch p.SortField {
	case "sort", "created_at", "updated_at", "priority":
	default:
		p.SortField = "sort"
	}
	if p.SortOrder != "DESC" {
		p.SortOrder = "ASC"
	}
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 || p.PageSize > 200 {
		p.PageSize = 50
	}
}

// ListOrdersForAdmin 按状态列返回网点看板。先筛出操作者 can_view 的状态列，
// 逐列查缓存；未命中的列合并成一次回源查询，按状态切分后分列写回缓存
func (s *OrderService) ListOrdersForAdmin(ctx context.Context, actor Actor, branchID string, p ListPagination) (map[string][]entity.RepairOrder, error) {
	p.normalize()

	statuses, err := s.statusRepo.ListByBranch(ctx, branchID)
	if err != nil {
		return nil, wrapStorage(err)
	}

	result := make(map[string][]entity.RepairOrder)
	var missing []string
	for _, st := range statuses {
		set, err := s.perms.Resolve(ctx, actor.RoleIDs, branchID, st.ID)
		if err != nil {
			return nil, err
		}
		if !set.Has(CapView) {
			continue
		}
		key := s.cache.Key(branchID, actor.ID, st.ID, p.SortField, p.SortOrder, p.Page, p.PageSize)
		if orders, ok := s.cache.Get(ctx, key); ok {
			result[st.ID] = orders
			continue
		}
		missing = append(missing, st.ID)
	}

	if len(missing) > 0 {
		orders, err := s.orderRepo.ListByBranchStatuses(ctx, branchID, missing, p.SortField, p.SortOrder, p.Page, p.PageSize)
		if err != nil {
			return nil, wrapStorage(err)
		}
		byStatus := make(map[string][]entity.RepairOrder, len(missing))
		for _, id := range missing {
			byStatus[id] = []entity.RepairOrder{}
		}
		for _, o := range orders {
			byStatus[o.StatusID] = append(byStatus[o.StatusID], o)
		}
		for _, id := range missing {
			result[id] = byStatus[id]
			key := s.cache.Key(branchID, actor.ID, id, p.SortField, p.SortOrder, p.Page, p.PageSize)
			s.cache.Set(ctx, key, byStatus[id])
		}
	}

	return result, nil
}

// ListHistory 维修单变更日志，要求 can_view
func (s *OrderService) ListHistory(ctx context.Context, actor Actor, orderID string, page, pageSize int) ([]entity.ChangeHistory, int64, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, 0, wrapStorage(err)
	}
	if err := s.perms.Authorize(ctx, actor.RoleIDs, order.BranchID, order.StatusID, CapView); err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}
	rows, total, err := s.histRepo.ListByOrder(ctx, orderID, page, pageSize)
	if err != nil {
		return nil, 0, wrapStorage(err)
	}
	return rows, total, nil
}

func validPriority(p string) bool {
	switch p {
	case entity.PriorityLow, entity.PriorityMedium, entity.PriorityHigh:
		return true
	}
	return false
}

// validCustomerPhone 简单格式校验：可空，非空时 7-15 位数字，允许 + 前缀
func validCustomerPhone(phone string) bool {
	if phone == "" {
		return true
	}
	digits := phone
	if digits[0] == '+' {
		digits = digits[1:]
	}
	if len(digits) < 7 || len(digits) > 15 {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
