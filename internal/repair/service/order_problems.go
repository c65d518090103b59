package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bitfantasy/repairhub/internal/repair/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// problemCategoryIndex 每次请求构建一次的故障分类索引：父指针表 + 启用标记
type problemCategoryIndex struct {
	parents map[string]*string
	active  map[string]bool
	exists  map[string]bool
}

func (s *OrderService) loadProblemCategoryIndex(ctx context.Context) (*problemCategoryIndex, error) {
	cats, err := s.refRepo.ListProblemCategories(ctx)
	if err != nil {
		return nil, err
	}
	idx := &problemCategoryIndex{
		parents: make(map[string]*string, len(cats)),
		active:  make(map[string]bool, len(cats)),
		exists:  make(map[string]bool, len(cats)),
	}
	for i := range cats {
		idx.parents[cats[i].ID] = cats[i].ParentID
		idx.active[cats[i].ID] = cats[i].IsActive
		idx.exists[cats[i].ID] = true
	}
	return idx, nil
}

// reachesMappedCategory 从提交的分类沿父链向上爬，链上命中任一直接映射的
// 分类即合法。只映射叶子时提交其祖先不放行；映射了父分类则整棵子树放行
func reachesMappedCategory(submittedID string, parents map[string]*string, mapped map[string]bool) bool {
	seen := make(map[string]bool)
	cur := submittedID
	for {
		if seen[cur] {
			// 父链成环，参考数据损坏，按不可达处理
			return false
		}
		seen[cur] = true
		if mapped[cur] {
			return true
		}
		parent, ok := parents[cur]
		if !ok || parent == nil {
			return false
		}
		cur = *parent
	}
}

// validateInitialProblems 初检问题的领域校验，返回合法的配件适配索引
func (s *OrderService) validateInitialProblems(ctx context.Context, order *entity.RepairOrder, problems []InitialProblemInput) error {
	idx, err := s.loadProblemCategoryIndex(ctx)
	if err != nil {
		return err
	}
	mappedIDs, err := s.refRepo.MappedProblemCategoryIDs(ctx, order.PhoneCategoryID)
	if err != nil {
		return err
	}
	mapped := make(map[string]bool, len(mappedIDs))
	for _, id := range mappedIDs {
		mapped[id] = true
	}

	var unknown, unreachable []string
	for _, p := range problems {
		if !idx.exists[p.ProblemCategoryID] || !idx.active[p.ProblemCategoryID] {
			unknown = append(unknown, p.ProblemCategoryID)
			continue
		}
		if !reachesMappedCategory(p.ProblemCategoryID, idx.parents, mapped) {
			unreachable = append(unreachable, p.ProblemCategoryID)
		}
	}
	if len(unknown) > 0 {
		return ValidationError("initial_problems",
			fmt.Sprintf("unknown or inactive problem categories: %s", strings.Join(unknown, ", ")))
	}
	if len(unreachable) > 0 {
		return ValidationError("initial_problems",
			fmt.Sprintf("problem categories not available for this phone category: %s", strings.Join(unreachable, ", ")))
	}

	// 配件校验：同一问题内不允许重复配件，配件必须适配该故障分类
	for _, p := range problems {
		if len(p.Parts) == 0 {
			continue
		}
		seen := make(map[string]bool, len(p.Parts))
		partIDs := make([]string, 0, len(p.Parts))
		for _, part := range p.Parts {
			if seen[part.PartID] {
				return ValidationError("initial_problems",
					fmt.Sprintf("duplicate part %s in problem %s", part.PartID, p.ProblemCategoryID))
			}
			seen[part.PartID] = true
			partIDs = append(partIDs, part.PartID)
		}

		found, err := s.refRepo.FindParts(ctx, partIDs)
		if err != nil {
			return err
		}
		if len(found) != len(partIDs) {
			return ValidationError("initial_problems", "one or more parts do not exist or are inactive")
		}

		assignedIDs, err := s.refRepo.AssignedPartIDs(ctx, p.ProblemCategoryID)
		if err != nil {
			return err
		}
		assigned := make(map[string]bool, len(assignedIDs))
		for _, id := range assignedIDs {
			assigned[id] = true
		}
		for _, id := range partIDs {
			if !assigned[id] {
				return ValidationError("initial_problems",
					fmt.Sprintf("part %s is not assigned to problem category %s", id, p.ProblemCategoryID))
			}
		}
	}
	return nil
}

// initialProblemSnapshot 审计日志与 no-op 判定用的规范化快照
type initialProblemSnapshot struct {
	ProblemCategoryID string         `json:"problem_category_id"`
	Price             string         `json:"price"`
	EstimatedMinutes  int            `json:"estimated_minutes"`
	Parts             []partSnapshot `json:"parts,omitempty"`
}

type partSnapshot struct {
	PartID   string `json:"part_id"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
}

func snapshotInitialInputs(problems []InitialProblemInput) []initialProblemSnapshot {
	snaps := make([]initialProblemSnapshot, 0, len(problems))
	for _, p := range problems {
		snap := initialProblemSnapshot{
			ProblemCategoryID: p.ProblemCategoryID,
			Price:             p.Price.String(),
			EstimatedMinutes:  p.EstimatedMinutes,
		}
		for _, part := range p.Parts {
			qty := part.Quantity
			if qty == 0 {
				qty = 1
			}
			snap.Parts = append(snap.Parts, partSnapshot{
				PartID:   part.PartID,
				Quantity: qty,
				Price:    part.Price.String(),
			})
		}
		sort.Slice(snap.Parts, func(i, j int) bool { return snap.Parts[i].PartID < snap.Parts[j].PartID })
		snaps = append(snaps, snap)
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].ProblemCategoryID < snaps[j].ProblemCategoryID })
	return snaps
}

func snapshotInitialRows(rows []entity.InitialProblem) []initialProblemSnapshot {
	snaps := make([]initialProblemSnapshot, 0, len(rows))
	for _, r := range rows {
		snap := initialProblemSnapshot{
			ProblemCategoryID: r.ProblemCategoryID,
			Price:             r.Price.String(),
			EstimatedMinutes:  r.EstimatedMinutes,
		}
		for _, part := range r.Parts {
			snap.Parts = append(snap.Parts, partSnapshot{
				PartID:   part.PartID,
				Quantity: part.Quantity,
				Price:    part.Price.String(),
			})
		}
		sort.Slice(snap.Parts, func(i, j int) bool { return snap.Parts[i].PartID < snap.Parts[j].PartID })
		snaps = append(snaps, snap)
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].ProblemCategoryID < snaps[j].ProblemCategoryID })
	return snaps
}

// updateInitialProblems 初检问题整组覆盖：校验 → 与现状对比 → 删旧插新
func (s *OrderService) updateInitialProblems(ctx context.Context, tx *gorm.DB, order *entity.RepairOrder, problems *[]InitialProblemInput, actor Actor) error {
	if problems == nil {
		return nil
	}
	if err := s.perms.Authorize(ctx, actor.RoleIDs, order.BranchID, order.StatusID, CapChangeInitialProblems); err != nil {
		return err
	}
	if err := s.validateInitialProblems(ctx, order, *problems); err != nil {
		return err
	}

	var current []entity.InitialProblem
	if err := tx.Preload("Parts").Where("repair_order_id = ?", order.ID).Find(&current).Error; err != nil {
		return err
	}

	oldSnap := snapshotInitialRows(current)
	newSnap := snapshotInitialInputs(*problems)
	oldSer, _ := serializeValue(oldSnap)
	newSer, _ := serializeValue(newSnap)
	if serializedEqual(oldSer, newSer) {
		return nil
	}

	// 覆盖写：先删旧问题及其配件行，再插入新集合
	if len(current) > 0 {
		ids := make([]string, 0, len(current))
		for _, c := range current {
			ids = append(ids, c.ID)
		}
		if err := tx.Where("initial_problem_id IN ?", ids).Delete(&entity.ProblemPart{}).Error; err != nil {
			return fmt.Errorf("delete old problem parts: %w", err)
		}
		if err := tx.Where("repair_order_id = ?", order.ID).Delete(&entity.InitialProblem{}).Error; err != nil {
			return fmt.Errorf("delete old initial problems: %w", err)
		}
	}
	for _, p := range *problems {
		row := &entity.InitialProblem{
			ID:                uuid.New().String()[:32],
			RepairOrderID:     order.ID,
			ProblemCategoryID: p.ProblemCategoryID,
			Price:             p.Price,
			EstimatedMinutes:  p.EstimatedMinutes,
			CreatedBy:         actor.ID,
			CreatedAt:         time.Now(),
		}
		if err := tx.Create(row).Error; err != nil {
			return fmt.Errorf("insert initial problem: %w", err)
		}
		for _, part := range p.Parts {
			qty := part.Quantity
			if qty == 0 {
				qty = 1
			}
			partRow := &entity.ProblemPart{
				ID:               uuid.New().String()[:32],
				InitialProblemID: row.ID,
				PartID:           part.PartID,
				Quantity:         qty,
				Price:            part.Price,
				CreatedAt:        time.Now(),
			}
			if err := tx.Create(partRow).Error; err != nil {
				return fmt.Errorf("insert problem part: %w", err)
			}
		}
	}

	return s.audit.LogIfChanged(tx, order.ID, "initial_problems", oldSnap, newSnap, actor.ID)
}

// SetInitialProblems 窄接口：单独改初检问题
func (s *OrderService) SetInitialProblems(ctx context.Context, actor Actor, orderID string, problems []InitialProblemInput) error {
	var branchID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.orderRepo.FindByIDTx(tx, orderID)
		if err != nil {
			return err
		}
		branchID = order.BranchID
		return s.updateInitialProblems(ctx, tx, order, &problems, actor)
	})
	if err != nil {
		return wrapStorage(err)
	}
	s.cache.InvalidateBranch(ctx, branchID)
	return nil
}

// finalProblemSnapshot 终检问题快照
type finalProblemSnapshot struct {
	ProblemCategoryID string `json:"problem_category_id"`
	Price             string `json:"price"`
}

// updateFinalProblems 终检问题整组覆盖。终检只要求分类存在且启用，
// 不做手机型号映射校验（故障可能是初检没发现的）
func (s *OrderService) updateFinalProblems(ctx context.Context, tx *gorm.DB, order *entity.RepairOrder, problems *[]FinalProblemInput, actor Actor) error {
	if problems == nil {
		return nil
	}
	if err := s.perms.Authorize(ctx, actor.RoleIDs, order.BranchID, order.StatusID, CapChangeFinalProblems); err != nil {
		return err
	}

	idx, err := s.loadProblemCategoryIndex(ctx)
	if err != nil {
		return err
	}
	var unknown []string
	for _, p := range *problems {
		if !idx.exists[p.ProblemCategoryID] || !idx.active[p.ProblemCategoryID] {
			unknown = append(unknown, p.ProblemCategoryID)
		}
	}
	if len(unknown) > 0 {
		return ValidationError("final_problems",
			fmt.Sprintf("unknown or inactive problem categories: %s", strings.Join(unknown, ", ")))
	}

	var current []entity.FinalProblem
	if err := tx.Where("repair_order_id = ?", order.ID).Find(&current).Error; err != nil {
		return err
	}

	oldSnap := make([]finalProblemSnapshot, 0, len(current))
	for _, c := range current {
		oldSnap = append(oldSnap, finalProblemSnapshot{ProblemCategoryID: c.ProblemCategoryID, Price: c.Price.String()})
	}
	newSnap := make([]finalProblemSnapshot, 0, len(*problems))
	for _, p := range *problems {
		newSnap = append(newSnap, finalProblemSnapshot{ProblemCategoryID: p.ProblemCategoryID, Price: p.Price.String()})
	}
	sort.Slice(oldSnap, func(i, j int) bool { return oldSnap[i].ProblemCategoryID < oldSnap[j].ProblemCategoryID })
	sort.Slice(newSnap, func(i, j int) bool { return newSnap[i].ProblemCategoryID < newSnap[j].ProblemCategoryID })

	oldSer, _ := serializeValue(oldSnap)
	newSer, _ := serializeValue(newSnap)
	if serializedEqual(oldSer, newSer) {
		return nil
	}

	if err := tx.Where("repair_order_id = ?", order.ID).Delete(&entity.FinalProblem{}).Error; err != nil {
		return fmt.Errorf("delete old final problems: %w", err)
	}
	for _, p := range *problems {
		row := &entity.FinalProblem{
			ID:                uuid.New().String()[:32],
			RepairOrderID:     order.ID,
			ProblemCategoryID: p.ProblemCategoryID,
			Price:             p.Price,
			CreatedBy:         actor.ID,
			CreatedAt:         time.Now(),
		}
		if err := tx.Create(row).Error; err != nil {
			return fmt.Errorf("insert final problem: %w", err)
		}
	}

	return s.audit.LogIfChanged(tx, order.ID, "final_problems", oldSnap, newSnap, actor.ID)
}

// SetFinalProblems 窄接口：单独改终检问题
func (s *OrderService) SetFinalProblems(ctx context.Context, actor Actor, orderID string, problems []FinalProblemInput) error {
	var branchID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.orderRepo.FindByIDTx(tx, orderID)
		if err != nil {
			return err
		}
		branchID = order.BranchID
		return s.updateFinalProblems(ctx, tx, order, &problems, actor)
	})
	if err != nil {
		return wrapStorage(err)
	}
	s.cache.InvalidateBranch(ctx, branchID)
	return nil
}
