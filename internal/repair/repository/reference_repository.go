package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/repairhub/internal/repair/entity"
	"gorm.io/gorm"
)

// ReferenceRepository 参考数据仓库（故障分类树、手机型号映射、配件适配），核心只读
type ReferenceRepository struct {
	db *gorm.DB
}

func NewReferenceRepository(db *gorm.DB) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

// FindPhoneCategory 读取启用的手机型号分类
func (r *ReferenceRepository) FindPhoneCategory(ctx context.Context, id string) (*entity.PhoneCategory, error) {
	var cat entity.PhoneCategory
	err := r.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", id, true).
		First(&cat).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &cat, nil
}

// ListProblemCategories 全部故障分类（含停用的，供父链爬取；启用性由调用方检查）
func (r *ReferenceRepository) ListProblemCategories(ctx context.Context) ([]entity.ProblemCategory, error) {
	var cats []entity.ProblemCategory
	err := r.db.WithContext(ctx).Find(&cats).Error
	return cats, err
}

// MappedProblemCategoryIDs 手机型号直接映射到的故障分类 id 集合
func (r *ReferenceRepository) MappedProblemCategoryIDs(ctx context.Context, phoneCategoryID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&entity.PhoneProblemMapping{}).
		Where("phone_category_id = ?", phoneCategoryID).
		Pluck("problem_category_id", &ids).Error
	return ids, err
}

// AssignedPartIDs 故障分类适配的配件 id 集合
func (r *ReferenceRepository) AssignedPartIDs(ctx context.Context, problemCategoryID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&entity.PartAssignment{}).
		Where("problem_category_id = ?", problemCategoryID).
		Pluck("part_id", &ids).Error
	return ids, err
}

// FindParts 按 id 集合读取启用的配件
func (r *ReferenceRepository) FindParts(ctx context.Context, ids []string) ([]entity.Part, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var parts []entity.Part
	err := r.db.WithContext(ctx).
		Where("id IN ? AND is_active = ?", ids, true).
		Find(&parts).Error
	return parts, err
}
