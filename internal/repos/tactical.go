package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/citysafe/planning-backend/internal/platform/logger"
	"github.com/citysafe/planning-backend/internal/types"
)

type TacticalRepo interface {
	GetByPlanAndInitiative(ctx context.Context, tx *gorm.DB, planID, initiativeID uint) (*types.TacticalDimension, error)
	ListByPlan(ctx context.Context, tx *gorm.DB, planID uint) ([]types.TacticalDimension, error)
	Create(ctx context.Context, tx *gorm.DB, dim *types.TacticalDimension) (*types.TacticalDimension, error)
	Update(ctx context.Context, tx *gorm.DB, dim *types.TacticalDimension) error
	ReplaceChildren(ctx context.Context, tx *gorm.DB, dimID uint, goals []types.TacticalGoal, roles []types.TacticalDepartmentRole) error
	CountByPlan(ctx context.Context, tx *gorm.DB, planID uint) (int64, error)
}

type tacticalRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTacticalRepo(db *gorm.DB, baseLog *logger.Logger) TacticalRepo {
	return &tacticalRepo{db: db, log: baseLog.With("repo", "TacticalRepo")}
}

func (r *tacticalRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *tacticalRepo) GetByPlanAndInitiative(ctx context.Context, tx *gorm.DB, planID, initiativeID uint) (*types.TacticalDimension, error) {
	var dim types.TacticalDimension
	if err := r.conn(tx).WithContext(ctx).
		Preload("Goals").
		Preload("DepartmentRoles").
		Where("plan_id = ? AND initiative_id = ?", planID, initiativeID).
		First(&dim).Error; err != nil {
		return nil, err
	}
	return &dim, nil
}

func (r *tacticalRepo) ListByPlan(ctx context.Context, tx *gorm.DB, planID uint) ([]types.TacticalDimension, error) {
	var dims []types.TacticalDimension
	if err := r.conn(tx).WithContext(ctx).
		Preload("Goals").
		Preload("DepartmentRoles").
		Where("plan_id = ?", planID).
		Order("initiative_id ASC").
		Find(&dims).Error; err != nil {
		return nil, err
	}
	return dims, nil
}

func (r *tacticalRepo) Create(ctx context.Context, tx *gorm.DB, dim *types.TacticalDimension) (*types.TacticalDimension, error) {
	if err := r.conn(tx).WithContext(ctx).Omit("Goals", "DepartmentRoles").Create(dim).Error; err != nil {
		return nil, err
	}
	return dim, nil
}

func (r *tacticalRepo) Update(ctx context.Context, tx *gorm.DB, dim *types.TacticalDimension) error {
	return r.conn(tx).WithContext(ctx).Omit("Goals", "DepartmentRoles").Save(dim).Error
}

// ReplaceChildren deletes and reinserts the child rows. Tactical updates
// always carry the full child set, so a diff would buy nothing here.
func (r *tacticalRepo) ReplaceChildren(ctx context.Context, tx *gorm.DB, dimID uint, goals []types.TacticalGoal, roles []types.TacticalDepartmentRole) error {
	conn := r.conn(tx).WithContext(ctx)
	if err := conn.Where("tactical_dimension_id = ?", dimID).Delete(&types.TacticalGoal{}).Error; err != nil {
		return err
	}
	if err := conn.Where("tactical_dimension_id = ?", dimID).Delete(&types.TacticalDepartmentRole{}).Error; err != nil {
		return err
	}
	for i := range goals {
		goals[i].ID = 0
		goals[i].TacticalDimensionID = dimID
	}
	for i := range roles {
		roles[i].ID = 0
		roles[i].TacticalDimensionID = dimID
	}
	if len(goals) > 0 {
		if err := conn.Create(&goals).Error; err != nil {
			return err
		}
	}
	if len(roles) > 0 {
		if err := conn.Create(&roles).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *tacticalRepo) CountByPlan(ctx context.Context, tx *gorm.DB, planID uint) (int64, error) {
	var count int64
	err := r.conn(tx).WithContext(ctx).
		Model(&types.TacticalDimension{}).
		Where("plan_id = ?", planID).
		Count(&count).Error
	return count, err
}
